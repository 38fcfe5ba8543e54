package evidence

import (
	"strings"

	"github.com/OFFIS-RIT/suppkb/internal/util"
	"github.com/OFFIS-RIT/suppkb/pkg/concept"
)

// RejectReason tags why a raw record was excluded from the knowledge base.
type RejectReason string

const (
	ReasonEmptySentence RejectReason = "empty_sentence"
	ReasonMissingCUIs   RejectReason = "missing_cuis"
	ReasonSameCUIs      RejectReason = "same_cuis"
	ReasonNoSupps       RejectReason = "no_supps"
	ReasonBlockList     RejectReason = "block_list"
	ReasonCompoundStr   RejectReason = "compound_str"
	ReasonATPStr        RejectReason = "atp_str"
	ReasonCa2Str        RejectReason = "ca2_str"
)

// SurfaceException is a hand-curated denylist rule keyed on a concept id and
// the normalized surface strings that should not link to it.
type SurfaceException struct {
	ConceptID string
	Surfaces  []string
	Reason    RejectReason
}

// DefaultSurfaceExceptions returns the curated linker disambiguation rules:
// "atp" linked to the azathioprine cluster and "ca2"/"ca2+" linked to the
// infliximab biosimilar cluster are high-false-positive matches.
func DefaultSurfaceExceptions() []SurfaceException {
	return []SurfaceException{
		{ConceptID: "C0004482", Surfaces: []string{"atp"}, Reason: ReasonATPStr},
		{ConceptID: "C0666743", Surfaces: []string{"ca2", "ca2+"}, Reason: ReasonCa2Str},
	}
}

// FilterOptions configures the evidence filter.
type FilterOptions struct {
	// BlockList holds lowercased surface strings that never count as mentions.
	BlockList map[string]struct{}
	// SurfaceExceptions defaults to DefaultSurfaceExceptions when nil.
	SurfaceExceptions []SurfaceException
}

// Rejection records one excluded record and the rule that excluded it.
type Rejection struct {
	RecordID string       `json:"record_id"`
	Reason   RejectReason `json:"reason"`
}

// FilterResult aggregates the output of one filter pass.
type FilterResult struct {
	Accepted   []*Sentence
	Rejections []Rejection
	Duplicates int
	Total      int
}

// RejectionCounts tallies rejections per reason.
func (r *FilterResult) RejectionCounts() map[RejectReason]int {
	counts := make(map[RejectReason]int)
	for _, rejection := range r.Rejections {
		counts[rejection.Reason]++
	}
	return counts
}

type dedupKey struct {
	sentence string
	arg1     string
	arg2     string
}

// Filter turns raw labeled records into deduplicated evidence sentences.
// Records must be added in input order; the first occurrence of a duplicate wins.
type Filter struct {
	registry   *concept.Registry
	blockList  map[string]struct{}
	exceptions []SurfaceException
	seen       map[string]map[dedupKey]struct{}
	nextUID    int
	result     FilterResult
}

// NewFilter creates a Filter over the given concept registry.
func NewFilter(registry *concept.Registry, opts FilterOptions) *Filter {
	exceptions := opts.SurfaceExceptions
	if exceptions == nil {
		exceptions = DefaultSurfaceExceptions()
	}
	blockList := opts.BlockList
	if blockList == nil {
		blockList = map[string]struct{}{}
	}
	return &Filter{
		registry:   registry,
		blockList:  blockList,
		exceptions: exceptions,
		seen:       make(map[string]map[dedupKey]struct{}),
	}
}

// Add runs one raw record through the filter pipeline.
func (f *Filter) Add(record RawRecord) {
	f.result.Total++

	if reason, ok := f.rejectReason(record); ok {
		f.result.Rejections = append(f.result.Rejections, Rejection{
			RecordID: record.ID,
			Reason:   reason,
		})
		return
	}

	paperID := record.PaperID()
	arg1 := LabeledSpan{ID: f.registry.Normalize(record.Arg1.ID), Span: record.Arg1.FirstSpan()}
	arg2 := LabeledSpan{ID: f.registry.Normalize(record.Arg2.ID), Span: record.Arg2.FirstSpan()}
	if arg1.ID > arg2.ID {
		arg1, arg2 = arg2, arg1
	}

	normalized := util.NormalizeSpace(record.Sentence)

	key := dedupKey{sentence: normalized, arg1: arg1.ID, arg2: arg2.ID}
	if _, ok := f.seen[paperID][key]; ok {
		f.result.Duplicates++
		return
	}
	if f.seen[paperID] == nil {
		f.seen[paperID] = make(map[dedupKey]struct{})
	}
	f.seen[paperID][key] = struct{}{}

	f.result.Accepted = append(f.result.Accepted, &Sentence{
		UID:        f.nextUID,
		PaperID:    paperID,
		SentenceID: record.SentenceID,
		Sentence:   normalized,
		Confidence: record.Confidence,
		Arg1:       arg1,
		Arg2:       arg2,
	})
	f.nextUID++
}

// Result returns everything accepted and rejected so far.
func (f *Filter) Result() *FilterResult {
	return &f.result
}

func (f *Filter) rejectReason(record RawRecord) (RejectReason, bool) {
	cui1 := f.registry.Normalize(record.Arg1.ID)
	cui2 := f.registry.Normalize(record.Arg2.ID)
	if cui1 == "" || cui2 == "" {
		return ReasonMissingCUIs, true
	}
	if cui1 == cui2 {
		return ReasonSameCUIs, true
	}
	if !f.registry.IsSupplementDrugPair(cui1, cui2) && !f.registry.IsSupplementSupplementPair(cui1, cui2) {
		return ReasonNoSupps, true
	}

	surface1 := util.NormalizeSurface(record.Arg1.SurfaceIn(record.Sentence))
	surface2 := util.NormalizeSurface(record.Arg2.SurfaceIn(record.Sentence))

	if _, ok := f.blockList[surface1]; ok {
		return ReasonBlockList, true
	}
	if _, ok := f.blockList[surface2]; ok {
		return ReasonBlockList, true
	}
	if isCompoundMention(surface1) || isCompoundMention(surface2) {
		return ReasonCompoundStr, true
	}

	for _, exception := range f.exceptions {
		if exception.matches(cui1, surface1) || exception.matches(cui2, surface2) {
			return exception.Reason, true
		}
	}

	if strings.TrimSpace(record.Sentence) == "" {
		return ReasonEmptySentence, true
	}

	return "", false
}

func (e SurfaceException) matches(conceptID, surface string) bool {
	if conceptID != e.ConceptID {
		return false
	}
	for _, candidate := range e.Surfaces {
		if surface == candidate {
			return true
		}
	}
	return false
}

// isCompoundMention flags generic mentions like "compound 5" or "phenolic compounds".
func isCompoundMention(surface string) bool {
	return strings.HasPrefix(surface, "compound") ||
		strings.HasSuffix(surface, "compound") ||
		strings.HasSuffix(surface, "compounds")
}
