package papers

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
)

// StudyFlags are the four booleans derived from a paper's controlled-vocabulary
// classification.
type StudyFlags struct {
	Retraction    bool
	ClinicalStudy bool
	HumanStudy    bool
	AnimalStudy   bool
}

// ClassEntry holds the subject headings and publication types recorded for one paper.
type ClassEntry struct {
	MeshList     []string `json:"meshlist"`
	PubTypesList []string `json:"pubtypeslist"`
}

// Vocabularies are the fixed term sets the study flags are tested against.
type Vocabularies struct {
	AnimalHeadings     map[string]struct{}
	HumanHeadings      map[string]struct{}
	ClinicalTrialTypes map[string]struct{}
	RetractionTypes    map[string]struct{}
}

// DefaultVocabularies returns the MEDLINE headings and publication types used
// to derive the study flags.
func DefaultVocabularies() Vocabularies {
	return Vocabularies{
		AnimalHeadings: toSet("Animals"),
		HumanHeadings:  toSet("Humans"),
		ClinicalTrialTypes: toSet(
			"Adaptive Clinical Trial",
			"Clinical Study",
			"Clinical Trial",
			"Clinical Trial, Phase I",
			"Clinical Trial, Phase II",
			"Clinical Trial, Phase III",
			"Clinical Trial, Phase IV",
			"Controlled Clinical Trial",
			"Pragmatic Clinical Trial",
		),
		RetractionTypes: toSet(
			"Retraction of Publication",
			"Retracted Publication",
		),
	}
}

func toSet(terms ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(terms))
	for _, term := range terms {
		set[term] = struct{}{}
	}
	return set
}

// Classification is the per-paper controlled-vocabulary table.
type Classification struct {
	entries map[string]ClassEntry
	vocab   Vocabularies
}

// NewClassification builds a Classification from in-memory entries.
func NewClassification(entries map[string]ClassEntry, vocab Vocabularies) *Classification {
	if entries == nil {
		entries = map[string]ClassEntry{}
	}
	return &Classification{
		entries: entries,
		vocab:   vocab,
	}
}

// LoadClassification reads a gzipped JSON classification table keyed by paper id.
func LoadClassification(path string, vocab Vocabularies) (*Classification, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open classification table: %w", err)
	}
	defer file.Close()

	reader, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read gzip header: %w", err)
	}
	defer reader.Close()

	var entries map[string]ClassEntry
	if err := json.NewDecoder(reader).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse classification table: %w", err)
	}

	return NewClassification(entries, vocab), nil
}

// FlagsFor derives the study flags for one paper. Papers missing from the
// table get all-false flags.
func (c *Classification) FlagsFor(paperID string) StudyFlags {
	entry, ok := c.entries[paperID]
	if !ok {
		return StudyFlags{}
	}
	return StudyFlags{
		Retraction:    anyIn(entry.PubTypesList, c.vocab.RetractionTypes),
		ClinicalStudy: anyIn(entry.PubTypesList, c.vocab.ClinicalTrialTypes),
		HumanStudy:    anyIn(entry.MeshList, c.vocab.HumanHeadings),
		AnimalStudy:   anyIn(entry.MeshList, c.vocab.AnimalHeadings),
	}
}

func anyIn(terms []string, vocab map[string]struct{}) bool {
	for _, term := range terms {
		if _, ok := vocab[term]; ok {
			return true
		}
	}
	return false
}
