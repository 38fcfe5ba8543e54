package kb

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/suppkb/internal/util"
	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

const (
	defaultBatchSize  = 1000
	defaultMaxRetries = 3
)

// JoinOptions configures the paper metadata join.
type JoinOptions struct {
	// BatchSize caps the number of ids per resolver call (default 1000).
	BatchSize int
	// Parallel caps concurrent resolver batches (default 1).
	Parallel int
	// MaxRetries is the per-batch retry budget (default 3).
	MaxRetries int
}

// JoinReport summarizes the join and the cascade it triggered.
type JoinReport struct {
	Requested           int
	Resolved            int
	MissingPapers       []string
	DroppedSentences    int
	RemovedInteractions []string
}

// JoinPapers resolves bibliographic metadata for every paper referenced by
// surviving evidence and prunes everything that stays unresolved. Resolver
// batches run concurrently and are retried whole; a batch that keeps failing
// marks its ids missing instead of aborting the run. The cascade then drops
// evidence from unresolved papers and removes interactions left without
// evidence from both endpoints' sets. Concepts are retained even when their
// interaction set becomes empty.
func (kb *KnowledgeBase) JoinPapers(
	ctx context.Context,
	resolver papers.Resolver,
	classification *papers.Classification,
	opts JoinOptions,
) (*JoinReport, error) {
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	parallel := opts.Parallel
	if parallel <= 0 {
		parallel = 1
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	paperIDs := kb.PaperIDs()
	report := &JoinReport{
		Requested: len(paperIDs),
	}
	logger.Info("[KB] Resolving paper metadata", "papers", len(paperIDs), "batch_size", batchSize)

	resolved := make(map[string]papers.Record, len(paperIDs))
	var mu sync.Mutex

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for start := 0; start < len(paperIDs); start += batchSize {
		batch := paperIDs[start:min(start+batchSize, len(paperIDs))]
		eg.Go(func() error {
			records, err := util.RetryWithContext(gCtx, maxRetries, func(ctx context.Context) (map[string]papers.Record, error) {
				return resolver.Resolve(ctx, batch)
			})
			if err != nil {
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				// A batch that exhausts its retries counts its ids as missing.
				logger.Error("[KB] Metadata batch failed, treating ids as unresolved", "ids", len(batch), "err", err)
				return nil
			}
			mu.Lock()
			for id, record := range records {
				resolved[id] = record
			}
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	for id, record := range resolved {
		kb.Papers[id] = record.WithFlags(classification.FlagsFor(id))
	}
	report.Resolved = len(resolved)

	for _, id := range paperIDs {
		if _, ok := resolved[id]; !ok {
			report.MissingPapers = append(report.MissingPapers, id)
		}
	}
	if len(report.MissingPapers) > 0 {
		logger.Warn("[KB] Papers with missing metadata", "count", len(report.MissingPapers))
	}

	kb.cascadeMissingPapers(report)
	kb.sweepDanglingInteractions()

	return report, nil
}

// cascadeMissingPapers filters each interaction's evidence down to resolved
// papers and removes interactions that lose all their evidence.
func (kb *KnowledgeBase) cascadeMissingPapers(report *JoinReport) {
	for _, interactionID := range sortedKeys(kb.Sentences) {
		sentences := kb.Sentences[interactionID]
		kept := make([]*evidence.Sentence, 0, len(sentences))
		for _, sentence := range sentences {
			if _, ok := kb.Papers[sentence.PaperID]; ok {
				kept = append(kept, sentence)
			}
		}
		report.DroppedSentences += len(sentences) - len(kept)

		if len(kept) > 0 {
			kb.Sentences[interactionID] = kept
			continue
		}
		kb.dropInteraction(interactionID)
		report.RemovedInteractions = append(report.RemovedInteractions, interactionID)
	}

	if report.DroppedSentences > 0 {
		logger.Info(
			"[KB] Pruned evidence with unresolved papers",
			"sentences", report.DroppedSentences,
			"interactions", len(report.RemovedInteractions),
		)
	}
}

// sweepDanglingInteractions removes residual interaction ids whose target no
// longer exists in the evidence table.
func (kb *KnowledgeBase) sweepDanglingInteractions() {
	for _, set := range kb.Interactions {
		for interactionID := range set {
			if _, ok := kb.Sentences[interactionID]; !ok {
				delete(set, interactionID)
			}
		}
	}
}
