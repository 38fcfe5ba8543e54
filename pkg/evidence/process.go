package evidence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/suppkb/pkg/concept"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
)

// DiscoverPartitions pairs every sentences file under sentencesDir with its
// label file under labelsDir. Label files carry the sentences file name with
// "sentences" replaced by "labels". Partitions are returned in name order so
// repeated runs see the same input order.
func DiscoverPartitions(sentencesDir, labelsDir string) ([]Partition, error) {
	matches, err := filepath.Glob(filepath.Join(sentencesDir, "*.jsonl*"))
	if err != nil {
		return nil, fmt.Errorf("failed to list sentence files: %w", err)
	}
	sort.Strings(matches)

	partitions := make([]Partition, 0, len(matches))
	for _, sentencesPath := range matches {
		labelsName := strings.ReplaceAll(filepath.Base(sentencesPath), "sentences", "labels")
		labelsPath := filepath.Join(labelsDir, labelsName)
		if _, err := os.Stat(labelsPath); err != nil {
			logger.Warn("[Filter] Label file missing, skipping partition", "file", labelsPath)
			continue
		}
		partitions = append(partitions, Partition{
			SentencesPath: sentencesPath,
			LabelsPath:    labelsPath,
		})
	}
	return partitions, nil
}

// FilterPartitions runs the evidence filter over all partitions, up to
// parallel at a time. Each partition is filtered with no shared state; the
// per-partition results are then merged in partition order, deduplicated
// again across partition boundaries, and renumbered so uids are sequential
// over the merged output.
func FilterPartitions(
	ctx context.Context,
	partitions []Partition,
	registry *concept.Registry,
	opts FilterOptions,
	parallel int,
) (*FilterResult, error) {
	if parallel <= 0 {
		parallel = 1
	}

	results := make([]*FilterResult, len(partitions))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(parallel)
	for i, partition := range partitions {
		i, p := i, partition
		eg.Go(func() error {
			select {
			case <-gCtx.Done():
				return gCtx.Err()
			default:
				filter := NewFilter(registry, opts)
				if err := FilterPartition(p, filter); err != nil {
					return fmt.Errorf("failed to filter %s: %w", p.SentencesPath, err)
				}
				results[i] = filter.Result()
				return nil
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return mergeResults(results), nil
}

// mergeResults concatenates partition results in order, drops duplicates that
// only appear distinct because they came from different partitions, and
// reassigns uids sequentially.
func mergeResults(results []*FilterResult) *FilterResult {
	merged := &FilterResult{}
	seen := make(map[string]map[dedupKey]struct{})
	nextUID := 0

	for _, result := range results {
		if result == nil {
			continue
		}
		merged.Total += result.Total
		merged.Duplicates += result.Duplicates
		merged.Rejections = append(merged.Rejections, result.Rejections...)

		for _, sentence := range result.Accepted {
			key := dedupKey{
				sentence: sentence.Sentence,
				arg1:     sentence.Arg1.ID,
				arg2:     sentence.Arg2.ID,
			}
			if _, ok := seen[sentence.PaperID][key]; ok {
				merged.Duplicates++
				continue
			}
			if seen[sentence.PaperID] == nil {
				seen[sentence.PaperID] = make(map[dedupKey]struct{})
			}
			seen[sentence.PaperID][key] = struct{}{}

			sentence.UID = nextUID
			nextUID++
			merged.Accepted = append(merged.Accepted, sentence)
		}
	}

	return merged
}

// LoadBlockList reads a plain-text denylist of surface strings, one per line,
// case-insensitive.
func LoadBlockList(path string) (map[string]struct{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read block list: %w", err)
	}

	blockList := make(map[string]struct{})
	for _, line := range strings.Split(string(data), "\n") {
		entry := strings.ToLower(strings.TrimSpace(line))
		if entry == "" {
			continue
		}
		blockList[entry] = struct{}{}
	}
	return blockList, nil
}
