package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/OFFIS-RIT/suppkb/pkg/concept"
	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
	"github.com/OFFIS-RIT/suppkb/pkg/kb"
	"github.com/OFFIS-RIT/suppkb/pkg/logger"
	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

// Config describes one compile run.
type Config struct {
	// ClusterFile is the concept clustering artifact (JSON).
	ClusterFile string
	// BlockListFile is the surface-string denylist (plain text, optional).
	BlockListFile string
	// DataDir holds one subdirectory per upstream run, each with a
	// supp_sents/ sentences stream and a ddi_output/ label stream.
	DataDir string
	// ClassificationFile is the gzipped publication-type/subject-heading table.
	ClassificationFile string
	// OutputFile is the archive path to write.
	OutputFile string
	// Resolver fetches bibliographic metadata for referenced papers.
	Resolver papers.Resolver

	Parallel   int
	BatchSize  int
	MaxRetries int
}

// Summary reports what one compile run produced and what it had to drop.
type Summary struct {
	RunID         string                        `json:"run_id"`
	LastUpdatedOn string                        `json:"last_updated_on"`
	TotalRecords  int                           `json:"total_records"`
	Accepted      int                           `json:"accepted"`
	Duplicates    int                           `json:"duplicates"`
	Rejections    map[evidence.RejectReason]int `json:"rejections"`
	RemovedCUIs   map[string]kb.RemovalReason   `json:"removed_cuis"`
	MissingPapers int                           `json:"missing_papers"`
	Concepts      int                           `json:"concepts"`
	Interactions  int                           `json:"interactions"`
	Papers        int                           `json:"papers"`
	OutputFile    string                        `json:"output_file"`
}

// Run executes the full compile: filter the labeled evidence streams, build
// and reconcile the interaction index, join paper metadata, verify the global
// invariants, and write the archive plus an audit report beside it.
func Run(ctx context.Context, config Config) (*Summary, error) {
	runID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate run id: %w", err)
	}
	startTime := time.Now()

	logger.Info("[Pipeline] Starting compile run", "run_id", runID, "data_dir", config.DataDir)

	registry, err := concept.LoadRegistry(config.ClusterFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load concept registry: %w", err)
	}

	opts := evidence.FilterOptions{}
	if config.BlockListFile != "" {
		opts.BlockList, err = evidence.LoadBlockList(config.BlockListFile)
		if err != nil {
			return nil, err
		}
	}

	partitions, err := discoverRuns(config.DataDir)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return nil, fmt.Errorf("no labeled sentence partitions under %s", config.DataDir)
	}
	logger.Info("[Pipeline] Filtering evidence", "partitions", len(partitions))

	result, err := evidence.FilterPartitions(ctx, partitions, registry, opts, config.Parallel)
	if err != nil {
		return nil, err
	}
	logger.Info(
		"[Pipeline] Evidence filtered",
		"accepted", len(result.Accepted),
		"total", result.Total,
		"duplicates", result.Duplicates,
	)

	base := kb.Build(result.Accepted)
	reconcileReport := base.Reconcile(registry)

	classification, err := loadClassification(config.ClassificationFile)
	if err != nil {
		return nil, err
	}

	joinReport, err := base.JoinPapers(ctx, config.Resolver, classification, kb.JoinOptions{
		BatchSize:  config.BatchSize,
		Parallel:   config.Parallel,
		MaxRetries: config.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	if err := base.Verify(); err != nil {
		return nil, fmt.Errorf("knowledge base failed verification: %w", err)
	}

	meta := kb.NewRunMeta(startTime)
	if err := base.WriteArchive(config.OutputFile, meta); err != nil {
		return nil, err
	}

	summary := &Summary{
		RunID:         runID,
		LastUpdatedOn: meta.LastUpdatedOn,
		TotalRecords:  result.Total,
		Accepted:      len(result.Accepted),
		Duplicates:    result.Duplicates,
		Rejections:    result.RejectionCounts(),
		RemovedCUIs:   reconcileReport.RemovedConcepts,
		MissingPapers: len(joinReport.MissingPapers),
		Concepts:      len(base.Concepts),
		Interactions:  len(base.Sentences),
		Papers:        len(base.Papers),
		OutputFile:    config.OutputFile,
	}

	if err := writeSummary(summary); err != nil {
		return nil, err
	}

	logger.Info(
		"[Pipeline] Compile run completed",
		"run_id", runID,
		"concepts", summary.Concepts,
		"interactions", summary.Interactions,
		"papers", summary.Papers,
		"duration", time.Since(startTime).Round(time.Second),
	)
	return summary, nil
}

// discoverRuns collects partitions across every upstream run directory so
// results from multiple labeling runs aggregate into one knowledge base.
func discoverRuns(dataDir string) ([]evidence.Partition, error) {
	sentenceDirs, err := filepath.Glob(filepath.Join(dataDir, "*", "supp_sents"))
	if err != nil {
		return nil, fmt.Errorf("failed to list run directories: %w", err)
	}
	sort.Strings(sentenceDirs)

	var partitions []evidence.Partition
	for _, sentencesDir := range sentenceDirs {
		labelsDir := filepath.Join(filepath.Dir(sentencesDir), "ddi_output")
		found, err := evidence.DiscoverPartitions(sentencesDir, labelsDir)
		if err != nil {
			return nil, err
		}
		partitions = append(partitions, found...)
	}
	return partitions, nil
}

func loadClassification(path string) (*papers.Classification, error) {
	if path == "" {
		logger.Warn("[Pipeline] No classification table configured, study flags will be false")
		return papers.NewClassification(nil, papers.DefaultVocabularies()), nil
	}
	return papers.LoadClassification(path, papers.DefaultVocabularies())
}

// writeSummary persists the audit report next to the archive.
func writeSummary(summary *Summary) error {
	payload, err := json.MarshalIndent(summary, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode run summary: %w", err)
	}

	path := summary.OutputFile + ".report.json"
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("failed to write run summary: %w", err)
	}
	return nil
}
