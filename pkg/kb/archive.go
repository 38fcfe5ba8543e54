package kb

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/OFFIS-RIT/suppkb/pkg/concept"
	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

// File names inside the output archive.
const (
	ConceptFile     = "cui_metadata.json"
	InteractionFile = "interaction_id_dict.json"
	SentenceFile    = "sentence_dict.json"
	PaperFile       = "paper_metadata.json"
	MetaFile        = "meta.json"
)

// RunMeta is the run-metadata record packaged with the tables.
type RunMeta struct {
	LastUpdatedOn string `json:"last_updated_on"`
}

// NewRunMeta stamps a run-metadata record with the given time.
func NewRunMeta(t time.Time) RunMeta {
	return RunMeta{
		LastUpdatedOn: t.UTC().Format(time.RFC3339),
	}
}

// WriteArchive serializes the four tables plus the run metadata into one
// gzipped tar archive.
func (kb *KnowledgeBase) WriteArchive(path string, meta RunMeta) error {
	interactions := make(map[string][]string, len(kb.Interactions))
	for conceptID, set := range kb.Interactions {
		ids := make([]string, 0, len(set))
		for interactionID := range set {
			ids = append(ids, interactionID)
		}
		sort.Strings(ids)
		interactions[conceptID] = ids
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}
	defer file.Close()

	gz := gzip.NewWriter(file)
	tw := tar.NewWriter(gz)

	entries := []struct {
		name string
		data any
	}{
		{ConceptFile, kb.Concepts},
		{InteractionFile, interactions},
		{SentenceFile, kb.Sentences},
		{PaperFile, kb.Papers},
		{MetaFile, meta},
	}
	for _, entry := range entries {
		if err := writeArchiveEntry(tw, entry.name, entry.data); err != nil {
			return err
		}
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

func writeArchiveEntry(tw *tar.Writer, name string, data any) error {
	payload, err := json.MarshalIndent(data, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", name, err)
	}

	header := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(payload)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", name, err)
	}
	if _, err := tw.Write(payload); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

// ReadArchive loads a knowledge base back from an archive written by
// WriteArchive, e.g. for post-publish validation.
func ReadArchive(path string) (*KnowledgeBase, RunMeta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, RunMeta{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gz, err := gzip.NewReader(file)
	if err != nil {
		return nil, RunMeta{}, fmt.Errorf("failed to read gzip header: %w", err)
	}
	defer gz.Close()

	kb := &KnowledgeBase{
		Concepts:     make(map[string]concept.Metadata),
		Interactions: make(map[string]map[string]struct{}),
		Sentences:    make(map[string][]*evidence.Sentence),
		Papers:       make(map[string]papers.Metadata),
	}
	var meta RunMeta

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, RunMeta{}, fmt.Errorf("failed to read archive: %w", err)
		}

		payload, err := io.ReadAll(tr)
		if err != nil {
			return nil, RunMeta{}, fmt.Errorf("failed to read %s: %w", header.Name, err)
		}

		switch header.Name {
		case ConceptFile:
			err = json.Unmarshal(payload, &kb.Concepts)
		case InteractionFile:
			var interactions map[string][]string
			if err = json.Unmarshal(payload, &interactions); err == nil {
				for conceptID, ids := range interactions {
					set := make(map[string]struct{}, len(ids))
					for _, interactionID := range ids {
						set[interactionID] = struct{}{}
					}
					kb.Interactions[conceptID] = set
				}
			}
		case SentenceFile:
			err = json.Unmarshal(payload, &kb.Sentences)
		case PaperFile:
			err = json.Unmarshal(payload, &kb.Papers)
		case MetaFile:
			err = json.Unmarshal(payload, &meta)
		}
		if err != nil {
			return nil, RunMeta{}, fmt.Errorf("failed to parse %s: %w", header.Name, err)
		}
	}

	return kb, meta, nil
}
