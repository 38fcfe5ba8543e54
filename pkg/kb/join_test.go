package kb

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

func paperFixture(title string) papers.Metadata {
	return papers.Record{Title: title}.WithFlags(papers.StudyFlags{})
}

// fakeResolver resolves a fixed set of papers and records each batch it sees.
type fakeResolver struct {
	mu      sync.Mutex
	records map[string]papers.Record
	batches [][]string
	err     error
}

func (r *fakeResolver) Resolve(_ context.Context, ids []string) (map[string]papers.Record, error) {
	r.mu.Lock()
	r.batches = append(r.batches, ids)
	r.mu.Unlock()

	if r.err != nil {
		return nil, r.err
	}
	result := make(map[string]papers.Record)
	for _, id := range ids {
		if record, ok := r.records[id]; ok {
			result[id] = record
		}
	}
	return result, nil
}

func joinFixture(t *testing.T) *KnowledgeBase {
	t.Helper()
	kb := Build([]*evidence.Sentence{
		testSentence(0, "p1", "S1", "D1", "X interacts with Y."),
		testSentence(1, "p2", "S2", "D1", "Z interacts with Y."),
	})
	kb.Reconcile(kbRegistry(t))
	return kb
}

func TestJoinPapers(t *testing.T) {
	kb := joinFixture(t)
	resolver := &fakeResolver{
		records: map[string]papers.Record{
			"p1": {Title: "Interactions of X and Y"},
			"p2": {Title: "Interactions of Z and Y"},
		},
	}
	classification := papers.NewClassification(map[string]papers.ClassEntry{
		"p1": {
			MeshList:     []string{"Humans"},
			PubTypesList: []string{"Retracted Publication"},
		},
	}, papers.DefaultVocabularies())

	report, err := kb.JoinPapers(context.Background(), resolver, classification, JoinOptions{})
	if err != nil {
		t.Fatalf("JoinPapers() error = %v", err)
	}

	if report.Requested != 2 || report.Resolved != 2 {
		t.Errorf("report = %+v, want 2 requested and 2 resolved", report)
	}
	if len(report.MissingPapers) != 0 {
		t.Errorf("MissingPapers = %v, want none", report.MissingPapers)
	}

	p1 := kb.Papers["p1"]
	if p1.Title != "Interactions of X and Y" || !p1.Retraction || !p1.HumanStudy {
		t.Errorf("p1 = %+v, want retracted human study", p1)
	}
	p2 := kb.Papers["p2"]
	if p2.Retraction || p2.ClinicalStudy || p2.HumanStudy || p2.AnimalStudy {
		t.Errorf("p2 = %+v, want all-false study flags", p2)
	}

	if err := kb.Verify(); err != nil {
		t.Errorf("Verify() after join = %v, want nil", err)
	}
}

func TestJoinPapersBatches(t *testing.T) {
	kb := Build([]*evidence.Sentence{
		testSentence(0, "p1", "S1", "D1", "X interacts with Y."),
		testSentence(1, "p2", "S1", "D1", "X interacts with Y here."),
		testSentence(2, "p3", "S1", "D1", "X interacts with Y there."),
	})
	kb.Reconcile(kbRegistry(t))

	resolver := &fakeResolver{
		records: map[string]papers.Record{
			"p1": {}, "p2": {}, "p3": {},
		},
	}
	emptyClass := papers.NewClassification(nil, papers.DefaultVocabularies())

	_, err := kb.JoinPapers(context.Background(), resolver, emptyClass, JoinOptions{BatchSize: 2})
	if err != nil {
		t.Fatalf("JoinPapers() error = %v", err)
	}

	if len(resolver.batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(resolver.batches))
	}
	var total int
	for _, batch := range resolver.batches {
		if len(batch) > 2 {
			t.Errorf("batch size = %d, want at most 2", len(batch))
		}
		total += len(batch)
	}
	if total != 3 {
		t.Errorf("ids requested = %d, want 3", total)
	}
}

func TestJoinPapersCascadesMissing(t *testing.T) {
	kb := joinFixture(t)
	resolver := &fakeResolver{
		records: map[string]papers.Record{
			"p1": {Title: "Interactions of X and Y"},
		},
	}
	emptyClass := papers.NewClassification(nil, papers.DefaultVocabularies())

	report, err := kb.JoinPapers(context.Background(), resolver, emptyClass, JoinOptions{})
	if err != nil {
		t.Fatalf("JoinPapers() error = %v", err)
	}

	if !reflect.DeepEqual(report.MissingPapers, []string{"p2"}) {
		t.Errorf("MissingPapers = %v, want [p2]", report.MissingPapers)
	}
	if report.DroppedSentences != 1 {
		t.Errorf("DroppedSentences = %d, want 1", report.DroppedSentences)
	}
	if !reflect.DeepEqual(report.RemovedInteractions, []string{"D1-S2"}) {
		t.Errorf("RemovedInteractions = %v, want [D1-S2]", report.RemovedInteractions)
	}

	if _, ok := kb.Sentences["D1-S2"]; ok {
		t.Error("evidence for D1-S2 survived the cascade")
	}
	// Both endpoints drop the interaction but keep their concept entries.
	if got := interactionIDs(kb, "D1"); !reflect.DeepEqual(got, []string{"D1-S1"}) {
		t.Errorf("interactions for D1 = %v, want [D1-S1]", got)
	}
	if _, ok := kb.Concepts["S2"]; !ok {
		t.Error("concept S2 removed by the cascade, want retained")
	}
	if got := interactionIDs(kb, "S2"); len(got) != 0 {
		t.Errorf("interactions for S2 = %v, want empty", got)
	}

	if err := kb.Verify(); err != nil {
		t.Errorf("Verify() after cascade = %v, want nil", err)
	}
}

func TestJoinPapersResolverKeepsFailing(t *testing.T) {
	kb := joinFixture(t)
	resolver := &fakeResolver{err: errors.New("upstream down")}
	emptyClass := papers.NewClassification(nil, papers.DefaultVocabularies())

	report, err := kb.JoinPapers(context.Background(), resolver, emptyClass, JoinOptions{MaxRetries: 2})
	if err != nil {
		t.Fatalf("JoinPapers() error = %v, want nil (failed batches degrade, not abort)", err)
	}

	if report.Resolved != 0 {
		t.Errorf("Resolved = %d, want 0", report.Resolved)
	}
	if !reflect.DeepEqual(report.MissingPapers, []string{"p1", "p2"}) {
		t.Errorf("MissingPapers = %v, want [p1 p2]", report.MissingPapers)
	}
	if len(resolver.batches) != 2 {
		t.Errorf("resolver attempts = %d, want 2 (retry budget)", len(resolver.batches))
	}

	if len(kb.Sentences) != 0 {
		t.Errorf("surviving interactions = %d, want 0", len(kb.Sentences))
	}
	if err := kb.Verify(); err != nil {
		t.Errorf("Verify() = %v, want nil", err)
	}
}
