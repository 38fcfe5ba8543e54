package kb

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/suppkb/pkg/concept"
	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
)

func kbRegistry(t *testing.T) *concept.Registry {
	t.Helper()
	registry, err := concept.NewRegistry(concept.Artifact{
		Supplements: map[string]concept.Cluster{
			"S1": {Members: []string{"S1", "S1a"}, PreferredName: "Fish Oil"},
			"S2": {Members: []string{"S2"}, PreferredName: "Ginkgo"},
		},
		Drugs: map[string]concept.Cluster{
			"D1": {Members: []string{"D1"}, PreferredName: "Warfarin"},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return registry
}

func testSentence(uid int, paperID, id1, id2, text string) *evidence.Sentence {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	return &evidence.Sentence{
		UID:      uid,
		PaperID:  paperID,
		Sentence: text,
		Arg1:     evidence.LabeledSpan{ID: id1},
		Arg2:     evidence.LabeledSpan{ID: id2},
	}
}

func interactionIDs(kb *KnowledgeBase, conceptID string) []string {
	return sortedKeys(kb.Interactions[conceptID])
}

func TestBuildIndexesBothEndpoints(t *testing.T) {
	accepted := []*evidence.Sentence{
		testSentence(0, "p1", "S1", "D1", "X interacts with Y."),
		testSentence(1, "p1", "S1", "D1", "X also interacts with Y."),
		testSentence(2, "p2", "S1", "S2", "X interacts with Z."),
	}

	kb := Build(accepted)

	if got := interactionIDs(kb, "S1"); !reflect.DeepEqual(got, []string{"D1-S1", "S1-S2"}) {
		t.Errorf("interactions for S1 = %v, want [D1-S1 S1-S2]", got)
	}
	if got := interactionIDs(kb, "D1"); !reflect.DeepEqual(got, []string{"D1-S1"}) {
		t.Errorf("interactions for D1 = %v, want [D1-S1]", got)
	}
	if got := interactionIDs(kb, "S2"); !reflect.DeepEqual(got, []string{"S1-S2"}) {
		t.Errorf("interactions for S2 = %v, want [S1-S2]", got)
	}

	if got := len(kb.Sentences["D1-S1"]); got != 2 {
		t.Errorf("evidence for D1-S1 = %d sentences, want 2", got)
	}
	if got := len(kb.Sentences["S1-S2"]); got != 1 {
		t.Errorf("evidence for S1-S2 = %d sentences, want 1", got)
	}

	if got := kb.PaperIDs(); !reflect.DeepEqual(got, []string{"p1", "p2"}) {
		t.Errorf("PaperIDs() = %v, want [p1 p2]", got)
	}
}

func TestReconcileCascadesUnresolvableConcepts(t *testing.T) {
	kb := Build([]*evidence.Sentence{
		testSentence(0, "p1", "S1", "D1", "X interacts with Y."),
		testSentence(1, "p2", "C9", "S1", "X interacts with Q."),
		testSentence(2, "p3", "C9", "S2", "Z interacts with Q."),
	})

	report := kb.Reconcile(kbRegistry(t))

	want := map[string]RemovalReason{"C9": RemovedMissingMetadata}
	if !reflect.DeepEqual(report.RemovedConcepts, want) {
		t.Errorf("RemovedConcepts = %v, want %v", report.RemovedConcepts, want)
	}
	if !reflect.DeepEqual(report.RemovedInteractions, []string{"C9-S1", "C9-S2"}) {
		t.Errorf("RemovedInteractions = %v, want [C9-S1 C9-S2]", report.RemovedInteractions)
	}

	if _, ok := kb.Concepts["C9"]; ok {
		t.Error("concept C9 survived reconciliation")
	}
	if _, ok := kb.Interactions["C9"]; ok {
		t.Error("interaction index still lists C9")
	}
	if _, ok := kb.Sentences["C9-S1"]; ok {
		t.Error("evidence for C9-S1 survived reconciliation")
	}

	// The surviving interaction is untouched and no set references a removed id.
	if got := interactionIDs(kb, "S1"); !reflect.DeepEqual(got, []string{"D1-S1"}) {
		t.Errorf("interactions for S1 = %v, want [D1-S1]", got)
	}
	if got := interactionIDs(kb, "S2"); len(got) != 0 {
		t.Errorf("interactions for S2 = %v, want empty", got)
	}
}

func TestReconcileKeepsEvidencelessRegistryConcepts(t *testing.T) {
	// Only S1 and D1 carry evidence; S2 exists in the registry alone.
	kb := Build([]*evidence.Sentence{
		testSentence(0, "p1", "S1", "D1", "X interacts with Y."),
	})

	report := kb.Reconcile(kbRegistry(t))

	if len(report.RemovedConcepts) != 0 {
		t.Errorf("RemovedConcepts = %v, want none", report.RemovedConcepts)
	}
	for _, conceptID := range []string{"D1", "S1", "S2"} {
		if _, ok := kb.Concepts[conceptID]; !ok {
			t.Errorf("concept %s missing after reconciliation", conceptID)
		}
		if kb.Interactions[conceptID] == nil {
			t.Errorf("concept %s has no interaction entry", conceptID)
		}
	}
	if got := interactionIDs(kb, "S2"); len(got) != 0 {
		t.Errorf("interactions for S2 = %v, want empty", got)
	}
}

func TestVerify(t *testing.T) {
	build := func(t *testing.T) *KnowledgeBase {
		kb := Build([]*evidence.Sentence{
			testSentence(0, "p1", "S1", "D1", "X interacts with Y."),
		})
		kb.Reconcile(kbRegistry(t))
		kb.Papers["p1"] = paperFixture("Interactions of X and Y")
		return kb
	}

	if err := build(t).Verify(); err != nil {
		t.Errorf("Verify() on consistent base = %v, want nil", err)
	}

	tests := []struct {
		name    string
		corrupt func(kb *KnowledgeBase)
	}{
		{
			name: "interaction without evidence",
			corrupt: func(kb *KnowledgeBase) {
				kb.Sentences["D1-S1"] = nil
			},
		},
		{
			name: "concept indexed without metadata",
			corrupt: func(kb *KnowledgeBase) {
				delete(kb.Concepts, "S1")
			},
		},
		{
			name: "evidence referencing missing paper",
			corrupt: func(kb *KnowledgeBase) {
				delete(kb.Papers, "p1")
			},
		},
		{
			name: "interaction missing from endpoint index",
			corrupt: func(kb *KnowledgeBase) {
				delete(kb.Interactions["D1"], "D1-S1")
			},
		},
		{
			name: "duplicate preferred names",
			corrupt: func(kb *KnowledgeBase) {
				meta := kb.Concepts["S2"]
				meta.PreferredName = kb.Concepts["S1"].PreferredName
				kb.Concepts["S2"] = meta
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kb := build(t)
			tt.corrupt(kb)
			if err := kb.Verify(); err == nil {
				t.Error("Verify() = nil, want error")
			}
		})
	}
}
