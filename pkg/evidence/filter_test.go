package evidence

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/suppkb/pkg/concept"
)

func filterRegistry(t *testing.T) *concept.Registry {
	t.Helper()
	registry, err := concept.NewRegistry(concept.Artifact{
		Supplements: map[string]concept.Cluster{
			"S1": {Members: []string{"S1", "S1a"}, PreferredName: "Fish Oil"},
			"S2": {Members: []string{"S2"}, PreferredName: "Ginkgo"},
		},
		Drugs: map[string]concept.Cluster{
			"C0004482": {Members: []string{"C0004482"}, PreferredName: "Azathioprine"},
			"C0666743": {Members: []string{"C0666743"}, PreferredName: "Infliximab-abda"},
			"D1":       {Members: []string{"D1"}, PreferredName: "Warfarin"},
			"D2":       {Members: []string{"D2"}, PreferredName: "Aspirin"},
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error = %v", err)
	}
	return registry
}

func rawRecord(id, sentence, id1 string, span1 [2]int, id2 string, span2 [2]int) RawRecord {
	return RawRecord{
		ID:         id,
		SentenceID: 0,
		Sentence:   sentence,
		Arg1:       RawEntity{ID: id1, Span: [][2]int{span1}},
		Arg2:       RawEntity{ID: id2, Span: [][2]int{span2}},
	}
}

func TestFilterRejectionReasons(t *testing.T) {
	tests := []struct {
		name   string
		record RawRecord
		want   RejectReason
	}{
		{
			name:   "unknown identifier",
			record: rawRecord("p1-0", "X interacts with Y.", "Z9", [2]int{0, 1}, "D1", [2]int{17, 18}),
			want:   ReasonMissingCUIs,
		},
		{
			name:   "both map to the same cluster",
			record: rawRecord("p1-1", "X interacts with Y.", "S1", [2]int{0, 1}, "S1a", [2]int{17, 18}),
			want:   ReasonSameCUIs,
		},
		{
			name:   "drug-drug pair",
			record: rawRecord("p1-2", "X interacts with Y.", "D1", [2]int{0, 1}, "D2", [2]int{17, 18}),
			want:   ReasonNoSupps,
		},
		{
			name:   "blocked surface string",
			record: rawRecord("p1-3", "Herb, and warfarin.", "S1", [2]int{0, 5}, "D1", [2]int{10, 18}),
			want:   ReasonBlockList,
		},
		{
			name:   "generic compound mention",
			record: rawRecord("p1-4", "compound 5 with warfarin.", "S1", [2]int{0, 10}, "D1", [2]int{16, 24}),
			want:   ReasonCompoundStr,
		},
		{
			name:   "atp linked to azathioprine",
			record: rawRecord("p1-5", "ATP. and fish oil.", "C0004482", [2]int{0, 4}, "S1", [2]int{9, 17}),
			want:   ReasonATPStr,
		},
		{
			name:   "ca2+ linked to infliximab biosimilar",
			record: rawRecord("p1-6", "Ca2+ and fish oil.", "C0666743", [2]int{0, 4}, "S1", [2]int{9, 17}),
			want:   ReasonCa2Str,
		},
		{
			name: "empty sentence",
			record: RawRecord{
				ID:       "p1-7",
				Sentence: "",
				Arg1:     RawEntity{ID: "S1", Surface: "fish oil"},
				Arg2:     RawEntity{ID: "D1", Surface: "warfarin"},
			},
			want: ReasonEmptySentence,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewFilter(filterRegistry(t), FilterOptions{
				BlockList: map[string]struct{}{"herb": {}},
			})
			filter.Add(tt.record)

			result := filter.Result()
			if len(result.Accepted) != 0 {
				t.Fatalf("Add() accepted = %d, want 0", len(result.Accepted))
			}
			want := []Rejection{{RecordID: tt.record.ID, Reason: tt.want}}
			if !reflect.DeepEqual(result.Rejections, want) {
				t.Errorf("Add() rejections = %v, want %v", result.Rejections, want)
			}
		})
	}
}

func TestFilterCanonicalOrdering(t *testing.T) {
	filter := NewFilter(filterRegistry(t), FilterOptions{})
	// Raw order is drug first; the emitted sentence must carry the
	// lexicographically smaller id as arg1, with its span.
	filter.Add(rawRecord("p1-0", "Warfarin inhibits fish oil.", "D1", [2]int{0, 8}, "S1a", [2]int{18, 26}))

	result := filter.Result()
	if len(result.Accepted) != 1 {
		t.Fatalf("Add() accepted = %d, want 1", len(result.Accepted))
	}

	got := result.Accepted[0]
	if got.Arg1.ID != "D1" || got.Arg2.ID != "S1" {
		t.Errorf("ordered pair = (%s, %s), want (D1, S1)", got.Arg1.ID, got.Arg2.ID)
	}
	if got.Arg1.Span != [2]int{0, 8} || got.Arg2.Span != [2]int{18, 26} {
		t.Errorf("spans = %v, %v, want [0 8], [18 26]", got.Arg1.Span, got.Arg2.Span)
	}
	if got.InteractionKey() != "D1-S1" {
		t.Errorf("InteractionKey() = %q, want %q", got.InteractionKey(), "D1-S1")
	}

	// Reverse raw order lands on the same canonical pair.
	filter.Add(rawRecord("p2-0", "Fish oil inhibits warfarin.", "S1a", [2]int{0, 8}, "D1", [2]int{18, 26}))
	second := filter.Result().Accepted[1]
	if second.Arg1.ID != "D1" || second.Arg2.ID != "S1" {
		t.Errorf("ordered pair = (%s, %s), want (D1, S1)", second.Arg1.ID, second.Arg2.ID)
	}
}

func TestFilterDeduplication(t *testing.T) {
	tests := []struct {
		name    string
		records []RawRecord
		want    int
	}{
		{
			name: "identical record twice",
			records: []RawRecord{
				rawRecord("p1-0", "X interacts with Y.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}),
				rawRecord("p1-1", "X interacts with Y.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}),
			},
			want: 1,
		},
		{
			name: "different raw ids mapping to the same cluster",
			records: []RawRecord{
				rawRecord("p1-0", "X interacts with Y.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}),
				rawRecord("p1-1", "X interacts with Y.", "S1a", [2]int{0, 1}, "D1", [2]int{17, 18}),
			},
			want: 1,
		},
		{
			name: "same sentence in different papers",
			records: []RawRecord{
				rawRecord("p1-0", "X interacts with Y.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}),
				rawRecord("p2-0", "X interacts with Y.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}),
			},
			want: 2,
		},
		{
			name: "same sentence with a different pair",
			records: []RawRecord{
				rawRecord("p1-0", "X interacts with Y.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}),
				rawRecord("p1-1", "X interacts with Y.", "S2", [2]int{0, 1}, "D1", [2]int{17, 18}),
			},
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filter := NewFilter(filterRegistry(t), FilterOptions{})
			for _, record := range tt.records {
				filter.Add(record)
			}

			result := filter.Result()
			if len(result.Accepted) != tt.want {
				t.Errorf("accepted = %d, want %d", len(result.Accepted), tt.want)
			}

			for i, sentence := range result.Accepted {
				if sentence.UID != i {
					t.Errorf("uid at %d = %d, want %d", i, sentence.UID, i)
				}
			}
		})
	}
}

func TestFilterNormalizesWhitespace(t *testing.T) {
	filter := NewFilter(filterRegistry(t), FilterOptions{})
	filter.Add(rawRecord("p1-0", "X interacts\twith\nY.", "S1", [2]int{0, 1}, "D1", [2]int{17, 18}))

	result := filter.Result()
	if len(result.Accepted) != 1 {
		t.Fatalf("accepted = %d, want 1", len(result.Accepted))
	}
	if got := result.Accepted[0].Sentence; got != "X interacts with Y." {
		t.Errorf("sentence = %q, want %q", got, "X interacts with Y.")
	}
}

func TestFilterCustomSurfaceExceptions(t *testing.T) {
	filter := NewFilter(filterRegistry(t), FilterOptions{
		SurfaceExceptions: []SurfaceException{
			{ConceptID: "D1", Surfaces: []string{"w"}, Reason: ReasonBlockList},
		},
	})
	// The default atp rule is replaced, so this record passes.
	filter.Add(rawRecord("p1-0", "ATP. and fish oil.", "C0004482", [2]int{0, 4}, "S1", [2]int{9, 17}))

	if got := len(filter.Result().Accepted); got != 1 {
		t.Errorf("accepted = %d, want 1", got)
	}
}
