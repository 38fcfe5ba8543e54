package kb

import (
	"sort"

	"github.com/OFFIS-RIT/suppkb/pkg/concept"
	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
	"github.com/OFFIS-RIT/suppkb/pkg/papers"
)

// KnowledgeBase holds the four cross-referenced tables the compiler produces.
// After Reconcile and JoinPapers the tables satisfy referential integrity:
// every interaction id referenced by a concept exists in Sentences, every
// concept id referenced by an interaction key exists in Concepts, and every
// paper id referenced by evidence exists in Papers.
type KnowledgeBase struct {
	// Concepts maps canonical concept id to display metadata.
	Concepts map[string]concept.Metadata
	// Interactions maps concept id to the set of interaction ids touching it.
	Interactions map[string]map[string]struct{}
	// Sentences maps interaction id to its surviving evidence sentences.
	Sentences map[string][]*evidence.Sentence
	// Papers maps paper id to bibliographic metadata plus study flags.
	Papers map[string]papers.Metadata
}

// Build indexes accepted evidence into a fresh knowledge base: a bidirectional
// map from concept to interaction ids and from interaction id to evidence.
func Build(accepted []*evidence.Sentence) *KnowledgeBase {
	kb := &KnowledgeBase{
		Concepts:     make(map[string]concept.Metadata),
		Interactions: make(map[string]map[string]struct{}),
		Sentences:    make(map[string][]*evidence.Sentence),
		Papers:       make(map[string]papers.Metadata),
	}

	for _, sentence := range accepted {
		key := sentence.InteractionKey()
		kb.addInteraction(sentence.Arg1.ID, key)
		kb.addInteraction(sentence.Arg2.ID, key)
		kb.Sentences[key] = append(kb.Sentences[key], sentence)
	}

	return kb
}

func (kb *KnowledgeBase) addInteraction(conceptID, interactionID string) {
	if kb.Interactions[conceptID] == nil {
		kb.Interactions[conceptID] = make(map[string]struct{})
	}
	kb.Interactions[conceptID][interactionID] = struct{}{}
}

// PaperIDs returns the distinct paper ids referenced by surviving evidence, sorted.
func (kb *KnowledgeBase) PaperIDs() []string {
	seen := make(map[string]struct{})
	for _, sentences := range kb.Sentences {
		for _, sentence := range sentences {
			seen[sentence.PaperID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// sortedKeys returns map keys in deterministic order for reconciliation passes.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
