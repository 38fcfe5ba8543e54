package kb

import (
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/suppkb/pkg/evidence"
)

// Verify checks the global invariants of the finished knowledge base. The
// compiler refuses to publish an archive when any of them fails.
func (kb *KnowledgeBase) Verify() error {
	var errs []error

	for conceptID := range kb.Interactions {
		if _, ok := kb.Concepts[conceptID]; !ok {
			errs = append(errs, fmt.Errorf("concept %s indexed without metadata", conceptID))
		}
	}
	for conceptID := range kb.Concepts {
		if _, ok := kb.Interactions[conceptID]; !ok {
			errs = append(errs, fmt.Errorf("concept %s has metadata but no interaction entry", conceptID))
		}
	}

	for conceptID, set := range kb.Interactions {
		for interactionID := range set {
			if _, ok := kb.Sentences[interactionID]; !ok {
				errs = append(errs, fmt.Errorf("concept %s references missing interaction %s", conceptID, interactionID))
			}
		}
	}

	for interactionID, sentences := range kb.Sentences {
		pair := evidence.SplitInteractionKey(interactionID)
		for _, conceptID := range pair {
			if _, ok := kb.Concepts[conceptID]; !ok {
				errs = append(errs, fmt.Errorf("interaction %s references missing concept %s", interactionID, conceptID))
			}
			if set, ok := kb.Interactions[conceptID]; ok {
				if _, ok := set[interactionID]; !ok {
					errs = append(errs, fmt.Errorf("interaction %s missing from concept %s index", interactionID, conceptID))
				}
			}
		}

		if len(sentences) == 0 {
			errs = append(errs, fmt.Errorf("interaction %s has no evidence", interactionID))
		}
		for _, sentence := range sentences {
			args := [2]string{sentence.Arg1.ID, sentence.Arg2.ID}
			if args != pair {
				errs = append(errs, fmt.Errorf(
					"interaction %s has evidence for pair %s-%s", interactionID, args[0], args[1],
				))
			}
			if _, ok := kb.Papers[sentence.PaperID]; !ok {
				errs = append(errs, fmt.Errorf("evidence %d references missing paper %s", sentence.UID, sentence.PaperID))
			}
		}
	}

	names := make(map[string]string, len(kb.Concepts))
	for _, conceptID := range sortedKeys(kb.Concepts) {
		name := kb.Concepts[conceptID].PreferredName
		if other, ok := names[name]; ok {
			errs = append(errs, fmt.Errorf("concepts %s and %s share preferred name %q", other, conceptID, name))
			continue
		}
		names[name] = conceptID
	}

	return errors.Join(errs...)
}
