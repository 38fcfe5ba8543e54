package evidence

import (
	"fmt"
	"strings"
)

// LabeledSpan is a normalized concept id plus the [start,end) character span
// of its mention inside the owning sentence.
type LabeledSpan struct {
	ID   string `json:"id"`
	Span [2]int `json:"span"`
}

// Sentence is one evidence sentence supporting a candidate interaction.
// Arg1 and Arg2 are kept in lexicographic id order, enforced at construction.
type Sentence struct {
	UID        int         `json:"uid"`
	PaperID    string      `json:"paper_id"`
	SentenceID int         `json:"sentence_id"`
	Sentence   string      `json:"sentence"`
	Confidence *float64    `json:"confidence"`
	Arg1       LabeledSpan `json:"arg1"`
	Arg2       LabeledSpan `json:"arg2"`
}

// InteractionKey returns the canonical id of the unordered concept pair.
func (s *Sentence) InteractionKey() string {
	return InteractionKey(s.Arg1.ID, s.Arg2.ID)
}

// InteractionKey builds the canonical "<min_id>-<max_id>" key for a concept pair.
func InteractionKey(id1, id2 string) string {
	if id1 > id2 {
		id1, id2 = id2, id1
	}
	return fmt.Sprintf("%s-%s", id1, id2)
}

// SplitInteractionKey returns the two concept ids of an interaction key.
func SplitInteractionKey(key string) [2]string {
	if idx := strings.Index(key, "-"); idx != -1 {
		return [2]string{key[:idx], key[idx+1:]}
	}
	return [2]string{key, ""}
}
