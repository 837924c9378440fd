// Package matching finds skill mentions in a normalized token sequence.
//
// Two independent matchers run over the same tokens: an exact phrase matcher
// for verbatim surface forms and an approximate n-gram matcher for reordered or
// partial variants. Their candidates are reconciled by Merge into one
// non-overlapping AnnotationSet.
package matching

import (
	"encoding/json"
	"fmt"
)

// MatchKind says which matcher produced a candidate.
type MatchKind int

const (
	// KindExact is a verbatim surface-form match.
	KindExact MatchKind = iota
	// KindNgram is an approximate token-overlap match.
	KindNgram
)

func (k MatchKind) String() string {
	switch k {
	case KindExact:
		return "EXACT"
	case KindNgram:
		return "NGRAM"
	default:
		return fmt.Sprintf("MatchKind(%d)", int(k))
	}
}

// MarshalJSON encodes the kind as its name.
func (k MatchKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes "EXACT" or "NGRAM".
func (k *MatchKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "EXACT":
		*k = KindExact
	case "NGRAM":
		*k = KindNgram
	default:
		return fmt.Errorf("unknown match kind %q", s)
	}
	return nil
}

// Span is a half-open token range [Start, End).
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Len returns the number of tokens covered.
func (s Span) Len() int {
	return s.End - s.Start
}

// Overlaps reports whether two spans share at least one token.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

// Candidate is one skill match over a span. Exact candidates always carry a
// score of 1.0.
type Candidate struct {
	Span    Span      `json:"span"`
	SkillID string    `json:"skill_id"`
	Kind    MatchKind `json:"kind"`
	Score   float64   `json:"score"`
}

// AnnotationSet is the engine's output: candidates ordered by start token
// (then longer span first) with no two spans overlapping.
type AnnotationSet []Candidate

// Len returns the number of annotations.
func (a AnnotationSet) Len() int {
	return len(a)
}

// CountByKind returns how many annotations each matcher contributed.
func (a AnnotationSet) CountByKind() map[MatchKind]int {
	counts := make(map[MatchKind]int, 2)
	for _, c := range a {
		counts[c.Kind]++
	}
	return counts
}

// SkillIDs returns the distinct skill ids in order of first appearance.
func (a AnnotationSet) SkillIDs() []string {
	seen := make(map[string]bool, len(a))
	ids := make([]string, 0, len(a))
	for _, c := range a {
		if !seen[c.SkillID] {
			seen[c.SkillID] = true
			ids = append(ids, c.SkillID)
		}
	}
	return ids
}

// InvalidInputError reports an empty normalized token sequence. The engine
// itself never returns it (empty input simply yields an empty AnnotationSet);
// callers use ValidateTokens when they need to ask the user for input.
type InvalidInputError struct {
	Message string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// ValidateTokens returns an *InvalidInputError when tokens is nil or empty.
func ValidateTokens(tokens []string) error {
	if len(tokens) == 0 {
		return &InvalidInputError{Message: "normalized token sequence is empty"}
	}
	return nil
}
