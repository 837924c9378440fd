package matching

import (
	"sort"

	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// Merge reconciles exact and approximate candidates into one AnnotationSet.
//
// Candidates are ranked by precedence:
//  1. EXACT before NGRAM
//  2. longer span
//  3. higher score
//  4. earlier start, then the skill inserted first in the taxonomy
//
// and accepted greedily when they do not overlap anything accepted before.
// This favors precision and determinism over maximum coverage. An empty input
// yields an empty set.
func Merge(candidates []Candidate, tax *taxonomy.Taxonomy) AnnotationSet {
	if len(candidates) == 0 {
		return AnnotationSet{}
	}

	ranked := make([]Candidate, 0, len(candidates))
	maxEnd := 0
	for _, c := range candidates {
		if c.Span.Start < 0 || c.Span.Len() < 1 {
			continue
		}
		ranked = append(ranked, c)
		if c.Span.End > maxEnd {
			maxEnd = c.Span.End
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return precedes(ranked[i], ranked[j], tax)
	})

	occupied := make([]bool, maxEnd)
	accepted := make(AnnotationSet, 0, len(ranked))
	for _, c := range ranked {
		if isFree(occupied, c.Span) {
			for t := c.Span.Start; t < c.Span.End; t++ {
				occupied[t] = true
			}
			accepted = append(accepted, c)
		}
	}

	sort.Slice(accepted, func(i, j int) bool {
		if accepted[i].Span.Start != accepted[j].Span.Start {
			return accepted[i].Span.Start < accepted[j].Span.Start
		}
		return accepted[i].Span.Len() > accepted[j].Span.Len()
	})

	return accepted
}

// precedes reports whether a outranks b.
func precedes(a, b Candidate, tax *taxonomy.Taxonomy) bool {
	if a.Kind != b.Kind {
		return a.Kind == KindExact
	}
	if a.Span.Len() != b.Span.Len() {
		return a.Span.Len() > b.Span.Len()
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Span.Start != b.Span.Start {
		return a.Span.Start < b.Span.Start
	}
	oa, ob := skillOrder(tax, a.SkillID), skillOrder(tax, b.SkillID)
	if oa != ob {
		return oa < ob
	}
	return a.SkillID < b.SkillID
}

// skillOrder ranks ids unknown to the taxonomy after every known one.
func skillOrder(tax *taxonomy.Taxonomy, id string) int {
	if tax == nil {
		return 0
	}
	if o := tax.Order(id); o >= 0 {
		return o
	}
	return tax.Len()
}

func isFree(occupied []bool, s Span) bool {
	for t := s.Start; t < s.End; t++ {
		if occupied[t] {
			return false
		}
	}
	return true
}
