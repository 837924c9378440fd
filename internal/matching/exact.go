package matching

import (
	"strings"

	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// FindExact scans tokens for runs equal to a registered surface form. At each
// position the longest form wins, and scanning resumes after the match, so a
// match never nests inside another one starting at the same token. Matches
// that start later are still found.
func FindExact(tokens []string, tax *taxonomy.Taxonomy) []Candidate {
	return findExact(foldTokens(tokens), tax)
}

func findExact(tokens []string, tax *taxonomy.Taxonomy) []Candidate {
	lengths := tax.FormLengths()
	var out []Candidate

	for i := 0; i < len(tokens); {
		matched := 0
		for _, l := range lengths {
			if i+l > len(tokens) {
				continue
			}
			if id, ok := tax.LookupKey(taxonomy.FormKey(tokens[i : i+l])); ok {
				out = append(out, Candidate{
					Span:    Span{Start: i, End: i + l},
					SkillID: id,
					Kind:    KindExact,
					Score:   1.0,
				})
				matched = l
				break
			}
		}
		if matched > 0 {
			i += matched
		} else {
			i++
		}
	}

	return out
}

// foldTokens lower-cases and trims tokens so comparisons are
// case-insensitive. The input slice is not modified.
func foldTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = strings.ToLower(strings.TrimSpace(tok))
	}
	return out
}
