package rendering

import (
	"fmt"

	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/parsing"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// Annotation is one annotation resolved against its document and taxonomy.
// Start and End are byte offsets into the cleaned text.
type Annotation struct {
	SkillID    string            `json:"skill_id"`
	Name       string            `json:"name"`
	Category   taxonomy.Category `json:"category"`
	Kind       string            `json:"kind"`
	Score      float64           `json:"score"`
	TokenStart int               `json:"token_start"`
	TokenEnd   int               `json:"token_end"`
	Start      int               `json:"start"`
	End        int               `json:"end"`
	Text       string            `json:"text"`
}

// Annotations resolves every annotation in set to its skill entry and text.
// It fails with a *RenderError when a span falls outside the document or names
// a skill missing from tax.
func Annotations(doc parsing.Document, set matching.AnnotationSet, tax *taxonomy.Taxonomy) ([]Annotation, error) {
	out := make([]Annotation, 0, len(set))
	for _, c := range set {
		if c.Span.Start < 0 || c.Span.End > len(doc.Tokens) || c.Span.Len() < 1 {
			return nil, &RenderError{
				Stage:   StageAnnotate,
				SkillID: c.SkillID,
				Message: fmt.Sprintf("span [%d,%d) outside document of %d tokens", c.Span.Start, c.Span.End, len(doc.Tokens)),
			}
		}
		entry, ok := tax.Entry(c.SkillID)
		if !ok {
			return nil, &RenderError{Stage: StageAnnotate, SkillID: c.SkillID, Message: "unknown skill id"}
		}

		start := doc.Tokens[c.Span.Start].Start
		end := doc.Tokens[c.Span.End-1].End
		out = append(out, Annotation{
			SkillID:    c.SkillID,
			Name:       entry.CanonicalName,
			Category:   entry.Category,
			Kind:       c.Kind.String(),
			Score:      c.Score,
			TokenStart: c.Span.Start,
			TokenEnd:   c.Span.End,
			Start:      start,
			End:        end,
			Text:       doc.Text[start:end],
		})
	}
	return out, nil
}

// LegendGroup lists the distinct skills of one category in order of first
// appearance.
type LegendGroup struct {
	Category taxonomy.Category
	Label    string
	Class    string
	Skills   []LegendSkill
}

// LegendSkill is one distinct skill and how often it was annotated.
type LegendSkill struct {
	ID    string
	Name  string
	Count int
}

// Legend groups annotations by category. Categories without annotations are
// omitted.
func Legend(annotations []Annotation) []LegendGroup {
	byCategory := make(map[taxonomy.Category]*LegendGroup)
	index := make(map[string]int)

	for _, a := range annotations {
		g, ok := byCategory[a.Category]
		if !ok {
			g = &LegendGroup{Category: a.Category, Label: CategoryLabel(a.Category), Class: CategoryClass(a.Category)}
			byCategory[a.Category] = g
		}
		if i, seen := index[a.SkillID]; seen {
			g.Skills[i].Count++
			continue
		}
		index[a.SkillID] = len(g.Skills)
		g.Skills = append(g.Skills, LegendSkill{ID: a.SkillID, Name: a.Name, Count: 1})
	}

	groups := make([]LegendGroup, 0, len(byCategory))
	for _, c := range taxonomy.Categories() {
		if g, ok := byCategory[c]; ok {
			groups = append(groups, *g)
		}
	}
	return groups
}
