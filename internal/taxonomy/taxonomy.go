// Package taxonomy holds the read-only catalog of known skills and the
// surface forms they are recognized under.
//
// A Taxonomy is built once with New and never mutated afterwards, so a single
// instance can be shared by any number of concurrent matching requests
// without locking.
package taxonomy

import (
	"fmt"
	"sort"
	"strings"
)

// Category classifies a skill.
type Category string

const (
	// CategoryHardSkill is a technical or domain skill (Python, SQL, accounting).
	CategoryHardSkill Category = "HARD_SKILL"
	// CategorySoftSkill is an interpersonal skill (communication, leadership).
	CategorySoftSkill Category = "SOFT_SKILL"
	// CategoryCertification is a professional certification.
	CategoryCertification Category = "CERTIFICATION"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{CategoryHardSkill, CategorySoftSkill, CategoryCertification}
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryHardSkill, CategorySoftSkill, CategoryCertification:
		return true
	default:
		return false
	}
}

// ParseCategory converts a user-supplied string ("hard skill", "soft_skill",
// "CERTIFICATION") into a Category.
func ParseCategory(s string) (Category, error) {
	normalized := strings.ToUpper(strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_'
	}), "_"))
	c := Category(normalized)
	if !c.Valid() {
		return "", fmt.Errorf("unknown skill category %q", s)
	}
	return c, nil
}

// SkillEntry is one skill of the taxonomy.
type SkillEntry struct {
	ID            string     `json:"id"`
	CanonicalName string     `json:"canonical_name"`
	Category      Category   `json:"category"`
	SurfaceForms  [][]string `json:"surface_forms"`
}

// FormRef is a registered surface form together with the skill it belongs to.
// Order is the insertion position of the skill in the taxonomy and is used to
// break ties deterministically.
type FormRef struct {
	Tokens  []string
	SkillID string
	Order   int
}

// Taxonomy maps surface forms to skills. The zero value is not usable; build
// one with New.
type Taxonomy struct {
	entries []SkillEntry
	byID    map[string]int
	forms   map[string]int // form key -> entry index
	refs    []FormRef
	lengths []int // distinct form lengths, longest first
}

// New validates entries and builds an immutable Taxonomy. Construction is
// all-or-nothing: any invalid entry yields a *LoadError and no Taxonomy.
func New(entries []SkillEntry) (*Taxonomy, error) {
	if len(entries) == 0 {
		return nil, &LoadError{Message: "taxonomy has no skill entries"}
	}

	t := &Taxonomy{
		entries: make([]SkillEntry, 0, len(entries)),
		byID:    make(map[string]int, len(entries)),
		forms:   make(map[string]int),
	}
	seenLength := make(map[int]bool)

	for _, entry := range entries {
		id := strings.TrimSpace(entry.ID)
		if id == "" {
			return nil, &LoadError{Field: "id", Message: "skill id is empty"}
		}
		if _, dup := t.byID[id]; dup {
			return nil, &LoadError{EntryID: id, Field: "id", Message: "duplicate skill id"}
		}
		name := strings.TrimSpace(entry.CanonicalName)
		if name == "" {
			return nil, &LoadError{EntryID: id, Field: "canonical_name", Message: "canonical name is empty"}
		}
		if !entry.Category.Valid() {
			return nil, &LoadError{EntryID: id, Field: "category", Message: fmt.Sprintf("unknown category %q", entry.Category)}
		}
		if len(entry.SurfaceForms) == 0 {
			return nil, &LoadError{EntryID: id, Field: "surface_forms", Message: "surface-form list is empty"}
		}

		order := len(t.entries)
		stored := SkillEntry{ID: id, CanonicalName: name, Category: entry.Category}

		for _, form := range entry.SurfaceForms {
			tokens := normalizeForm(form)
			if len(tokens) == 0 {
				return nil, &LoadError{EntryID: id, Field: "surface_forms", Message: "surface form is empty"}
			}
			key := formKey(tokens)
			if owner, exists := t.forms[key]; exists {
				if owner == order {
					continue
				}
				return nil, &LoadError{
					EntryID: id,
					Field:   "surface_forms",
					Message: fmt.Sprintf("surface form %q already registered to %q", key, t.entries[owner].ID),
				}
			}
			t.forms[key] = order
			t.refs = append(t.refs, FormRef{Tokens: tokens, SkillID: id, Order: order})
			stored.SurfaceForms = append(stored.SurfaceForms, tokens)
			if !seenLength[len(tokens)] {
				seenLength[len(tokens)] = true
				t.lengths = append(t.lengths, len(tokens))
			}
		}

		t.byID[id] = order
		t.entries = append(t.entries, stored)
	}

	sort.Sort(sort.Reverse(sort.IntSlice(t.lengths)))
	return t, nil
}

// LookupExact returns the id of the skill registered under exactly this
// token sequence. Comparison is case-insensitive.
func (t *Taxonomy) LookupExact(tokens []string) (string, bool) {
	if len(tokens) == 0 {
		return "", false
	}
	idx, ok := t.forms[formKey(lowerTokens(tokens))]
	if !ok {
		return "", false
	}
	return t.entries[idx].ID, true
}

// LookupKey is LookupExact for callers that already hold a lower-cased,
// space-joined key (see FormKey).
func (t *Taxonomy) LookupKey(key string) (string, bool) {
	idx, ok := t.forms[key]
	if !ok {
		return "", false
	}
	return t.entries[idx].ID, true
}

// NgramCandidates returns every registered surface form in insertion order.
// The returned slice is a copy; the token slices are shared and must not be
// modified.
func (t *Taxonomy) NgramCandidates() []FormRef {
	refs := make([]FormRef, len(t.refs))
	copy(refs, t.refs)
	return refs
}

// FormLengths returns the distinct surface-form lengths, longest first.
func (t *Taxonomy) FormLengths() []int {
	lengths := make([]int, len(t.lengths))
	copy(lengths, t.lengths)
	return lengths
}

// MaxFormLength returns the length of the longest surface form.
func (t *Taxonomy) MaxFormLength() int {
	if len(t.lengths) == 0 {
		return 0
	}
	return t.lengths[0]
}

// Entry returns a copy of the skill with the given id.
func (t *Taxonomy) Entry(id string) (SkillEntry, bool) {
	idx, ok := t.byID[id]
	if !ok {
		return SkillEntry{}, false
	}
	return cloneEntry(t.entries[idx]), true
}

// Entries returns copies of all skills in insertion order.
func (t *Taxonomy) Entries() []SkillEntry {
	out := make([]SkillEntry, len(t.entries))
	for i, e := range t.entries {
		out[i] = cloneEntry(e)
	}
	return out
}

// Order returns the insertion position of a skill, or -1 if unknown.
func (t *Taxonomy) Order(id string) int {
	idx, ok := t.byID[id]
	if !ok {
		return -1
	}
	return idx
}

// Len returns the number of skills.
func (t *Taxonomy) Len() int {
	return len(t.entries)
}

// FormCount returns the number of registered surface forms.
func (t *Taxonomy) FormCount() int {
	return len(t.refs)
}

// FormKey joins a normalized token sequence into the key used for exact
// lookups.
func FormKey(tokens []string) string {
	return formKey(tokens)
}

func formKey(tokens []string) string {
	return strings.Join(tokens, " ")
}

// normalizeForm lower-cases a form and re-splits it on whitespace so that
// "Project  Management" and ["project", "management"] register identically.
func normalizeForm(form []string) []string {
	return strings.Fields(strings.ToLower(strings.Join(form, " ")))
}

func lowerTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		out[i] = strings.ToLower(tok)
	}
	return out
}

func cloneEntry(e SkillEntry) SkillEntry {
	forms := make([][]string, len(e.SurfaceForms))
	for i, f := range e.SurfaceForms {
		forms[i] = append([]string(nil), f...)
	}
	e.SurfaceForms = forms
	return e
}
