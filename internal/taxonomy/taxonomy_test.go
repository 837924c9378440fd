package taxonomy

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntries() []SkillEntry {
	return []SkillEntry{
		{
			ID:            "PYTHON",
			CanonicalName: "Python",
			Category:      CategoryHardSkill,
			SurfaceForms:  [][]string{{"python"}},
		},
		{
			ID:            "COMM",
			CanonicalName: "Communication",
			Category:      CategorySoftSkill,
			SurfaceForms:  [][]string{{"communication"}, {"communication", "skills"}},
		},
		{
			ID:            "PM",
			CanonicalName: "Project Management",
			Category:      CategoryHardSkill,
			SurfaceForms:  [][]string{{"project", "management"}},
		},
	}
}

func TestNew_Valid(t *testing.T) {
	tax, err := New(sampleEntries())
	require.NoError(t, err)

	assert.Equal(t, 3, tax.Len())
	assert.Equal(t, 4, tax.FormCount())
	assert.Equal(t, []int{2, 1}, tax.FormLengths())
	assert.Equal(t, 2, tax.MaxFormLength())
	assert.Equal(t, 0, tax.Order("PYTHON"))
	assert.Equal(t, 2, tax.Order("PM"))
	assert.Equal(t, -1, tax.Order("UNKNOWN"))
}

func TestNew_LoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]SkillEntry) []SkillEntry
		message string
	}{
		{
			name:    "no entries",
			mutate:  func([]SkillEntry) []SkillEntry { return nil },
			message: "no skill entries",
		},
		{
			name: "empty surface-form list",
			mutate: func(e []SkillEntry) []SkillEntry {
				e[0].SurfaceForms = nil
				return e
			},
			message: "surface-form list is empty",
		},
		{
			name: "empty surface form",
			mutate: func(e []SkillEntry) []SkillEntry {
				e[0].SurfaceForms = [][]string{{" ", ""}}
				return e
			},
			message: "surface form is empty",
		},
		{
			name: "duplicate id",
			mutate: func(e []SkillEntry) []SkillEntry {
				e[1].ID = "PYTHON"
				return e
			},
			message: "duplicate skill id",
		},
		{
			name: "blank id",
			mutate: func(e []SkillEntry) []SkillEntry {
				e[2].ID = "  "
				return e
			},
			message: "skill id is empty",
		},
		{
			name: "unknown category",
			mutate: func(e []SkillEntry) []SkillEntry {
				e[0].Category = "LANGUAGE"
				return e
			},
			message: "unknown category",
		},
		{
			name: "form owned by two skills",
			mutate: func(e []SkillEntry) []SkillEntry {
				e[2].SurfaceForms = append(e[2].SurfaceForms, []string{"Python"})
				return e
			},
			message: "already registered to \"PYTHON\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tax, err := New(tt.mutate(sampleEntries()))
			require.Error(t, err)
			assert.Nil(t, tax, "no partially built taxonomy may escape")

			var loadErr *LoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestNew_DuplicateFormWithinEntryIsCollapsed(t *testing.T) {
	entries := sampleEntries()
	entries[0].SurfaceForms = [][]string{{"python"}, {"Python"}, {" python "}}

	tax, err := New(entries)
	require.NoError(t, err)

	entry, ok := tax.Entry("PYTHON")
	require.True(t, ok)
	assert.Equal(t, [][]string{{"python"}}, entry.SurfaceForms)
}

func TestLookupExact(t *testing.T) {
	tax, err := New(sampleEntries())
	require.NoError(t, err)

	tests := []struct {
		tokens []string
		id     string
		found  bool
	}{
		{[]string{"python"}, "PYTHON", true},
		{[]string{"Python"}, "PYTHON", true},
		{[]string{"communication", "skills"}, "COMM", true},
		{[]string{"COMMUNICATION", "Skills"}, "COMM", true},
		{[]string{"project", "management"}, "PM", true},
		{[]string{"management", "project"}, "", false},
		{[]string{"skills"}, "", false},
		{nil, "", false},
	}

	for _, tt := range tests {
		id, found := tax.LookupExact(tt.tokens)
		assert.Equal(t, tt.found, found, "tokens %v", tt.tokens)
		assert.Equal(t, tt.id, id, "tokens %v", tt.tokens)
	}

	id, ok := tax.LookupKey("communication skills")
	assert.True(t, ok)
	assert.Equal(t, "COMM", id)
}

func TestNgramCandidates_InsertionOrder(t *testing.T) {
	tax, err := New(sampleEntries())
	require.NoError(t, err)

	refs := tax.NgramCandidates()
	require.Len(t, refs, 4)
	assert.Equal(t, "PYTHON", refs[0].SkillID)
	assert.Equal(t, "COMM", refs[1].SkillID)
	assert.Equal(t, []string{"communication", "skills"}, refs[2].Tokens)
	assert.Equal(t, "PM", refs[3].SkillID)
	assert.Equal(t, 2, refs[3].Order)
}

func TestEntries_ReturnCopies(t *testing.T) {
	tax, err := New(sampleEntries())
	require.NoError(t, err)

	entries := tax.Entries()
	entries[0].SurfaceForms[0][0] = "mutated"
	entries[0].CanonicalName = "Mutated"

	id, ok := tax.LookupExact([]string{"python"})
	assert.True(t, ok)
	assert.Equal(t, "PYTHON", id)

	entry, _ := tax.Entry("PYTHON")
	assert.Equal(t, "Python", entry.CanonicalName)
	assert.Equal(t, "python", entry.SurfaceForms[0][0])
}

func TestNew_InputNotAliased(t *testing.T) {
	entries := sampleEntries()
	tax, err := New(entries)
	require.NoError(t, err)

	entries[0].SurfaceForms[0][0] = "perl"
	_, ok := tax.LookupExact([]string{"python"})
	assert.True(t, ok, "mutating the input after construction must not affect the taxonomy")
}

func TestTaxonomy_ConcurrentReads(t *testing.T) {
	tax, err := New(sampleEntries())
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				_, _ = tax.LookupExact([]string{"communication", "skills"})
				_ = tax.NgramCandidates()
				_, _ = tax.Entry("PM")
			}
		}()
	}
	wg.Wait()
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		input    string
		expected Category
		wantErr  bool
	}{
		{"HARD_SKILL", CategoryHardSkill, false},
		{"hard skill", CategoryHardSkill, false},
		{"soft-skill", CategorySoftSkill, false},
		{"Certification", CategoryCertification, false},
		{"language", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, err := ParseCategory(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, c)
		})
	}
}
