package schemas

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedSchemas_Compile(t *testing.T) {
	for name, compile := range compiled {
		t.Run(name, func(t *testing.T) {
			content, err := Schema(name)
			require.NoError(t, err)
			assert.True(t, json.Valid([]byte(content)))

			schema, err := compile()
			require.NoError(t, err)
			again, err := compile()
			require.NoError(t, err)
			assert.Same(t, schema, again, "schemas compile once")
		})
	}
}

func TestUnknownSchema(t *testing.T) {
	_, err := Schema("does_not_exist")
	var loadErr *SchemaLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "does_not_exist", loadErr.Name)

	err = Validate("does_not_exist", []byte(`{}`))
	require.ErrorAs(t, err, &loadErr)
	assert.Contains(t, err.Error(), "unknown schema")
}

func TestValidate_SkillCatalog(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantField string
	}{
		{
			name: "valid catalog",
			doc:  `{"skills":[{"id":"PYTHON","name":"Python","category":"HARD_SKILL","aliases":["python3"]}]}`,
		},
		{
			name:      "empty skills",
			doc:       `{"skills":[]}`,
			wantField: "skills",
		},
		{
			name:      "unknown category",
			doc:       `{"skills":[{"id":"PYTHON","name":"Python","category":"LANGUAGE"}]}`,
			wantField: "skills.0.category",
		},
		{
			name:      "missing id",
			doc:       `{"skills":[{"name":"Python","category":"HARD_SKILL"}]}`,
			wantField: "skills.0",
		},
		{
			name:      "empty alias",
			doc:       `{"skills":[{"id":"PYTHON","name":"Python","category":"HARD_SKILL","aliases":[""]}]}`,
			wantField: "skills.0.aliases.0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(SkillCatalog, []byte(tt.doc))
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, SkillCatalog, verr.Schema)
			fields := make([]string, len(verr.Errors))
			for i, fe := range verr.Errors {
				fields[i] = fe.Field
			}
			assert.Contains(t, fields, tt.wantField)
		})
	}
}

func TestValidate_ExtractionResult(t *testing.T) {
	valid := `{
		"token_count": 6,
		"degraded": false,
		"annotations": [
			{"skill_id":"COMM","name":"Communication","category":"SOFT_SKILL","kind":"EXACT","score":1,"token_start":1,"token_end":3}
		]
	}`
	assert.NoError(t, Validate(ExtractionResult, []byte(valid)))

	invalid := `{
		"token_count": 6,
		"degraded": false,
		"annotations": [
			{"skill_id":"COMM","name":"Communication","category":"SOFT_SKILL","kind":"FUZZY","score":1.5,"token_start":1,"token_end":3}
		]
	}`
	err := Validate(ExtractionResult, []byte(invalid))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Errors), 2, "kind and score are both reported")
}

func TestValidate_Malformed(t *testing.T) {
	err := Validate(SkillCatalog, []byte("{ invalid json }"))

	var malformed *MalformedError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, SkillCatalog, malformed.Schema)
	assert.False(t, errors.As(err, new(*ValidationError)))
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Schema: SkillCatalog,
		Errors: []FieldError{
			{Field: "skills.0.id", Message: "id is required"},
			{Field: "skills.0.category", Message: "must be one of the following"},
		},
	}

	assert.Equal(t, "skill_catalog validation failed:\n  1. skills.0.id: id is required\n  2. skills.0.category: must be one of the following", err.Error())
	assert.Equal(t, "skills.0.id", err.First().Field)
	assert.Equal(t, "(root)", (&ValidationError{}).First().Field)
}
