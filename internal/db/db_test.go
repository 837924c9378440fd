package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchema_DefinesTables(t *testing.T) {
	schema := Schema()
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS skills")
	assert.Contains(t, schema, "CREATE TABLE IF NOT EXISTS skill_extractions")
	assert.Contains(t, schema, "USING GIN (skill_ids)")
}

func TestConnect_EmptyURL(t *testing.T) {
	_, err := Connect(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database URL is empty")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://user@localhost:5432/db?pool_max_conns=lots")
	assert.ErrorContains(t, err, "invalid database URL")
}

func TestPoolConfig(t *testing.T) {
	cfg, err := poolConfig("postgres://user:pw@localhost:5432/skills")
	require.NoError(t, err)
	assert.EqualValues(t, DefaultMaxConns, cfg.MaxConns)
	assert.Equal(t, connectTimeout, cfg.ConnConfig.ConnectTimeout)

	cfg, err = poolConfig("postgres://user:pw@localhost:5432/skills?pool_max_conns=3&connect_timeout=2")
	require.NoError(t, err)
	assert.EqualValues(t, 3, cfg.MaxConns)
	assert.Equal(t, 2*time.Second, cfg.ConnConfig.ConnectTimeout)
}

func TestListExtractionsOptions_Normalize(t *testing.T) {
	tests := []struct {
		name string
		in   ListExtractionsOptions
		want ListExtractionsOptions
	}{
		{"defaults", ListExtractionsOptions{}, ListExtractionsOptions{Limit: DefaultListLimit}},
		{"caps limit", ListExtractionsOptions{Limit: 1000}, ListExtractionsOptions{Limit: MaxListLimit}},
		{"negative offset", ListExtractionsOptions{Limit: 5, Offset: -3}, ListExtractionsOptions{Limit: 5}},
		{"keeps filter", ListExtractionsOptions{SkillID: "GO", Limit: 10, Offset: 20}, ListExtractionsOptions{SkillID: "GO", Limit: 10, Offset: 20}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.normalize())
		})
	}
}

func TestNullableString(t *testing.T) {
	assert.Nil(t, nullableString(""))
	require.NotNil(t, nullableString("https://example.com"))
	assert.Equal(t, "https://example.com", *nullableString("https://example.com"))
}

func TestExtraction_JSON(t *testing.T) {
	e := Extraction{
		ID:          uuid.MustParse("7c9e6679-7425-40de-944b-e07fc1f90ae7"),
		Source:      "text",
		TextHash:    "abc",
		Annotations: json.RawMessage(`[{"skill_id":"GO"}]`),
		SkillIDs:    []string{"GO"},
	}

	data, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"annotations":[{"skill_id":"GO"}]`)
	assert.NotContains(t, string(data), "source_url")
}
