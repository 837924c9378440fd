package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"threshold": 0.75,
		"ngram_budget": "500ms",
		"database_url": "postgres://localhost/skills",
		"port": 9000,
		"verbose": true,
		"format": "html"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 0.75, cfg.Threshold)
	assert.Equal(t, "500ms", cfg.NgramBudget)
	assert.Equal(t, "postgres://localhost/skills", cfg.DatabaseURL)
	assert.Equal(t, 9000, cfg.Port)
	assert.True(t, cfg.Verbose)
	assert.Equal(t, "html", cfg.Format)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_Errors(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config JSON")

	_, err = LoadConfig("/nonexistent/path/config.json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")

	_, err = LoadConfig("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config path is empty")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr string
	}{
		{"empty is valid", Config{}, ""},
		{"threshold too high", Config{Threshold: 1.5}, "'threshold'"},
		{"negative threshold", Config{Threshold: -0.1}, "'threshold'"},
		{"bad budget", Config{NgramBudget: "fast"}, "'ngram_budget'"},
		{"negative budget", Config{NgramBudget: "-1s"}, "non-negative"},
		{"bad port", Config{Port: 70000}, "'port'"},
		{"bad format", Config{Format: "xml"}, "unknown 'format'"},
		{"taxonomy_db without database", Config{TaxonomyDB: true}, "requires 'database_url'"},
		{"missing taxonomy file", Config{TaxonomyPath: "/nonexistent/skills.yaml"}, "taxonomy file not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMergeWithDefaults(t *testing.T) {
	cfg := Config{Threshold: 0.8}
	merged := cfg.MergeWithDefaults(Config{DatabaseURL: "postgres://db", Port: 9090, Threshold: 0.5})

	assert.Equal(t, 0.8, merged.Threshold, "explicit values win")
	assert.Equal(t, "postgres://db", merged.DatabaseURL)
	assert.Equal(t, 9090, merged.Port)
	assert.Equal(t, DefaultNgramBudget.String(), merged.NgramBudget)
	assert.Equal(t, DefaultFormat, merged.Format)

	empty := Config{}
	builtIn := empty.MergeWithDefaults(Config{})
	assert.Equal(t, DefaultThreshold, builtIn.Threshold)
	assert.Equal(t, DefaultPort, builtIn.Port)
	assert.Equal(t, Config{}, empty, "receiver must not be modified")
}

func TestApplyEnv(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "postgres://env")
	t.Setenv(EnvTaxonomyPath, "skills.yaml")
	t.Setenv(EnvThreshold, "0.7")
	t.Setenv(EnvNgramBudget, "1s")
	t.Setenv(EnvPort, "8181")

	cfg := Config{DatabaseURL: "postgres://file"}
	require.NoError(t, cfg.ApplyEnv())

	assert.Equal(t, "postgres://file", cfg.DatabaseURL, "file values win over env")
	assert.Equal(t, "skills.yaml", cfg.TaxonomyPath)
	assert.Equal(t, 0.7, cfg.Threshold)
	assert.Equal(t, "1s", cfg.NgramBudget)
	assert.Equal(t, 8181, cfg.Port)
}

func TestApplyEnv_Malformed(t *testing.T) {
	t.Setenv(EnvThreshold, "high")
	cfg := Config{}
	assert.Error(t, cfg.ApplyEnv())

	t.Setenv(EnvThreshold, "")
	t.Setenv(EnvPort, "eighty")
	cfg = Config{}
	assert.Error(t, cfg.ApplyEnv())
}

func TestNgramBudgetDuration(t *testing.T) {
	d, err := (&Config{}).NgramBudgetDuration()
	require.NoError(t, err)
	assert.Equal(t, DefaultNgramBudget, d)

	d, err = (&Config{NgramBudget: "250ms"}).NgramBudgetDuration()
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, d)

	d, err = (&Config{NgramBudget: "0"}).NgramBudgetDuration()
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), d)

	_, err = (&Config{NgramBudget: "soon"}).NgramBudgetDuration()
	assert.Error(t, err)
}
