package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/pipeline"
	"github.com/jonathan/skill-extractor/internal/server"
)

// clearEnv isolates a test from settings in the developer's .env.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		config.EnvDatabaseURL, config.EnvTaxonomyPath, config.EnvThreshold,
		config.EnvNgramBudget, config.EnvPort, "JWT_SECRET", "JWT_EXPIRATION_HOURS",
	} {
		t.Setenv(key, "")
	}
}

// executeCommand runs the root command with args and returns its stdout.
// Flag values are restored afterwards since they live in package variables.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(func() { resetFlags(rootCmd) })

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func newTestRunner(t *testing.T) *pipeline.Runner {
	t.Helper()
	engine, err := buildEngine(context.Background(), config.Config{Threshold: 0.6, NgramBudget: "2s"}, nil)
	require.NoError(t, err)
	return &pipeline.Runner{Engine: engine}
}

func TestBuildJobs(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		files   []string
		url     string
		stdin   string
		want    []pipeline.RunOptions
		wantErr string
	}{
		{name: "text", text: "Python", want: []pipeline.RunOptions{{Text: "Python"}}},
		{name: "stdin", text: "-", stdin: "Go and SQL", want: []pipeline.RunOptions{{Text: "Go and SQL"}}},
		{name: "url", url: "https://example.com/job", want: []pipeline.RunOptions{{URL: "https://example.com/job"}}},
		{name: "files", files: []string{"a.txt", "b.html"}, want: []pipeline.RunOptions{{Path: "a.txt"}, {Path: "b.html"}}},
		{name: "nothing", wantErr: "must be provided"},
		{name: "text and url", text: "x", url: "https://example.com", wantErr: "mutually exclusive"},
		{name: "files and text", text: "x", files: []string{"a.txt"}, wantErr: "mutually exclusive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs, err := buildJobs(tt.text, tt.files, tt.url, strings.NewReader(tt.stdin))
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, jobs)
		})
	}
}

func TestExtractError(t *testing.T) {
	invalid := &matching.InvalidInputError{Message: "token sequence is empty"}

	assert.EqualError(t, extractError(invalid), server.EmptyInputMessage)
	assert.EqualError(t, extractError(fmt.Errorf("blank.txt: %w", invalid)), "blank.txt: "+server.EmptyInputMessage)

	other := errors.New("boom")
	assert.Equal(t, other, extractError(other))
}

func TestLoadSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		clearEnv(t)
		cfg, err := loadSettings(config.Config{})
		require.NoError(t, err)
		assert.Equal(t, config.DefaultThreshold, cfg.Threshold)
		assert.Equal(t, config.DefaultFormat, cfg.Format)
		assert.Equal(t, config.DefaultPort, cfg.Port)
	})

	t.Run("environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(config.EnvThreshold, "0.5")
		cfg, err := loadSettings(config.Config{})
		require.NoError(t, err)
		assert.Equal(t, 0.5, cfg.Threshold)
	})

	t.Run("file beats environment, flags beat file", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(config.EnvThreshold, "0.5")
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"threshold": 0.7, "format": "text", "verbose": true}`), 0o644))
		configPath = path
		t.Cleanup(func() { configPath = "" })

		cfg, err := loadSettings(config.Config{})
		require.NoError(t, err)
		assert.Equal(t, 0.7, cfg.Threshold)
		assert.Equal(t, "text", cfg.Format)
		assert.True(t, cfg.Verbose)

		cfg, err = loadSettings(config.Config{Threshold: 0.9, Format: "html"})
		require.NoError(t, err)
		assert.Equal(t, 0.9, cfg.Threshold)
		assert.Equal(t, "html", cfg.Format)
	})

	t.Run("malformed environment", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(config.EnvThreshold, "high")
		_, err := loadSettings(config.Config{})
		assert.Error(t, err)
	})

	t.Run("invalid flag", func(t *testing.T) {
		clearEnv(t)
		_, err := loadSettings(config.Config{Format: "pdf"})
		assert.Error(t, err)
	})
}

func TestBuildEngine(t *testing.T) {
	engine, err := buildEngine(context.Background(), config.Config{Threshold: 0.8, NgramBudget: "0"}, nil)
	require.NoError(t, err)
	assert.Greater(t, engine.Taxonomy().Len(), 0)
	assert.Equal(t, 0.8, engine.Options().Threshold)
	assert.Zero(t, engine.Options().NgramBudget)

	_, err = buildEngine(context.Background(), config.Config{Threshold: 0.6, TaxonomyDB: true}, nil)
	assert.ErrorContains(t, err, "DATABASE_URL")

	_, err = buildEngine(context.Background(), config.Config{Threshold: 0.6, TaxonomyPath: "missing.yaml"}, nil)
	assert.Error(t, err)
}

func TestWriteOutputs(t *testing.T) {
	runner := newTestRunner(t)
	ctx := context.Background()

	first, err := runner.Run(ctx, pipeline.RunOptions{Text: "Senior engineer with Python and SQL", RenderHTML: true})
	require.NoError(t, err)
	second, err := runner.Run(ctx, pipeline.RunOptions{Text: "Kafka pipelines"})
	require.NoError(t, err)

	t.Run("json single", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutputs(&buf, []*pipeline.Output{first}, "json"))

		var got map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		annotations := got["annotations"].([]any)
		require.Len(t, annotations, 2)
		assert.Equal(t, "PYTHON", annotations[0].(map[string]any)["skill_id"])
	})

	t.Run("json batch", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutputs(&buf, []*pipeline.Output{first, second}, "json"))

		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		assert.Len(t, got, 2)
	})

	t.Run("html", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutputs(&buf, []*pipeline.Output{first}, "html"))
		assert.Contains(t, buf.String(), `data-skill-id="PYTHON"`)
	})

	t.Run("text", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, writeOutputs(&buf, []*pipeline.Output{first}, "text"))
		assert.Contains(t, buf.String(), "EXTRACTED SKILLS")
		assert.Contains(t, buf.String(), "Python")
	})

	t.Run("unknown", func(t *testing.T) {
		assert.Error(t, writeOutputs(&bytes.Buffer{}, []*pipeline.Output{first}, "pdf"))
	})
}

func TestExtractCommand(t *testing.T) {
	clearEnv(t)

	out, err := executeCommand(t, "extract", "--text", "We need strong communication skills and Go", "--format", "json")
	require.NoError(t, err)

	var result struct {
		TokenCount  int `json:"token_count"`
		Annotations []struct {
			SkillID string `json:"skill_id"`
		} `json:"annotations"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 7, result.TokenCount)
	require.NotEmpty(t, result.Annotations)
}

func TestExtractCommand_BatchToFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	jobA := filepath.Join(dir, "a.txt")
	jobB := filepath.Join(dir, "b.html")
	require.NoError(t, os.WriteFile(jobA, []byte("Python developer"), 0o644))
	require.NoError(t, os.WriteFile(jobB, []byte("<html><body><p>Kubernetes and Docker</p></body></html>"), 0o644))
	outPath := filepath.Join(dir, "results.json")

	_, err := executeCommand(t, "extract", "--file", jobA, "--file", jobB, "--out", outPath)
	require.NoError(t, err)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	var results []map[string]any
	require.NoError(t, json.Unmarshal(data, &results))
	assert.Len(t, results, 2)
}

func TestExtractCommand_EmptyInput(t *testing.T) {
	clearEnv(t)

	_, err := executeCommand(t, "extract", "--text", "... !!!")

	assert.EqualError(t, err, server.EmptyInputMessage)
}

func TestValidateTaxonomyCommand(t *testing.T) {
	clearEnv(t)

	out, err := executeCommand(t, "validate-taxonomy")
	require.NoError(t, err)
	assert.Contains(t, out, "SKILL TAXONOMY")
	assert.Contains(t, out, "Taxonomy OK")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("skills:\n  - id: X\n    name: X\n    category: NOPE\n    aliases: [x]\n"), 0o644))
	_, err = executeCommand(t, "validate-taxonomy", path)
	assert.Error(t, err)
}

func TestMigrateCommand_Print(t *testing.T) {
	out, err := executeCommand(t, "migrate", "--print")

	require.NoError(t, err)
	assert.Contains(t, out, "CREATE TABLE IF NOT EXISTS skill_extractions")
}

func TestIssueTokenCommand(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "cli-test-secret-at-least-16")

	out, err := executeCommand(t, "issue-token", "ci-job", "--hours", "2")
	require.NoError(t, err)

	jwtConfig, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtConfig).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ci-job", claims.Subject)
	assert.Empty(t, claims.Scopes)
}

func TestIssueTokenCommand_Scope(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "cli-test-secret-at-least-16")

	out, err := executeCommand(t, "issue-token", "dashboard", "--scope", "history")
	require.NoError(t, err)

	jwtConfig, err := config.NewJWTConfig()
	require.NoError(t, err)
	claims, err := server.NewJWTService(jwtConfig).ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, []string{"history"}, claims.Scopes)

	_, err = executeCommand(t, "issue-token", "dashboard", "--scope", "admin")
	assert.ErrorContains(t, err, "unknown token scope")
}

func TestIssueTokenCommand_NoSecret(t *testing.T) {
	clearEnv(t)

	_, err := executeCommand(t, "issue-token", "ci-job")

	assert.ErrorContains(t, err, "JWT_SECRET")
}
