package ingestion

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIngestText(t *testing.T) {
	text, metadata, err := IngestText("  Python\r\n\r\n\r\n\r\nGo  ")
	require.NoError(t, err)
	assert.Equal(t, "Python\n\nGo", text)
	assert.Equal(t, SourceText, metadata.Source)
	assert.Equal(t, ComputeHash(text), metadata.Hash)
}

func TestIngestText_Empty(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t\n"} {
		_, _, err := IngestText(input)
		assert.True(t, errors.Is(err, ErrEmptyInput), "input %q", input)
	}
}

func TestIngestText_HTMLDocument(t *testing.T) {
	text, _, err := IngestText("<!DOCTYPE html><html><body><nav>Menu</nav><main><p>Kubernetes</p></main></body></html>")
	require.NoError(t, err)
	assert.Equal(t, "Kubernetes", text)
}

func TestIngestFromFile_Fixtures(t *testing.T) {
	tests := []struct {
		name     string
		fixture  string
		expected []string
		notIn    []string
	}{
		{
			name:     "Markdown format",
			fixture:  "testdata/sample_job_markdown.txt",
			expected: []string{"# Senior Software Engineer", "- Build services in Go", "Requirements"},
		},
		{
			name:     "Plain text format",
			fixture:  "testdata/sample_job_plain.txt",
			expected: []string{"Senior Software Engineer", "About the Role", "Requirements"},
			notIn:    []string{"\n\n\n"},
		},
		{
			name:     "HTML format (Greenhouse-like)",
			fixture:  "testdata/sample_job_html.html",
			expected: []string{"Senior Software Engineer", "About the Role", "Requirements", "Strong communication skills"},
			notIn:    []string{"Navigation", "Header", "Footer", "track(", "color: red", "Resume"},
		},
		{
			name:     "Lever format",
			fixture:  "testdata/sample_job_lever.html",
			expected: []string{"Senior Software Engineer", "About the Role", "CI/CD"},
			notIn:    []string{"Sidebar", "Ad content"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, metadata, err := IngestFromFile(tt.fixture)
			require.NoError(t, err)
			assert.Equal(t, SourceFile, metadata.Source)
			assert.Equal(t, tt.fixture, metadata.Path)

			for _, expected := range tt.expected {
				assert.Contains(t, text, expected)
			}
			for _, notIn := range tt.notIn {
				assert.NotContains(t, text, notIn)
			}
		})
	}
}

func TestIngestFromFile_Errors(t *testing.T) {
	_, _, err := IngestFromFile(filepath.Join(t.TempDir(), "missing.txt"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")

	empty := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("  \n"), 0644))
	_, _, err = IngestFromFile(empty)
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestIngestFromReader(t *testing.T) {
	text, metadata, err := IngestFromReader(strings.NewReader("Go and SQL"))
	require.NoError(t, err)
	assert.Equal(t, "Go and SQL", text)
	assert.Equal(t, SourceText, metadata.Source)

	_, _, err = IngestFromReader(strings.NewReader(strings.Repeat("a", MaxInputBytes+1)))
	assert.Error(t, err)
}

func TestLooksLikeHTML(t *testing.T) {
	assert.True(t, LooksLikeHTML("<!DOCTYPE html><html></html>"))
	assert.True(t, LooksLikeHTML("  <HTML><body>x</body></HTML>"))
	assert.False(t, LooksLikeHTML("Experience with <b>Go</b>"))
	assert.False(t, LooksLikeHTML("plain"))
}
