package ingestion

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/jonathan/skill-extractor/internal/fetch"
)

// MaxInputBytes caps text read from a file or reader.
const MaxInputBytes = 2 << 20

// ErrEmptyInput is returned when a source holds no text.
var ErrEmptyInput = errors.New("job description is empty")

var reBlankLines = regexp.MustCompile(`\n{3,}`)

// IngestText accepts pasted text. HTML is reduced to its text.
func IngestText(content string) (string, *Metadata, error) {
	text, err := toText(content, false)
	if err != nil {
		return "", nil, err
	}
	return text, NewMetadata(text, SourceText), nil
}

// IngestFromFile reads a text, Markdown or HTML file. HTML files are reduced
// to the job posting's main text.
func IngestFromFile(path string) (string, *Metadata, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, fmt.Errorf("file not found: %w", err)
		}
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}
	defer func() { _ = f.Close() }()

	content, err := readLimited(f)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	text, err := toText(content, ext == ".html" || ext == ".htm")
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", path, err)
	}

	metadata := NewMetadata(text, SourceFile)
	metadata.Path = path
	return text, metadata, nil
}

// IngestFromReader reads a job description from r, typically stdin.
func IngestFromReader(r io.Reader) (string, *Metadata, error) {
	content, err := readLimited(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read input: %w", err)
	}
	return IngestText(content)
}

func readLimited(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxInputBytes+1))
	if err != nil {
		return "", err
	}
	if len(data) > MaxInputBytes {
		return "", fmt.Errorf("input exceeds %d bytes", MaxInputBytes)
	}
	return string(data), nil
}

// toText extracts the posting text from HTML input and tidies line breaks.
func toText(content string, isHTML bool) (string, error) {
	if isHTML || LooksLikeHTML(content) {
		extracted, err := fetch.ExtractMainText(content, fetch.JobPostingSelectors(), fetch.PlatformNoiseSelectors(fetch.PlatformUnknown)...)
		if err != nil {
			return "", err
		}
		content = extracted
	}

	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = reBlankLines.ReplaceAllString(content, "\n\n")
	content = strings.TrimSpace(content)
	if content == "" {
		return "", ErrEmptyInput
	}
	return content, nil
}

// LooksLikeHTML reports whether content is a whole HTML document rather than
// text that merely contains a tag.
func LooksLikeHTML(content string) bool {
	head := strings.ToLower(strings.TrimSpace(content))
	if len(head) > 512 {
		head = head[:512]
	}
	return strings.HasPrefix(head, "<!doctype html") || strings.HasPrefix(head, "<html")
}
