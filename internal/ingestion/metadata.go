// Package ingestion turns job postings from files, URLs and pasted text into
// plain text ready for normalization.
package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
	"unicode/utf8"
)

// Source says where a job description came from.
type Source string

const (
	// SourceText is text pasted into a form or passed on the command line.
	SourceText Source = "text"
	// SourceFile is a local text, Markdown or HTML file.
	SourceFile Source = "file"
	// SourceURL is a fetched job posting page.
	SourceURL Source = "url"
)

// Metadata describes one ingested job description. Hash identifies the text
// itself, so the same posting read from a file and a URL hashes alike.
type Metadata struct {
	Source     Source    `json:"source"`
	URL        string    `json:"url,omitempty"`
	Path       string    `json:"path,omitempty"`
	Platform   string    `json:"platform,omitempty"`
	Rendered   bool      `json:"rendered,omitempty"` // a headless browser produced the text
	FromCache  bool      `json:"from_cache,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
	Hash       string    `json:"hash"`
	Length     int       `json:"length"` // characters, not bytes
}

// NewMetadata stamps text from source with the current UTC time.
func NewMetadata(text string, source Source) *Metadata {
	return &Metadata{
		Source:     source,
		IngestedAt: time.Now().UTC().Truncate(time.Second),
		Hash:       ComputeHash(text),
		Length:     utf8.RuneCountInString(text),
	}
}

// ComputeHash returns the hex SHA-256 of text.
func ComputeHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
