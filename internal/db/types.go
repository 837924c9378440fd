package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// DefaultListLimit is used when a list call passes a non-positive limit.
const DefaultListLimit = 20

// MaxListLimit caps list page sizes.
const MaxListLimit = 100

// Extraction is a stored extraction result. Annotations holds the JSON view of
// the annotation set.
type Extraction struct {
	ID          uuid.UUID       `json:"id"`
	Source      string          `json:"source"`
	SourceURL   *string         `json:"source_url,omitempty"`
	Platform    *string         `json:"platform,omitempty"`
	TextHash    string          `json:"text_hash"`
	CleanedText string          `json:"cleaned_text"`
	TokenCount  int             `json:"token_count"`
	Annotations json.RawMessage `json:"annotations"`
	SkillIDs    []string        `json:"skill_ids"`
	Degraded    bool            `json:"degraded"`
	Threshold   float64         `json:"threshold"`
	CreatedAt   time.Time       `json:"created_at"`
}

// ExtractionCreateInput is the data needed to store an extraction.
type ExtractionCreateInput struct {
	Source      string
	SourceURL   string
	Platform    string
	TextHash    string
	CleanedText string
	TokenCount  int
	Annotations any
	SkillIDs    []string
	Degraded    bool
	Threshold   float64
}

// ExtractionSummary is a list row without the text and annotations.
type ExtractionSummary struct {
	ID              uuid.UUID `json:"id"`
	Source          string    `json:"source"`
	SourceURL       *string   `json:"source_url,omitempty"`
	TokenCount      int       `json:"token_count"`
	AnnotationCount int       `json:"annotation_count"`
	SkillIDs        []string  `json:"skill_ids"`
	Degraded        bool      `json:"degraded"`
	CreatedAt       time.Time `json:"created_at"`
}

// ListExtractionsOptions filters and pages ListExtractions.
type ListExtractionsOptions struct {
	// SkillID keeps only extractions that found this skill.
	SkillID string
	Limit   int
	Offset  int
}

// normalize clamps paging values.
func (o ListExtractionsOptions) normalize() ListExtractionsOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// nullableString maps "" to NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
