package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SaveExtraction stores an extraction and returns the stored row.
func (db *DB) SaveExtraction(ctx context.Context, input *ExtractionCreateInput) (*Extraction, error) {
	annotationsJSON, err := json.Marshal(input.Annotations)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal annotations: %w", err)
	}
	if string(annotationsJSON) == "null" {
		annotationsJSON = []byte("[]")
	}
	skillIDs := input.SkillIDs
	if skillIDs == nil {
		skillIDs = []string{}
	}
	source := input.Source
	if source == "" {
		source = "text"
	}

	e := Extraction{
		Source:      source,
		SourceURL:   nullableString(input.SourceURL),
		Platform:    nullableString(input.Platform),
		TextHash:    input.TextHash,
		CleanedText: input.CleanedText,
		TokenCount:  input.TokenCount,
		Annotations: annotationsJSON,
		SkillIDs:    skillIDs,
		Degraded:    input.Degraded,
		Threshold:   input.Threshold,
	}

	err = db.pool.QueryRow(ctx,
		`INSERT INTO skill_extractions
		    (source, source_url, platform, text_hash, cleaned_text, token_count,
		     annotations, skill_ids, degraded, threshold)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at`,
		e.Source, e.SourceURL, e.Platform, e.TextHash, e.CleanedText, e.TokenCount,
		annotationsJSON, e.SkillIDs, e.Degraded, e.Threshold,
	).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save extraction: %w", err)
	}
	return &e, nil
}

// GetExtraction retrieves an extraction by ID. It returns nil, nil when no
// row matches.
func (db *DB) GetExtraction(ctx context.Context, id uuid.UUID) (*Extraction, error) {
	var e Extraction
	err := db.pool.QueryRow(ctx,
		`SELECT id, source, source_url, platform, text_hash, cleaned_text, token_count,
		        annotations, skill_ids, degraded, threshold, created_at
		 FROM skill_extractions WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.Source, &e.SourceURL, &e.Platform, &e.TextHash, &e.CleanedText,
		&e.TokenCount, &e.Annotations, &e.SkillIDs, &e.Degraded, &e.Threshold, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get extraction: %w", err)
	}
	return &e, nil
}

// ListExtractions returns extraction summaries, newest first, and the total
// number of matching rows.
func (db *DB) ListExtractions(ctx context.Context, opts ListExtractionsOptions) ([]ExtractionSummary, int, error) {
	opts = opts.normalize()

	where := ""
	args := []any{}
	if opts.SkillID != "" {
		where = "WHERE $1 = ANY(skill_ids)"
		args = append(args, opts.SkillID)
	}

	var total int
	if err := db.pool.QueryRow(ctx, "SELECT COUNT(*) FROM skill_extractions "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count extractions: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, source, source_url, token_count, jsonb_array_length(annotations),
		        skill_ids, degraded, created_at
		 FROM skill_extractions %s
		 ORDER BY created_at DESC
		 LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, opts.Limit, opts.Offset)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list extractions: %w", err)
	}
	defer rows.Close()

	summaries := []ExtractionSummary{}
	for rows.Next() {
		var s ExtractionSummary
		if err := rows.Scan(&s.ID, &s.Source, &s.SourceURL, &s.TokenCount, &s.AnnotationCount,
			&s.SkillIDs, &s.Degraded, &s.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("failed to scan extraction: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to list extractions: %w", err)
	}
	return summaries, total, nil
}

// DeleteExtraction removes an extraction. It reports whether a row existed.
func (db *DB) DeleteExtraction(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := db.pool.Exec(ctx, `DELETE FROM skill_extractions WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete extraction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
