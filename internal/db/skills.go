package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// ReplaceSkills replaces the stored catalog with records, keeping their order.
// It runs in one transaction so readers never see a partial catalog.
func (db *DB) ReplaceSkills(ctx context.Context, records []taxonomy.CatalogRecord) (int, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM skills`); err != nil {
		return 0, fmt.Errorf("failed to clear skills: %w", err)
	}

	rows := make([][]any, 0, len(records))
	for i, rec := range records {
		aliases := rec.Aliases
		if aliases == nil {
			aliases = []string{}
		}
		rows = append(rows, []any{rec.ID, rec.Name, rec.Category, aliases, i})
	}

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"skills"},
		[]string{"id", "name", "category", "aliases", "position"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert skills: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit skills: %w", err)
	}
	return int(n), nil
}

// LoadSkillRecords returns the stored catalog in insertion order.
func (db *DB) LoadSkillRecords(ctx context.Context) ([]taxonomy.CatalogRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, category, aliases FROM skills ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}
	defer rows.Close()

	var records []taxonomy.CatalogRecord
	for rows.Next() {
		var rec taxonomy.CatalogRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Category, &rec.Aliases); err != nil {
			return nil, fmt.Errorf("failed to scan skill: %w", err)
		}
		if len(rec.Aliases) == 0 {
			rec.Aliases = nil
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}
	return records, nil
}

// LoadTaxonomy builds a taxonomy from the stored catalog.
func (db *DB) LoadTaxonomy(ctx context.Context) (*taxonomy.Taxonomy, error) {
	records, err := db.LoadSkillRecords(ctx)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("skills table is empty; run import-taxonomy first")
	}
	return taxonomy.FromCatalog(&taxonomy.Catalog{Skills: records})
}

// CountSkills returns the number of stored skills.
func (db *DB) CountSkills(ctx context.Context) (int, error) {
	var n int
	if err := db.pool.QueryRow(ctx, `SELECT COUNT(*) FROM skills`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count skills: %w", err)
	}
	return n, nil
}
