package main

import (
	"context"
	"fmt"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/db"
	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// loadSettings resolves the effective configuration. Precedence is flags,
// then the --config file, then the environment, then built-in defaults.
func loadSettings(flags config.Config) (config.Config, error) {
	fileCfg := &config.Config{}
	if configPath != "" {
		loaded, err := config.LoadConfig(configPath)
		if err != nil {
			return config.Config{}, err
		}
		fileCfg = loaded
	}
	if err := fileCfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	cfg := flags.MergeWithDefaults(*fileCfg)
	cfg.UseBrowser = flags.UseBrowser || fileCfg.UseBrowser
	cfg.Verbose = flags.Verbose || fileCfg.Verbose
	cfg.TaxonomyDB = flags.TaxonomyDB || fileCfg.TaxonomyDB

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// loadTaxonomy reads the catalog from the skills table when cfg.TaxonomyDB is
// set, otherwise from cfg.TaxonomyPath or the embedded catalog.
func loadTaxonomy(ctx context.Context, cfg config.Config, database *db.DB) (*taxonomy.Taxonomy, error) {
	if cfg.TaxonomyDB {
		if database == nil {
			return nil, fmt.Errorf("loading the taxonomy from the database requires DATABASE_URL")
		}
		return database.LoadTaxonomy(ctx)
	}
	return taxonomy.Load(cfg.TaxonomyPath)
}

// buildEngine loads the taxonomy and builds a matching engine from cfg.
func buildEngine(ctx context.Context, cfg config.Config, database *db.DB) (*matching.Engine, error) {
	tax, err := loadTaxonomy(ctx, cfg, database)
	if err != nil {
		return nil, fmt.Errorf("failed to load taxonomy: %w", err)
	}

	budget, err := cfg.NgramBudgetDuration()
	if err != nil {
		return nil, err
	}

	engine, err := matching.NewEngine(tax, matching.Options{
		Threshold:   cfg.Threshold,
		NgramBudget: budget,
		Verbose:     cfg.Verbose,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build matching engine: %w", err)
	}
	return engine, nil
}

// connectIfConfigured opens the database when a URL is configured. It
// returns nil, nil otherwise.
func connectIfConfigured(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, nil
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}

// requireDatabase opens the database or explains how to configure it.
func requireDatabase(ctx context.Context, cfg config.Config) (*db.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("%s environment variable or database_url config is required", config.EnvDatabaseURL)
	}
	return db.Connect(ctx, cfg.DatabaseURL)
}
