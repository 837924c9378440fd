package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/fetch"
	"github.com/jonathan/skill-extractor/internal/server"
)

var (
	servePort       int
	serveTaxonomy   string
	serveThreshold  float64
	serveBrowser    bool
	serveVerbose    bool
	serveTaxonomyDB bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the extractor as a JSON API and an
interactive form. Extraction history is enabled when DATABASE_URL is set and
bearer-token auth when JWT_SECRET is set.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080)")
	serveCmd.Flags().StringVar(&serveTaxonomy, "taxonomy", "", "Path to a JSON or YAML skill catalog (default: embedded catalog)")
	serveCmd.Flags().Float64Var(&serveThreshold, "threshold", 0, "N-gram match threshold in (0, 1] (default 0.6)")
	serveCmd.Flags().BoolVar(&serveBrowser, "browser", false, "Render client-side job boards with a headless browser")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Log matcher statistics and fetch details")
	serveCmd.Flags().BoolVar(&serveTaxonomyDB, "taxonomy-db", false, "Load the taxonomy from the skills table")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadSettings(config.Config{
		Port:         servePort,
		TaxonomyPath: serveTaxonomy,
		Threshold:    serveThreshold,
		UseBrowser:   serveBrowser,
		Verbose:      serveVerbose,
		TaxonomyDB:   serveTaxonomyDB,
	})
	if err != nil {
		return err
	}

	jwtConfig, err := config.OptionalJWTConfig()
	if err != nil {
		return fmt.Errorf("invalid JWT configuration: %w", err)
	}

	database, err := connectIfConfigured(ctx, cfg)
	if err != nil {
		return err
	}
	if database != nil {
		defer database.Close()
	}

	engine, err := buildEngine(ctx, cfg, database)
	if err != nil {
		return err
	}

	srvCfg := server.Config{
		Port:       cfg.Port,
		Engine:     engine,
		UseBrowser: cfg.UseBrowser,
		Verbose:    cfg.Verbose,
		JWT:        jwtConfig,
	}
	if database != nil {
		srvCfg.Store = database
	}
	if cfg.UseBrowser {
		srvCfg.Browser = fetch.NewBrowser(cfg.Verbose)
		log.Printf("Browser rendering enabled; redirects inside the headless browser are not address-checked")
	}

	srv, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	defer srv.Close()

	log.Printf("Loaded %d skills (%d surface forms), threshold %.2f", engine.Taxonomy().Len(), engine.Taxonomy().FormCount(), cfg.Threshold)
	if jwtConfig == nil {
		log.Printf("JWT_SECRET not set; API endpoints are unauthenticated")
	}
	return srv.Start()
}
