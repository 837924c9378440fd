package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/observability"
	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

var validateTaxonomyCmd = &cobra.Command{
	Use:   "validate-taxonomy [catalog]",
	Short: "Validate a skill catalog",
	Long: `Validate a JSON or YAML skill catalog against the catalog schema and the
taxonomy rules (unique IDs, known categories, no surface form shared by two
skills) and print a summary. Without an argument the embedded catalog is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidateTaxonomy,
}

var importTaxonomyMigrate bool

var importTaxonomyCmd = &cobra.Command{
	Use:   "import-taxonomy [catalog]",
	Short: "Replace the skills table with a catalog",
	Long: `Validate a catalog and replace the contents of the skills table with it in
one transaction. Without an argument the embedded catalog is imported.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runImportTaxonomy,
}

func init() {
	importTaxonomyCmd.Flags().BoolVar(&importTaxonomyMigrate, "migrate", false, "Apply the database schema before importing")

	rootCmd.AddCommand(validateTaxonomyCmd)
	rootCmd.AddCommand(importTaxonomyCmd)
}

func catalogArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runValidateTaxonomy(cmd *cobra.Command, args []string) error {
	tax, err := taxonomy.Load(catalogArg(args))
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintTaxonomy(tax)
	fmt.Fprintf(cmd.OutOrStdout(), "Taxonomy OK: %d skills, %d surface forms\n", tax.Len(), tax.FormCount())
	return nil
}

func runImportTaxonomy(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// Validate before touching the database
	tax, err := taxonomy.Load(catalogArg(args))
	if err != nil {
		return err
	}

	cfg, err := loadSettings(config.Config{})
	if err != nil {
		return err
	}
	database, err := requireDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if importTaxonomyMigrate {
		if err := database.Migrate(ctx); err != nil {
			return err
		}
	}

	n, err := database.ReplaceSkills(ctx, tax.Records())
	if err != nil {
		return fmt.Errorf("failed to import taxonomy: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d skills into the skills table\n", n)
	return nil
}
