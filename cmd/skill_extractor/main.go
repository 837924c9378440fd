// Package main provides the skill_extractor command: one-shot extraction of
// skills from job descriptions, taxonomy maintenance and the HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "skill_extractor",
	Short: "Job description skill extractor",
	Long: "skill_extractor finds hard skills, soft skills and certifications in job descriptions " +
		"by matching them against a skill taxonomy, exactly and by n-gram overlap.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to JSON config file")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
