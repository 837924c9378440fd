package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/db"
	"github.com/jonathan/skill-extractor/internal/fetch"
	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/observability"
	"github.com/jonathan/skill-extractor/internal/pipeline"
	"github.com/jonathan/skill-extractor/internal/schemas"
	"github.com/jonathan/skill-extractor/internal/server"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract skills from job descriptions",
	Long: `Extract skills from a job description given as text, one or more files, or a URL.

Several --file flags are processed concurrently. Output is JSON (validated
against the extraction result schema), sanitized highlighted HTML, or a boxed
text summary.`,
	Example: `  skill_extractor extract --text "Python and strong communication skills"
  skill_extractor extract --file job1.txt --file job2.html --format text
  cat job.txt | skill_extractor extract --text - --format html --out job.html`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

var (
	extractText        string
	extractFiles       []string
	extractURL         string
	extractTaxonomy    string
	extractThreshold   float64
	extractBudget      string
	extractFormat      string
	extractOut         string
	extractVerbose     bool
	extractBrowser     bool
	extractPersist     bool
	extractConcurrency int
)

func init() {
	extractCmd.Flags().StringVarP(&extractText, "text", "t", "", `Job description text ("-" reads stdin)`)
	extractCmd.Flags().StringArrayVarP(&extractFiles, "file", "f", nil, "Path to a job description file (repeatable)")
	extractCmd.Flags().StringVarP(&extractURL, "url", "u", "", "URL of a job posting")
	extractCmd.Flags().StringVar(&extractTaxonomy, "taxonomy", "", "Path to a JSON or YAML skill catalog (default: embedded catalog)")
	extractCmd.Flags().Float64Var(&extractThreshold, "threshold", 0, "N-gram match threshold in (0, 1] (default 0.6)")
	extractCmd.Flags().StringVar(&extractBudget, "budget", "", `Time budget for approximate matching, e.g. "500ms"; "0" disables it`)
	extractCmd.Flags().StringVar(&extractFormat, "format", "", "Output format: json, html or text (default json)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "Write output to this file instead of stdout")
	extractCmd.Flags().BoolVarP(&extractVerbose, "verbose", "v", false, "Print pipeline progress and matcher statistics")
	extractCmd.Flags().BoolVar(&extractBrowser, "browser", false, "Render client-side job boards with a headless browser")
	extractCmd.Flags().BoolVar(&extractPersist, "persist", false, "Store results in the database (requires DATABASE_URL)")
	extractCmd.Flags().IntVar(&extractConcurrency, "concurrency", pipeline.DefaultBatchConcurrency, "Files processed in parallel")

	rootCmd.AddCommand(extractCmd)
}

// buildJobs turns the input flags into pipeline runs.
func buildJobs(text string, files []string, urlStr string, stdin io.Reader) ([]pipeline.RunOptions, error) {
	inputs := 0
	if text != "" {
		inputs++
	}
	if len(files) > 0 {
		inputs++
	}
	if urlStr != "" {
		inputs++
	}
	switch {
	case inputs == 0:
		return nil, fmt.Errorf("one of --text, --file or --url must be provided")
	case inputs > 1:
		return nil, fmt.Errorf("--text, --file and --url are mutually exclusive; provide only one")
	}

	switch {
	case text == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return []pipeline.RunOptions{{Text: string(data)}}, nil
	case text != "":
		return []pipeline.RunOptions{{Text: text}}, nil
	case urlStr != "":
		return []pipeline.RunOptions{{URL: urlStr}}, nil
	}

	jobs := make([]pipeline.RunOptions, len(files))
	for i, path := range files {
		jobs[i] = pipeline.RunOptions{Path: path}
	}
	return jobs, nil
}

func runExtract(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	jobs, err := buildJobs(extractText, extractFiles, extractURL, cmd.InOrStdin())
	if err != nil {
		return err
	}

	cfg, err := loadSettings(config.Config{
		TaxonomyPath: extractTaxonomy,
		Threshold:    extractThreshold,
		NgramBudget:  extractBudget,
		Format:       extractFormat,
		UseBrowser:   extractBrowser,
		Verbose:      extractVerbose,
	})
	if err != nil {
		return err
	}

	var database *db.DB
	if extractPersist || cfg.TaxonomyDB {
		database, err = requireDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer database.Close()
	}

	engine, err := buildEngine(ctx, cfg, database)
	if err != nil {
		return err
	}

	// The CLI runs as the user, so intranet postings stay reachable.
	client := fetch.NewClient()
	client.AllowPrivateNetworks = true

	runner := &pipeline.Runner{Engine: engine, Fetcher: client, UseBrowser: cfg.UseBrowser, Verbose: cfg.Verbose}
	if extractPersist {
		runner.Store = database
	}
	if cfg.UseBrowser {
		runner.Browser = fetch.NewBrowser(cfg.Verbose)
	}

	for i := range jobs {
		jobs[i].RenderHTML = cfg.Format == "html"
		jobs[i].Persist = extractPersist
		if cfg.Verbose {
			jobs[i].OnProgress = func(e pipeline.ProgressEvent) {
				log.Printf("[VERBOSE] %s: %s", e.Step, e.Message)
			}
		}
	}

	var outputs []*pipeline.Output
	if len(jobs) == 1 {
		out, err := runner.Run(ctx, jobs[0])
		if err != nil {
			return extractError(err)
		}
		outputs = []*pipeline.Output{out}
	} else {
		outputs, err = runner.RunBatch(ctx, jobs, extractConcurrency)
		if err != nil {
			return extractError(err)
		}
	}

	w := cmd.OutOrStdout()
	if extractOut != "" {
		f, err := os.Create(extractOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if err := writeOutputs(w, outputs, cfg.Format); err != nil {
		return err
	}
	if extractOut != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d result(s) to %s\n", len(outputs), extractOut)
	}
	return nil
}

// extractError replaces the empty-input error with the user-facing warning.
func extractError(err error) error {
	var invalid *matching.InvalidInputError
	if errors.As(err, &invalid) {
		if prefix, ok := strings.CutSuffix(err.Error(), ": "+invalid.Error()); ok {
			return fmt.Errorf("%s: %s", prefix, server.EmptyInputMessage)
		}
		return errors.New(server.EmptyInputMessage)
	}
	return err
}

// writeOutputs renders results in format. JSON output is schema-validated
// before anything is written; several results become a JSON array.
func writeOutputs(w io.Writer, outputs []*pipeline.Output, format string) error {
	switch format {
	case "", "json":
		for _, out := range outputs {
			data, err := json.Marshal(out)
			if err != nil {
				return fmt.Errorf("failed to marshal result: %w", err)
			}
			if err := schemas.Validate(schemas.ExtractionResult, data); err != nil {
				return fmt.Errorf("result failed schema validation: %w", err)
			}
		}
		var v any = outputs
		if len(outputs) == 1 {
			v = outputs[0]
		}
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		_, err = fmt.Fprintf(w, "%s\n", data)
		return err

	case "html":
		for _, out := range outputs {
			if _, err := fmt.Fprintln(w, out.HTML); err != nil {
				return err
			}
		}
		return nil

	case "text":
		printer := observability.NewPrinter(w)
		for _, out := range outputs {
			printer.PrintSource(out.Metadata)
			printer.PrintAnnotations(out.Annotations, out.Degraded)
		}
		return nil

	default:
		return fmt.Errorf("unknown format %q (want json, html or text)", format)
	}
}
