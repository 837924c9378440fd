// Package pipeline runs one job description end to end: ingest, normalize,
// match, render and optionally persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/skill-extractor/internal/db"
	"github.com/jonathan/skill-extractor/internal/fetch"
	"github.com/jonathan/skill-extractor/internal/ingestion"
	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/observability"
	"github.com/jonathan/skill-extractor/internal/parsing"
	"github.com/jonathan/skill-extractor/internal/rendering"
)

// Step names reported through ProgressCallback.
const (
	StepIngest    = "ingest"
	StepNormalize = "normalize"
	StepMatch     = "match"
	StepRender    = "render"
	StepPersist   = "persist"
)

// DefaultBatchConcurrency bounds RunBatch when no limit is given.
const DefaultBatchConcurrency = 4

// ProgressEvent represents a progress update during a run
type ProgressEvent struct {
	Step    string `json:"step"`
	Message string `json:"message"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Store persists extraction results. *db.DB implements it.
type Store interface {
	SaveExtraction(ctx context.Context, input *db.ExtractionCreateInput) (*db.Extraction, error)
}

// Runner holds what is shared between runs. It is safe for concurrent use as
// long as its fields are not changed after the first Run.
type Runner struct {
	Engine *matching.Engine
	// Fetcher retrieves job posting URLs; nil means a plain HTTP client.
	Fetcher fetch.Fetcher
	// Browser renders client-side postings when UseBrowser is set.
	Browser    fetch.Fetcher
	UseBrowser bool
	// Store receives results of runs with Persist set; nil disables persistence.
	Store   Store
	Metrics *observability.Metrics
	Verbose bool
}

// RunOptions describes one job description. Exactly one of Text, Path and
// URL is used, in that order of preference.
type RunOptions struct {
	Text string
	Path string
	URL  string
	// Threshold overrides the engine's n-gram threshold when non-zero.
	Threshold  float64
	RenderHTML bool
	Persist    bool
	OnProgress ProgressCallback
}

// Output is the result of a run. Its JSON form is the extraction_result schema.
type Output struct {
	ID          string                 `json:"id,omitempty"`
	SourceURL   string                 `json:"source_url,omitempty"`
	Text        string                 `json:"text"`
	TokenCount  int                    `json:"token_count"`
	Degraded    bool                   `json:"degraded"`
	Threshold   float64                `json:"threshold"`
	HTML        string                 `json:"html,omitempty"`
	Annotations []rendering.Annotation `json:"annotations"`

	Metadata *ingestion.Metadata    `json:"-"`
	Document parsing.Document       `json:"-"`
	Set      matching.AnnotationSet `json:"-"`
	Elapsed  time.Duration          `json:"-"`
}

// emitProgress calls the progress callback if configured
func emitProgress(opts *RunOptions, step, message string, content any) {
	if opts.OnProgress != nil {
		opts.OnProgress(ProgressEvent{Step: step, Message: message, Content: content})
	}
}

// Run extracts skills from one job description. An input that normalizes to
// no tokens fails with *matching.InvalidInputError.
func (r *Runner) Run(ctx context.Context, opts RunOptions) (*Output, error) {
	if r.Engine == nil {
		return nil, errors.New("pipeline: engine is required")
	}

	text, metadata, err := r.ingest(ctx, opts)
	if err != nil {
		if errors.Is(err, ingestion.ErrEmptyInput) {
			return nil, &matching.InvalidInputError{Message: err.Error()}
		}
		r.observeError()
		return nil, err
	}
	emitProgress(&opts, StepIngest, fmt.Sprintf("Ingested %d characters from %s", metadata.Length, metadata.Source), metadata)

	doc := parsing.Normalize(text)
	words := doc.Words()
	if err := matching.ValidateTokens(words); err != nil {
		return nil, err
	}
	emitProgress(&opts, StepNormalize, fmt.Sprintf("Normalized into %d tokens", len(words)), nil)

	engine := r.Engine
	if opts.Threshold != 0 && opts.Threshold != engine.Options().Threshold {
		engine, err = engine.WithThreshold(opts.Threshold)
		if err != nil {
			return nil, &matching.InvalidInputError{Message: err.Error()}
		}
	}

	start := time.Now()
	res, err := engine.Extract(ctx, words)
	elapsed := time.Since(start)
	if err != nil {
		r.observeError()
		return nil, fmt.Errorf("matching failed: %w", err)
	}
	if r.Metrics != nil {
		r.Metrics.ObserveExtraction(res, elapsed)
	}
	emitProgress(&opts, StepMatch, fmt.Sprintf("Matched %d annotations in %v", len(res.Annotations), elapsed), res)
	if r.Verbose && res.Degraded {
		log.Printf("[VERBOSE] n-gram budget exhausted after %v; returning exact matches only", elapsed)
	}

	tax := engine.Taxonomy()
	annotations, err := rendering.Annotations(doc, res.Annotations, tax)
	if err != nil {
		r.observeError()
		return nil, err
	}
	if annotations == nil {
		annotations = []rendering.Annotation{}
	}

	out := &Output{
		SourceURL:   metadata.URL,
		Text:        doc.Text,
		TokenCount:  len(words),
		Degraded:    res.Degraded,
		Threshold:   engine.Options().Threshold,
		Annotations: annotations,
		Metadata:    metadata,
		Document:    doc,
		Set:         res.Annotations,
		Elapsed:     elapsed,
	}

	if opts.RenderHTML {
		out.HTML, err = rendering.RenderHTML(doc, res.Annotations, tax)
		if err != nil {
			r.observeError()
			return nil, err
		}
		emitProgress(&opts, StepRender, fmt.Sprintf("Rendered %d bytes of HTML", len(out.HTML)), nil)
	}

	if opts.Persist && r.Store != nil {
		saved, err := r.Store.SaveExtraction(ctx, &db.ExtractionCreateInput{
			Source:      string(metadata.Source),
			SourceURL:   metadata.URL,
			Platform:    metadata.Platform,
			TextHash:    metadata.Hash,
			CleanedText: doc.Text,
			TokenCount:  len(words),
			Annotations: annotations,
			SkillIDs:    res.Annotations.SkillIDs(),
			Degraded:    res.Degraded,
			Threshold:   out.Threshold,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to save extraction: %w", err)
		}
		out.ID = saved.ID.String()
		emitProgress(&opts, StepPersist, fmt.Sprintf("Saved extraction %s", out.ID), nil)
		if r.Verbose {
			log.Printf("[VERBOSE] Saved extraction %s", out.ID)
		}
	}

	return out, nil
}

// ingest reads the job description named by opts.
func (r *Runner) ingest(ctx context.Context, opts RunOptions) (string, *ingestion.Metadata, error) {
	switch {
	case opts.Text != "":
		return ingestion.IngestText(opts.Text)
	case opts.Path != "":
		return ingestion.IngestFromFile(opts.Path)
	case opts.URL != "":
		text, metadata, err := ingestion.IngestFromURL(ctx, opts.URL, &ingestion.URLOptions{
			Fetcher:    r.Fetcher,
			Browser:    r.Browser,
			UseBrowser: r.UseBrowser,
			Verbose:    r.Verbose,
		})
		if err != nil {
			return "", nil, fmt.Errorf("job ingestion from URL failed: %w", err)
		}
		return text, metadata, nil
	default:
		return "", nil, ingestion.ErrEmptyInput
	}
}

func (r *Runner) observeError() {
	if r.Metrics != nil {
		r.Metrics.ObserveError()
	}
}

// RunBatch runs every job in opts with at most limit runs in flight
// (DefaultBatchConcurrency when limit is not positive). Outputs are returned
// in input order; the first error cancels the remaining runs.
func (r *Runner) RunBatch(ctx context.Context, jobs []RunOptions, limit int) ([]*Output, error) {
	if limit <= 0 {
		limit = DefaultBatchConcurrency
	}

	outputs := make([]*Output, len(jobs))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i := range jobs {
		g.Go(func() error {
			out, err := r.Run(gCtx, jobs[i])
			if err != nil {
				return fmt.Errorf("%s: %w", describe(jobs[i]), err)
			}
			outputs[i] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// describe names a job for error messages.
func describe(opts RunOptions) string {
	switch {
	case opts.Path != "":
		return opts.Path
	case opts.URL != "":
		return opts.URL
	default:
		return "text input"
	}
}
