package matching

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// DefaultNgramBudget bounds the approximate matcher for one document.
const DefaultNgramBudget = 2 * time.Second

// Options tune an Engine.
type Options struct {
	// Threshold is the minimum overlap ratio for an NGRAM candidate, in (0, 1].
	Threshold float64
	// NgramBudget caps the approximate matcher. Zero disables the cap.
	NgramBudget time.Duration
	// Verbose logs per-document matcher statistics.
	Verbose bool
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{Threshold: DefaultThreshold, NgramBudget: DefaultNgramBudget}
}

// Result is the outcome of one extraction. Degraded is set when the n-gram
// budget ran out and only exact matches were kept.
type Result struct {
	Annotations AnnotationSet `json:"annotations"`
	Degraded    bool          `json:"degraded"`
}

// Engine runs both matchers over a shared, read-only taxonomy. It holds no
// per-call state and is safe for concurrent use.
type Engine struct {
	tax   *taxonomy.Taxonomy
	index *NgramIndex
	opts  Options
}

// NewEngine builds the n-gram index for tax and returns an engine.
func NewEngine(tax *taxonomy.Taxonomy, opts Options) (*Engine, error) {
	if tax == nil {
		return nil, errors.New("taxonomy is required")
	}
	if opts.Threshold <= 0 || opts.Threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", opts.Threshold)
	}
	if opts.NgramBudget < 0 {
		return nil, fmt.Errorf("ngram budget must not be negative, got %s", opts.NgramBudget)
	}
	return &Engine{tax: tax, index: NewNgramIndex(tax), opts: opts}, nil
}

// WithThreshold returns an engine that shares e's taxonomy and n-gram index
// but accepts NGRAM candidates at a different threshold.
func (e *Engine) WithThreshold(threshold float64) (*Engine, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}
	opts := e.opts
	opts.Threshold = threshold
	return &Engine{tax: e.tax, index: e.index, opts: opts}, nil
}

// Taxonomy returns the taxonomy the engine matches against.
func (e *Engine) Taxonomy() *taxonomy.Taxonomy {
	return e.tax
}

// Options returns the engine's options.
func (e *Engine) Options() Options {
	return e.opts
}

// Extract annotates tokens. The exact and approximate matchers run
// concurrently; if the approximate matcher exceeds its budget the result holds
// the exact matches only and is marked Degraded. An error is returned only
// when ctx itself is done.
func (e *Engine) Extract(ctx context.Context, tokens []string) (Result, error) {
	if len(tokens) == 0 {
		return Result{Annotations: AnnotationSet{}}, nil
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	folded := foldTokens(tokens)

	ngramCtx := ctx
	if e.opts.NgramBudget > 0 {
		var cancel context.CancelFunc
		ngramCtx, cancel = context.WithTimeout(ctx, e.opts.NgramBudget)
		defer cancel()
	}

	var exact, approx []Candidate
	var ngramErr error

	g := new(errgroup.Group)
	g.Go(func() error {
		exact = findExact(folded, e.tax)
		return nil
	})
	g.Go(func() error {
		approx, ngramErr = findApproximate(ngramCtx, folded, e.index, e.opts.Threshold)
		return nil
	})
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	if ngramErr != nil {
		if e.opts.Verbose {
			log.Printf("[VERBOSE] n-gram budget %s exhausted after %d tokens, keeping %d exact matches",
				e.opts.NgramBudget, len(tokens), len(exact))
		}
		return Result{Annotations: Merge(exact, e.tax), Degraded: true}, nil
	}

	all := make([]Candidate, 0, len(exact)+len(approx))
	all = append(all, exact...)
	all = append(all, approx...)
	set := Merge(all, e.tax)

	if e.opts.Verbose {
		log.Printf("[VERBOSE] %d tokens: %d exact and %d n-gram candidates, %d annotations",
			len(tokens), len(exact), len(approx), len(set))
	}
	return Result{Annotations: set}, nil
}

// indexes holds the n-gram index of every taxonomy passed to ExtractSkills.
// Taxonomies are built once per process, so entries are never evicted.
var indexes sync.Map // *taxonomy.Taxonomy -> *NgramIndex

// indexFor returns the shared n-gram index of tax, building it on first use.
func indexFor(tax *taxonomy.Taxonomy) *NgramIndex {
	if v, ok := indexes.Load(tax); ok {
		return v.(*NgramIndex)
	}
	v, _ := indexes.LoadOrStore(tax, NewNgramIndex(tax))
	return v.(*NgramIndex)
}

// ExtractSkills annotates tokens with default options and no budget. It is the
// plain entry point for callers that do not need cancellation. The n-gram
// index is built on the first call for a taxonomy and reused afterwards.
func ExtractSkills(tokens []string, tax *taxonomy.Taxonomy) AnnotationSet {
	if len(tokens) == 0 || tax == nil {
		return AnnotationSet{}
	}
	folded := foldTokens(tokens)
	exact := findExact(folded, tax)
	approx, err := findApproximate(context.Background(), folded, indexFor(tax), DefaultThreshold)
	if err != nil {
		return Merge(exact, tax)
	}
	return Merge(append(exact, approx...), tax)
}
