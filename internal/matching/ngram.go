package matching

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/jonathan/skill-extractor/internal/taxonomy"
)

// DefaultThreshold is the minimum token-overlap ratio for an approximate match.
const DefaultThreshold = 0.6

// ctxCheckInterval is how many windows are scored between context checks.
const ctxCheckInterval = 64

// NgramIndex prunes the approximate search. Surface forms are numbered in
// taxonomy insertion order; each token maps to the bitmap of forms containing
// it and each form length maps to the bitmap of forms of that length, so a
// window is only scored against forms of its length that share a token with
// it. An index is immutable once built and safe for concurrent use.
type NgramIndex struct {
	forms    []taxonomy.FormRef
	verbatim map[string]struct{}
	byLength map[int]*roaring.Bitmap
	byToken  map[string]*roaring.Bitmap
	lengths  []int // ascending
}

// NewNgramIndex builds the pruning index for a taxonomy.
func NewNgramIndex(tax *taxonomy.Taxonomy) *NgramIndex {
	refs := tax.NgramCandidates()
	idx := &NgramIndex{
		forms:    refs,
		verbatim: make(map[string]struct{}, len(refs)),
		byLength: make(map[int]*roaring.Bitmap),
		byToken:  make(map[string]*roaring.Bitmap),
	}

	for ord, ref := range refs {
		id := uint32(ord)
		idx.verbatim[taxonomy.FormKey(ref.Tokens)] = struct{}{}

		l := len(ref.Tokens)
		bm, ok := idx.byLength[l]
		if !ok {
			bm = roaring.New()
			idx.byLength[l] = bm
			idx.lengths = append(idx.lengths, l)
		}
		bm.Add(id)

		for _, tok := range ref.Tokens {
			tb, ok := idx.byToken[tok]
			if !ok {
				tb = roaring.New()
				idx.byToken[tok] = tb
			}
			tb.Add(id)
		}
	}

	for _, bm := range idx.byLength {
		bm.RunOptimize()
	}
	for _, bm := range idx.byToken {
		bm.RunOptimize()
	}
	sort.Ints(idx.lengths)
	return idx
}

// FormCount returns the number of indexed surface forms.
func (idx *NgramIndex) FormCount() int {
	return len(idx.forms)
}

// FindApproximate slides windows of every distinct surface-form length over
// tokens and scores each window against the forms of equal length. Similarity
// is the number of window tokens matched by form tokens, in any order, divided
// by the window length. A window whose best score reaches threshold becomes
// an NGRAM candidate; ties go to the skill inserted first. Windows that equal
// a registered form verbatim are left to the exact matcher.
//
// The only error is ctx.Err(), returned when the context ends mid-scan.
func FindApproximate(ctx context.Context, tokens []string, idx *NgramIndex, threshold float64) ([]Candidate, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in (0, 1], got %v", threshold)
	}
	return findApproximate(ctx, foldTokens(tokens), idx, threshold)
}

func findApproximate(ctx context.Context, tokens []string, idx *NgramIndex, threshold float64) ([]Candidate, error) {
	var out []Candidate
	scanned := 0

	for _, l := range idx.lengths {
		if l > len(tokens) {
			break
		}
		need := minOverlap(threshold, l)
		sameLength := idx.byLength[l]
		postings := make([]*roaring.Bitmap, 0, l)

		for i := 0; i+l <= len(tokens); i++ {
			if scanned%ctxCheckInterval == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			scanned++

			window := tokens[i : i+l]
			if _, ok := idx.verbatim[taxonomy.FormKey(window)]; ok {
				continue
			}

			postings = postings[:0]
			for _, tok := range window {
				if bm, ok := idx.byToken[tok]; ok {
					postings = append(postings, bm)
				}
			}
			if len(postings) == 0 {
				continue
			}

			candidates := roaring.FastOr(postings...)
			candidates.And(sameLength)

			bestOrder := -1
			bestOverlap := 0
			var bestID string

			it := candidates.Iterator()
			for it.HasNext() {
				ref := idx.forms[it.Next()]
				n := overlap(window, ref.Tokens)
				if n < need {
					continue
				}
				if n > bestOverlap || (n == bestOverlap && ref.Order < bestOrder) {
					bestOverlap = n
					bestOrder = ref.Order
					bestID = ref.SkillID
				}
			}

			if bestOrder >= 0 {
				out = append(out, Candidate{
					Span:    Span{Start: i, End: i + l},
					SkillID: bestID,
					Kind:    KindNgram,
					Score:   float64(bestOverlap) / float64(l),
				})
			}
		}
	}

	return out, nil
}

// minOverlap is the smallest matched-token count n with n/l >= threshold.
func minOverlap(threshold float64, l int) int {
	need := int(math.Ceil(threshold*float64(l) - 1e-9))
	if need < 1 {
		need = 1
	}
	return need
}

// overlap counts window tokens that can be paired with a distinct form token.
func overlap(window, form []string) int {
	used := make([]bool, len(form))
	n := 0
	for _, w := range window {
		for j, f := range form {
			if !used[j] && f == w {
				used[j] = true
				n++
				break
			}
		}
	}
	return n
}
