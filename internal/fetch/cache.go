package fetch

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultCacheTTL is how long a fetched page is reused.
const DefaultCacheTTL = 15 * time.Minute

// DefaultCacheEntries bounds the number of cached pages.
const DefaultCacheEntries = 256

// CachedFetcher wraps another Fetcher with an in-memory TTL cache. Concurrent
// requests for the same URL share a single upstream fetch. Failed fetches are
// not cached.
type CachedFetcher struct {
	next         Fetcher
	ttl          time.Duration
	maxEntries   int
	fetchTimeout time.Duration
	now          func() time.Time

	mu      sync.Mutex
	entries map[string]cacheEntry
	group   singleflight.Group
}

type cacheEntry struct {
	result  Result
	expires time.Time
}

// CachedFetcherConfig holds configuration for the cached fetcher.
type CachedFetcherConfig struct {
	CacheTTL   time.Duration
	MaxEntries int
	// FetchTimeout bounds an upstream fetch shared by coalesced callers.
	FetchTimeout time.Duration
}

// DefaultCachedFetcherConfig returns sensible defaults.
func DefaultCachedFetcherConfig() *CachedFetcherConfig {
	return &CachedFetcherConfig{CacheTTL: DefaultCacheTTL, MaxEntries: DefaultCacheEntries, FetchTimeout: DefaultTimeout}
}

// NewCachedFetcher creates a new cached fetcher. A nil next fetches over HTTP
// with default options.
func NewCachedFetcher(next Fetcher, config *CachedFetcherConfig) *CachedFetcher {
	if next == nil {
		next = NewClient()
	}
	if config == nil {
		config = DefaultCachedFetcherConfig()
	}
	ttl := config.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	maxEntries := config.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultCacheEntries
	}
	fetchTimeout := config.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = DefaultTimeout
	}
	return &CachedFetcher{
		next:         next,
		ttl:          ttl,
		maxEntries:   maxEntries,
		fetchTimeout: fetchTimeout,
		now:          time.Now,
		entries:      make(map[string]cacheEntry),
	}
}

// Fetch implements Fetcher. Cached results are copies with FromCache set.
// A shared upstream fetch is not tied to any one caller: a caller whose ctx
// ends stops waiting, and the others still get the result.
func (f *CachedFetcher) Fetch(ctx context.Context, urlStr string) (*Result, error) {
	if r, ok := f.lookup(urlStr); ok {
		return r, nil
	}

	ch := f.group.DoChan(urlStr, func() (interface{}, error) {
		if r, ok := f.lookup(urlStr); ok {
			return r, nil
		}
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), f.fetchTimeout)
		defer cancel()

		r, err := f.next.Fetch(fetchCtx, urlStr)
		if err != nil {
			return r, err
		}
		f.store(urlStr, r)
		return r, nil
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-ch:
	}

	if res.Err != nil {
		if r, ok := res.Val.(*Result); ok && r != nil {
			copied := *r
			return &copied, res.Err
		}
		return nil, res.Err
	}

	r := *res.Val.(*Result)
	return &r, nil
}

// Invalidate drops a cached page so the next Fetch goes upstream.
func (f *CachedFetcher) Invalidate(urlStr string) {
	f.mu.Lock()
	delete(f.entries, urlStr)
	f.mu.Unlock()
}

// Len returns the number of cached pages, including expired ones not yet
// evicted.
func (f *CachedFetcher) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

func (f *CachedFetcher) lookup(urlStr string) (*Result, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.entries[urlStr]
	if !ok {
		return nil, false
	}
	if !f.now().Before(e.expires) {
		delete(f.entries, urlStr)
		return nil, false
	}
	r := e.result
	r.FromCache = true
	return &r, true
}

func (f *CachedFetcher) store(urlStr string, r *Result) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if len(f.entries) >= f.maxEntries {
		f.evictLocked(now)
	}
	f.entries[urlStr] = cacheEntry{result: *r, expires: now.Add(f.ttl)}
}

// evictLocked drops expired entries, then the entry closest to expiry if the
// cache is still full.
func (f *CachedFetcher) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, e := range f.entries {
		if !now.Before(e.expires) {
			delete(f.entries, k)
			continue
		}
		if oldestKey == "" || e.expires.Before(oldest) {
			oldestKey, oldest = k, e.expires
		}
	}
	if len(f.entries) >= f.maxEntries && oldestKey != "" {
		delete(f.entries, oldestKey)
	}
}
