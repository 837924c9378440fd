// Package ratelimit provides per-client, per-endpoint rate limiting backed by
// token buckets from golang.org/x/time/rate.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultRoute keys the bucket shared by every route without its own
// EndpointConfig.
const defaultRoute = "*"

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	IdleTimeout     time.Duration // buckets unused this long are dropped by cleanup
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// Info is the outcome of one Allow call, reported to clients as
// X-RateLimit-* and Retry-After headers.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// bucketKey identifies a bucket. Route is the matched EndpointConfig path, not
// the request path, so "/extractions/{id}" requests share one bucket.
type bucketKey struct {
	client, route, method string
}

type bucket struct {
	*rate.Limiter
	lastUsed time.Time
}

// info reports the state of b after a request at now.
func (b *bucket) info(now time.Time, allowed bool, limit int) Info {
	tokens := max(b.TokensAt(now), 0)
	perSecond := float64(b.Limit())
	burst := float64(b.Burst())

	info := Info{Allowed: allowed, Limit: limit, Remaining: int(tokens), ResetTime: now}
	if perSecond <= 0 {
		return info
	}
	if tokens < burst {
		info.ResetTime = now.Add(seconds((burst - tokens) / perSecond))
	}
	if !allowed && tokens < 1 {
		info.RetryAfter = seconds((1 - tokens) / perSecond)
	}
	return info
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Limiter manages rate limiting for multiple clients.
type Limiter struct {
	config *Config
	now    func() time.Time

	mu      sync.Mutex
	buckets map[bucketKey]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

// NewLimiter creates a rate limiter. A nil config allows 1000 requests a
// minute per client. Idle buckets are swept every CleanupInterval until Stop.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = &Config{Enabled: true, DefaultLimit: 1000, DefaultWindow: time.Minute, CleanupInterval: 5 * time.Minute}
	}
	if config.IdleTimeout <= 0 {
		config.IdleTimeout = time.Hour
	}

	l := &Limiter{
		config:  config,
		now:     time.Now,
		buckets: make(map[bucketKey]*bucket),
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.sweepEvery(config.CleanupInterval)
	}
	return l
}

// Allow takes one token from the client's bucket for the endpoint. Whitelisted
// clients and unlimited routes always pass; blacklisted clients never do.
func (l *Limiter) Allow(clientID string, endpoint string, method string) (bool, Info) {
	switch {
	case !l.config.Enabled, l.config.Whitelist[clientID]:
		return true, Info{Allowed: true}
	case l.config.Blacklist[clientID]:
		return false, Info{}
	}

	cfg := MatchEndpoint(endpoint, method, l.config.EndpointConfigs)
	key := bucketKey{client: clientID, route: defaultRoute}
	if cfg != nil {
		key.route, key.method = cfg.Path, method
	} else {
		cfg = &EndpointConfig{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
	}
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	b := l.bucket(key, *cfg, now)
	allowed := b.AllowN(now, 1)
	return allowed, b.info(now, allowed, cfg.Limit)
}

// bucket returns the bucket for key, creating it from cfg, and marks it used.
func (l *Limiter) bucket(key bucketKey, cfg EndpointConfig, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		burst := cfg.Burst
		if burst <= 0 {
			burst = cfg.Limit
		}
		refill := rate.Limit(float64(cfg.Limit) / cfg.Window.Seconds())
		b = &bucket{Limiter: rate.NewLimiter(refill, burst)}
		l.buckets[key] = b
	}
	b.lastUsed = now
	return b
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) sweepEvery(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.cleanupBuckets()
		case <-l.stop:
			return
		}
	}
}

// cleanupBuckets drops buckets idle longer than IdleTimeout.
func (l *Limiter) cleanupBuckets() {
	cutoff := l.now().Add(-l.config.IdleTimeout)

	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.lastUsed.Before(cutoff) {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the cleanup goroutine. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
}
