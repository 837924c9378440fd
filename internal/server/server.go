package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/gzhttp"

	"github.com/jonathan/skill-extractor/internal/config"
	"github.com/jonathan/skill-extractor/internal/db"
	"github.com/jonathan/skill-extractor/internal/fetch"
	"github.com/jonathan/skill-extractor/internal/matching"
	"github.com/jonathan/skill-extractor/internal/observability"
	"github.com/jonathan/skill-extractor/internal/pipeline"
	"github.com/jonathan/skill-extractor/internal/server/middleware"
	"github.com/jonathan/skill-extractor/internal/server/ratelimit"
	"github.com/jonathan/skill-extractor/internal/types"
)

// maxRequestBytes bounds JSON and form bodies.
const maxRequestBytes = types.MaxTextBytes + 64<<10

// ExtractionStore is the persistence the server needs. *db.DB implements it.
type ExtractionStore interface {
	pipeline.Store
	GetExtraction(ctx context.Context, id uuid.UUID) (*db.Extraction, error)
	ListExtractions(ctx context.Context, opts db.ListExtractionsOptions) ([]db.ExtractionSummary, int, error)
	DeleteExtraction(ctx context.Context, id uuid.UUID) (bool, error)
	Ping(ctx context.Context) error
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	engine      *matching.Engine
	store       ExtractionStore
	closeStore  func()
	runner      *pipeline.Runner
	metrics     *observability.Metrics
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	form        *template.Template
}

// Config holds server configuration
type Config struct {
	Port   int
	Engine *matching.Engine
	// DatabaseURL enables extraction history; empty runs without a database.
	DatabaseURL string
	// Store overrides DatabaseURL.
	Store ExtractionStore
	// Fetcher retrieves posting URLs; nil means a cached HTTP client.
	Fetcher    fetch.Fetcher
	Browser    fetch.Fetcher
	UseBrowser bool
	Verbose    bool
	// RateLimit nil means ratelimit.LoadConfig().
	RateLimit *ratelimit.Config
	// JWT enables bearer-token auth on the JSON API when set.
	JWT *config.JWTConfig
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	if cfg.Engine == nil {
		return nil, errors.New("server: engine is required")
	}

	form, err := template.ParseFS(templateFS, "templates/form.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse form template: %w", err)
	}

	s := &Server{
		engine:  cfg.Engine,
		metrics: observability.NewMetrics(),
		form:    form,
	}

	switch {
	case cfg.Store != nil:
		s.store = cfg.Store
	case cfg.DatabaseURL != "":
		database, err := db.Connect(context.Background(), cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		s.store = database
		s.closeStore = database.Close
	}

	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewCachedFetcher(fetch.NewClient(), nil)
	}
	s.runner = &pipeline.Runner{
		Engine:     cfg.Engine,
		Fetcher:    fetcher,
		Browser:    cfg.Browser,
		UseBrowser: cfg.UseBrowser,
		Metrics:    s.metrics,
		Verbose:    cfg.Verbose,
	}
	if s.store != nil {
		s.runner.Store = s.store
	}

	rateConfig := cfg.RateLimit
	if rateConfig == nil {
		rateConfig = ratelimit.LoadConfig()
	}
	s.rateLimiter = ratelimit.NewLimiter(rateConfig)

	// API routes require a bearer token only when JWT is configured
	protect := func(_ string, h http.HandlerFunc) http.Handler { return h }
	if cfg.JWT != nil {
		s.jwtService = NewJWTService(cfg.JWT)
		validator := s.jwtService.AsTokenValidator()
		protect = func(scope string, h http.HandlerFunc) http.Handler {
			return middleware.AuthMiddleware(validator, scope)(h)
		}
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Browser form
	mux.HandleFunc("GET /{$}", s.handleForm)
	mux.HandleFunc("POST /{$}", s.handleFormSubmit)

	// Taxonomy
	mux.HandleFunc("GET /skills", s.handleListSkills)
	mux.HandleFunc("GET /skills/{id}", s.handleGetSkill)

	// Extraction API
	mux.Handle("POST /extract", protect(middleware.ScopeExtract, s.handleExtract))
	mux.Handle("GET /extractions", protect(middleware.ScopeHistory, s.handleListExtractions))
	mux.Handle("GET /extractions/{id}", protect(middleware.ScopeHistory, s.handleGetExtraction))
	mux.Handle("DELETE /extractions/{id}", protect(middleware.ScopeHistory, s.handleDeleteExtraction))

	s.handler = s.withRateLimit(s.withLogging(s.withMetrics(s.withCORS(gzhttp.GzipHandler(mux)))))
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second, // URL extraction may start a headless browser
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *observability.Metrics {
	return s.metrics
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM.
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("Server starting on %s (%d skills)", s.httpServer.Addr, s.engine.Taxonomy().Len())
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.Close()
	log.Println("Server stopped")
	return nil
}

// Close releases the rate limiter and the database pool.
func (s *Server) Close() {
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.closeStore != nil {
		s.closeStore()
	}
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)

		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)
		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// withMetrics records request counts and latency by route pattern.
func (s *Server) withMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		// ServeMux sets Pattern on the request it was handed
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		s.metrics.ObserveRequest(route, r.Method, strconv.Itoa(rec.status), time.Since(start))
	})
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, types.ErrorResponse{Error: errorCode(status), Message: message})
}

// handleError maps err to a status and writes it. Internal errors are logged
// and not echoed to the client.
func (s *Server) handleError(w http.ResponseWriter, err error) {
	status := HTTPStatus(err)

	var validation *ErrValidation
	var invalid *matching.InvalidInputError
	switch {
	case errors.As(err, &validation):
		s.jsonResponse(w, status, types.ErrorResponse{Error: errorCode(status), Field: validation.Field, Message: validation.Message})
	case errors.As(err, &invalid):
		s.errorResponse(w, status, EmptyInputMessage)
	case errors.Is(err, fetch.ErrBlockedAddress):
		s.jsonResponse(w, status, types.ErrorResponse{Error: errorCode(status), Field: "url", Message: BlockedURLMessage})
	case status == http.StatusInternalServerError:
		log.Printf("Internal error: %v", err)
		s.errorResponse(w, status, "Internal server error")
	default:
		s.errorResponse(w, status, err.Error())
	}
}

// extractClientID extracts the client identifier from the request.
// It uses the IP address from RemoteAddr; X-Forwarded-For is not trusted.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}

	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
