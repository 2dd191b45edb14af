// Package server provides the HTTP REST API for the session service.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jonathan/cvperfect-sessions/internal/cleanup"
	"github.com/jonathan/cvperfect-sessions/internal/config"
	"github.com/jonathan/cvperfect-sessions/internal/metrics"
	"github.com/jonathan/cvperfect-sessions/internal/mirror"
	"github.com/jonathan/cvperfect-sessions/internal/recovery"
	"github.com/jonathan/cvperfect-sessions/internal/server/middleware"
	"github.com/jonathan/cvperfect-sessions/internal/server/ratelimit"
	"github.com/jonathan/cvperfect-sessions/internal/store"
)

// Server represents the HTTP server
type Server struct {
	httpServer      *http.Server
	store           store.Store
	rateLimiter     *ratelimit.Limiter
	jwtService      *JWTService
	metrics         *metrics.Collector
	registry        *prometheus.Registry
	storeTimeout    time.Duration
	cleanupMaxAge   time.Duration
	cleanupInterval time.Duration
	verbose         bool
	now             func() time.Time
}

// Config holds server configuration
type Config struct {
	Port            int
	DatabaseURL     string
	SessionDir      string
	SessionTTL      time.Duration
	StoreTimeout    time.Duration
	CleanupMaxAge   time.Duration
	CleanupInterval time.Duration
	Verbose         bool
}

// New creates a new server instance. The store backend is chosen from the
// configuration: PostgreSQL when a database URL is set, the file store when a
// session directory is set, and the in-memory store otherwise.
func New(cfg Config) (*Server, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		store:           st,
		storeTimeout:    cfg.StoreTimeout,
		cleanupMaxAge:   cfg.CleanupMaxAge,
		cleanupInterval: cfg.CleanupInterval,
		verbose:         cfg.Verbose,
		now:             time.Now,
	}
	if s.storeTimeout <= 0 {
		s.storeTimeout = recovery.DefaultStoreTimeout
	}
	if s.cleanupMaxAge <= 0 {
		s.cleanupMaxAge = cleanup.DefaultMaxAge
	}

	// Initialize rate limiter
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	// Initialize metrics
	s.registry = prometheus.NewRegistry()
	s.metrics = metrics.NewCollector(s.registry)

	// The cleanup endpoint is the only authenticated surface
	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	s.jwtService = NewJWTService(jwtConfig)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// openStore selects and opens the configured store backend.
func openStore(cfg Config) (store.Store, error) {
	switch {
	case cfg.DatabaseURL != "":
		var opts []store.PostgresOption
		if cfg.SessionTTL > 0 {
			opts = append(opts, store.WithPostgresTTL(cfg.SessionTTL))
		}
		st, err := store.ConnectPostgres(context.Background(), cfg.DatabaseURL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return st, nil
	case cfg.SessionDir != "":
		var opts []store.FileOption
		if cfg.SessionTTL > 0 {
			opts = append(opts, store.WithFileTTL(cfg.SessionTTL))
		}
		st, err := store.NewFile(cfg.SessionDir, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open session directory: %w", err)
		}
		return st, nil
	default:
		var opts []store.MemoryOption
		if cfg.SessionTTL > 0 {
			opts = append(opts, store.WithTTL(cfg.SessionTTL))
		}
		return store.NewMemory(opts...), nil
	}
}

// routes builds the request router.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Session endpoints
	mux.HandleFunc("POST /sessions", s.handleSaveSession)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	// Query parameter instead of a path segment so the route cannot
	// conflict with /sessions/{id}.
	mux.HandleFunc("GET /sessions/by-email", s.handleGetSessionByEmail)
	mux.HandleFunc("POST /sessions/recover", s.handleRecover)

	// Administrative endpoints
	authRequired := s.requireAuth()
	mux.Handle("POST /sessions/cleanup", authRequired(http.HandlerFunc(s.handleCleanup)))

	// Operational endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler(s.registry))

	return mux
}

// requireAuth returns the JWT middleware guarding administrative routes.
func (s *Server) requireAuth() func(http.Handler) http.Handler {
	return middleware.AuthMiddleware(s.jwtService.AsTokenValidator())
}

// Start begins listening for requests
func (s *Server) Start() error {
	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	// Background retention sweep
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	if s.cleanupInterval > 0 {
		runner := cleanup.NewRunner(s.store, cleanup.WithMaxAge(s.cleanupMaxAge))
		go runner.RunPeriodic(cleanupCtx, s.cleanupInterval)
	}

	go func() {
		log.Printf("Server starting on %s", s.httpServer.Addr)
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

	// Stop rate limiter cleanup goroutine
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	s.store.Close()
	log.Println("Server stopped")
	return nil
}

// newOrchestrator builds the recovery chain over the given mirror snapshot
// backend. A fresh orchestrator per request keeps mirror state request-local.
func (s *Server) newOrchestrator(mir *mirror.Mirror) *recovery.Orchestrator {
	return recovery.New(s.store, mir,
		recovery.WithStoreTimeout(s.storeTimeout),
		recovery.WithMetrics(s.metrics),
	)
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// withRateLimit adds rate limiting middleware
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Extract client identifier (IP address)
		clientID := s.extractClientID(r)

		// Check rate limit
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		if !allowed {
			s.setRateLimitHeaders(w, info)
			s.rateLimitResponse(w, info)
			return
		}

		// Set rate limit headers for successful requests
		s.setRateLimitHeaders(w, info)
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging. Completion timings are only logged in
// verbose mode.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		if s.verbose {
			log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
		}
	})
}

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
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
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID extracts the client identifier from the request.
// For MVP, this uses the IP address from RemoteAddr.
// In the future, this could use X-Forwarded-For header (only from trusted proxies).
func (s *Server) extractClientID(r *http.Request) string {
	// Get IP from RemoteAddr (format: "IP:port")
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// If parsing fails, use the whole RemoteAddr
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit
// information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]interface{}{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}

	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}

	log.Printf("[rate-limit] Rate limit exceeded: Limit=%d Remaining=%d Reset=%s",
		info.Limit, info.Remaining, info.ResetTime.Format(time.RFC3339))

	s.jsonResponse(w, http.StatusTooManyRequests, response)
}
