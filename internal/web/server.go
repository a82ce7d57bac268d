// Package web provides the HTTP server, JSON API and HTML views of the
// enrichment wizard.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/JonMunkholm/enricher/internal/config"
	"github.com/JonMunkholm/enricher/internal/enrich"
	"github.com/JonMunkholm/enricher/internal/history"
	"github.com/JonMunkholm/enricher/internal/processing"
	"github.com/JonMunkholm/enricher/internal/session"
	mw "github.com/JonMunkholm/enricher/internal/web/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Deps are the services the handlers work against.
type Deps struct {
	Sessions *session.Store
	Runner   *processing.Runner
	Provider enrich.Provider
	History  history.Recorder
}

// Server is the HTTP server for the enrichment wizard.
type Server struct {
	cfg      *config.Config
	sessions *session.Store
	runner   *processing.Runner
	provider enrich.Provider
	history  history.Recorder

	router *chi.Mux
	server *http.Server

	limiter       *rateLimiter
	uploadLimiter *rateLimiter
}

// NewServer creates a new Server instance.
func NewServer(cfg *config.Config, deps Deps) *Server {
	s := &Server{
		cfg:      cfg,
		sessions: deps.Sessions,
		runner:   deps.Runner,
		provider: deps.Provider,
		history:  deps.History,
		router:   chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.limiter = newRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute)
		s.uploadLimiter = newRateLimiter(cfg.Rate.UploadLimit, time.Minute)
	}
	s.setupMiddleware()
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	if len(s.cfg.Security.TrustedProxies) > 0 {
		s.router.Use(mw.TrustedRealIP(s.cfg.Security.TrustedProxies))
	}
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
	s.router.Use(securityHeaders(s.cfg.Security.EnableCSP))

	if s.limiter != nil {
		s.router.Use(s.limiter.middleware)
	}

	s.router.Use(s.sessionMiddleware)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	// The event stream lives as long as the run, so it skips the request timeout.
	s.router.Get("/api/processing/events", s.handleProcessingEvents)

	s.router.Group(func(r chi.Router) {
		if s.cfg.Server.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.cfg.Server.RequestTimeout))
		}

		r.Get("/", s.handleIndex)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", s.handleState)

			r.With(s.limitUploads).Post("/upload", s.handleUpload)
			r.Get("/preview", s.handlePreview)

			// Columns and configuration
			r.Post("/columns", s.handleAddColumn)
			r.Post("/columns/select", s.handleSelectColumn)
			r.Delete("/columns/{name}", s.handleDeselectColumn)
			r.Post("/columns/{name}/deselect", s.handleDeselectColumn)
			r.Patch("/config", s.handleUpdateConfig)
			r.Post("/config", s.handleUpdateConfig)
			r.Get("/template/preview", s.handleTemplatePreview)

			// Search sites
			r.Put("/sites", s.handleReplaceSites)
			r.Post("/sites", s.handleAddSite)
			r.Post("/sites/{index}/toggle", s.handleToggleSite)
			r.Post("/sites/{index}/up", s.handleRankUp)
			r.Post("/sites/{index}/down", s.handleRankDown)
			r.Delete("/sites/{index}", s.handleRemoveSite)
			r.Post("/sites/{index}/remove", s.handleRemoveSite)

			// Navigation
			r.Post("/advance", s.handleAdvance)
			r.Post("/back", s.handleBack)
			r.Post("/reset", s.handleReset)

			// Processing
			r.With(s.limitUploads).Post("/processing/start", s.handleStartProcessing)
			r.Post("/processing/cancel", s.handleCancelProcessing)

			// Results
			r.Get("/download", s.handleDownloadCSV)
			r.Get("/download.xlsx", s.handleDownloadXLSX)
			r.Get("/history", s.handleHistory)
		})
	})
}

// limitUploads applies the stricter per-IP limit to expensive endpoints.
func (s *Server) limitUploads(next http.Handler) http.Handler {
	if s.uploadLimiter == nil {
		return next
	}
	return s.uploadLimiter.middleware(next)
}

// Start begins listening for HTTP requests. It returns nil after Shutdown.
func (s *Server) Start() error {
	slog.Info("server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// RunMaintenance drops stale rate limiter entries every minute until ctx is done.
func (s *Server) RunMaintenance(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.limiter.sweep()
			s.uploadLimiter.sweep()
		}
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

const contentSecurityPolicy = "default-src 'self'; script-src 'self' 'unsafe-inline'; style-src 'self' 'unsafe-inline'; img-src 'self' data:; font-src 'self'"

// securityHeaders adds security headers to all responses.
func securityHeaders(enableCSP bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			if enableCSP {
				w.Header().Set("Content-Security-Policy", contentSecurityPolicy)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// rateLimiter is a fixed-window request counter per client IP.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests per window
	window   time.Duration // time window
	now      func() time.Time
}

type visitor struct {
	tokens    int
	lastReset time.Time
}

func newRateLimiter(rate int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     rate,
		window:   window,
		now:      time.Now,
	}
}

// sweep removes visitors idle for two windows.
func (rl *rateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, v := range rl.visitors {
		if now.Sub(v.lastReset) > rl.window*2 {
			delete(rl.visitors, ip)
		}
	}
}

// allow checks if the request should be allowed and consumes a token if so.
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	v, exists := rl.visitors[ip]
	if !exists || now.Sub(v.lastReset) > rl.window {
		rl.visitors[ip] = &visitor{tokens: rl.rate - 1, lastReset: now}
		return rl.rate > 0
	}

	if v.tokens <= 0 {
		return false
	}
	v.tokens--
	return true
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			respondError(w, r, errRateLimited, http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
