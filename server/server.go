// Package server exposes the gateway's HTTP surface: resolution and
// streaming endpoints, the passthrough proxies, and static assets.
package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/nathanplyles/oblivion/internal/platform/logger"
	"github.com/nathanplyles/oblivion/internal/platform/metrics"
	"github.com/nathanplyles/oblivion/relay"
	"github.com/nathanplyles/oblivion/resolve"
	"github.com/nathanplyles/oblivion/youtube/scrape"
)

// Config carries the handler-level settings.
type Config struct {
	StaticDir  string
	RateLimit  int
	RatePeriod time.Duration

	LastFMKey   string
	CerebrasKey string
	GroqKey     string
	GeminiKey   string
}

// Server holds the gateway's request-handling dependencies.
type Server struct {
	chain   *resolve.Chain
	relay   *relay.Relay
	scraper *scrape.Client
	metrics *metrics.Metrics
	log     zerolog.Logger
	cfg     Config

	// proxyClient serves the passthrough endpoints.
	proxyClient *http.Client
	providers   []aiProvider
}

// New assembles a Server over its collaborators.
func New(chain *resolve.Chain, rl *relay.Relay, scraper *scrape.Client, m *metrics.Metrics, log zerolog.Logger, cfg Config) *Server {
	return &Server{
		chain:       chain,
		relay:       rl,
		scraper:     scraper,
		metrics:     m,
		log:         log,
		cfg:         cfg,
		proxyClient: &http.Client{Timeout: 15 * time.Second},
		providers:   defaultProviders(cfg),
	}
}

// Routes builds the chi router with the full middleware stack.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(s.log))
	r.Use(metrics.RequestMiddleware(s.metrics))
	r.Use(isolationHeaders)

	r.Route("/api", func(api chi.Router) {
		if s.cfg.RateLimit > 0 {
			api.Use(httprate.LimitByIP(s.cfg.RateLimit, s.cfg.RatePeriod))
		}
		api.Get("/resolve/{videoId}", s.handleResolve)
		api.Get("/ytAudio/{videoId}", s.handleStream)
		api.Get("/stream/{videoId}", s.handleStream)
		api.Get("/ytSearch", s.handleSearch)
		api.Get("/lastfm", s.handleLastFM)
		api.Get("/itunes", s.handleITunes)
		api.Get("/lyrics", s.handleLyrics)
		api.Get("/img/*", s.handleImage)
		api.Post("/ai", s.handleAI)
	})

	r.Handle("/metrics", s.metrics.Handler())
	r.NotFound(s.handleStatic)
	return r
}

// isolationHeaders enables browser cross-origin isolation on every
// response, so the front end can use SharedArrayBuffer-backed audio.
func isolationHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Cross-Origin-Embedder-Policy", "require-corp")
		next.ServeHTTP(w, r)
	})
}

// handleStatic serves files under the configured static directory,
// falling back to a plain 404 page.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	if s.cfg.StaticDir == "" || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	path := filepath.Join(s.cfg.StaticDir, filepath.Clean("/"+r.URL.Path))
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		http.ServeFile(w, r, path)
		return
	}
	if r.URL.Path == "/" {
		index := filepath.Join(s.cfg.StaticDir, "index.html")
		if _, err := os.Stat(index); err == nil {
			http.ServeFile(w, r, index)
			return
		}
	}
	if data, err := os.ReadFile(filepath.Join(s.cfg.StaticDir, "404.html")); err == nil {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write(data)
		return
	}
	writeError(w, http.StatusNotFound, "not found")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
