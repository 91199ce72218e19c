package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"
	"github.com/yourusername/immich-dedup/pkg/auth"
	"github.com/yourusername/immich-dedup/pkg/config"
	"github.com/yourusername/immich-dedup/pkg/dedup"
	"github.com/yourusername/immich-dedup/pkg/frame"
	"github.com/yourusername/immich-dedup/pkg/immich"
	"github.com/yourusername/immich-dedup/pkg/sweep"
	"github.com/yourusername/immich-dedup/pkg/tools"
	"golang.org/x/time/rate"
)

// Version is reported to MCP clients.
var Version = "dev"

// loginURLer is implemented by auth providers that can send a browser to an OAuth login page.
type loginURLer interface {
	LoginURL(state string) string
}

// Server exposes the duplicate cleanup runner and the photo frame over HTTP and MCP
type Server struct {
	config         *config.Config
	mcpServer      *server.MCPServer
	streamableHTTP *server.StreamableHTTPServer
	immich         *immich.Client
	finder         *dedup.Finder
	frame          *frame.Frame
	rateLimiter    *rate.Limiter
	authProvider   auth.Provider
	sweep          *sweep.Scheduler
}

// New creates a new server around an Immich client and a cleanup runner
func New(cfg *config.Config, client *immich.Client, finder *dedup.Finder) (*Server, error) {
	authProvider, err := auth.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	photoFrame := frame.New(client, cfg.CacheTTL)

	mcpServer := server.NewMCPServer("immich-dedup", Version)
	tools.RegisterTools(mcpServer, finder, photoFrame)

	sweepOpts := dedup.Options{CheckManual: cfg.SweepCheckManual, DryRun: !cfg.SweepDelete}

	return &Server{
		config:         cfg,
		mcpServer:      mcpServer,
		streamableHTTP: server.NewStreamableHTTPServer(mcpServer),
		immich:         client,
		finder:         finder,
		frame:          photoFrame,
		rateLimiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), cfg.RateLimitBurst),
		authProvider:   authProvider,
		sweep:          sweep.NewScheduler(cfg.SweepCron, sweepOpts, cfg.SweepTimeout, finder),
	}, nil
}

// Handler returns the HTTP handler with all routes and middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/mcp", s.streamableHTTP.ServeHTTP)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/immich/", s.handleFrame)
	mux.HandleFunc("/oauth/login", s.handleLogin)

	return s.authMiddleware(
		s.rateLimitMiddleware(
			s.loggingMiddleware(mux),
		),
	)
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.RequestTimeout,
		IdleTimeout:  60 * time.Second,
	}

	log.Info().Str("addr", s.config.ListenAddr).Msg("Starting HTTP server")

	if err := s.sweep.Start(); err != nil {
		return fmt.Errorf("failed to start sweep scheduler: %w", err)
	}
	defer s.sweep.Stop()

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errChan:
		return err
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// handleReady reports whether the Immich server answers
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if err := s.immich.Ping(ctx); err != nil {
		log.Warn().Err(err).Msg("Immich server not reachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not_ready",
			"reason": "immich_unavailable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleFrame serves a random photo of the people named in the query, e.g.
// /immich/?names=frodo&names=bilbo&width=600&height=448
func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed")
		return
	}

	query := r.URL.Query()

	width, err := intParam(query.Get("width"), s.config.FrameWidth)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid width")
		return
	}
	height, err := intParam(query.Get("height"), s.config.FrameHeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid height")
		return
	}

	pic, err := s.frame.Render(r.Context(), query["names"], width, height)
	if err != nil {
		status := frameStatus(err)
		if status >= http.StatusInternalServerError {
			log.Error().Err(err).Strs("names", query["names"]).Msg("Failed to render frame image")
		}
		writeError(w, status, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("X-Immich-Asset-Id", pic.Asset.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(pic.JPEG); err != nil {
		log.Error().Err(err).Msg("Failed to write frame response")
	}
}

// handleLogin redirects to the OAuth authorization page
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := s.authProvider.(loginURLer)
	if !ok {
		writeError(w, http.StatusNotFound, "oauth_not_configured")
		return
	}

	loginURL := provider.LoginURL(uuid.NewString())
	if loginURL == "" {
		writeError(w, http.StatusNotFound, "oauth_not_configured")
		return
	}

	http.Redirect(w, r, loginURL, http.StatusFound)
}

func frameStatus(err error) int {
	switch {
	case errors.Is(err, frame.ErrNoPeople), errors.Is(err, frame.ErrPersonNotUnique):
		return http.StatusBadRequest
	case errors.Is(err, frame.ErrNoAsset):
		return http.StatusNotFound
	case errors.Is(err, frame.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusBadGateway
	}
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 || n > 10000 {
		return 0, fmt.Errorf("invalid dimension %q", value)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
