package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
	"roboclaude/internal/render"
)

// Server is the HTTP API server with WebSocket support.
type Server struct {
	router      *chi.Mux
	wsHub       *WebSocketHub
	rateLimiter *IPRateLimiter
	httpServer  *http.Server
}

// ServerDeps are the collaborators the server exposes.
type ServerDeps struct {
	Sessions    SessionStore
	Leaderboard *game.Leaderboard
	EventLog    *game.EventLog
	Renderer    *render.Renderer
}

// NewServer creates the API server.
//
// IMPORTANT: Background workers do NOT start until Start() is called.
// This enables testing by allowing the server to be constructed without
// starting goroutines or opening network listeners.
func NewServer(cfg config.AppConfig, deps ServerDeps) *Server {
	s := &Server{
		wsHub:       NewWebSocketHub(cfg.Server, cfg.RateLimit),
		rateLimiter: NewIPRateLimiter(cfg.RateLimit),
	}

	s.router = NewRouter(RouterConfig{
		Sessions:       deps.Sessions,
		Leaderboard:    deps.Leaderboard,
		EventLog:       deps.EventLog,
		Renderer:       deps.Renderer,
		Hub:            s.wsHub,
		RateLimiter:    s.rateLimiter,
		CORSOrigins:    cfg.Server.CORSOrigins,
		StaticFilesDir: cfg.Server.StaticDir,
	})

	return s
}

// Start begins the HTTP server AND starts background workers. It blocks
// until the server stops; a clean Shutdown returns nil.
func (s *Server) Start(addr string) error {
	s.rateLimiter.Start()

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	log.Printf("🌐 API server starting on %s", addr)
	log.Printf("🎮 Client: http://localhost%s/", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Router returns the HTTP handler for use with httptest.
// Use this in integration tests instead of calling Start().
func (s *Server) Router() http.Handler {
	return s.router
}

// Hub returns the socket hub.
func (s *Server) Hub() *WebSocketHub {
	return s.wsHub
}

// Shutdown disconnects sockets, stops accepting requests and stops
// background workers.
func (s *Server) Shutdown(ctx context.Context) error {
	s.wsHub.Close()
	s.rateLimiter.Stop()
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
