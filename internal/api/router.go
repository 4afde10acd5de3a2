package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
	"roboclaude/internal/render"
)

// SessionStore is the part of game.Manager the API uses.
// Keep this minimal - only include methods the API layer actually calls.
type SessionStore interface {
	Create(seed int64) (*game.Session, error)
	Get(id string) (*game.Session, error)
	List() []game.SessionInfo
	Delete(id string) error
	Len() int
}

// RouterConfig contains all dependencies needed to construct the HTTP router.
//
// Example usage in tests:
//
//	router := api.NewRouter(api.RouterConfig{
//	    Sessions:       game.NewManager(config.DefaultGame(), 4, 0),
//	    DisableLogging: true,
//	})
//	ts := httptest.NewServer(router)
type RouterConfig struct {
	// Sessions is the session manager (required)
	Sessions SessionStore

	// Leaderboard and EventLog are optional; their endpoints degrade to empty
	Leaderboard *game.Leaderboard
	EventLog    *game.EventLog

	// Renderer draws screenshots. If nil, one is created for the default arena.
	Renderer *render.Renderer

	// Hub serves /ws/{id}. If nil, socket routes are not mounted.
	Hub *WebSocketHub

	// RateLimiter is an optional pre-configured rate limiter.
	// If nil, a new one is created from RateLimit (or the defaults).
	RateLimiter *IPRateLimiter
	RateLimit   *config.RateLimitConfig

	// CORSOrigins is an optional list of allowed CORS origins.
	// If nil, uses the default server origins.
	CORSOrigins []string

	// StaticFilesDir serves the browser client. Empty disables it.
	StaticFilesDir string

	// DisableLogging disables the request logger middleware (useful for benchmarks).
	DisableLogging bool
}

// routerHandlers holds the handler dependencies.
type routerHandlers struct {
	sessions    SessionStore
	leaderboard *game.Leaderboard
	eventLog    *game.EventLog
	renderer    *render.Renderer
	hub         *WebSocketHub
	rateLimiter *IPRateLimiter
}

// NewRouter constructs the HTTP router with all middleware and routes.
//
// IMPORTANT: This function is PURE - it has no side effects:
//   - No goroutines are started
//   - No network listeners are opened
//
// This makes it safe to use in tests with httptest.NewServer.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	// Middleware - Order matters!
	if !cfg.DisableLogging {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	// Rate limiting (BEFORE CORS to reject early and save CPU)
	rateLimiter := cfg.RateLimiter
	if rateLimiter == nil {
		rlCfg := config.DefaultRateLimit()
		if cfg.RateLimit != nil {
			rlCfg = *cfg.RateLimit
		}
		rateLimiter = NewIPRateLimiter(rlCfg)
	}
	r.Use(rateLimiter.Middleware)

	corsOrigins := cfg.CORSOrigins
	if corsOrigins == nil {
		corsOrigins = config.DefaultServer().CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	renderer := cfg.Renderer
	if renderer == nil {
		renderer = render.New(config.DefaultArena(), 1)
	}

	h := &routerHandlers{
		sessions:    cfg.Sessions,
		leaderboard: cfg.Leaderboard,
		eventLog:    cfg.EventLog,
		renderer:    renderer,
		hub:         cfg.Hub,
		rateLimiter: rateLimiter,
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.handleGetStats)
		r.Get("/weapons", h.handleGetWeapons)
		r.Get("/leaderboard", h.handleGetLeaderboard)

		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", h.handleCreateSession)
			r.Get("/", h.handleListSessions)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.handleGetSession)
				r.Delete("/", h.handleDeleteSession)

				r.Post("/start", h.handleStart)
				r.Post("/pause", h.handlePause(true))
				r.Post("/resume", h.handlePause(false))
				r.Post("/input", h.handleInput)
				r.Post("/weapon", h.handleWeapon)
				r.Post("/reflections", h.handleReflections)
				r.Post("/lightning", h.handleLightning)

				r.Get("/snapshot", h.handleSnapshot)
				r.Get("/screenshot.png", h.handleScreenshot)
			})
		})
	})

	if cfg.Hub != nil {
		r.Get("/ws/{id}", func(w http.ResponseWriter, req *http.Request) {
			s, ok := h.session(w, req)
			if !ok {
				return
			}
			cfg.Hub.HandleSession(w, req, s)
		})
	}

	if cfg.StaticFilesDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.StaticFilesDir)))
	}

	return r
}
