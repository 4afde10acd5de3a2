package api

import (
	"errors"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
)

// Metrics with bounded cardinality (no per-session labels)
var (
	// Simulation metrics
	tickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "game_tick_duration_seconds",
		Help:    "Time spent in one simulation tick",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.0167},
	})

	renderDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "render_duration_seconds",
		Help:    "Time spent rendering a screenshot",
		Buckets: []float64{0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "game_sessions_active",
		Help: "Currently open game sessions",
	})

	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_sessions_created_total",
		Help: "Game sessions created",
	})

	enemiesKilled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_enemies_killed_total",
		Help: "Enemies killed",
	}, []string{"source"}) // Bounded: "bullet", "lightning"

	playerHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "game_player_hits_total",
		Help: "Hits taken by players",
	}, []string{"source"}) // Bounded: "bullet", "contact"

	wavesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_waves_completed_total",
		Help: "Waves cleared across all sessions",
	})

	lightningFired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_lightning_total",
		Help: "Lightning activations that hit at least one enemy",
	})

	bulletsCulled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "game_bullets_culled_total",
		Help: "Bullets removed for leaving the arena",
	})

	// DoS detection metrics - use ONLY bounded label values
	connectionRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connection_rejected_total",
		Help: "Connections rejected by rate limiter or origin check",
	}, []string{"reason"}) // Bounded: "rate_limit", "origin", "ws_total_limit", "ws_ip_limit", "input_rate"

	// HTTP metrics with bounded labels
	requestLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"}) // endpoint is the route pattern, not the full URL

	requestTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "endpoint", "status"})

	// WebSocket metrics
	wsConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "websocket_connections_active",
		Help: "Currently active WebSocket connections",
	})

	wsMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_messages_total",
		Help: "WebSocket frames by direction",
	}, []string{"direction"}) // Bounded: "out", "in"
)

// ObserveSession feeds a session's bus into the game metrics until the
// session closes. Register it with Manager.OnCreate.
func ObserveSession(s *game.Session) {
	sessionsActive.Inc()
	sessionsCreated.Inc()

	unsubscribe := s.Loop().Bus().Subscribe(func(ev game.Event) {
		switch p := ev.Payload.(type) {
		case game.TickPayload:
			tickDuration.Observe(p.Duration.Seconds())
			if p.Culled > 0 {
				bulletsCulled.Add(float64(p.Culled))
			}
		case game.EnemyHitPayload:
			if p.Killed {
				enemiesKilled.WithLabelValues(p.Source).Inc()
			}
		case game.PlayerHitPayload:
			playerHits.WithLabelValues(p.Source).Inc()
		case game.LightningPayload:
			lightningFired.Inc()
		case game.WavePayload:
			if ev.Type == game.EventTypeWaveComplete {
				wavesCompleted.Inc()
			}
		}
	}, game.EventTypeTick, game.EventTypeEnemyHit, game.EventTypePlayerHit,
		game.EventTypeLightning, game.EventTypeWaveComplete)

	s.OnClose(func() {
		unsubscribe()
		sessionsActive.Dec()
	})
}

// RegisterEventLogMetrics exposes the audit log counters. Calling it again
// with another log is a no-op.
func RegisterEventLogMetrics(el *game.EventLog) {
	collectors := []prometheus.Collector{
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_total",
			Help: "Total events offered to the audit log",
		}, func() float64 { return float64(el.Stats().Total) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_dropped_total",
			Help: "Events dropped due to rate limiting or buffer full",
		}, func() float64 { return float64(el.Stats().Dropped) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "event_log_written_total",
			Help: "Events written to the audit file",
		}, func() float64 { return float64(el.Stats().Written) }),
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				log.Printf("⚠️ Metric registration failed: %v", err)
			}
		}
	}
}

// NewDebugHandler returns the observability mux: pprof, /metrics, /health.
func NewDebugHandler() http.Handler {
	mux := http.NewServeMux()

	// pprof endpoints for profiling
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// StartDebugServer starts the internal observability server and returns it
// so the caller can shut it down. Returns nil when disabled.
// CRITICAL: This MUST bind to localhost only to prevent pprof-based DoS
func StartDebugServer(cfg config.DebugConfig) *http.Server {
	if !cfg.Enabled {
		log.Println("📊 Debug server disabled")
		return nil
	}

	addr := loopbackAddr(cfg.ListenAddr)
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewDebugHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("📊 Debug server starting on %s", addr)
		log.Printf("   - pprof:   http://%s/debug/pprof/", addr)
		log.Printf("   - metrics: http://%s/metrics", addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("⚠️ Debug server error: %v", err)
		}
	}()

	return srv
}

// loopbackAddr forces addr onto 127.0.0.1 unless ALLOW_DEBUG_EXTERNAL=true.
func loopbackAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "127.0.0.1:6060"
	}
	if host == "localhost" {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return addr
	}
	if os.Getenv("ALLOW_DEBUG_EXTERNAL") == "true" {
		return addr
	}
	log.Println("⚠️ Debug server forced to localhost for security")
	return net.JoinHostPort("127.0.0.1", port)
}

// metricsMiddleware records latency and status per route pattern.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			endpoint = rctx.RoutePattern()
		}
		RecordRequest(r.Method, endpoint, ww.Status(), time.Since(start))
	})
}

// RecordRender records render timing for metrics
func RecordRender(duration time.Duration) {
	renderDuration.Observe(duration.Seconds())
}

// RecordConnectionRejected increments the rejection counter
func RecordConnectionRejected(reason string) {
	connectionRejected.WithLabelValues(reason).Inc()
}

// RecordRequest records HTTP request metrics
func RecordRequest(method, endpoint string, status int, duration time.Duration) {
	requestLatency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
	requestTotal.WithLabelValues(method, endpoint, strconv.Itoa(status)).Inc()
}

// UpdateWSConnections updates WebSocket connection count
func UpdateWSConnections(count int) {
	wsConnectionsActive.Set(float64(count))
}

// IncrementWSMessages counts one frame sent ("out") or received ("in")
func IncrementWSMessages(direction string) {
	wsMessagesTotal.WithLabelValues(direction).Inc()
}
