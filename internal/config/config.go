// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for arena, combat and server settings.
//
// IMPORTANT: When changing gameplay constants, only modify this file.
// The simulation reads every tunable through these structs.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// ARENA CONFIGURATION
// =============================================================================

// ArenaConfig describes the fixed logical playfield and the simulation rate.
type ArenaConfig struct {
	Width    float64 // Logical playfield width in units
	Height   float64 // Logical playfield height in units
	TickRate int     // Simulation ticks per second
}

// DefaultArena returns the fixed 800x600 playfield at 60 TPS.
func DefaultArena() ArenaConfig {
	return ArenaConfig{
		Width:    800,
		Height:   600,
		TickRate: 60,
	}
}

// ArenaFromEnv returns arena configuration with environment variable overrides.
// Only the tick rate is tunable; the playfield size is part of the game rules.
func ArenaFromEnv() ArenaConfig {
	cfg := DefaultArena()
	if tps := getEnvInt("TICK_RATE", 0); tps > 0 {
		cfg.TickRate = tps
	}
	return cfg
}

// =============================================================================
// COMBAT CONFIGURATION
// =============================================================================

// CombatConfig holds the gameplay constants of the simulation.
type CombatConfig struct {
	// Player
	PlayerSize  float64
	PlayerSpeed float64

	// Auto-fire
	FireInterval time.Duration

	// Ricochet
	RicochetRange     float64
	RicochetSpeedLoss float64 // speed multiplier applied per bounce
	HitBuffer         float64 // extra units added to the bullet/enemy collision radius
	MaxReflections    int // largest ricochet budget a player can select

	// Seeking bullets
	SeekTurnRate float64 // fraction of the heading error corrected per tick

	// Lightning
	LightningRange    float64
	LightningDamage   int
	LightningCooldown time.Duration
	LightningDuration time.Duration

	// Waves
	TransitionDuration  time.Duration
	SpawnMinDistance    float64
	ClusterMinDistance  float64
	ChaseMinDistance    float64
	ClusterChargeSpeed  float64
	ClusterDwellMin     time.Duration
	ClusterDwellMax     time.Duration

	// Enemy fire-control
	EnemyBulletSpeed  float64
	EnemyBulletSize   float64
	EnemyBulletDamage int
	EnemyBulletColor  string
}

// DefaultCombat returns the tuned gameplay constants.
func DefaultCombat() CombatConfig {
	return CombatConfig{
		PlayerSize:  20,
		PlayerSpeed: 5,

		FireInterval: 200 * time.Millisecond,

		RicochetRange:     300,
		RicochetSpeedLoss: 0.95,
		HitBuffer:         2,
		MaxReflections:    9,

		SeekTurnRate: 0.1,

		LightningRange:    150,
		LightningDamage:   3,
		LightningCooldown: 4 * time.Second,
		LightningDuration: 500 * time.Millisecond,

		TransitionDuration: 1000 * time.Millisecond,
		SpawnMinDistance:   150,
		ClusterMinDistance: 250,
		ChaseMinDistance:   50,
		ClusterChargeSpeed: 4,
		ClusterDwellMin:    1 * time.Second,
		ClusterDwellMax:    3 * time.Second,

		EnemyBulletSpeed:  3,
		EnemyBulletSize:   6,
		EnemyBulletDamage: 1,
		EnemyBulletColor:  "#FF6B6B",
	}
}

// CombatFromEnv returns combat configuration with environment variable overrides.
func CombatFromEnv() CombatConfig {
	cfg := DefaultCombat()

	if d := getEnvDuration("FIRE_INTERVAL", 0); d > 0 {
		cfg.FireInterval = d
	}
	if r := getEnvFloat("LIGHTNING_RANGE", 0); r > 0 {
		cfg.LightningRange = r
	}
	if d := getEnvDuration("LIGHTNING_COOLDOWN", 0); d > 0 {
		cfg.LightningCooldown = d
	}
	if r := getEnvFloat("RICOCHET_RANGE", 0); r > 0 {
		cfg.RicochetRange = r
	}
	if n := getEnvInt("MAX_REFLECTIONS", -1); n >= 0 {
		cfg.MaxReflections = n
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port        int
	MaxSessions int           // Hard cap on concurrent game sessions
	BroadcastHz int           // Snapshot pushes per second per WebSocket
	IdleTimeout time.Duration // Sessions without clients are reaped after this
	CORSOrigins []string
	StaticDir   string // Browser client bundle
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:        3000,
		MaxSessions: 64,
		BroadcastHz: 30,
		IdleTimeout: 10 * time.Minute,
		CORSOrigins: []string{
			"http://localhost:*",
			"http://127.0.0.1:*",
		},
		StaticDir: "./web",
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if ms := getEnvInt("MAX_SESSIONS", 0); ms > 0 {
		cfg.MaxSessions = ms
	}
	if hz := getEnvInt("BROADCAST_HZ", 0); hz > 0 {
		cfg.BroadcastHz = hz
	}
	if d := getEnvDuration("SESSION_IDLE_TIMEOUT", 0); d > 0 {
		cfg.IdleTimeout = d
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	if dir := os.Getenv("STATIC_DIR"); dir != "" {
		cfg.StaticDir = dir
	}

	return cfg
}

// =============================================================================
// RATE LIMIT CONFIGURATION
// =============================================================================

// RateLimitConfig holds per-IP HTTP limits and per-socket input limits.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
	CleanupInterval   time.Duration
	InputPerSecond    float64 // WebSocket input frames per second per client
	InputBurst        int
	MaxWSPerIP        int
}

// DefaultRateLimit returns production-safe defaults.
func DefaultRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		CleanupInterval:   5 * time.Minute,
		InputPerSecond:    120, // two frames per tick at 60 TPS
		InputBurst:        240,
		MaxWSPerIP:        4,
	}
}

// =============================================================================
// EVENT LOG / DEBUG CONFIGURATION
// =============================================================================

// EventLogConfig controls the JSONL audit trail.
type EventLogConfig struct {
	Path    string
	Enabled bool
}

// EventLogFromEnv returns the event log configuration.
func EventLogFromEnv() EventLogConfig {
	cfg := EventLogConfig{Path: "events.jsonl", Enabled: true}
	if p := os.Getenv("EVENT_LOG_PATH"); p != "" {
		cfg.Path = p
	}
	if os.Getenv("EVENT_LOG_ENABLED") == "false" {
		cfg.Enabled = false
	}
	return cfg
}

// DebugConfig configures the localhost observability server.
type DebugConfig struct {
	Enabled    bool
	ListenAddr string
}

// DebugFromEnv returns the debug server configuration.
func DebugFromEnv() DebugConfig {
	cfg := DebugConfig{Enabled: true, ListenAddr: "127.0.0.1:6060"}
	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.Enabled = false
	}
	if addr := os.Getenv("DEBUG_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}
	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// GameConfig is the subset of settings a simulation session needs.
type GameConfig struct {
	Arena  ArenaConfig
	Combat CombatConfig
}

// DefaultGame returns the game configuration without environment overrides.
// Tests use this to stay independent of the process environment.
func DefaultGame() GameConfig {
	return GameConfig{
		Arena:  DefaultArena(),
		Combat: DefaultCombat(),
	}
}

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Game      GameConfig
	Server    ServerConfig
	RateLimit RateLimitConfig
	EventLog  EventLogConfig
	Debug     DebugConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Game: GameConfig{
			Arena:  ArenaFromEnv(),
			Combat: CombatFromEnv(),
		},
		Server:    ServerFromEnv(),
		RateLimit: DefaultRateLimit(),
		EventLog:  EventLogFromEnv(),
		Debug:     DebugFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// getEnvDuration accepts Go duration strings ("250ms") or bare milliseconds.
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
