package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"roboclaude/internal/api"
	"roboclaude/internal/config"
	"roboclaude/internal/game"
	"roboclaude/internal/render"

	"github.com/joho/godotenv"
)

const reapInterval = 30 * time.Second

func main() {
	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🤖 ================================")
	log.Println("🤖  ROBOCLAUDE - ARENA SERVER")
	log.Println("🤖 ================================")

	// Load centralized configuration (SSOT - Single Source of Truth)
	appConfig := config.Load()
	arena := appConfig.Game.Arena
	serverCfg := appConfig.Server

	log.Printf("🎮 Config: %d TPS, %dx%d arena, %d Hz broadcast",
		arena.TickRate, int(arena.Width), int(arena.Height), serverCfg.BroadcastHz)
	log.Printf("🛡️ Limits: %d sessions, %s idle timeout, %d sockets per IP",
		serverCfg.MaxSessions, serverCfg.IdleTimeout, appConfig.RateLimit.MaxWSPerIP)

	debugServer := api.StartDebugServer(appConfig.Debug)

	// Start event log
	eventLog := game.NewEventLog()
	if appConfig.EventLog.Enabled {
		if err := eventLog.Start(appConfig.EventLog.Path); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", appConfig.EventLog.Path)
		}
	}
	api.RegisterEventLogMetrics(eventLog)

	leaderboard := game.NewLeaderboard(game.DefaultLeaderboardSize)

	sessions := game.NewManager(appConfig.Game, serverCfg.MaxSessions, serverCfg.IdleTimeout)
	sessions.OnCreate(func(s *game.Session) {
		s.OnClose(eventLog.Attach(s.ID, s.Loop().Bus()))
		s.OnClose(leaderboard.Attach(s.ID, s.Loop().Bus()))
	})
	sessions.OnCreate(api.ObserveSession)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sessions.RunReaper(ctx, reapInterval)

	server := api.NewServer(appConfig, api.ServerDeps{
		Sessions:    sessions,
		Leaderboard: leaderboard,
		EventLog:    eventLog,
		Renderer:    render.New(arena, 1),
	})

	// Start API server in goroutine
	go func() {
		addr := fmt.Sprintf(":%d", serverCfg.Port)
		if err := server.Start(addr); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	cancel()

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ API shutdown: %v", err)
	}
	sessions.CloseAll()
	eventLog.Stop()
	if debugServer != nil {
		debugServer.Shutdown(shutdownCtx)
	}
	log.Println("👋 Goodbye!")
}
