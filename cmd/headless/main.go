package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
	"roboclaude/internal/game/geom"
	"roboclaude/internal/render"
)

type runConfig struct {
	ticks  int
	seed   int64
	weapon string
	bounce int
	out    string // screenshot directory, empty disables captures
	every  int    // ticks between captures
	scale  float64
}

type runReport struct {
	seed        int64
	ticks       int
	wave        int
	score       int
	kills       int
	lightning   int
	playerHits  int
	wavesClear  int
	screenshots []string
	elapsed     time.Duration
}

func main() {
	var cfg runConfig

	flag.IntVar(&cfg.ticks, "ticks", 3600, "ticks to simulate")
	flag.Int64Var(&cfg.seed, "seed", 42, "RNG seed")
	flag.StringVar(&cfg.weapon, "weapon", "standard", "weapon id (standard, homing, spread, laser)")
	flag.IntVar(&cfg.bounce, "reflections", 0, "ricochet count per bullet")
	flag.StringVar(&cfg.out, "out", "", "directory for PNG captures (empty = none)")
	flag.IntVar(&cfg.every, "every", 600, "ticks between captures")
	flag.Float64Var(&cfg.scale, "scale", 1, "capture scale factor")
	flag.Parse()

	if cfg.ticks <= 0 {
		fmt.Println("error: -ticks must be > 0")
		os.Exit(2)
	}
	if cfg.every <= 0 {
		fmt.Println("error: -every must be > 0")
		os.Exit(2)
	}

	rep, err := run(config.DefaultGame(), cfg)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	printReport(rep)
}

// run drives one loop on a manual clock with the autopilot steering.
func run(gameCfg config.GameConfig, cfg runConfig) (runReport, error) {
	mode, err := game.ParseWeapon(cfg.weapon)
	if err != nil {
		return runReport{}, err
	}

	clock := game.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := game.NewLoop(gameCfg, game.LoopOptions{Name: "headless", Clock: clock, Seed: cfg.seed, Quiet: true})
	if err := l.Arsenal().Select(mode); err != nil {
		return runReport{}, err
	}
	if err := l.Arsenal().SetReflections(cfg.bounce); err != nil {
		return runReport{}, err
	}

	rep := runReport{seed: cfg.seed, ticks: cfg.ticks}
	l.Bus().Subscribe(func(ev game.Event) {
		switch p := ev.Payload.(type) {
		case game.EnemyHitPayload:
			if p.Killed {
				rep.kills++
			}
		case game.LightningPayload:
			rep.lightning++
		case game.PlayerHitPayload:
			rep.playerHits++
		case game.WavePayload:
			rep.wavesClear++
		}
	}, game.EventTypeEnemyHit, game.EventTypeLightning, game.EventTypePlayerHit, game.EventTypeWaveComplete)

	var renderer *render.Renderer
	if cfg.out != "" {
		if err := os.MkdirAll(cfg.out, 0o755); err != nil {
			return runReport{}, fmt.Errorf("create capture dir: %w", err)
		}
		renderer = render.New(gameCfg.Arena, cfg.scale)
	}

	step := time.Second / time.Duration(max(gameCfg.Arena.TickRate, 1))
	start := time.Now()
	for tick := 1; tick <= cfg.ticks; tick++ {
		l.SetInput(autopilot(l.State(), tick, gameCfg.Arena))
		clock.Advance(step)
		l.Update()

		if renderer != nil && tick%cfg.every == 0 {
			path := filepath.Join(cfg.out, fmt.Sprintf("tick_%06d.png", tick))
			if err := capture(renderer, l.Snapshots().Latest(), path); err != nil {
				return rep, err
			}
			rep.screenshots = append(rep.screenshots, path)
		}
	}
	rep.elapsed = time.Since(start)

	st := l.State()
	rep.wave = st.Wave
	rep.score = st.Score
	return rep, nil
}

func capture(r *render.Renderer, snap *game.Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := r.EncodePNG(f, snap); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

// autopilot aims at the nearest enemy, circles it at a distance and pulses
// the special weapon every few seconds.
func autopilot(st game.State, tick int, arena config.ArenaConfig) game.Input {
	in := game.Input{Special: tick%240 < 2}

	pc := st.Player.Center()
	target, ok := nearest(pc, st.Enemies)
	if !ok {
		// Drift back to the middle between waves
		mid := geom.Vec{X: arena.Width / 2, Y: arena.Height / 2}
		steer(&in, mid.Sub(pc), 8)
		return in
	}

	in.Aim = &target
	in.Locked = true

	to := target.Sub(pc)
	dist := to.Len()
	switch {
	case dist < 120:
		steer(&in, to.Scale(-1), 0)
	default:
		// Strafe perpendicular, flipping direction every two seconds
		side := geom.Vec{X: -to.Y, Y: to.X}
		if (tick/120)%2 == 1 {
			side = side.Scale(-1)
		}
		steer(&in, side, 0)
	}
	return in
}

func nearest(from geom.Vec, enemies []game.Enemy) (geom.Vec, bool) {
	best, bestDist := geom.Vec{}, math.Inf(1)
	for _, e := range enemies {
		c := e.Center()
		if d := geom.Distance(from, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, !math.IsInf(bestDist, 1)
}

// steer maps a direction onto the four movement keys. Offsets shorter than
// deadzone leave the keys up.
func steer(in *game.Input, dir geom.Vec, deadzone float64) {
	if dir.IsZero() {
		return
	}
	if deadzone > 0 && dir.Len() < deadzone {
		return
	}
	d := geom.Normalize(dir.X, dir.Y)
	in.Left = d.X < -0.3
	in.Right = d.X > 0.3
	in.Up = d.Y < -0.3
	in.Down = d.Y > 0.3
}

func printReport(r runReport) {
	fmt.Printf("=== Headless Arena Report ===\n")
	fmt.Printf("seed=%d ticks=%d elapsed=%v (%.1f ticks/s)\n\n",
		r.seed, r.ticks, r.elapsed.Round(time.Millisecond), float64(r.ticks)/math.Max(r.elapsed.Seconds(), 1e-9))
	fmt.Printf("wave reached:    %d\n", r.wave)
	fmt.Printf("waves cleared:   %d\n", r.wavesClear)
	fmt.Printf("score:           %d\n", r.score)
	fmt.Printf("kills:           %d\n", r.kills)
	fmt.Printf("lightning casts: %d\n", r.lightning)
	fmt.Printf("hits taken:      %d\n", r.playerHits)
	for _, p := range r.screenshots {
		fmt.Printf("capture:         %s\n", p)
	}
}
