package game

import (
	"testing"
	"time"

	"roboclaude/internal/config"
)

var testEpoch = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

func testConfig() config.GameConfig {
	return config.DefaultGame()
}

// testEnemy places a 20x20 grunt whose center is (cx, cy).
func testEnemy(id int64, cx, cy float64, health int) Enemy {
	return Enemy{
		ID:        id,
		X:         cx - 10,
		Y:         cy - 10,
		Size:      20,
		Speed:     1,
		Health:    health,
		MaxHealth: health,
		Points:    100,
		Kind:      EnemyGrunt,
		Color:     "#8B5CF6",
	}
}

// testBullet places a 5x5 player bullet whose center is (cx, cy).
func testBullet(cx, cy, dx, dy float64) Bullet {
	return Bullet{
		X:      cx - 2.5,
		Y:      cy - 2.5,
		DX:     dx,
		DY:     dy,
		Speed:  10,
		Size:   5,
		Damage: 1,
		Kind:   BulletStraight,
	}
}

// centeredPlayer returns a 20x20 player whose center is (cx, cy).
func centeredPlayer(cx, cy float64) Player {
	return Player{X: cx - 10, Y: cy - 10, Size: 20, Speed: 5}
}

func newTestStore(t *testing.T, enemies []Enemy, bullets []Bullet) *Store {
	t.Helper()
	s := NewStore()
	if err := s.Init(centeredPlayer(400, 300), enemies, bullets, 0, 1); err != nil {
		t.Fatalf("init store: %v", err)
	}
	return s
}

// newTestLoop returns a quiet loop on a manual clock.
func newTestLoop(t *testing.T, opts LoopOptions) (*Loop, *ManualClock) {
	t.Helper()
	clock := NewManualClock(testEpoch)
	opts.Clock = clock
	opts.Quiet = true
	if opts.Seed == 0 {
		opts.Seed = 42
	}
	return NewLoop(testConfig(), opts), clock
}

// installWave marks the current wave generated and replaces its enemies.
func installWave(l *Loop, enemies []Enemy) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.director.GenerateEnemies(l.store.player)
	l.store.SetEnemies(enemies)
}
