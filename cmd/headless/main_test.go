package main

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
	"roboclaude/internal/game/geom"
)

func TestSteer(t *testing.T) {
	tests := []struct {
		name                  string
		dir                   geom.Vec
		deadzone              float64
		up, down, left, right bool
	}{
		{"zero", geom.Vec{}, 0, false, false, false, false},
		{"right", geom.Vec{X: 10}, 0, false, false, false, true},
		{"up left", geom.Vec{X: -5, Y: -5}, 0, true, false, true, false},
		{"mostly down", geom.Vec{X: 1, Y: 10}, 0, false, true, false, false},
		{"inside deadzone", geom.Vec{X: 3}, 8, false, false, false, false},
		{"outside deadzone", geom.Vec{X: 30}, 8, false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in game.Input
			steer(&in, tt.dir, tt.deadzone)
			assert.Equal(t, tt.up, in.Up, "up")
			assert.Equal(t, tt.down, in.Down, "down")
			assert.Equal(t, tt.left, in.Left, "left")
			assert.Equal(t, tt.right, in.Right, "right")
		})
	}
}

func TestAutopilotAimsAtNearestEnemy(t *testing.T) {
	st := game.State{
		Player: game.Player{X: 390, Y: 290, Size: 20},
		Enemies: []game.Enemy{
			{ID: 1, X: 700, Y: 500, Size: 20},
			{ID: 2, X: 440, Y: 290, Size: 20},
		},
	}

	in := autopilot(st, 1, config.DefaultArena())
	require.NotNil(t, in.Aim)
	assert.True(t, in.Locked)
	assert.Equal(t, geom.Vec{X: 450, Y: 300}, *in.Aim)
	assert.True(t, in.Left, "backs away from a close enemy")
	assert.False(t, in.Right)
}

func TestAutopilotReturnsToCenter(t *testing.T) {
	st := game.State{Player: game.Player{X: 10, Y: 290, Size: 20}}

	in := autopilot(st, 1, config.DefaultArena())
	assert.Nil(t, in.Aim)
	assert.True(t, in.Right)

	centered := game.State{Player: game.Player{X: 390, Y: 290, Size: 20}}
	in = autopilot(centered, 1, config.DefaultArena())
	assert.False(t, in.Left || in.Right || in.Up || in.Down)
}

func TestAutopilotPulsesSpecial(t *testing.T) {
	st := game.State{Player: game.Player{X: 390, Y: 290, Size: 20}}
	arena := config.DefaultArena()

	assert.True(t, autopilot(st, 240, arena).Special)
	assert.True(t, autopilot(st, 241, arena).Special)
	assert.False(t, autopilot(st, 242, arena).Special)
}

func TestRunIsDeterministic(t *testing.T) {
	cfg := runConfig{ticks: 900, seed: 7, weapon: "spread", every: 300, scale: 1}

	a, err := run(config.DefaultGame(), cfg)
	require.NoError(t, err)
	b, err := run(config.DefaultGame(), cfg)
	require.NoError(t, err)

	assert.Equal(t, a.score, b.score)
	assert.Equal(t, a.wave, b.wave)
	assert.Equal(t, a.kills, b.kills)
	assert.GreaterOrEqual(t, a.wave, 1)
}

func TestRunWritesCaptures(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shots")
	cfg := runConfig{ticks: 120, seed: 3, weapon: "standard", out: dir, every: 60, scale: 0.5}

	rep, err := run(config.DefaultGame(), cfg)
	require.NoError(t, err)
	require.Len(t, rep.screenshots, 2)

	f, err := os.Open(rep.screenshots[1])
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 300, img.Bounds().Dy())
}

func TestRunRejectsBadWeapon(t *testing.T) {
	_, err := run(config.DefaultGame(), runConfig{ticks: 1, weapon: "railgun", every: 1})
	assert.ErrorIs(t, err, game.ErrUnknownWeapon)
}
