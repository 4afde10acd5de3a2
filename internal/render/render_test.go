package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
	"roboclaude/internal/game/geom"
)

func testSnapshot() *game.Snapshot {
	return &game.Snapshot{
		Tick:   7,
		Player: game.Player{X: 390, Y: 290, Size: 20, Speed: 5},
		Enemies: []game.Enemy{
			{ID: 1, X: 100, Y: 400, Size: 20, Health: 1, MaxHealth: 2, Kind: game.EnemyGrunt, Color: "#8B5CF6"},
			{ID: 2, X: 600, Y: 400, Size: 30, Health: 3, MaxHealth: 3, Kind: game.EnemyEnforcer, Color: "#EF4444"},
			{ID: 3, X: 650, Y: 100, Size: 30, Health: 5, MaxHealth: 5, Kind: game.EnemyTank, Color: "#3B82F6"},
			{ID: 4, X: 300, Y: 500, Size: 26, Health: 2, MaxHealth: 2, Kind: game.EnemySpheroid, Color: "#10B981"},
		},
		Bullets: []game.Bullet{
			{X: 420, Y: 300, DX: 1, Size: 5, Speed: 10, Color: "#FBBF24", ReflectionsRemaining: 2},
			{X: 380, Y: 250, DY: -1, Size: 5, Speed: 8, Kind: game.BulletSeeking, Color: "#FF6B6B"},
			{X: 500, Y: 200, DX: 1, Size: 15, Speed: 20, Length: 30, Color: "#E94560"},
		},
		Score:       1200,
		Wave:        3,
		Phase:       game.PhaseInProgress,
		Weapon:      game.WeaponLaser,
		Reflections: 2,
		Lightning: game.LightningView{
			CooldownPercent: 40,
			Chain: []game.LightningLink{
				{From: geom.Vec{X: 400, Y: 300}, To: geom.Vec{X: 615, Y: 415}, EnemyID: 2},
			},
		},
	}
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	r, g, b, a := img.At(x, y).RGBA()
	return color.RGBA{uint8(r >> 8), uint8(g >> 8), uint8(b >> 8), uint8(a >> 8)}
}

func TestRenderSize(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
		w, h  int
	}{
		{"native", 1, 800, 600},
		{"zero scale falls back to native", 0, 800, 600},
		{"double", 2, 1600, 1200},
		{"half", 0.5, 400, 300},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(config.DefaultArena(), tt.scale)
			w, h := r.Size()
			assert.Equal(t, tt.w, w)
			assert.Equal(t, tt.h, h)

			b := r.Render(testSnapshot()).Bounds()
			assert.Equal(t, tt.w, b.Dx())
			assert.Equal(t, tt.h, b.Dy())
		})
	}
}

func TestRenderDrawsEntities(t *testing.T) {
	img := New(config.DefaultArena(), 1).Render(testSnapshot())

	assert.Equal(t, playerColor, rgbaAt(img, 393, 293), "player fill")
	assert.Equal(t, color.RGBA{139, 92, 246, 255}, rgbaAt(img, 110, 410), "grunt uses its own color")
	assert.Equal(t, color.RGBA{59, 130, 246, 255}, rgbaAt(img, 660, 108), "tank body")
	assert.Equal(t, turretCoreColor, rgbaAt(img, 313, 513), "spheroid core")
	assert.Equal(t, backgroundColor, rgbaAt(img, 760, 560), "empty arena")
}

func TestRenderNilSnapshot(t *testing.T) {
	img := New(config.DefaultArena(), 1).Render(nil)
	assert.Equal(t, backgroundColor, rgbaAt(img, 425, 325), "cell interior")
	assert.NotEqual(t, backgroundColor, rgbaAt(img, 400, 325), "grid line")
}

func TestRenderIsDeterministic(t *testing.T) {
	r := New(config.DefaultArena(), 1)
	snap := testSnapshot()

	var a, b bytes.Buffer
	require.NoError(t, r.EncodePNG(&a, snap))
	require.NoError(t, r.EncodePNG(&b, snap))
	assert.Equal(t, a.Bytes(), b.Bytes(), "lightning jitter is seeded from the snapshot")
}

func TestEncodePNGDecodes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, New(config.DefaultArena(), 1).EncodePNG(&buf, testSnapshot()))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 600), img.Bounds())
	assert.Equal(t, playerColor, rgbaAt(img, 393, 293))
}

func TestRenderLiveLoopSnapshot(t *testing.T) {
	clock := game.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	l := game.NewLoop(config.DefaultGame(), game.LoopOptions{Clock: clock, Seed: 42, Quiet: true})
	for range 30 {
		clock.Advance(time.Second / 60)
		l.Update()
	}

	snap := l.Snapshots().Latest()
	require.NotNil(t, snap)
	require.NotEmpty(t, snap.Enemies)

	img := New(config.DefaultArena(), 1).Render(snap)
	c := snap.Player.Center()
	assert.Equal(t, playerColor, rgbaAt(img, int(c.X), int(c.Y)))
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
	}{
		{"#FBBF24", color.RGBA{251, 191, 36, 255}},
		{"#000000", color.RGBA{0, 0, 0, 255}},
		{"FBBF24", color.RGBA{255, 255, 255, 255}},
		{"#FFF", color.RGBA{255, 255, 255, 255}},
		{"#GGGGGG", color.RGBA{255, 255, 255, 255}},
		{"", color.RGBA{255, 255, 255, 255}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, parseHexColor(tt.in))
		})
	}
}
