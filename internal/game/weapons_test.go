package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roboclaude/internal/game/geom"
)

// TestParseWeapon tests weapon lookup by id
func TestParseWeapon(t *testing.T) {
	tests := []struct {
		id      string
		want    WeaponMode
		wantErr bool
	}{
		{"standard", WeaponStandard, false},
		{"homing", WeaponHoming, false},
		{"spread", WeaponSpread, false},
		{"laser", WeaponLaser, false},
		{"katana", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, err := ParseWeapon(tt.id)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownWeapon)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.id, got.String())
		})
	}
}

// TestWeaponTable verifies every weapon has usable stats
func TestWeaponTable(t *testing.T) {
	for mode, w := range Weapons {
		assert.Equal(t, WeaponMode(mode), w.Mode)
		assert.NotEmpty(t, w.ID)
		assert.NotEmpty(t, w.Name)
		assert.Positive(t, w.Speed, w.ID)
		assert.Positive(t, w.Size, w.ID)
		assert.Positive(t, w.Damage, w.ID)
		assert.Positive(t, w.Count, w.ID)
	}
	assert.Equal(t, BulletSeeking, Weapons[WeaponHoming].Kind)
	assert.Equal(t, 2, Weapons[WeaponLaser].Damage)
}

func TestArsenalSelection(t *testing.T) {
	a := NewArsenal(MaxReflections)
	assert.Equal(t, WeaponStandard, a.Mode())

	assert.Equal(t, WeaponHoming, a.Cycle())
	assert.Equal(t, WeaponSpread, a.Cycle())
	assert.Equal(t, WeaponLaser, a.Cycle())
	assert.Equal(t, WeaponStandard, a.Cycle(), "cycling wraps")

	require.NoError(t, a.Select(WeaponLaser))
	assert.Equal(t, "Laser", a.Weapon().Name)
	assert.ErrorIs(t, a.Select(WeaponMode(9)), ErrUnknownWeapon)
	assert.Equal(t, WeaponLaser, a.Mode())
}

func TestArsenalReflections(t *testing.T) {
	tests := []struct {
		n       int
		wantErr bool
	}{
		{0, false},
		{4, false},
		{MaxReflections, false},
		{MaxReflections + 1, true},
		{-1, true},
	}

	for _, tt := range tests {
		a := NewArsenal(MaxReflections)
		require.NoError(t, a.SetReflections(2))
		err := a.SetReflections(tt.n)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrInvalidReflections)
			assert.Equal(t, 2, a.Reflections())
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tt.n, a.Reflections())
	}
}

func TestArsenalReflectionCap(t *testing.T) {
	tests := []struct {
		name    string
		cap     int
		n       int
		wantCap int
		wantErr bool
	}{
		{"lower cap rejects", 3, 4, 3, true},
		{"lower cap accepts", 3, 3, 3, false},
		{"zero cap", 0, 1, 0, true},
		{"higher cap", 12, 12, 12, false},
		{"negative cap uses default", -1, MaxReflections, MaxReflections, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArsenal(tt.cap)
			assert.Equal(t, tt.wantCap, a.MaxReflections())
			err := a.SetReflections(tt.n)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidReflections)
				assert.Zero(t, a.Reflections())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.n, a.Reflections())
		})
	}
}

func TestLoopUsesConfiguredReflectionCap(t *testing.T) {
	cfg := testConfig()
	cfg.Combat.MaxReflections = 2
	l := NewLoop(cfg, LoopOptions{Clock: NewManualClock(testEpoch), Seed: 1, Quiet: true})

	assert.Equal(t, 2, l.Arsenal().MaxReflections())
	assert.NoError(t, l.Arsenal().SetReflections(2))
	assert.ErrorIs(t, l.Arsenal().SetReflections(3), ErrInvalidReflections)
}

func TestArsenalFire(t *testing.T) {
	p := centeredPlayer(400, 300)
	aim := geom.Vec{X: 400, Y: 500}

	tests := []struct {
		mode      WeaponMode
		count     int
		wantKind  BulletKind
		wantSpeed float64
	}{
		{WeaponStandard, 1, BulletStraight, 10},
		{WeaponHoming, 1, BulletSeeking, 8},
		{WeaponSpread, 3, BulletStraight, 10},
		{WeaponLaser, 1, BulletStraight, 20},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			a := NewArsenal(MaxReflections)
			require.NoError(t, a.Select(tt.mode))
			require.NoError(t, a.SetReflections(5))

			bullets := a.Fire(p, aim)
			require.Len(t, bullets, tt.count)
			for _, b := range bullets {
				assert.Equal(t, tt.wantKind, b.Kind)
				assert.Equal(t, tt.wantSpeed, b.Speed)
				assert.Equal(t, 5, b.ReflectionsRemaining)
				assert.Equal(t, 397.5, b.X)
				assert.Equal(t, 297.5, b.Y)
				assert.InDelta(t, 1.0, math.Hypot(b.DX, b.DY), 1e-9)
				assert.False(t, b.EnemyBullet)
			}
		})
	}
}

func TestSpreadFansAroundAim(t *testing.T) {
	a := NewArsenal(MaxReflections)
	require.NoError(t, a.Select(WeaponSpread))

	bullets := a.Fire(centeredPlayer(400, 300), geom.Vec{X: 500, Y: 300})
	require.Len(t, bullets, 3)
	assert.InDelta(t, -spreadAngle, math.Atan2(bullets[0].DY, bullets[0].DX), 1e-9)
	assert.InDelta(t, 0, math.Atan2(bullets[1].DY, bullets[1].DX), 1e-9)
	assert.InDelta(t, spreadAngle, math.Atan2(bullets[2].DY, bullets[2].DX), 1e-9)
}
