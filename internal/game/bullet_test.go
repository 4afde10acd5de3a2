package game

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeker(cx, cy, dx, dy float64) Bullet {
	b := testBullet(cx, cy, dx, dy)
	b.Kind = BulletSeeking
	b.Speed = 8
	return b
}

func TestStraightBulletMoves(t *testing.T) {
	move := MoveBullets(0.1)
	b := move(testBullet(100, 100, 0.6, 0.8), nil)
	assert.InDelta(t, 103.5, b.X, 1e-9)
	assert.InDelta(t, 105.5, b.Y, 1e-9)
	assert.Equal(t, 0.6, b.DX)
}

func TestSeekingBulletSteersByTurnRate(t *testing.T) {
	move := MoveBullets(0.1)
	enemies := []Enemy{testEnemy(5, 200, 200, 2)}

	b := move(seeker(100, 100, 1, 0), enemies)

	// moves along the old heading first
	assert.InDelta(t, 105.5, b.X, 1e-9)
	assert.InDelta(t, 97.5, b.Y, 1e-9)

	// then turns a tenth of the way toward the target at 45 degrees
	assert.InDelta(t, math.Pi/40, math.Atan2(b.DY, b.DX), 1e-9)
	assert.InDelta(t, 1.0, math.Hypot(b.DX, b.DY), 1e-9)
	assert.Equal(t, int64(5), b.TargetID)
}

func TestSeekingBulletIgnoresEnemiesOutsideCone(t *testing.T) {
	tests := []struct {
		name  string
		enemy Enemy
	}{
		{"behind", testEnemy(1, 0, 100, 2)},
		{"perpendicular", testEnemy(1, 100, 200, 2)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := MoveBullets(0.1)(seeker(100, 100, 1, 0), []Enemy{tt.enemy})
			assert.Equal(t, 1.0, b.DX)
			assert.Equal(t, 0.0, b.DY)
			assert.Zero(t, b.TargetID)
		})
	}
}

func TestSeekingBulletPicksNearestInCone(t *testing.T) {
	enemies := []Enemy{
		testEnemy(1, 400, 110, 2),
		testEnemy(2, 200, 90, 2),
		testEnemy(3, 20, 100, 2), // closer but behind
	}
	b := MoveBullets(0.1)(seeker(100, 100, 1, 0), enemies)
	assert.Equal(t, int64(2), b.TargetID)
	assert.Less(t, b.DY, 0.0)
}

func TestSeekingBulletKeepsTrackedTarget(t *testing.T) {
	// a locked target is followed even once it falls behind
	b := seeker(100, 100, 1, 0)
	b.TargetID = 3
	enemies := []Enemy{testEnemy(1, 200, 100, 2), testEnemy(3, 100, 0, 2)}

	b = MoveBullets(0.1)(b, enemies)
	assert.Equal(t, int64(3), b.TargetID)
	assert.InDelta(t, -math.Pi/20, math.Atan2(b.DY, b.DX), 1e-9)
}

func TestSeekingBulletReacquiresWhenTargetDies(t *testing.T) {
	b := seeker(100, 100, 1, 0)
	b.TargetID = 99
	b = MoveBullets(0.1)(b, []Enemy{testEnemy(4, 300, 100, 2)})
	assert.Equal(t, int64(4), b.TargetID)

	b.TargetID = 99
	b = MoveBullets(0.1)(b, nil)
	assert.Zero(t, b.TargetID)
}

func TestSeekingBulletTurnsTheShortWay(t *testing.T) {
	// heading near -π, target near +π: the error wraps to a small angle
	b := seeker(100, 100, math.Cos(-3.1), math.Sin(-3.1))
	b.TargetID = 1
	target := testEnemy(1, 100+100*math.Cos(3.1), 100+100*math.Sin(3.1), 2)

	out := MoveBullets(0.5)(b, []Enemy{target})
	require.Equal(t, int64(1), out.TargetID)
	// turning the long way would swing the heading through zero
	assert.Greater(t, math.Abs(math.Atan2(out.DY, out.DX)), 3.0)
}

func TestUnknownBulletKindFliesStraight(t *testing.T) {
	b := testBullet(100, 100, 1, 0)
	b.Kind = BulletKind(42)
	out := MoveBullets(0.1)(b, []Enemy{testEnemy(1, 200, 150, 2)})
	assert.InDelta(t, 107.5, out.X, 1e-9)
	assert.Equal(t, 0.0, out.DY)
}
