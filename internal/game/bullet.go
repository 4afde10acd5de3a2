package game

import (
	"math"

	"roboclaude/internal/game/geom"
)

// Seeking bullets only acquire targets inside this half-angle of their heading.
const seekConeHalfAngle = math.Pi / 2

// bulletMover advances one bullet by one tick.
type bulletMover func(b Bullet, enemies []Enemy, turnRate float64) Bullet

// bulletMoves is the per-kind dispatch table.
var bulletMoves = [...]bulletMover{
	BulletStraight: moveStraight,
	BulletSeeking:  moveSeeking,
}

// MoveBullets returns the per-tick movement function for all bullet kinds.
// turnRate is the fraction of heading error a seeking bullet corrects per tick.
func MoveBullets(turnRate float64) BulletMoveFunc {
	return func(b Bullet, enemies []Enemy) Bullet {
		if int(b.Kind) < len(bulletMoves) {
			return bulletMoves[b.Kind](b, enemies, turnRate)
		}
		return moveStraight(b, enemies, turnRate)
	}
}

func moveStraight(b Bullet, _ []Enemy, _ float64) Bullet {
	b.X += b.DX * b.Speed
	b.Y += b.DY * b.Speed
	return b
}

// moveSeeking advances along the current heading, then bends the heading
// toward the tracked enemy. A missing target is replaced by the nearest enemy
// in the forward cone; with none, the bullet flies straight.
func moveSeeking(b Bullet, enemies []Enemy, turnRate float64) Bullet {
	from := b.Center()
	heading := geom.Heading(b.Dir())

	target := -1
	if b.TargetID != 0 {
		target = indexOfEnemyID(enemies, b.TargetID)
	}
	if target < 0 {
		target = acquireInCone(from, heading, enemies)
	}

	b.X += b.DX * b.Speed
	b.Y += b.DY * b.Speed

	if target < 0 {
		b.TargetID = 0
		return b
	}

	want := geom.Heading(geom.DirectionTo(from, enemies[target].Center()))
	dir := geom.FromAngle(heading + geom.AngleBetween(heading, want)*turnRate)
	b.DX, b.DY = dir.X, dir.Y
	b.TargetID = enemies[target].ID
	return b
}

// acquireInCone returns the index of the nearest enemy whose bearing from
// `from` is within the forward cone around heading, or -1.
func acquireInCone(from geom.Vec, heading float64, enemies []Enemy) int {
	best := -1
	bestD := math.Inf(1)
	for i := range enemies {
		c := enemies[i].Center()
		bearing := math.Atan2(c.Y-from.Y, c.X-from.X)
		if math.Abs(geom.AngleBetween(heading, bearing)) >= seekConeHalfAngle {
			continue
		}
		if d := geom.Distance(from, c); d < bestD {
			best, bestD = i, d
		}
	}
	return best
}

func indexOfEnemyID(enemies []Enemy, id int64) int {
	for i := range enemies {
		if enemies[i].ID == id {
			return i
		}
	}
	return -1
}
