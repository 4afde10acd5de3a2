package game

import (
	"fmt"
	"time"

	"roboclaude/internal/game/geom"
)

// Entity defaults applied when a caller leaves a field zero.
const (
	DefaultEnemyHealth = 2
	DefaultEnemyPoints = 100

	// MaxBullets caps live bullets per session; auto-fire pauses at the cap.
	MaxBullets = 512
)

// Player is the single player-controlled square.
// X, Y is the top-left corner; Speed is in units per tick.
type Player struct {
	X     float64 `json:"x" msgpack:"x"`
	Y     float64 `json:"y" msgpack:"y"`
	Size  float64 `json:"size" msgpack:"size"`
	Speed float64 `json:"speed" msgpack:"speed"`
}

// Center returns the center of the player box.
func (p Player) Center() geom.Vec { return geom.Center(p.X, p.Y, p.Size) }

// EnemyKind tags the enemy archetype.
type EnemyKind uint8

const (
	EnemyGrunt EnemyKind = iota
	EnemyEnforcer
	EnemyTank
	EnemySpheroid
)

// String returns the archetype name.
func (k EnemyKind) String() string {
	switch k {
	case EnemyGrunt:
		return "grunt"
	case EnemyEnforcer:
		return "enforcer"
	case EnemyTank:
		return "tank"
	case EnemySpheroid:
		return "spheroid"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k EnemyKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *EnemyKind) UnmarshalText(b []byte) error {
	for c := EnemyGrunt; c <= EnemySpheroid; c++ {
		if c.String() == string(b) {
			*k = c
			return nil
		}
	}
	return fmt.Errorf("unknown enemy kind %q", b)
}

// Orbit is the cluster-orbit state carried by floater enemies.
// ClusterID 0 means the enemy belongs to no cluster.
type Orbit struct {
	ClusterID int     `json:"clusterId" msgpack:"clusterId"`
	CenterX   float64 `json:"centerX" msgpack:"centerX"`
	CenterY   float64 `json:"centerY" msgpack:"centerY"`
	Angle     float64 `json:"angle" msgpack:"angle"`
	Radius    float64 `json:"radius" msgpack:"radius"`
	Speed     float64 `json:"speed" msgpack:"speed"` // radians per tick
}

// Enemy is a hostile entity. Health stays within [0, MaxHealth]; an enemy
// whose health reaches zero is removed from the live list.
type Enemy struct {
	ID        int64     `json:"id" msgpack:"id"`
	X         float64   `json:"x" msgpack:"x"`
	Y         float64   `json:"y" msgpack:"y"`
	Size      float64   `json:"size" msgpack:"size"`
	Speed     float64   `json:"speed" msgpack:"speed"`
	Health    int       `json:"health" msgpack:"health"`
	MaxHealth int       `json:"maxHealth" msgpack:"maxHealth"`
	Points    int       `json:"points" msgpack:"points"`
	Kind      EnemyKind `json:"kind" msgpack:"kind"`
	Color     string    `json:"color" msgpack:"color"`

	Stationary bool `json:"stationary,omitempty" msgpack:"stationary,omitempty"`
	Floater    bool `json:"floater,omitempty" msgpack:"floater,omitempty"`

	CanShoot      bool          `json:"canShoot,omitempty" msgpack:"canShoot,omitempty"`
	ShootInterval time.Duration `json:"shootInterval,omitempty" msgpack:"shootInterval,omitempty"`
	LastShotTime  time.Time     `json:"-" msgpack:"-"` // zero until the enemy's fire timer is armed

	Orbit Orbit `json:"orbit,omitempty" msgpack:"orbit,omitempty"`
}

// Center returns the center of the enemy box.
func (e Enemy) Center() geom.Vec { return geom.Center(e.X, e.Y, e.Size) }

// BulletKind selects a bullet's movement behavior.
type BulletKind uint8

const (
	BulletStraight BulletKind = iota
	BulletSeeking
)

// String returns the kind name.
func (k BulletKind) String() string {
	switch k {
	case BulletStraight:
		return "straight"
	case BulletSeeking:
		return "seeking"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k BulletKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// UnmarshalText decodes a kind name.
func (k *BulletKind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "straight":
		*k = BulletStraight
	case "seeking":
		*k = BulletSeeking
	default:
		return fmt.Errorf("unknown bullet kind %q", b)
	}
	return nil
}

// Bullet is a projectile fired by the player or by an enemy.
// Enemy references are by id; 0 means none.
type Bullet struct {
	X      float64    `json:"x" msgpack:"x"`
	Y      float64    `json:"y" msgpack:"y"`
	DX     float64    `json:"dx" msgpack:"dx"`
	DY     float64    `json:"dy" msgpack:"dy"`
	Speed  float64    `json:"speed" msgpack:"speed"`
	Size   float64    `json:"size" msgpack:"size"`
	Damage int        `json:"damage" msgpack:"damage"`
	Kind   BulletKind `json:"kind" msgpack:"kind"`
	Color  string     `json:"color" msgpack:"color"`
	Length float64    `json:"length,omitempty" msgpack:"length,omitempty"` // drawn trail length, lasers only

	ReflectionsRemaining int   `json:"reflectionsRemaining" msgpack:"reflectionsRemaining"`
	TargetID             int64 `json:"targetId,omitempty" msgpack:"targetId,omitempty"`
	LastHitEnemyID       int64 `json:"lastHitEnemyId,omitempty" msgpack:"lastHitEnemyId,omitempty"`

	EnemyBullet bool `json:"enemyBullet,omitempty" msgpack:"enemyBullet,omitempty"`
}

// Center returns the center of the bullet box.
func (b Bullet) Center() geom.Vec { return geom.Center(b.X, b.Y, b.Size) }

// Dir returns the bullet heading as a vector.
func (b Bullet) Dir() geom.Vec { return geom.Vec{X: b.DX, Y: b.DY} }

// BulletUpdate is the patch a ricochet applies to a surviving bullet.
type BulletUpdate struct {
	DX                   float64 `json:"dx"`
	DY                   float64 `json:"dy"`
	Speed                float64 `json:"speed"`
	ReflectionsRemaining int     `json:"reflectionsRemaining"`
	LastHitEnemyID       int64   `json:"lastHitEnemyId"`
	TargetID             int64   `json:"targetId"`
}

func (u BulletUpdate) apply(b *Bullet) {
	b.DX, b.DY = u.DX, u.DY
	b.Speed = u.Speed
	b.ReflectionsRemaining = max(u.ReflectionsRemaining, 0)
	b.LastHitEnemyID = u.LastHitEnemyID
	b.TargetID = u.TargetID
}

// Input is the per-tick control state supplied by the client.
type Input struct {
	Up      bool `json:"up" msgpack:"up"`
	Down    bool `json:"down" msgpack:"down"`
	Left    bool `json:"left" msgpack:"left"`
	Right   bool `json:"right" msgpack:"right"`
	Special bool `json:"special" msgpack:"special"` // lightning, edge-triggered

	Aim    *geom.Vec `json:"aim,omitempty" msgpack:"aim,omitempty"`
	Locked bool      `json:"locked" msgpack:"locked"` // aim lock engaged
}

// Direction returns the raw movement vector from the four flags.
func (in Input) Direction() (dx, dy float64) {
	if in.Up {
		dy--
	}
	if in.Down {
		dy++
	}
	if in.Left {
		dx--
	}
	if in.Right {
		dx++
	}
	return dx, dy
}
