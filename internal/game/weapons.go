package game

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"roboclaude/internal/game/geom"
)

// WeaponMode selects what auto-fire produces.
type WeaponMode uint8

const (
	WeaponStandard WeaponMode = iota
	WeaponHoming
	WeaponSpread
	WeaponLaser

	weaponModeCount
)

// MaxReflections is the default ricochet cap.
const MaxReflections = 9

// Spread shot fans out this far either side of the aim line.
const spreadAngle = 0.2

var (
	ErrUnknownWeapon      = errors.New("unknown weapon")
	ErrInvalidReflections = errors.New("reflections out of range")
)

// Weapon is the stat block for one mode.
type Weapon struct {
	Mode   WeaponMode `json:"mode"`
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Kind   BulletKind `json:"kind"`
	Color  string     `json:"color"`
	Speed  float64    `json:"speed"`
	Size   float64    `json:"size"`
	Damage int        `json:"damage"`
	Length float64    `json:"length,omitempty"`
	Count  int        `json:"count"` // bullets per shot
}

// Weapons is the arsenal, indexed by mode.
var Weapons = [weaponModeCount]Weapon{
	WeaponStandard: {
		Mode: WeaponStandard, ID: "standard", Name: "Standard",
		Kind: BulletStraight, Color: "#FBBF24", Speed: 10, Size: 5, Damage: 1, Count: 1,
	},
	WeaponHoming: {
		Mode: WeaponHoming, ID: "homing", Name: "Homing Rockets",
		Kind: BulletSeeking, Color: "#FF6B6B", Speed: 8, Size: 5, Damage: 1, Count: 1,
	},
	WeaponSpread: {
		Mode: WeaponSpread, ID: "spread", Name: "Spread Shot",
		Kind: BulletStraight, Color: "#4ECDC4", Speed: 10, Size: 8, Damage: 1, Count: 3,
	},
	WeaponLaser: {
		Mode: WeaponLaser, ID: "laser", Name: "Laser",
		Kind: BulletStraight, Color: "#E94560", Speed: 20, Size: 15, Damage: 2, Length: 30, Count: 1,
	},
}

// String returns the weapon id.
func (m WeaponMode) String() string {
	if m < weaponModeCount {
		return Weapons[m].ID
	}
	return "unknown"
}

// MarshalText encodes the mode by id.
func (m WeaponMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText decodes a weapon id.
func (m *WeaponMode) UnmarshalText(b []byte) error {
	mode, err := ParseWeapon(string(b))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// ParseWeapon resolves a weapon id.
func ParseWeapon(id string) (WeaponMode, error) {
	for _, w := range Weapons {
		if w.ID == id {
			return w.Mode, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownWeapon, id)
}

// FireFunc produces the bullets for one auto-fire shot from p toward aim.
type FireFunc func(p Player, aim geom.Vec) []Bullet

// Arsenal holds the selected weapon and ricochet budget. Selection can
// change from any goroutine; Fire reads the current values.
type Arsenal struct {
	mode           atomic.Uint32
	reflections    atomic.Int32
	maxReflections int
}

// NewArsenal returns an arsenal with the standard weapon and no ricochets.
// Budgets above maxReflections are rejected; a negative cap means MaxReflections.
func NewArsenal(maxReflections int) *Arsenal {
	if maxReflections < 0 {
		maxReflections = MaxReflections
	}
	return &Arsenal{maxReflections: maxReflections}
}

// MaxReflections returns the largest budget SetReflections accepts.
func (a *Arsenal) MaxReflections() int { return a.maxReflections }

// Mode returns the selected weapon.
func (a *Arsenal) Mode() WeaponMode { return WeaponMode(a.mode.Load()) }

// Weapon returns the selected weapon's stats.
func (a *Arsenal) Weapon() Weapon { return Weapons[a.Mode()] }

// Select switches weapon.
func (a *Arsenal) Select(m WeaponMode) error {
	if m >= weaponModeCount {
		return fmt.Errorf("%w: %d", ErrUnknownWeapon, m)
	}
	a.mode.Store(uint32(m))
	return nil
}

// Cycle advances to the next weapon and returns it.
func (a *Arsenal) Cycle() WeaponMode {
	for {
		cur := a.mode.Load()
		next := (cur + 1) % uint32(weaponModeCount)
		if a.mode.CompareAndSwap(cur, next) {
			return WeaponMode(next)
		}
	}
}

// Reflections returns the ricochet budget given to new bullets.
func (a *Arsenal) Reflections() int { return int(a.reflections.Load()) }

// SetReflections sets the ricochet budget, 0 through the arsenal's cap.
func (a *Arsenal) SetReflections(n int) error {
	if n < 0 || n > a.maxReflections {
		return fmt.Errorf("%w: %d (max %d)", ErrInvalidReflections, n, a.maxReflections)
	}
	a.reflections.Store(int32(n))
	return nil
}

// Fire implements FireFunc for the selected weapon.
func (a *Arsenal) Fire(p Player, aim geom.Vec) []Bullet {
	w := a.Weapon()
	c := p.Center()
	angle := math.Atan2(aim.Y-c.Y, aim.X-c.X)

	base := Bullet{
		// spawn offset matches a 5-unit bullet centered on the player
		X:                    c.X - 2.5,
		Y:                    c.Y - 2.5,
		Speed:                w.Speed,
		Size:                 w.Size,
		Damage:               w.Damage,
		Kind:                 w.Kind,
		Color:                w.Color,
		Length:               w.Length,
		ReflectionsRemaining: a.Reflections(),
	}

	if w.Count <= 1 {
		d := geom.FromAngle(angle)
		base.DX, base.DY = d.X, d.Y
		return []Bullet{base}
	}

	out := make([]Bullet, 0, w.Count)
	half := w.Count / 2
	for i := 0; i < w.Count; i++ {
		b := base
		d := geom.FromAngle(angle + float64(i-half)*spreadAngle)
		b.DX, b.DY = d.X, d.Y
		out = append(out, b)
	}
	return out
}
