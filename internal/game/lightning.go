package game

import (
	"time"

	"roboclaude/internal/config"
	"roboclaude/internal/game/geom"
	"roboclaude/internal/game/spatial"
)

// LightningLink is one hop of a lightning chain. It is produced fresh on
// each activation and never stored in the entity store.
type LightningLink struct {
	From    geom.Vec  `json:"from" msgpack:"from"`
	To      geom.Vec  `json:"to" msgpack:"to"`
	EnemyID int64     `json:"enemyId" msgpack:"enemyId"`
	Kind    EnemyKind `json:"kind" msgpack:"kind"`
}

// ComputeChain builds a chain from the player center outward. Each hop goes
// to the nearest not-yet-used enemy whose center is strictly within maxRange
// of the previous hop's end; the chain stops when no such enemy exists.
func ComputeChain(p Player, enemies []Enemy, arena config.ArenaConfig, maxRange float64) []LightningLink {
	if len(enemies) == 0 {
		return nil
	}

	grid := spatial.NewGrid(arena.Width, arena.Height, 100, len(enemies))
	grid.Rebuild(len(enemies), func(i int) (float64, float64) {
		c := enemies[i].Center()
		return c.X, c.Y
	})

	used := make([]bool, len(enemies))
	var chain []LightningLink
	pos := p.Center()

	for {
		id, ok := grid.Nearest(pos.X, pos.Y, maxRange, func(id uint32) (float64, bool) {
			i := int(id)
			if used[i] {
				return 0, false
			}
			d := geom.Distance(pos, enemies[i].Center())
			return d, d < maxRange
		})
		if !ok {
			return chain
		}

		e := &enemies[id]
		to := e.Center()
		chain = append(chain, LightningLink{From: pos, To: to, EnemyID: e.ID, Kind: e.Kind})
		used[id] = true
		pos = to
	}
}

// Lightning tracks the special weapon's cooldown and the visible chain.
// All checks take the simulation time so the tick drives expiry.
type Lightning struct {
	cooldown time.Duration
	duration time.Duration

	lastFired time.Time // zero = never fired
	chain     []LightningLink
}

// NewLightning creates a ready lightning weapon.
func NewLightning(cfg config.CombatConfig) *Lightning {
	return &Lightning{
		cooldown: cfg.LightningCooldown,
		duration: cfg.LightningDuration,
	}
}

// Ready reports whether the cooldown has elapsed.
func (l *Lightning) Ready(now time.Time) bool {
	return l.Remaining(now) == 0
}

// Remaining returns the cooldown time left.
func (l *Lightning) Remaining(now time.Time) time.Duration {
	if l.lastFired.IsZero() {
		return 0
	}
	left := l.cooldown - now.Sub(l.lastFired)
	if left < 0 {
		return 0
	}
	return left
}

// CooldownPercent returns the remaining cooldown as 0-100 for the HUD.
func (l *Lightning) CooldownPercent(now time.Time) float64 {
	if l.cooldown <= 0 {
		return 0
	}
	return float64(l.Remaining(now)) / float64(l.cooldown) * 100
}

// Activate starts the cooldown and shows chain. It does nothing and returns
// false while cooling down.
func (l *Lightning) Activate(now time.Time, chain []LightningLink) bool {
	if !l.Ready(now) {
		return false
	}
	l.lastFired = now
	l.chain = chain
	return true
}

// Active returns the visible chain, or nil once the display duration is over.
func (l *Lightning) Active(now time.Time) []LightningLink {
	if len(l.chain) == 0 {
		return nil
	}
	if now.Sub(l.lastFired) >= l.duration {
		l.chain = nil
		return nil
	}
	return l.chain
}
