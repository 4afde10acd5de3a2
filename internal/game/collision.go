package game

import (
	"roboclaude/internal/config"
	"roboclaude/internal/game/geom"
	"roboclaude/internal/game/spatial"
)

// PlayerContact is an enemy touching the player.
type PlayerContact struct {
	EnemyIndex int   `json:"enemyIndex"`
	EnemyID    int64 `json:"enemyId"`
}

// PlayerHit is an enemy bullet striking the player.
type PlayerHit struct {
	BulletIndex int `json:"bulletIndex"`
	Damage      int `json:"damage"`
}

// Resolver computes hit sets from the current entities. It never mutates
// entities; the Store applies what it returns. The only state kept between
// calls is the last bullet-enemy batch, for inspection.
type Resolver struct {
	hitBuffer     float64
	ricochetRange float64
	ricochetLoss  float64
	lightningDmg  int
	grid          *spatial.Grid
	gridBuiltFor  int // len(enemies) of the grid contents, -1 when stale
	last          []CollisionResult
}

// NewResolver creates a resolver using the combat constants in cfg.
func NewResolver(cfg config.GameConfig) *Resolver {
	c := cfg.Combat
	return &Resolver{
		hitBuffer:     c.HitBuffer,
		ricochetRange: c.RicochetRange,
		ricochetLoss:  c.RicochetSpeedLoss,
		lightningDmg:  c.LightningDamage,
		grid:          spatial.NewGrid(cfg.Arena.Width, cfg.Arena.Height, 100, 64),
		gridBuiltFor:  -1,
	}
}

// CheckBulletEnemyCollisions tests every player bullet against every enemy.
//
// A hit with reflections left redirects the bullet toward the nearest other
// enemy in ricochet range: the bullet keeps flying with one fewer reflection
// and reduced speed, and remembers the enemy it left so it cannot hit it
// again on the next leg. A hit with no reflections left, or with no enemy in
// range, removes the bullet.
func (r *Resolver) CheckBulletEnemyCollisions(bullets []Bullet, enemies []Enemy) []CollisionResult {
	r.last = r.last[:0]
	r.gridBuiltFor = -1

	for bi := range bullets {
		b := &bullets[bi]
		if b.EnemyBullet {
			continue
		}

		ei := r.firstHit(b, enemies)
		if ei < 0 {
			continue
		}
		hit := &enemies[ei]

		res := CollisionResult{
			BulletIndex:  bi,
			EnemyIndex:   ei,
			EnemyID:      hit.ID,
			Damage:       max(b.Damage, 1),
			RemoveBullet: true,
		}

		if b.ReflectionsRemaining > 0 {
			if next := r.ricochetTarget(b, enemies, ei); next >= 0 {
				dir := geom.DirectionTo(b.Center(), enemies[next].Center())
				if dir.IsZero() {
					dir = b.Dir()
				}
				res.RemoveBullet = false
				res.Update = &BulletUpdate{
					DX:                   dir.X,
					DY:                   dir.Y,
					Speed:                b.Speed * r.ricochetLoss,
					ReflectionsRemaining: b.ReflectionsRemaining - 1,
					LastHitEnemyID:       hit.ID,
					TargetID:             enemies[next].ID,
				}
			}
		}

		r.last = append(r.last, res)
	}

	out := make([]CollisionResult, len(r.last))
	copy(out, r.last)
	return out
}

// firstHit returns the lowest-index enemy within collision radius of b,
// skipping the enemy the bullet just ricocheted off.
func (r *Resolver) firstHit(b *Bullet, enemies []Enemy) int {
	bc := b.Center()
	for i := range enemies {
		e := &enemies[i]
		if b.LastHitEnemyID != 0 && e.ID == b.LastHitEnemyID {
			continue
		}
		radius := (b.Size+e.Size)/2 + r.hitBuffer
		if geom.Within(bc, e.Center(), radius) {
			return i
		}
	}
	return -1
}

// ricochetTarget finds the nearest enemy other than exclude whose center is
// strictly within ricochet range of the bullet center.
func (r *Resolver) ricochetTarget(b *Bullet, enemies []Enemy, exclude int) int {
	if r.gridBuiltFor != len(enemies) {
		r.grid.Rebuild(len(enemies), func(i int) (float64, float64) {
			c := enemies[i].Center()
			return c.X, c.Y
		})
		r.gridBuiltFor = len(enemies)
	}

	bc := b.Center()
	id, ok := r.grid.Nearest(bc.X, bc.Y, r.ricochetRange, func(id uint32) (float64, bool) {
		i := int(id)
		if i == exclude || i >= len(enemies) {
			return 0, false
		}
		d := geom.Distance(bc, enemies[i].Center())
		return d, d < r.ricochetRange
	})
	if !ok {
		return -1
	}
	return int(id)
}

// CheckPlayerEnemyCollision returns the first enemy overlapping the player.
// Nothing is reported while invincible.
func (r *Resolver) CheckPlayerEnemyCollision(p Player, enemies []Enemy, invincible bool) (PlayerContact, bool) {
	if invincible {
		return PlayerContact{}, false
	}
	for i := range enemies {
		e := &enemies[i]
		if geom.BoxesOverlap(p.X, p.Y, p.Size, e.X, e.Y, e.Size) {
			return PlayerContact{EnemyIndex: i, EnemyID: e.ID}, true
		}
	}
	return PlayerContact{}, false
}

// CheckLightningCollisions maps each chain link to its enemy's current index.
// Links whose enemy has since died are dropped. Every hit uses NoBullet and
// the configured lightning damage.
func (r *Resolver) CheckLightningCollisions(chain []LightningLink, enemies []Enemy) []CollisionResult {
	results := make([]CollisionResult, 0, len(chain))
	for _, link := range chain {
		idx := indexOfEnemyID(enemies, link.EnemyID)
		if idx < 0 {
			continue
		}
		results = append(results, CollisionResult{
			BulletIndex: NoBullet,
			EnemyIndex:  idx,
			EnemyID:     link.EnemyID,
			Damage:      r.lightningDmg,
		})
	}
	return results
}

// CheckEnemyBulletPlayerCollisions returns every enemy bullet overlapping the
// player, in bullet order.
func (r *Resolver) CheckEnemyBulletPlayerCollisions(bullets []Bullet, p Player, invincible bool) []PlayerHit {
	if invincible {
		return nil
	}
	var hits []PlayerHit
	for i := range bullets {
		b := &bullets[i]
		if !b.EnemyBullet {
			continue
		}
		if geom.BoxesOverlap(b.X, b.Y, b.Size, p.X, p.Y, p.Size) {
			hits = append(hits, PlayerHit{BulletIndex: i, Damage: max(b.Damage, 1)})
		}
	}
	return hits
}

// LastResults returns a copy of the most recent bullet-enemy batch.
func (r *Resolver) LastResults() []CollisionResult {
	out := make([]CollisionResult, len(r.last))
	copy(out, r.last)
	return out
}
