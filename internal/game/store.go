package game

import (
	"errors"
	"math"
	"sort"
	"time"

	"roboclaude/internal/game/geom"
)

// NoBullet is the bullet index used by hits that have no bullet (lightning).
// Results carrying it skip bullet validation, removal and patching.
const NoBullet = -1

// ErrStoreInitialized is returned by a second Init on the same store.
var ErrStoreInitialized = errors.New("store already initialized")

// State is a read-only copy of the store contents.
type State struct {
	Player  Player   `json:"player" msgpack:"player"`
	Enemies []Enemy  `json:"enemies" msgpack:"enemies"`
	Bullets []Bullet `json:"bullets" msgpack:"bullets"`
	Score   int      `json:"score" msgpack:"score"`
	Wave    int      `json:"wave" msgpack:"wave"`
}

// HitOutcome reports what a single damage application did.
type HitOutcome struct {
	EnemyID     int64     `json:"enemyId"`
	Kind        EnemyKind `json:"kind"`
	X           float64   `json:"x"`
	Y           float64   `json:"y"`
	Killed      bool      `json:"killed"`
	ScoreGained int       `json:"scoreGained,omitempty"`
	NewHealth   int       `json:"newHealth"`
}

// CollisionResult is one hit produced by the resolver and consumed by
// ProcessCollisions. EnemyID pins the enemy so an earlier kill in the same
// batch cannot redirect damage to a neighbor.
type CollisionResult struct {
	BulletIndex  int           `json:"bulletIndex"`
	EnemyIndex   int           `json:"enemyIndex"`
	EnemyID      int64         `json:"enemyId"`
	Damage       int           `json:"damage"`
	RemoveBullet bool          `json:"removeBullet"`
	Update       *BulletUpdate `json:"update,omitempty"`
}

func (r CollisionResult) source() HitSource {
	if r.BulletIndex == NoBullet {
		return SourceLightning
	}
	return SourceBullet
}

// AppliedHit pairs a result with the outcome of its damage step.
type AppliedHit struct {
	Result  CollisionResult
	Outcome HitOutcome
	Source  HitSource
}

// HitSource says what dealt the damage.
type HitSource uint8

const (
	SourceBullet HitSource = iota
	SourceLightning
)

// String returns the source name.
func (s HitSource) String() string {
	if s == SourceLightning {
		return "lightning"
	}
	return "bullet"
}

// EnemyMoveFunc computes an enemy's next state from its current one.
type EnemyMoveFunc func(e Enemy, p Player) Enemy

// BulletMoveFunc computes a bullet's next state; enemies is the live list.
type BulletMoveFunc func(b Bullet, enemies []Enemy) Bullet

// Store owns the canonical player, enemy list, bullet list, score and wave.
// It is not safe for concurrent use; the Loop serializes access.
//
// Index-based operations never panic: an out-of-range index is a no-op that
// reports false.
type Store struct {
	player  Player
	enemies []Enemy
	bullets []Bullet
	score   int
	wave    int

	nextEnemyID int64
	initialized bool
}

// NewStore creates an empty store at wave 1.
func NewStore() *Store {
	return &Store{
		enemies:     make([]Enemy, 0, 32),
		bullets:     make([]Bullet, 0, 128),
		wave:        1,
		nextEnemyID: 1,
	}
}

// Init sets the initial snapshot. It may be called once per store.
func (s *Store) Init(player Player, enemies []Enemy, bullets []Bullet, score, wave int) error {
	if s.initialized {
		return ErrStoreInitialized
	}
	s.initialized = true
	if player.Size > 0 {
		s.player = player
	}
	s.SetEnemies(enemies)
	s.bullets = append(s.bullets[:0], bullets...)
	s.score = max(score, 0)
	s.wave = max(wave, 1)
	return nil
}

// UpdatePlayer replaces the player. A non-positive or non-finite size is
// rejected and the player is left unchanged.
func (s *Store) UpdatePlayer(p Player) bool {
	if !(p.Size > 0) || math.IsInf(p.Size, 0) || math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return false
	}
	s.player = p
	return true
}

// Player returns the current player.
func (s *Store) Player() Player { return s.player }

// UpdateEnemyPositions applies move to every enemy. Ids and list length are
// preserved regardless of what move returns.
func (s *Store) UpdateEnemyPositions(move EnemyMoveFunc) {
	for i := range s.enemies {
		id := s.enemies[i].ID
		next := move(s.enemies[i], s.player)
		next.ID = id
		s.enemies[i] = next
	}
}

// UpdateBulletPositions moves every bullet, then culls those outside bounds.
// Returns the number of bullets culled.
func (s *Store) UpdateBulletPositions(move BulletMoveFunc, bounds geom.Bounds) int {
	for i := range s.bullets {
		s.bullets[i] = move(s.bullets[i], s.enemies)
	}

	// In-place filter (zero allocation)
	n := 0
	for _, b := range s.bullets {
		if bounds.Contains(b.X, b.Y) {
			s.bullets[n] = b
			n++
		}
	}
	culled := len(s.bullets) - n
	clear(s.bullets[n:])
	s.bullets = s.bullets[:n]
	return culled
}

// AddBullet appends b and returns its index.
func (s *Store) AddBullet(b Bullet) int {
	if b.ReflectionsRemaining < 0 {
		b.ReflectionsRemaining = 0
	}
	s.bullets = append(s.bullets, b)
	return len(s.bullets) - 1
}

// RemoveBullet deletes the bullet at index, shifting later bullets down.
func (s *Store) RemoveBullet(index int) bool {
	if index < 0 || index >= len(s.bullets) {
		return false
	}
	s.bullets = append(s.bullets[:index], s.bullets[index+1:]...)
	return true
}

// UpdateBullet applies a ricochet patch to the bullet at index.
func (s *Store) UpdateBullet(index int, u BulletUpdate) bool {
	if index < 0 || index >= len(s.bullets) {
		return false
	}
	u.apply(&s.bullets[index])
	return true
}

// BulletCount returns the number of live bullets.
func (s *Store) BulletCount() int { return len(s.bullets) }

// EnemyCount returns the number of live enemies.
func (s *Store) EnemyCount() int { return len(s.enemies) }

// HandleBulletEnemyCollision subtracts damage from the enemy at enemyIndex.
// When health drops to zero or below the enemy is removed and its points are
// added to the score. bulletIndex is validated unless it is NoBullet.
func (s *Store) HandleBulletEnemyCollision(bulletIndex, enemyIndex, damage int) (HitOutcome, bool) {
	if bulletIndex != NoBullet && (bulletIndex < 0 || bulletIndex >= len(s.bullets)) {
		return HitOutcome{}, false
	}
	if enemyIndex < 0 || enemyIndex >= len(s.enemies) {
		return HitOutcome{}, false
	}
	if damage <= 0 {
		damage = 1
	}

	e := s.enemies[enemyIndex]
	out := HitOutcome{EnemyID: e.ID, Kind: e.Kind, X: e.X, Y: e.Y}

	health := e.Health - damage
	if health <= 0 {
		s.score += e.Points
		s.enemies = append(s.enemies[:enemyIndex], s.enemies[enemyIndex+1:]...)
		out.Killed = true
		out.ScoreGained = e.Points
		return out, true
	}

	s.enemies[enemyIndex].Health = health
	out.NewHealth = health
	return out, true
}

// ProcessCollisions applies a batch of results. Results are applied in
// descending bullet index order so removals never shift an index that is
// still pending. For each result damage is applied first, then the bullet is
// removed or patched; removal wins when both are requested.
func (s *Store) ProcessCollisions(results []CollisionResult) []AppliedHit {
	if len(results) == 0 {
		return nil
	}

	sorted := make([]CollisionResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].BulletIndex > sorted[j].BulletIndex
	})

	applied := make([]AppliedHit, 0, len(sorted))
	for _, r := range sorted {
		if r.EnemyIndex >= 0 {
			if idx := s.resolveEnemy(r.EnemyIndex, r.EnemyID); idx >= 0 {
				if out, ok := s.HandleBulletEnemyCollision(r.BulletIndex, idx, r.Damage); ok {
					applied = append(applied, AppliedHit{Result: r, Outcome: out, Source: r.source()})
				}
			}
		}

		if r.BulletIndex == NoBullet {
			continue
		}
		if r.RemoveBullet {
			s.RemoveBullet(r.BulletIndex)
		} else if r.Update != nil {
			s.UpdateBullet(r.BulletIndex, *r.Update)
		}
	}
	return applied
}

// resolveEnemy maps a (index, id) pair to the enemy's current index, or -1
// when it is gone. id 0 trusts the index.
func (s *Store) resolveEnemy(index int, id int64) int {
	if id == 0 {
		if index < len(s.enemies) {
			return index
		}
		return -1
	}
	if index < len(s.enemies) && s.enemies[index].ID == id {
		return index
	}
	return s.indexOfEnemy(id)
}

func (s *Store) indexOfEnemy(id int64) int {
	for i := range s.enemies {
		if s.enemies[i].ID == id {
			return i
		}
	}
	return -1
}

// ReadyShooters runs the enemy fire timers. An enemy seen for the first time
// is armed at now without firing; one whose interval has elapsed is reset to
// now and returned.
func (s *Store) ReadyShooters(now time.Time) []Enemy {
	var ready []Enemy
	for i := range s.enemies {
		e := &s.enemies[i]
		if !e.CanShoot || e.ShootInterval <= 0 {
			continue
		}
		if e.LastShotTime.IsZero() {
			e.LastShotTime = now
			continue
		}
		if now.Sub(e.LastShotTime) < e.ShootInterval {
			continue
		}
		e.LastShotTime = now
		ready = append(ready, *e)
	}
	return ready
}

// State returns a defensive copy of the store.
func (s *Store) State() State {
	return State{
		Player:  s.player,
		Enemies: append([]Enemy(nil), s.enemies...),
		Bullets: append([]Bullet(nil), s.bullets...),
		Score:   s.score,
		Wave:    s.wave,
	}
}

// SetEnemies replaces the enemy list. Missing ids are assigned, missing
// health and points take their defaults and health is clamped to MaxHealth.
func (s *Store) SetEnemies(enemies []Enemy) {
	s.enemies = s.enemies[:0]
	for _, e := range enemies {
		if e.ID >= s.nextEnemyID {
			s.nextEnemyID = e.ID + 1
		}
		s.enemies = append(s.enemies, e)
	}
	for i := range s.enemies {
		e := &s.enemies[i]
		if e.ID <= 0 {
			e.ID = s.nextEnemyID
			s.nextEnemyID++
		}
		if e.MaxHealth <= 0 {
			e.MaxHealth = max(e.Health, DefaultEnemyHealth)
		}
		if e.Health <= 0 || e.Health > e.MaxHealth {
			e.Health = e.MaxHealth
		}
		if e.Points <= 0 {
			e.Points = DefaultEnemyPoints
		}
	}
}

// SetWave overrides the wave number. Values below 1 are ignored.
func (s *Store) SetWave(wave int) {
	if wave >= 1 {
		s.wave = wave
	}
}

// Score returns the current score.
func (s *Store) Score() int { return s.score }
