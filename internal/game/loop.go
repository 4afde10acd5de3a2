package game

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"roboclaude/internal/config"
	"roboclaude/internal/game/geom"
)

var (
	ErrPaused            = errors.New("game is paused")
	ErrLightningCooldown = errors.New("lightning is cooling down")
)

// LoopOptions configures a Loop. Zero values pick the defaults.
type LoopOptions struct {
	Name   string   // used in log lines
	Clock  Clock    // default SystemClock
	Seed   int64    // 0 = derived from the wall clock
	Fire   FireFunc // default: the loop's Arsenal
	Bus    *Bus     // default: a new bus
	Player *Player  // default: centered 20x20 player
	Quiet  bool     // suppress lifecycle log lines
}

// Loop is the simulation clock. It owns the store, resolver, wave director
// and special weapon of one session, and advances them one fixed tick at a
// time, either from its own ticker (Start) or from the caller (Update).
//
// All mutation happens under mu. Listeners on the bus run inside the tick.
type Loop struct {
	mu sync.Mutex

	name  string
	quiet bool
	cfg   config.GameConfig
	clock Clock
	seed  int64

	store      *Store
	resolver   *Resolver
	director   *Director
	lightning  *Lightning
	arsenal    *Arsenal
	fire       FireFunc
	moveBullet BulletMoveFunc
	bounds     geom.Bounds

	bus       *Bus
	snapshots *SnapshotBuffer

	input       Input
	prevSpecial bool
	paused      bool
	pausedAt    time.Time     // clock reading when the pause began
	pausedFor   time.Duration // total clock time spent paused
	invincible  bool
	lastShot    time.Time
	contactID   int64
	playerHits  int
	tickCount   uint64

	tickRate int
	running  bool
	ticker   *time.Ticker
	stopChan chan struct{}
	done     chan struct{}
}

// NewLoop creates a stopped loop at wave 1 with no enemies. The first tick
// generates the first wave.
func NewLoop(cfg config.GameConfig, opts LoopOptions) *Loop {
	clock := opts.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	bus := opts.Bus
	if bus == nil {
		bus = NewBus()
	}

	rng := rand.New(rand.NewSource(seed))

	player := Player{
		X:     cfg.Arena.Width/2 - cfg.Combat.PlayerSize/2,
		Y:     cfg.Arena.Height/2 - cfg.Combat.PlayerSize/2,
		Size:  cfg.Combat.PlayerSize,
		Speed: cfg.Combat.PlayerSpeed,
	}
	if opts.Player != nil {
		player = *opts.Player
	}

	l := &Loop{
		name:       opts.Name,
		quiet:      opts.Quiet,
		cfg:        cfg,
		clock:      clock,
		seed:       seed,
		store:      NewStore(),
		resolver:   NewResolver(cfg),
		director:   NewDirector(cfg, rng),
		lightning:  NewLightning(cfg.Combat),
		arsenal:    NewArsenal(cfg.Combat.MaxReflections),
		moveBullet: MoveBullets(cfg.Combat.SeekTurnRate),
		bounds:     geom.Rect(cfg.Arena.Width, cfg.Arena.Height),
		bus:        bus,
		snapshots:  NewSnapshotBuffer(),
		tickRate:   cfg.Arena.TickRate,
	}
	l.fire = opts.Fire
	if l.fire == nil {
		l.fire = l.arsenal.Fire
	}

	_ = l.store.Init(player, nil, nil, 0, 1)
	l.snapshots.Publish(l.buildSnapshot(l.now()))
	return l
}

// Start begins the fixed-rate ticker goroutine.
func (l *Loop) Start() {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.stopChan = make(chan struct{})
	l.done = make(chan struct{})
	l.ticker = time.NewTicker(time.Second / time.Duration(max(l.tickRate, 1)))
	ticker, stop, done := l.ticker, l.stopChan, l.done
	l.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-ticker.C:
				l.Update()
			case <-stop:
				return
			}
		}
	}()

	l.logf("🎮 Game loop started at %d TPS (seed %d)", l.tickRate, l.seed)
}

// Stop halts the ticker and waits for the in-flight tick to finish.
// Stopping a stopped loop is a no-op.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	l.ticker.Stop()
	stop, done := l.stopChan, l.done
	l.mu.Unlock()

	close(stop)
	<-done
	l.logf("🛑 Game loop stopped at tick %d", l.TickCount())
}

// Running reports whether the ticker goroutine is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Update runs one tick. While paused it returns without touching anything.
func (l *Loop) Update() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.update()
}

func (l *Loop) update() {
	// 1. pause gate
	if l.paused {
		return
	}

	started := time.Now()
	now := l.now()
	l.tickCount++

	l.paceWaves(now)

	if l.input.Special && !l.prevSpecial {
		_, _, _ = l.triggerLightning(now)
	}
	l.prevSpecial = l.input.Special

	// 2. player
	l.store.UpdatePlayer(MovePlayer(l.store.player, l.input, l.cfg.Arena))

	// 3. enemies
	clusters := l.director.Clusters()
	clusters.BeginTick(l.store.enemies, now)
	l.store.UpdateEnemyPositions(MoveEnemies(clusters, l.cfg.Arena, l.cfg.Combat.ChaseMinDistance, now))

	// 4. bullets: move, then cull
	culled := l.store.UpdateBulletPositions(l.moveBullet, l.bounds)

	// 5. bullet vs enemy
	if results := l.resolver.CheckBulletEnemyCollisions(l.store.bullets, l.store.enemies); len(results) > 0 {
		l.publishHits(l.store.ProcessCollisions(results), now)
	}

	// 6. auto-fire
	l.autoFire(now)

	// 7. enemy fire-control
	l.enemyFire(now)

	// 8. enemy bullets and contact vs player
	l.resolvePlayerHits(now)

	// 9. wave complete
	l.checkWaveComplete(now)

	// 10. publish
	snap := l.buildSnapshot(now)
	l.snapshots.Publish(snap)
	l.bus.Publish(Event{Type: EventTypeSnapshot, Tick: l.tickCount, Time: now, Payload: snap})
	l.bus.Publish(Event{Type: EventTypeTick, Tick: l.tickCount, Time: now, Payload: TickPayload{
		Duration: time.Since(started),
		Enemies:  len(l.store.enemies),
		Bullets:  len(l.store.bullets),
		Culled:   culled,
	}})
}

// paceWaves ends an expired transition and installs the next batch when the
// director is ready for one.
func (l *Loop) paceWaves(now time.Time) {
	l.director.CheckTransition(now)
	if !l.director.ShouldGenerate() {
		return
	}
	enemies, ok := l.director.GenerateEnemies(l.store.player)
	if !ok {
		return
	}
	l.store.SetEnemies(enemies)
	l.store.SetWave(l.director.Wave())

	l.logf("🌊 Wave %d started with %d enemies", l.director.Wave(), len(enemies))
	l.bus.Publish(Event{Type: EventTypeWaveStart, Tick: l.tickCount, Time: now, Payload: WavePayload{
		Wave:    l.director.Wave(),
		Enemies: len(enemies),
		Score:   l.store.score,
	}})
}

func (l *Loop) checkWaveComplete(now time.Time) {
	if len(l.store.enemies) != 0 || !l.director.InProgress() {
		return
	}
	if !l.director.CompleteWave() {
		return
	}
	wave := l.director.Wave()
	msg := WaveMessage(wave)
	l.logf("🏁 Wave %d complete (score %d)", wave, l.store.score)
	l.bus.Publish(Event{Type: EventTypeWaveComplete, Tick: l.tickCount, Time: now, Payload: WavePayload{
		Wave: wave, Score: l.store.score, Message: msg,
	}})

	if l.director.StartTransition(now) {
		l.bus.Publish(Event{Type: EventTypeTransitionStart, Tick: l.tickCount, Time: now, Payload: WavePayload{
			Wave: wave, Score: l.store.score, Message: msg,
		}})
	}
}

func (l *Loop) autoFire(now time.Time) {
	aim := l.input.Aim
	if aim == nil || !l.input.Locked {
		return
	}
	if !l.lastShot.IsZero() && now.Sub(l.lastShot) < l.cfg.Combat.FireInterval {
		return
	}
	l.lastShot = now

	if len(l.store.bullets) >= MaxBullets {
		return
	}
	for _, b := range l.fire(l.store.player, *aim) {
		l.store.AddBullet(b)
	}
}

func (l *Loop) enemyFire(now time.Time) {
	c := l.cfg.Combat
	target := l.store.player.Center()
	for _, e := range l.store.ReadyShooters(now) {
		from := e.Center()
		dir := geom.DirectionTo(from, target)
		if dir.IsZero() {
			continue
		}
		l.store.AddBullet(Bullet{
			X:           from.X,
			Y:           from.Y,
			DX:          dir.X,
			DY:          dir.Y,
			Speed:       c.EnemyBulletSpeed,
			Size:        c.EnemyBulletSize,
			Damage:      c.EnemyBulletDamage,
			Kind:        BulletStraight,
			Color:       c.EnemyBulletColor,
			EnemyBullet: true,
		})
	}
}

func (l *Loop) resolvePlayerHits(now time.Time) {
	hits := l.resolver.CheckEnemyBulletPlayerCollisions(l.store.bullets, l.store.player, l.invincible)
	// remove from the back so earlier indices stay valid
	for i := len(hits) - 1; i >= 0; i-- {
		h := hits[i]
		l.store.RemoveBullet(h.BulletIndex)
		l.playerHits++
		l.bus.Publish(Event{Type: EventTypePlayerHit, Tick: l.tickCount, Time: now, Payload: PlayerHitPayload{
			Source: "bullet", Damage: h.Damage, Total: l.playerHits,
		}})
	}

	contact, ok := l.resolver.CheckPlayerEnemyCollision(l.store.player, l.store.enemies, l.invincible)
	if !ok {
		l.contactID = 0
		return
	}
	if contact.EnemyID == l.contactID {
		return
	}
	l.contactID = contact.EnemyID
	l.playerHits++
	l.bus.Publish(Event{Type: EventTypePlayerHit, Tick: l.tickCount, Time: now, Payload: PlayerHitPayload{
		Source: "contact", Damage: 1, EnemyID: contact.EnemyID, Total: l.playerHits,
	}})
}

func (l *Loop) publishHits(applied []AppliedHit, now time.Time) {
	for _, h := range applied {
		l.bus.Publish(Event{Type: EventTypeEnemyHit, Tick: l.tickCount, Time: now, Payload: EnemyHitPayload{
			EnemyID:     h.Outcome.EnemyID,
			Kind:        h.Outcome.Kind,
			Source:      h.Source.String(),
			Damage:      max(h.Result.Damage, 1),
			Killed:      h.Outcome.Killed,
			ScoreGained: h.Outcome.ScoreGained,
			NewHealth:   h.Outcome.NewHealth,
			Score:       l.store.score,
		}})
	}
}

// TriggerLightning fires the special weapon from the player's position.
// An empty chain neither applies damage nor starts the cooldown.
func (l *Loop) TriggerLightning() ([]LightningLink, []AppliedHit, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.triggerLightning(l.now())
}

func (l *Loop) triggerLightning(now time.Time) ([]LightningLink, []AppliedHit, error) {
	if l.paused {
		return nil, nil, ErrPaused
	}
	if !l.lightning.Ready(now) {
		return nil, nil, ErrLightningCooldown
	}

	chain := ComputeChain(l.store.player, l.store.enemies, l.cfg.Arena, l.cfg.Combat.LightningRange)
	if len(chain) == 0 {
		return nil, nil, nil
	}
	l.lightning.Activate(now, chain)
	applied := l.processLightning(chain, now)

	ids := make([]int64, len(chain))
	for i, link := range chain {
		ids[i] = link.EnemyID
	}
	kills := 0
	for _, h := range applied {
		if h.Outcome.Killed {
			kills++
		}
	}
	l.logf("⚡ Lightning chain of %d (%d kills)", len(chain), kills)
	l.bus.Publish(Event{Type: EventTypeLightning, Tick: l.tickCount, Time: now, Payload: LightningPayload{
		Links: len(chain), EnemyIDs: ids, Kills: kills,
	}})
	return chain, applied, nil
}

// ProcessLightning applies chain damage through the collision batch path
// using NoBullet. Links to enemies that are already gone are skipped.
func (l *Loop) ProcessLightning(chain []LightningLink) []AppliedHit {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.processLightning(chain, l.now())
}

func (l *Loop) processLightning(chain []LightningLink, now time.Time) []AppliedHit {
	results := l.resolver.CheckLightningCollisions(chain, l.store.enemies)
	applied := l.store.ProcessCollisions(results)
	l.publishHits(applied, now)
	l.checkWaveComplete(now)
	return applied
}

// SetInput replaces the control state read by the next tick.
func (l *Loop) SetInput(in Input) {
	l.mu.Lock()
	l.input = in
	l.mu.Unlock()
}

// SetPaused gates the tick. Simulation time stands still while paused, so
// every timer resumes where it stopped. A change republishes the current
// snapshot so readers see the new flag without waiting for a tick.
func (l *Loop) SetPaused(paused bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused == paused {
		return
	}
	if paused {
		l.pausedAt = l.clock.Now()
	} else {
		l.pausedFor += l.clock.Now().Sub(l.pausedAt)
	}
	l.paused = paused
	l.snapshots.Publish(l.buildSnapshot(l.now()))
}

// now returns simulation time: the clock minus every paused span.
func (l *Loop) now() time.Time {
	if l.paused {
		return l.pausedAt.Add(-l.pausedFor)
	}
	return l.clock.Now().Add(-l.pausedFor)
}

// Paused reports the pause gate.
func (l *Loop) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// SetInvincible suppresses player hit detection.
func (l *Loop) SetInvincible(v bool) {
	l.mu.Lock()
	l.invincible = v
	l.mu.Unlock()
}

// State returns a copy of the store.
func (l *Loop) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.store.State()
}

// WaveState returns a copy of the director flags.
func (l *Loop) WaveState() WaveState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.director.State()
}

// Phase returns the director phase.
func (l *Loop) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.director.Phase()
}

// LastResults returns the last bullet-enemy batch computed.
func (l *Loop) LastResults() []CollisionResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.resolver.LastResults()
}

// TickCount returns the number of unpaused ticks run.
func (l *Loop) TickCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tickCount
}

// Seed returns the RNG seed.
func (l *Loop) Seed() int64 { return l.seed }

// Bus returns the event bus.
func (l *Loop) Bus() *Bus { return l.bus }

// Snapshots returns the snapshot buffer.
func (l *Loop) Snapshots() *SnapshotBuffer { return l.snapshots }

// Arsenal returns the weapon selection.
func (l *Loop) Arsenal() *Arsenal { return l.arsenal }

// Clock returns the loop's clock.
func (l *Loop) Clock() Clock { return l.clock }

func (l *Loop) buildSnapshot(now time.Time) *Snapshot {
	st := l.store.State()
	ws := l.director.State()
	phase := l.director.Phase()

	snap := &Snapshot{
		Tick:         l.tickCount,
		TimeMs:       now.UnixMilli(),
		Player:       st.Player,
		Enemies:      st.Enemies,
		Bullets:      st.Bullets,
		Score:        st.Score,
		Wave:         st.Wave,
		WaveState:    ws,
		Phase:        phase,
		TransitionMs: l.director.TransitionRemaining(now).Milliseconds(),
		Started:      l.tickCount > 0,
		Paused:       l.paused,
		Weapon:       l.arsenal.Mode(),
		Reflections:  l.arsenal.Reflections(),
		Lightning: LightningView{
			Ready:           l.lightning.Ready(now),
			CooldownPercent: l.lightning.CooldownPercent(now),
			Chain:           append([]LightningLink(nil), l.lightning.Active(now)...),
		},
		PlayerHits: l.playerHits,
	}
	if phase == PhaseComplete || phase == PhaseTransitioning {
		snap.Message = WaveMessage(ws.Wave)
	}
	return snap
}

func (l *Loop) logf(format string, args ...any) {
	if l.quiet {
		return
	}
	if l.name != "" {
		format = "[" + l.name + "] " + format
	}
	log.Printf(format, args...)
}
