package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"roboclaude/internal/config"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionLimit    = errors.New("session limit reached")
	ErrNotStarted      = errors.New("session not started")
)

// Session is one single-player game: a loop plus its bookkeeping.
type Session struct {
	ID        string
	CreatedAt time.Time

	loop       *Loop
	started    atomic.Bool
	lastActive atomic.Int64 // unix nanos
	clients    atomic.Int32

	closeMu    sync.Mutex
	closers    map[uint64]func()
	nextCloser uint64
	closed     bool
}

// SessionInfo is the listing view of a session.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Started   bool      `json:"started"`
	Running   bool      `json:"running"`
	Paused    bool      `json:"paused"`
	Phase     Phase     `json:"phase"`
	Wave      int       `json:"wave"`
	Score     int       `json:"score"`
	Enemies   int       `json:"enemies"`
	Bullets   int       `json:"bullets"`
	Tick      uint64    `json:"tick"`
	Clients   int       `json:"clients"`
	Seed      int64     `json:"seed"`
}

// Loop returns the session's simulation loop.
func (s *Session) Loop() *Loop { return s.loop }

// Start opens the start gate and runs the session's ticker.
func (s *Session) Start() {
	s.started.Store(true)
	s.Touch()
	s.loop.Start()
}

// Started reports whether Start has been called.
func (s *Session) Started() bool { return s.started.Load() }

// TriggerLightning fires the special weapon. It fails before Start.
func (s *Session) TriggerLightning() ([]LightningLink, []AppliedHit, error) {
	if !s.Started() {
		return nil, nil, fmt.Errorf("%w: %s", ErrNotStarted, s.ID)
	}
	s.Touch()
	return s.loop.TriggerLightning()
}

// Touch marks the session as recently used.
func (s *Session) Touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// LastActive returns when the session was last touched.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// AddClient registers an attached viewer; the returned func detaches it.
func (s *Session) AddClient() (release func()) {
	s.clients.Add(1)
	s.Touch()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.clients.Add(-1)
			s.Touch()
		})
	}
}

// Clients returns the number of attached viewers.
func (s *Session) Clients() int { return int(s.clients.Load()) }

// OnClose registers fn to run when the session is closed. If the session is
// already closed fn runs immediately. The returned func deregisters fn.
func (s *Session) OnClose(fn func()) (deregister func()) {
	s.closeMu.Lock()
	if s.closed {
		s.closeMu.Unlock()
		fn()
		return func() {}
	}
	if s.closers == nil {
		s.closers = make(map[uint64]func())
	}
	s.nextCloser++
	id := s.nextCloser
	s.closers[id] = fn
	s.closeMu.Unlock()

	return func() {
		s.closeMu.Lock()
		delete(s.closers, id)
		s.closeMu.Unlock()
	}
}

// closerCount returns how many close callbacks are registered.
func (s *Session) closerCount() int {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return len(s.closers)
}

// Info returns the listing view.
func (s *Session) Info() SessionInfo {
	snap := s.loop.Snapshots().Latest()
	info := SessionInfo{
		ID:        s.ID,
		CreatedAt: s.CreatedAt,
		Started:   s.Started(),
		Running:   s.loop.Running(),
		Paused:    s.loop.Paused(),
		Clients:   s.Clients(),
		Seed:      s.loop.Seed(),
	}
	if snap != nil {
		info.Phase = snap.Phase
		info.Wave = snap.Wave
		info.Score = snap.Score
		info.Enemies = len(snap.Enemies)
		info.Bullets = len(snap.Bullets)
		info.Tick = snap.Tick
	}
	return info
}

func (s *Session) close(reason string) {
	s.loop.Stop()
	s.loop.Bus().Publish(Event{Type: EventTypeSessionStop, Time: time.Now(), Payload: SessionPayload{
		SessionID: s.ID, Seed: s.loop.Seed(), Reason: reason,
	}})

	s.closeMu.Lock()
	s.closed = true
	ids := make([]uint64, 0, len(s.closers))
	for id := range s.closers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	closers := make([]func(), 0, len(ids))
	for _, id := range ids {
		closers = append(closers, s.closers[id])
	}
	s.closers = nil
	s.closeMu.Unlock()

	// Registration order
	for _, fn := range closers {
		fn()
	}
}

// Manager owns every live session, keyed by uuid.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg         config.GameConfig
	maxSessions int
	idleTimeout time.Duration

	hooks []func(*Session)
}

// NewManager creates a manager. maxSessions <= 0 means unlimited and
// idleTimeout <= 0 disables reaping.
func NewManager(cfg config.GameConfig, maxSessions int, idleTimeout time.Duration) *Manager {
	return &Manager{
		sessions:    make(map[string]*Session),
		cfg:         cfg,
		maxSessions: maxSessions,
		idleTimeout: idleTimeout,
	}
}

// OnCreate registers a hook run for every new session before it is
// returned to the caller. Hooks typically subscribe to the session bus.
func (m *Manager) OnCreate(fn func(*Session)) {
	m.mu.Lock()
	m.hooks = append(m.hooks, fn)
	m.mu.Unlock()
}

// Create starts tracking a new stopped session. seed 0 picks a random seed.
func (m *Manager) Create(seed int64) (*Session, error) {
	id := uuid.NewString()

	m.mu.Lock()
	if m.maxSessions > 0 && len(m.sessions) >= m.maxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w (%d)", ErrSessionLimit, m.maxSessions)
	}
	s := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		loop:      NewLoop(m.cfg, LoopOptions{Name: id[:8], Seed: seed}),
	}
	s.Touch()
	m.sessions[id] = s
	hooks := slices.Clone(m.hooks)
	m.mu.Unlock()

	for _, h := range hooks {
		h(s)
	}
	s.loop.Bus().Publish(Event{Type: EventTypeSessionStart, Time: time.Now(), Payload: SessionPayload{
		SessionID: id, Seed: s.loop.Seed(),
	}})
	log.Printf("🆕 Session %s created (seed %d)", id, s.loop.Seed())
	return s, nil
}

// Get returns the session with id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// List returns every session, oldest first.
func (m *Manager) List() []SessionInfo {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].CreatedAt.Before(sessions[j].CreatedAt)
	})
	out := make([]SessionInfo, len(sessions))
	for i, s := range sessions {
		out[i] = s.Info()
	}
	return out
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete stops and forgets a session.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	s.close("deleted")
	log.Printf("🗑️ Session %s deleted", id)
	return nil
}

// Reap closes sessions with no clients that have been idle longer than the
// idle timeout. It returns how many were closed.
func (m *Manager) Reap(now time.Time) int {
	if m.idleTimeout <= 0 {
		return 0
	}

	var stale []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.Clients() == 0 && now.Sub(s.LastActive()) > m.idleTimeout {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.close("idle")
		log.Printf("🧹 Session %s reaped after %v idle", s.ID, m.idleTimeout)
	}
	return len(stale)
}

// RunReaper calls Reap every interval until ctx is done.
func (m *Manager) RunReaper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.Reap(now)
		}
	}
}

// CloseAll stops every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.close("shutdown")
	}
}
