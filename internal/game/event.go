package game

import (
	"encoding/json"
	"sync"
	"time"
)

// EventType enum for event classification
type EventType uint8

const (
	EventTypeUnknown EventType = iota
	EventTypeTick              // Tick boundary with timing
	EventTypeSnapshot          // Published state after an unpaused tick
	EventTypeEnemyHit          // One applied bullet or lightning hit
	EventTypePlayerHit         // Enemy bullet or contact on the player
	EventTypeWaveStart
	EventTypeWaveComplete
	EventTypeTransitionStart
	EventTypeLightning
	EventTypeSessionStart
	EventTypeSessionStop
)

// EventVersion for backwards compatibility of the audit log
const EventVersion uint8 = 1

// String returns human-readable event type
func (t EventType) String() string {
	switch t {
	case EventTypeTick:
		return "tick"
	case EventTypeSnapshot:
		return "snapshot"
	case EventTypeEnemyHit:
		return "enemy_hit"
	case EventTypePlayerHit:
		return "player_hit"
	case EventTypeWaveStart:
		return "wave_start"
	case EventTypeWaveComplete:
		return "wave_complete"
	case EventTypeTransitionStart:
		return "transition_start"
	case EventTypeLightning:
		return "lightning"
	case EventTypeSessionStart:
		return "session_start"
	case EventTypeSessionStop:
		return "session_stop"
	default:
		return "unknown"
	}
}

// MarshalText encodes the type by name.
func (t EventType) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// Event is delivered to bus listeners. Payload holds one of the typed
// payloads below, by value.
type Event struct {
	Type    EventType
	Tick    uint64
	Time    time.Time
	Payload any
}

// Typed payloads for different event types

// TickPayload contains tick timing for metrics
type TickPayload struct {
	Duration time.Duration `json:"durationNs"`
	Enemies  int           `json:"enemies"`
	Bullets  int           `json:"bullets"`
	Culled   int           `json:"culled"`
}

// EnemyHitPayload describes one applied hit
type EnemyHitPayload struct {
	EnemyID     int64     `json:"enemyId"`
	Kind        EnemyKind `json:"kind"`
	Source      string    `json:"source"`
	Damage      int       `json:"damage"`
	Killed      bool      `json:"killed"`
	ScoreGained int       `json:"scoreGained,omitempty"`
	NewHealth   int       `json:"newHealth"`
	Score       int       `json:"score"`
}

// PlayerHitPayload describes damage dealt to the player
type PlayerHitPayload struct {
	Source  string `json:"source"` // "bullet" or "contact"
	Damage  int    `json:"damage"`
	EnemyID int64  `json:"enemyId,omitempty"`
	Total   int    `json:"total"` // hits taken this session
}

// WavePayload is shared by wave start, complete and transition events
type WavePayload struct {
	Wave    int    `json:"wave"`
	Enemies int    `json:"enemies,omitempty"`
	Score   int    `json:"score"`
	Message string `json:"message,omitempty"`
}

// LightningPayload describes one activation
type LightningPayload struct {
	Links    int     `json:"links"`
	EnemyIDs []int64 `json:"enemyIds"`
	Kills    int     `json:"kills"`
}

// SessionPayload describes session lifecycle changes
type SessionPayload struct {
	SessionID string `json:"sessionId"`
	Seed      int64  `json:"seed"`
	Reason    string `json:"reason,omitempty"`
}

// EncodePayload marshals a payload to JSON bytes
func EncodePayload(payload any) []byte {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil
	}
	return data
}

// Listener receives events on the simulation goroutine. It must return
// quickly and must not call back into the Loop that published the event.
type Listener func(Event)

type subscription struct {
	fn    Listener
	types uint64 // bitmask of EventType, 0 = all
}

// Bus is a typed publish/subscribe hub between the simulation and its
// collaborators (sockets, metrics, audit log).
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]subscription
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]subscription)}
}

// Subscribe registers fn for the given types, or for every type when none
// are given. The returned func removes the subscription.
func (b *Bus) Subscribe(fn Listener, types ...EventType) (unsubscribe func()) {
	var mask uint64
	for _, t := range types {
		mask |= 1 << t
	}

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = subscription{fn: fn, types: mask}
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev synchronously to every matching listener.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	if len(b.subs) == 0 {
		b.mu.RUnlock()
		return
	}
	targets := make([]Listener, 0, len(b.subs))
	for _, s := range b.subs {
		if s.types == 0 || s.types&(1<<ev.Type) != 0 {
			targets = append(targets, s.fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range targets {
		fn(ev)
	}
}

// Len returns the number of subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
