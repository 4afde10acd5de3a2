package game

import (
	"sync/atomic"
)

// LightningView is the HUD-facing lightning state.
type LightningView struct {
	Ready           bool            `json:"ready" msgpack:"ready"`
	CooldownPercent float64         `json:"cooldownPercent" msgpack:"cooldownPercent"`
	Chain           []LightningLink `json:"chain,omitempty" msgpack:"chain,omitempty"`
}

// Snapshot is an immutable copy of one tick's state for renderers, sockets
// and the HTTP API. Readers share the same value and must not modify it.
type Snapshot struct {
	Tick   uint64 `json:"tick" msgpack:"tick"`
	TimeMs int64  `json:"timeMs" msgpack:"timeMs"`

	Player  Player   `json:"player" msgpack:"player"`
	Enemies []Enemy  `json:"enemies" msgpack:"enemies"`
	Bullets []Bullet `json:"bullets" msgpack:"bullets"`
	Score   int      `json:"score" msgpack:"score"`
	Wave    int      `json:"wave" msgpack:"wave"`

	WaveState    WaveState `json:"waveState" msgpack:"waveState"`
	Phase        Phase     `json:"phase" msgpack:"phase"`
	TransitionMs int64     `json:"transitionMs,omitempty" msgpack:"transitionMs,omitempty"`
	Message      string    `json:"message,omitempty" msgpack:"message,omitempty"`

	Started     bool          `json:"started" msgpack:"started"`
	Paused      bool          `json:"paused" msgpack:"paused"`
	Weapon      WeaponMode    `json:"weapon" msgpack:"weapon"`
	Reflections int           `json:"reflections" msgpack:"reflections"`
	Lightning   LightningView `json:"lightning" msgpack:"lightning"`
	PlayerHits  int           `json:"playerHits" msgpack:"playerHits"`
}

// SnapshotBuffer holds the latest published snapshot.
// Publish is called from the simulation goroutine; Latest from anywhere.
type SnapshotBuffer struct {
	latest    atomic.Pointer[Snapshot]
	published atomic.Uint64
}

// NewSnapshotBuffer creates an empty buffer.
func NewSnapshotBuffer() *SnapshotBuffer {
	return &SnapshotBuffer{}
}

// Publish makes s the latest snapshot. s must not be modified afterwards.
func (b *SnapshotBuffer) Publish(s *Snapshot) {
	b.latest.Store(s)
	b.published.Add(1)
}

// Latest returns the most recent snapshot, or nil before the first publish.
func (b *SnapshotBuffer) Latest() *Snapshot {
	return b.latest.Load()
}

// Published returns how many snapshots have been published.
func (b *SnapshotBuffer) Published() uint64 {
	return b.published.Load()
}
