package game

import (
	"fmt"
	"math/rand"
	"time"

	"roboclaude/internal/config"
)

// Phase is the Director's position in the wave cycle:
// Generating -> InProgress -> Complete -> Transitioning -> Generating.
type Phase uint8

const (
	PhaseGenerating Phase = iota
	PhaseInProgress
	PhaseComplete
	PhaseTransitioning
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseGenerating:
		return "generating"
	case PhaseInProgress:
		return "in_progress"
	case PhaseComplete:
		return "complete"
	case PhaseTransitioning:
		return "transitioning"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase by name.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText decodes a phase name.
func (p *Phase) UnmarshalText(b []byte) error {
	for c := PhaseGenerating; c <= PhaseTransitioning; c++ {
		if c.String() == string(b) {
			*p = c
			return nil
		}
	}
	return fmt.Errorf("unknown phase %q", b)
}

// WaveState is the Director's flag set. Starting is only true before the
// first wave is generated.
type WaveState struct {
	Wave             int  `json:"wave" msgpack:"wave"`
	EnemiesGenerated bool `json:"enemiesGenerated" msgpack:"enemiesGenerated"`
	Complete         bool `json:"complete" msgpack:"complete"`
	Transitioning    bool `json:"transitioning" msgpack:"transitioning"`
	Starting         bool `json:"starting" msgpack:"starting"`
}

// Director runs wave progression. It never touches the entity store; the
// caller installs the batches it returns. Transitions are polled with the
// caller's clock rather than driven by a timer of their own.
type Director struct {
	state      WaveState
	transition time.Duration
	deadline   time.Time

	spawner  *Spawner
	clusters *ClusterTable
}

// NewDirector creates a Director at wave 1 in the starting state.
func NewDirector(cfg config.GameConfig, rng *rand.Rand) *Director {
	return &Director{
		state:      WaveState{Wave: 1, Starting: true},
		transition: cfg.Combat.TransitionDuration,
		spawner:    NewSpawner(cfg, rng),
		clusters:   NewClusterTable(cfg, rng),
	}
}

// GenerateEnemies returns the batch for the current wave. It returns false
// and no enemies if this wave already generated its batch.
func (d *Director) GenerateEnemies(p Player) ([]Enemy, bool) {
	if d.state.EnemiesGenerated {
		return nil, false
	}
	enemies := d.spawner.Generate(d.state.Wave, p)
	d.state.EnemiesGenerated = true
	d.state.Starting = false
	return enemies, true
}

// CompleteWave marks the wave complete and clears the cluster table.
// Only the first call per wave has an effect; it reports whether it did.
func (d *Director) CompleteWave() bool {
	if d.state.Complete {
		return false
	}
	d.state.Complete = true
	d.clusters.Reset()
	return true
}

// StartTransition begins the timed gap before the next wave. It is only
// valid once the wave is complete and not already transitioning.
func (d *Director) StartTransition(now time.Time) bool {
	if !d.state.Complete || d.state.Transitioning {
		return false
	}
	d.state.Transitioning = true
	d.deadline = now.Add(d.transition)
	return true
}

// CheckTransition ends the transition once now reaches the deadline.
func (d *Director) CheckTransition(now time.Time) bool {
	if !d.state.Transitioning || now.Before(d.deadline) {
		return false
	}
	d.EndTransition()
	return true
}

// TransitionRemaining returns the time until the next wave, or zero.
func (d *Director) TransitionRemaining(now time.Time) time.Duration {
	if !d.state.Transitioning {
		return 0
	}
	return max(d.deadline.Sub(now), 0)
}

// EndTransition advances to the next wave and resets the flags.
func (d *Director) EndTransition() {
	d.state = WaveState{Wave: d.state.Wave + 1}
	d.deadline = time.Time{}
}

// State returns a copy of the flags.
func (d *Director) State() WaveState { return d.state }

// Wave returns the current wave number.
func (d *Director) Wave() int { return d.state.Wave }

// Phase derives the single phase the flags describe.
func (d *Director) Phase() Phase {
	switch {
	case d.state.Transitioning:
		return PhaseTransitioning
	case d.state.Complete:
		return PhaseComplete
	case d.state.EnemiesGenerated:
		return PhaseInProgress
	default:
		return PhaseGenerating
	}
}

// ShouldGenerate reports whether the current wave still needs its batch.
func (d *Director) ShouldGenerate() bool {
	return !d.state.EnemiesGenerated && !d.state.Transitioning && !d.state.Complete
}

// InProgress reports whether the wave's enemies are out and not yet cleared.
func (d *Director) InProgress() bool {
	return d.state.EnemiesGenerated && !d.state.Complete && !d.state.Transitioning
}

// Clusters returns the cluster table the movement policy uses.
func (d *Director) Clusters() *ClusterTable { return d.clusters }
