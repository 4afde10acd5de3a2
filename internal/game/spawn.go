package game

import (
	"math"
	"math/rand"
	"time"

	"roboclaude/internal/config"
	"roboclaude/internal/game/geom"
)

const (
	spawnEdgeMargin    = 25
	spawnMaxAttempts   = 1000
	spheroidShootEvery = 3000 * time.Millisecond
)

// archetype is the stat block an enemy is stamped from.
type archetype struct {
	Kind         EnemyKind
	Color        string
	Size         float64
	BaseSpeed    float64
	SpeedPerWave float64
	Health       int
	Points       int
}

// chaserArchetypes are picked uniformly for the base enemies of every wave.
var chaserArchetypes = [...]archetype{
	{Kind: EnemyGrunt, Color: "#8B5CF6", Size: 25, BaseSpeed: 1, SpeedPerWave: 0.2, Health: 2, Points: 100},
	{Kind: EnemyEnforcer, Color: "#EF4444", Size: 20, BaseSpeed: 2, SpeedPerWave: 0.3, Health: 2, Points: 150},
	{Kind: EnemyTank, Color: "#3B82F6", Size: 35, BaseSpeed: 0.7, SpeedPerWave: 0.1, Health: 4, Points: 300},
}

var spheroidArchetype = archetype{Kind: EnemySpheroid, Color: "#10B981", Size: 25, BaseSpeed: 0.8, Health: 5, Points: 200}

// EnemyCount is the number of chasers in a wave.
func EnemyCount(wave int) int { return 3 + wave/2 }

// ClusterCount is the number of spheroid clusters in a wave.
func ClusterCount(wave int) int {
	if wave < 2 {
		return 0
	}
	return (wave-1)/3 + 1
}

// ClusterSize is the number of spheroids per cluster.
func ClusterSize(wave int) int { return 3 + wave/4 }

// Spawner synthesizes wave batches. Enemy and cluster ids are unique for
// the lifetime of the spawner.
type Spawner struct {
	rng            *rand.Rand
	width, height  float64
	minDistance    float64
	clusterMinDist float64

	nextEnemyID   int64
	nextClusterID int
}

// NewSpawner creates a spawner drawing from rng.
func NewSpawner(cfg config.GameConfig, rng *rand.Rand) *Spawner {
	return &Spawner{
		rng:            rng,
		width:          cfg.Arena.Width,
		height:         cfg.Arena.Height,
		minDistance:    cfg.Combat.SpawnMinDistance,
		clusterMinDist: cfg.Combat.ClusterMinDistance,
		nextEnemyID:    1,
		nextClusterID:  1,
	}
}

// Generate builds the batch for wave, placed away from p.
func (s *Spawner) Generate(wave int, p Player) []Enemy {
	wave = max(wave, 1)
	n := EnemyCount(wave)
	enemies := make([]Enemy, 0, n+ClusterCount(wave)*ClusterSize(wave))

	for i := 0; i < n; i++ {
		a := chaserArchetypes[s.rng.Intn(len(chaserArchetypes))]
		pos := s.randomPosition(p, s.minDistance)
		enemies = append(enemies, s.stamp(a, wave, pos))
	}

	for c := 0; c < ClusterCount(wave); c++ {
		enemies = s.appendCluster(enemies, wave, p)
	}
	return enemies
}

func (s *Spawner) appendCluster(enemies []Enemy, wave int, p Player) []Enemy {
	center := s.randomPosition(p, s.clusterMinDist)
	cid := s.nextClusterID
	s.nextClusterID++

	members := ClusterSize(wave)
	a := spheroidArchetype
	for m := 0; m < members; m++ {
		angle := float64(m) / float64(members) * 2 * math.Pi
		radius := 30 + s.rng.Float64()*15

		pos := geom.Vec{
			X: geom.Clamp(center.X+math.Cos(angle)*radius, a.Size, s.width-a.Size),
			Y: geom.Clamp(center.Y+math.Sin(angle)*radius, a.Size, s.height-a.Size),
		}
		e := s.stamp(a, wave, pos)
		e.Floater = true
		e.CanShoot = true
		e.ShootInterval = spheroidShootEvery
		e.Orbit = Orbit{
			ClusterID: cid,
			CenterX:   center.X,
			CenterY:   center.Y,
			Angle:     angle,
			Radius:    radius,
			Speed:     0.02 + s.rng.Float64()*0.01,
		}
		enemies = append(enemies, e)
	}
	return enemies
}

func (s *Spawner) stamp(a archetype, wave int, pos geom.Vec) Enemy {
	id := s.nextEnemyID
	s.nextEnemyID++
	return Enemy{
		ID:        id,
		X:         pos.X,
		Y:         pos.Y,
		Size:      a.Size,
		Speed:     a.BaseSpeed + float64(wave)*a.SpeedPerWave,
		Health:    a.Health,
		MaxHealth: a.Health,
		Points:    a.Points,
		Kind:      a.Kind,
		Color:     a.Color,
	}
}

// randomPosition samples uniformly inside the edge margin, resampling until
// the point is at least minDist from the player center. After
// spawnMaxAttempts the farthest sample seen is used.
func (s *Spawner) randomPosition(p Player, minDist float64) geom.Vec {
	pc := p.Center()
	var best geom.Vec
	bestD := -1.0
	for range spawnMaxAttempts {
		v := geom.Vec{
			X: s.rng.Float64()*(s.width-2*spawnEdgeMargin) + spawnEdgeMargin,
			Y: s.rng.Float64()*(s.height-2*spawnEdgeMargin) + spawnEdgeMargin,
		}
		d := geom.Distance(pc, v)
		if d >= minDist {
			return v
		}
		if d > bestD {
			best, bestD = v, d
		}
	}
	return best
}

var waveMessages = [...]string{
	"Wave Complete!",
	"Impressive!",
	"Keep it up!",
	"They're getting stronger!",
	"You're unstoppable!",
	"Another wave down!",
	"They fear you now!",
	"Bring on the next wave!",
	"Enemies defeated!",
	"Victory is yours!",
}

// WaveMessage returns the banner text shown when wave is cleared.
func WaveMessage(wave int) string {
	if wave < 0 {
		wave = -wave
	}
	return waveMessages[wave%len(waveMessages)]
}
