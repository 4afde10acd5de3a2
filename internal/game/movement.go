package game

import (
	"math"
	"math/rand"
	"time"

	"roboclaude/internal/config"
	"roboclaude/internal/game/geom"
)

// clusterWallMargin keeps a charging cluster center this far from the walls.
const clusterWallMargin = 25

// MovePlayer moves p along the input direction at p.Speed, normalized so
// diagonals are not faster, and keeps the box inside the arena.
func MovePlayer(p Player, in Input, arena config.ArenaConfig) Player {
	dx, dy := in.Direction()
	if dx == 0 && dy == 0 {
		return p
	}
	dir := geom.Normalize(dx, dy)
	p.X = geom.Clamp(p.X+dir.X*p.Speed, 0, arena.Width-p.Size)
	p.Y = geom.Clamp(p.Y+dir.Y*p.Speed, 0, arena.Height-p.Size)
	return p
}

// MoveEnemies returns the per-enemy movement policy for one tick:
// stationary enemies hold, floaters orbit their cluster, everything else
// chases the player until within chaseMin.
func MoveEnemies(clusters *ClusterTable, arena config.ArenaConfig, chaseMin float64, now time.Time) EnemyMoveFunc {
	return func(e Enemy, p Player) Enemy {
		switch {
		case e.Stationary:
			return e
		case e.Floater:
			return moveFloater(e, p, clusters, arena, now)
		default:
			return moveChaser(e, p, chaseMin)
		}
	}
}

func moveChaser(e Enemy, p Player, chaseMin float64) Enemy {
	from, to := e.Center(), p.Center()
	if geom.Distance(from, to) <= chaseMin {
		return e
	}
	dir := geom.DirectionTo(from, to)
	e.X += dir.X * e.Speed
	e.Y += dir.Y * e.Speed
	return e
}

func moveFloater(e Enemy, p Player, clusters *ClusterTable, arena config.ArenaConfig, now time.Time) Enemy {
	center := geom.Vec{X: e.Orbit.CenterX, Y: e.Orbit.CenterY}

	if cid := e.Orbit.ClusterID; cid != 0 && clusters != nil {
		if clusters.IsClusterController(e.ID, cid) {
			clusters.advance(cid, p, now)
		}
		if c, ok := clusters.Center(cid); ok {
			center = c
		}
	}

	e.Orbit.CenterX, e.Orbit.CenterY = center.X, center.Y
	e.Orbit.Angle = math.Mod(e.Orbit.Angle+e.Orbit.Speed, 2*math.Pi)
	e.X = geom.Clamp(center.X+math.Cos(e.Orbit.Angle)*e.Orbit.Radius, 0, arena.Width-e.Size)
	e.Y = geom.Clamp(center.Y+math.Sin(e.Orbit.Angle)*e.Orbit.Radius, 0, arena.Height-e.Size)
	return e
}

// clusterState is the shared drift state of one floater cluster.
type clusterState struct {
	controllerID int64
	center       geom.Vec
	charging     bool
	dir          geom.Vec
	nextCharge   time.Time
}

// ClusterTable holds the shared state of every floater cluster, keyed by
// cluster id. One member per cluster, the controller, advances the shared
// center each tick; the rest read it.
type ClusterTable struct {
	clusters map[int]*clusterState
	rng      *rand.Rand

	width, height float64
	chargeSpeed   float64
	dwellMin      time.Duration
	dwellMax      time.Duration

	// scratch for BeginTick
	firstMember map[int]int64
	alive       map[int]bool
}

// NewClusterTable creates an empty table. rng drives dwell times.
func NewClusterTable(cfg config.GameConfig, rng *rand.Rand) *ClusterTable {
	return &ClusterTable{
		clusters:    make(map[int]*clusterState),
		rng:         rng,
		width:       cfg.Arena.Width,
		height:      cfg.Arena.Height,
		chargeSpeed: cfg.Combat.ClusterChargeSpeed,
		dwellMin:    cfg.Combat.ClusterDwellMin,
		dwellMax:    cfg.Combat.ClusterDwellMax,
		firstMember: make(map[int]int64),
		alive:       make(map[int]bool),
	}
}

// Reset forgets every cluster.
func (t *ClusterTable) Reset() {
	clear(t.clusters)
}

// Len returns the number of tracked clusters.
func (t *ClusterTable) Len() int { return len(t.clusters) }

// BeginTick registers clusters seen for the first time, drops clusters with
// no live members and re-elects a controller when the previous one died.
// The new controller is the first live member in list order.
func (t *ClusterTable) BeginTick(enemies []Enemy, now time.Time) {
	clear(t.firstMember)
	clear(t.alive)

	for i := range enemies {
		e := &enemies[i]
		cid := e.Orbit.ClusterID
		if !e.Floater || cid == 0 {
			continue
		}
		st, ok := t.clusters[cid]
		if !ok {
			st = &clusterState{
				controllerID: e.ID,
				center:       geom.Vec{X: e.Orbit.CenterX, Y: e.Orbit.CenterY},
				nextCharge:   now.Add(t.dwell()),
			}
			t.clusters[cid] = st
		}
		if _, seen := t.firstMember[cid]; !seen {
			t.firstMember[cid] = e.ID
		}
		if e.ID == st.controllerID {
			t.alive[cid] = true
		}
	}

	for cid, st := range t.clusters {
		first, hasMembers := t.firstMember[cid]
		if !hasMembers {
			delete(t.clusters, cid)
			continue
		}
		if !t.alive[cid] {
			st.controllerID = first
		}
	}
}

// IsClusterController reports whether enemyID drives clusterID this tick.
func (t *ClusterTable) IsClusterController(enemyID int64, clusterID int) bool {
	st, ok := t.clusters[clusterID]
	return ok && st.controllerID == enemyID
}

// Controller returns the controller id of clusterID.
func (t *ClusterTable) Controller(clusterID int) (int64, bool) {
	st, ok := t.clusters[clusterID]
	if !ok {
		return 0, false
	}
	return st.controllerID, true
}

// Center returns the shared center of clusterID.
func (t *ClusterTable) Center(clusterID int) (geom.Vec, bool) {
	st, ok := t.clusters[clusterID]
	if !ok {
		return geom.Vec{}, false
	}
	return st.center, true
}

// Charging reports whether clusterID is currently charging.
func (t *ClusterTable) Charging(clusterID int) bool {
	st, ok := t.clusters[clusterID]
	return ok && st.charging
}

// advance moves the cluster one tick: dwell until the timer expires, then
// charge in a straight line toward where the player was, stopping at a wall.
func (t *ClusterTable) advance(clusterID int, p Player, now time.Time) {
	st, ok := t.clusters[clusterID]
	if !ok {
		return
	}

	if !st.charging {
		if now.Before(st.nextCharge) {
			return
		}
		dir := geom.DirectionTo(st.center, p.Center())
		if dir.IsZero() {
			st.nextCharge = now.Add(t.dwell())
			return
		}
		st.charging = true
		st.dir = dir
	}

	next := st.center.Add(st.dir.Scale(t.chargeSpeed))
	minX, maxX := float64(clusterWallMargin), t.width-clusterWallMargin
	minY, maxY := float64(clusterWallMargin), t.height-clusterWallMargin
	if next.X < minX || next.X > maxX || next.Y < minY || next.Y > maxY {
		next.X = geom.Clamp(next.X, minX, maxX)
		next.Y = geom.Clamp(next.Y, minY, maxY)
		st.charging = false
		st.nextCharge = now.Add(t.dwell())
	}
	st.center = next
}

func (t *ClusterTable) dwell() time.Duration {
	span := t.dwellMax - t.dwellMin
	if span <= 0 {
		return t.dwellMin
	}
	return t.dwellMin + time.Duration(t.rng.Int63n(int64(span)))
}
