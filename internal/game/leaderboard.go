package game

import (
	"sort"
	"sync"
	"time"
)

// DefaultLeaderboardSize is how many sessions the high-score table keeps.
const DefaultLeaderboardSize = 100

// LeaderboardEntry is one session's best run.
type LeaderboardEntry struct {
	SessionID string    `json:"sessionId"`
	Score     int       `json:"score"`
	Wave      int       `json:"wave"`
	Rank      int       `json:"rank"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Leaderboard ranks sessions by score, then by wave reached; earlier
// entries win ties. It is bounded: once full, a new session only gets in by
// beating the lowest entry.
//
// Operations:
//   - Record: O(n) for n <= capacity
//   - Rank: O(n)
//   - Top: O(k)
type Leaderboard struct {
	mu       sync.RWMutex
	entries  []LeaderboardEntry // sorted, best first
	capacity int
}

// NewLeaderboard creates a table holding at most capacity sessions.
func NewLeaderboard(capacity int) *Leaderboard {
	if capacity <= 0 {
		capacity = DefaultLeaderboardSize
	}
	return &Leaderboard{
		entries:  make([]LeaderboardEntry, 0, capacity),
		capacity: capacity,
	}
}

// Record stores a session's score if it improves on what the table has.
// Returns the session's rank afterwards (1 = top), or 0 if it is not ranked.
func (lb *Leaderboard) Record(sessionID string, score, wave int, at time.Time) int {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if i := lb.indexOf(sessionID); i >= 0 {
		cur := lb.entries[i]
		if score < cur.Score || (score == cur.Score && wave <= cur.Wave) {
			return i + 1
		}
		lb.entries = append(lb.entries[:i], lb.entries[i+1:]...)
	}

	e := LeaderboardEntry{SessionID: sessionID, Score: score, Wave: wave, UpdatedAt: at}
	pos := sort.Search(len(lb.entries), func(i int) bool {
		return outranks(e, lb.entries[i])
	})
	if pos >= lb.capacity {
		return 0
	}

	lb.entries = append(lb.entries, LeaderboardEntry{})
	copy(lb.entries[pos+1:], lb.entries[pos:])
	lb.entries[pos] = e
	if len(lb.entries) > lb.capacity {
		lb.entries = lb.entries[:lb.capacity]
	}
	return pos + 1
}

// outranks reports whether a sorts strictly before b.
func outranks(a, b LeaderboardEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.Wave > b.Wave
}

func (lb *Leaderboard) indexOf(sessionID string) int {
	for i := range lb.entries {
		if lb.entries[i].SessionID == sessionID {
			return i
		}
	}
	return -1
}

// Rank returns a session's rank (1-indexed), or 0 if it is not on the table.
func (lb *Leaderboard) Rank(sessionID string) int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return lb.indexOf(sessionID) + 1
}

// Top returns the best n entries with their ranks filled in.
func (lb *Leaderboard) Top(n int) []LeaderboardEntry {
	lb.mu.RLock()
	defer lb.mu.RUnlock()

	n = min(max(n, 0), len(lb.entries))
	out := make([]LeaderboardEntry, n)
	copy(out, lb.entries[:n])
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// Len returns the number of ranked sessions.
func (lb *Leaderboard) Len() int {
	lb.mu.RLock()
	defer lb.mu.RUnlock()
	return len(lb.entries)
}

// Attach records the session's score whenever it kills an enemy or clears a
// wave.
func (lb *Leaderboard) Attach(sessionID string, bus *Bus) (detach func()) {
	wave := 1
	return bus.Subscribe(func(ev Event) {
		switch p := ev.Payload.(type) {
		case WavePayload:
			wave = p.Wave
			lb.Record(sessionID, p.Score, wave, ev.Time)
		case EnemyHitPayload:
			if p.Killed {
				lb.Record(sessionID, p.Score, wave, ev.Time)
			}
		}
	}, EventTypeEnemyHit, EventTypeWaveStart, EventTypeWaveComplete)
}
