package game

import (
	"encoding/json"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

const (
	EventBufferSize       = 1024                   // Circular buffer size
	MaxEventsPerSec       = 10000                  // Global rate limit
	MaxEventsPerSession   = 200                    // Per-session rate limit per second
	BatchFlushSize        = 64                     // Events per batch write
	BatchFlushInterval    = 100 * time.Millisecond // How often to flush
	SessionLimiterCleanup = 5 * time.Minute        // Cleanup interval for session limiters
)

// LogEntry is one line of the JSONL audit trail.
type LogEntry struct {
	Version  uint8           `json:"v"`
	Sequence uint64          `json:"seq"`
	Session  string          `json:"session"`
	Type     EventType       `json:"type"`
	Tick     uint64          `json:"tick"`
	Time     time.Time       `json:"time"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// EventLog is a bounded, rate-limited audit trail of session events.
// Multiple sessions emit concurrently; a single writer goroutine drains the
// ring and appends newline-delimited JSON.
type EventLog struct {
	// Circular buffer
	bufMu     sync.Mutex
	buffer    [EventBufferSize]LogEntry
	writeHead uint64 // producer position
	readHead  uint64 // consumer position

	// Rate limiting so a runaway session cannot flood the disk
	globalLimiter   *rate.Limiter
	sessionLimiters sync.Map // map[string]*sessionLimiterEntry

	// Async writer
	writerWg sync.WaitGroup
	stopChan chan struct{}
	stopOnce sync.Once
	running  atomic.Bool

	// File output
	filePath string
	file     *os.File
	fileMu   sync.Mutex

	droppedCount atomic.Uint64
	totalCount   atomic.Uint64
	writtenCount atomic.Uint64
}

type sessionLimiterEntry struct {
	limiter  *rate.Limiter
	lastUsed atomic.Int64 // unix nanos
}

// NewEventLog creates a new bounded event log
func NewEventLog() *EventLog {
	return &EventLog{
		globalLimiter: rate.NewLimiter(MaxEventsPerSec, MaxEventsPerSec/10),
		stopChan:      make(chan struct{}),
	}
}

// Start opens filePath for append and begins the writer goroutines.
// An empty path keeps the log in memory only.
func (el *EventLog) Start(filePath string) error {
	if el.running.Load() {
		return nil
	}

	el.filePath = filePath
	if filePath != "" {
		file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		el.file = file
	}

	el.running.Store(true)
	el.writerWg.Add(2)
	go el.writerLoop()
	go el.cleanupLoop()

	return nil
}

// Stop flushes pending entries and closes the file.
func (el *EventLog) Stop() {
	el.stopOnce.Do(func() {
		el.running.Store(false)
		close(el.stopChan)
		el.writerWg.Wait()

		el.fileMu.Lock()
		if el.file != nil {
			el.file.Close()
		}
		el.fileMu.Unlock()
	})
}

// Attach subscribes the log to a session bus. Per-tick traffic (tick and
// snapshot events) is not recorded.
func (el *EventLog) Attach(sessionID string, bus *Bus) (detach func()) {
	return bus.Subscribe(func(ev Event) {
		el.Emit(sessionID, ev)
	},
		EventTypeEnemyHit,
		EventTypePlayerHit,
		EventTypeWaveStart,
		EventTypeWaveComplete,
		EventTypeTransitionStart,
		EventTypeLightning,
		EventTypeSessionStart,
		EventTypeSessionStop,
	)
}

// Emit queues an event for sessionID.
// Returns false if rate limited or the log is stopped.
func (el *EventLog) Emit(sessionID string, ev Event) bool {
	if !el.running.Load() {
		return false
	}

	if !el.globalLimiter.Allow() {
		el.droppedCount.Add(1)
		return false
	}
	if sessionID != "" && !el.sessionLimiter(sessionID).Allow() {
		el.droppedCount.Add(1)
		return false
	}

	entry := LogEntry{
		Version: EventVersion,
		Session: sessionID,
		Type:    ev.Type,
		Tick:    ev.Tick,
		Time:    ev.Time,
		Payload: EncodePayload(ev.Payload),
	}

	el.bufMu.Lock()
	el.writeHead++
	// Full buffer drops the oldest entry
	if el.writeHead-el.readHead > EventBufferSize {
		el.readHead++
		el.droppedCount.Add(1)
	}
	entry.Sequence = el.writeHead
	el.buffer[el.writeHead%EventBufferSize] = entry
	el.bufMu.Unlock()

	el.totalCount.Add(1)
	return true
}

func (el *EventLog) sessionLimiter(sessionID string) *rate.Limiter {
	now := time.Now().UnixNano()
	if v, ok := el.sessionLimiters.Load(sessionID); ok {
		e := v.(*sessionLimiterEntry)
		e.lastUsed.Store(now)
		return e.limiter
	}

	entry := &sessionLimiterEntry{
		limiter: rate.NewLimiter(MaxEventsPerSession, MaxEventsPerSession/2),
	}
	entry.lastUsed.Store(now)
	actual, _ := el.sessionLimiters.LoadOrStore(sessionID, entry)
	return actual.(*sessionLimiterEntry).limiter
}

// writerLoop batches and writes entries to disk asynchronously
func (el *EventLog) writerLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(BatchFlushInterval)
	defer ticker.Stop()

	batch := make([]LogEntry, 0, BatchFlushSize)

	for {
		select {
		case <-el.stopChan:
			// Final flush
			for {
				batch = el.collectBatch(batch[:0])
				if len(batch) == 0 {
					return
				}
				el.flushBatch(batch)
			}

		case <-ticker.C:
			batch = el.collectBatch(batch[:0])
			if len(batch) > 0 {
				el.flushBatch(batch)
			}
		}
	}
}

// cleanupLoop removes stale session limiters
func (el *EventLog) cleanupLoop() {
	defer el.writerWg.Done()

	ticker := time.NewTicker(SessionLimiterCleanup)
	defer ticker.Stop()

	for {
		select {
		case <-el.stopChan:
			return
		case <-ticker.C:
			el.cleanupSessionLimiters(time.Now().Add(-SessionLimiterCleanup))
		}
	}
}

func (el *EventLog) cleanupSessionLimiters(cutoff time.Time) {
	el.sessionLimiters.Range(func(key, value any) bool {
		if value.(*sessionLimiterEntry).lastUsed.Load() < cutoff.UnixNano() {
			el.sessionLimiters.Delete(key)
		}
		return true
	})
}

// collectBatch reads available entries from the ring
func (el *EventLog) collectBatch(batch []LogEntry) []LogEntry {
	el.bufMu.Lock()
	defer el.bufMu.Unlock()

	for el.readHead < el.writeHead && len(batch) < BatchFlushSize {
		el.readHead++
		batch = append(batch, el.buffer[el.readHead%EventBufferSize])
	}
	return batch
}

// flushBatch appends entries as newline-delimited JSON
func (el *EventLog) flushBatch(batch []LogEntry) {
	el.fileMu.Lock()
	defer el.fileMu.Unlock()

	if el.file == nil {
		return
	}

	for _, entry := range batch {
		data, err := json.Marshal(entry)
		if err != nil {
			continue
		}
		data = append(data, '\n')
		if _, err := el.file.Write(data); err != nil {
			continue
		}
		el.writtenCount.Add(1)
	}
}

// EventLogStats is reported on the debug endpoint.
type EventLogStats struct {
	Total    uint64 `json:"total"`
	Dropped  uint64 `json:"dropped"`
	Written  uint64 `json:"written"`
	Pending  uint64 `json:"pending"`
	Sessions int    `json:"sessions"`
	Running  bool   `json:"running"`
}

// Stats returns counters for monitoring
func (el *EventLog) Stats() EventLogStats {
	el.bufMu.Lock()
	pending := el.writeHead - el.readHead
	el.bufMu.Unlock()

	sessions := 0
	el.sessionLimiters.Range(func(_, _ any) bool {
		sessions++
		return true
	})

	return EventLogStats{
		Total:    el.totalCount.Load(),
		Dropped:  el.droppedCount.Load(),
		Written:  el.writtenCount.Load(),
		Pending:  pending,
		Sessions: sessions,
		Running:  el.running.Load(),
	}
}
