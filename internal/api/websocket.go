package api

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"roboclaude/internal/config"
	"roboclaude/internal/game"
)

const (
	// MaxWSConnectionsTotal is the maximum number of WebSocket connections allowed
	MaxWSConnectionsTotal = 500

	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxFrameBytes  = 4096
	eventQueueSize = 64
)

// Bus events forwarded to attached clients besides snapshots.
var forwardedEvents = []game.EventType{
	game.EventTypeWaveStart,
	game.EventTypeWaveComplete,
	game.EventTypeTransitionStart,
	game.EventTypeLightning,
	game.EventTypePlayerHit,
	game.EventTypeSessionStop,
}

// wsMessage is the server -> client envelope.
type wsMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// clientFrame is the client -> server envelope.
type clientFrame struct {
	Type        string      `json:"type"` // input, weapon, reflections, lightning, start, pause, resume
	Input       *game.Input `json:"input,omitempty"`
	Weapon      string      `json:"weapon,omitempty"`
	Cycle       bool        `json:"cycle,omitempty"`
	Reflections *int        `json:"reflections,omitempty"`
}

// wsClient is one socket attached to one session.
type wsClient struct {
	conn    *websocket.Conn
	ip      string
	session *game.Session
	codec   Codec

	events    chan wsMessage
	done      chan struct{}
	closeOnce sync.Once
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// queue hands a message to the writer; drops it when the client is behind.
func (c *wsClient) queue(msg wsMessage) {
	select {
	case c.events <- msg:
	default:
	}
}

// WebSocketHub tracks every attached socket with DoS protection.
// Each client gets its own writer goroutine; there is no shared broadcast.
type WebSocketHub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}

	upgrader    websocket.Upgrader
	wsLimiter   *WebSocketRateLimiter
	broadcastHz int
	inputRate   rate.Limit
	inputBurst  int
}

// NewWebSocketHub creates a hub with connection and input limiting.
func NewWebSocketHub(srv config.ServerConfig, rl config.RateLimitConfig) *WebSocketHub {
	h := &WebSocketHub{
		clients:     make(map[*wsClient]struct{}),
		wsLimiter:   NewWebSocketRateLimiter(rl.MaxWSPerIP),
		broadcastHz: max(srv.BroadcastHz, 1),
		inputRate:   rate.Limit(rl.InputPerSecond),
		inputBurst:  rl.InputBurst,
	}
	origins := srv.CORSOrigins
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if originAllowed(origin, origins) {
				return true
			}
			// Log rejected origin for security monitoring
			log.Printf("⚠️ WebSocket connection rejected from origin: %s", origin)
			RecordConnectionRejected("origin")
			return false
		},
	}
	return h
}

// ClientCount returns the number of connected clients
func (h *WebSocketHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *WebSocketHub) Close() {
	h.mu.RLock()
	for c := range h.clients {
		c.close()
	}
	h.mu.RUnlock()
}

func (h *WebSocketHub) register(c *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	UpdateWSConnections(len(h.clients))
	return len(h.clients)
}

func (h *WebSocketHub) unregister(c *wsClient) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
	UpdateWSConnections(len(h.clients))
	return len(h.clients)
}

// HandleSession upgrades the request and attaches the socket to s. It
// returns when the client disconnects or the session closes.
func (h *WebSocketHub) HandleSession(w http.ResponseWriter, r *http.Request, s *game.Session) {
	codec, err := codecFromRequest(r)
	if err != nil {
		writeErr(w, err)
		return
	}

	ip := GetClientIP(r)

	if total := h.ClientCount(); total >= MaxWSConnectionsTotal {
		log.Printf("⚠️ WebSocket connection rejected: total limit reached (%d)", total)
		RecordConnectionRejected("ws_total_limit")
		writeError(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	if !h.wsLimiter.Allow(ip) {
		log.Printf("⚠️ WebSocket connection rejected from %s: per-IP limit reached", ip)
		RecordConnectionRejected("ws_ip_limit")
		writeError(w, "too many connections from your IP", http.StatusTooManyRequests)
		return
	}
	defer h.wsLimiter.Release(ip)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	c := &wsClient{
		conn:    conn,
		ip:      ip,
		session: s,
		codec:   codec,
		events:  make(chan wsMessage, eventQueueSize),
		done:    make(chan struct{}),
	}

	count := h.register(c)
	log.Printf("📱 Client %s attached to %s via %s (%d total)", ip, s.ID, codec.Name(), count)

	release := s.AddClient()
	unsubscribe := s.Loop().Bus().Subscribe(func(ev game.Event) {
		c.queue(wsMessage{Event: ev.Type.String(), Data: ev.Payload})
	}, forwardedEvents...)
	deregister := s.OnClose(c.close)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(c)
	}()

	h.readLoop(c)

	c.close()
	<-writerDone
	deregister()
	unsubscribe()
	release()
	count = h.unregister(c)
	log.Printf("📱 Client %s detached from %s (%d remaining)", ip, s.ID, count)
}

// writeLoop is the only goroutine writing to the socket. It pushes the
// latest snapshot at the broadcast rate, skipping unchanged ones.
func (h *WebSocketHub) writeLoop(c *wsClient) {
	ticker := time.NewTicker(time.Second / time.Duration(h.broadcastHz))
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ping.Stop()
		c.conn.Close()
	}()

	var last *game.Snapshot
	for {
		select {
		case <-c.done:
			// Flush what the session said on its way out, then say goodbye
			for {
				select {
				case msg := <-c.events:
					if h.send(c, msg) != nil {
						return
					}
				default:
					c.conn.WriteControl(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
						time.Now().Add(writeWait))
					return
				}
			}

		case msg := <-c.events:
			if err := h.send(c, msg); err != nil {
				c.close()
				return
			}

		case <-ticker.C:
			snap := c.session.Loop().Snapshots().Latest()
			if snap == nil || snap == last {
				continue
			}
			last = snap
			if err := h.send(c, wsMessage{Event: "snapshot", Data: snap}); err != nil {
				c.close()
				return
			}

		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.close()
				return
			}
		}
	}
}

func (h *WebSocketHub) send(c *wsClient, msg wsMessage) error {
	data, err := c.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode %s: %w", msg.Event, err)
	}
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(c.codec.MessageType(), data); err != nil {
		return err
	}
	IncrementWSMessages("out")
	return nil
}

// readLoop applies client frames until the socket fails.
func (h *WebSocketHub) readLoop(c *wsClient) {
	limiter := rate.NewLimiter(h.inputRate, h.inputBurst)

	c.conn.SetReadLimit(maxFrameBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		IncrementWSMessages("in")
		c.conn.SetReadDeadline(time.Now().Add(pongWait))

		if !limiter.Allow() {
			RecordConnectionRejected("input_rate")
			continue
		}

		var frame clientFrame
		if err := c.codec.Unmarshal(data, &frame); err != nil {
			c.queue(wsMessage{Event: "error", Data: map[string]string{"error": "invalid frame"}})
			continue
		}
		if err := applyFrame(c.session, frame); err != nil {
			c.queue(wsMessage{Event: "error", Data: map[string]string{"error": err.Error()}})
		}
	}
}

// applyFrame runs one client command against the session.
func applyFrame(s *game.Session, f clientFrame) error {
	switch f.Type {
	case "input":
		if f.Input == nil {
			return fmt.Errorf("%w: input frame without input", errBadRequest)
		}
		s.Touch()
		s.Loop().SetInput(*f.Input)
	case "weapon":
		_, err := weaponRequest{Weapon: f.Weapon, Cycle: f.Cycle}.apply(s)
		return err
	case "reflections":
		return reflectionsRequest{Reflections: f.Reflections}.apply(s)
	case "lightning":
		_, err := fireLightning(s)
		return err
	case "start":
		s.Start()
	case "pause", "resume":
		s.Touch()
		s.Loop().SetPaused(f.Type == "pause")
	default:
		return fmt.Errorf("%w: unknown frame type %q", errBadRequest, f.Type)
	}
	return nil
}
