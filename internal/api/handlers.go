package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"roboclaude/internal/game"
)

var (
	errBadRequest   = errors.New("invalid request")
	errUnknownCodec = errors.New("unknown codec")
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 16

// Handler methods for routerHandlers
// These are used by both the standalone router (for testing) and the full Server.

func (h *routerHandlers) session(w http.ResponseWriter, r *http.Request) (*game.Session, bool) {
	s, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return nil, false
	}
	return s, true
}

func (h *routerHandlers) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Seed  int64 `json:"seed"`
		Start bool  `json:"start"`
	}
	if err := decodeBody(r, &req, true); err != nil {
		writeErr(w, err)
		return
	}

	s, err := h.sessions.Create(req.Seed)
	if err != nil {
		writeErr(w, err)
		return
	}
	if req.Start {
		s.Start()
	}

	w.Header().Set("Location", "/api/sessions/"+s.ID)
	writeJSONStatus(w, http.StatusCreated, s.Info())
}

func (h *routerHandlers) handleListSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sessions.List())
}

func (h *routerHandlers) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s, ok := h.session(w, r); ok {
		writeJSON(w, s.Info())
	}
}

func (h *routerHandlers) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(chi.URLParam(r, "id")); err != nil {
		writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleStart(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Start()
	writeJSON(w, s.Info())
}

func (h *routerHandlers) handlePause(paused bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := h.session(w, r)
		if !ok {
			return
		}
		s.Touch()
		s.Loop().SetPaused(paused)
		writeJSON(w, s.Info())
	}
}

func (h *routerHandlers) handleInput(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var in game.Input
	if err := decodeBody(r, &in, false); err != nil {
		writeErr(w, err)
		return
	}
	s.Touch()
	s.Loop().SetInput(in)
	w.WriteHeader(http.StatusNoContent)
}

func (h *routerHandlers) handleWeapon(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req weaponRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeErr(w, err)
		return
	}
	weapon, err := req.apply(s)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, weapon)
}

func (h *routerHandlers) handleReflections(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req reflectionsRequest
	if err := decodeBody(r, &req, false); err != nil {
		writeErr(w, err)
		return
	}
	if err := req.apply(s); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, map[string]int{"reflections": s.Loop().Arsenal().Reflections()})
}

func (h *routerHandlers) handleLightning(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	resp, err := fireLightning(s)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, resp)
}

func (h *routerHandlers) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	codec, err := codecFromRequest(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	data, err := codec.Marshal(s.Loop().Snapshots().Latest())
	if err != nil {
		writeErr(w, fmt.Errorf("encode snapshot: %w", err))
		return
	}
	w.Header().Set("Content-Type", codec.ContentType())
	w.Write(data)
}

func (h *routerHandlers) handleScreenshot(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	start := time.Now()
	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, s.Loop().Snapshots().Latest()); err != nil {
		log.Printf("❌ Screenshot failed for %s: %v", s.ID, err)
		writeErr(w, err)
		return
	}
	RecordRender(time.Since(start))

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleGetWeapons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, game.Weapons[:])
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErr(w, fmt.Errorf("%w: limit must be a positive integer", errBadRequest))
			return
		}
		limit = min(n, game.DefaultLeaderboardSize)
	}

	entries := []game.LeaderboardEntry{}
	if h.leaderboard != nil {
		entries = h.leaderboard.Top(limit)
	}
	writeJSON(w, entries)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"sessions":  h.sessions.Len(),
		"rateLimit": h.rateLimiter.GetStats(),
	}
	if h.eventLog != nil {
		stats["eventLog"] = h.eventLog.Stats()
	}
	if h.leaderboard != nil {
		stats["leaderboardSize"] = h.leaderboard.Len()
	}
	if h.hub != nil {
		stats["wsClients"] = h.hub.ClientCount()
	}
	writeJSON(w, stats)
}

// Session controls shared by HTTP handlers and socket frames

type weaponRequest struct {
	Weapon string `json:"weapon"`
	Cycle  bool   `json:"cycle"`
}

func (req weaponRequest) apply(s *game.Session) (game.Weapon, error) {
	arsenal := s.Loop().Arsenal()
	s.Touch()
	if req.Cycle {
		arsenal.Cycle()
		return arsenal.Weapon(), nil
	}
	mode, err := game.ParseWeapon(req.Weapon)
	if err != nil {
		return game.Weapon{}, err
	}
	if err := arsenal.Select(mode); err != nil {
		return game.Weapon{}, err
	}
	return arsenal.Weapon(), nil
}

type reflectionsRequest struct {
	Reflections *int `json:"reflections"`
}

func (req reflectionsRequest) apply(s *game.Session) error {
	if req.Reflections == nil {
		return fmt.Errorf("%w: reflections is required", errBadRequest)
	}
	s.Touch()
	return s.Loop().Arsenal().SetReflections(*req.Reflections)
}

type lightningResponse struct {
	Chain []game.LightningLink `json:"chain"`
	Hits  []game.HitOutcome    `json:"hits"`
	Kills int                  `json:"kills"`
}

func fireLightning(s *game.Session) (lightningResponse, error) {
	chain, applied, err := s.TriggerLightning()
	if err != nil {
		return lightningResponse{}, err
	}
	resp := lightningResponse{
		Chain: chain,
		Hits:  make([]game.HitOutcome, 0, len(applied)),
	}
	if resp.Chain == nil {
		resp.Chain = []game.LightningLink{}
	}
	for _, a := range applied {
		resp.Hits = append(resp.Hits, a.Outcome)
		if a.Outcome.Killed {
			resp.Kills++
		}
	}
	return resp, nil
}

// Helper functions (package-level for reuse)

// decodeBody reads a bounded JSON body into v. An empty body is accepted
// only when optional is set.
func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrSessionLimit):
		return http.StatusServiceUnavailable
	case errors.Is(err, game.ErrNotStarted),
		errors.Is(err, game.ErrPaused),
		errors.Is(err, game.ErrLightningCooldown):
		return http.StatusConflict
	case errors.Is(err, game.ErrUnknownWeapon),
		errors.Is(err, game.ErrInvalidReflections),
		errors.Is(err, errUnknownCodec),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, data any) {
	writeJSONStatus(w, http.StatusOK, data)
}

func writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func writeErr(w http.ResponseWriter, err error) {
	writeError(w, err.Error(), statusFor(err))
}
