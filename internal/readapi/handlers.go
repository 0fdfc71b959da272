// Package readapi implements the HTTP read surface described in spec.md
// §6 as "Read API (consumer contract only, not part of the core)": list
// agents, fetch the latest sample or bounded history for one agent, and a
// live subscription feed. It is a thin adapter over the ingest façade
// (C5); it holds no state of its own.
package readapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ablate-ai/iris/internal/ingest"
	"github.com/ablate-ai/iris/internal/logging"
)

const (
	defaultHistoryLimit = 100
	keepAliveInterval   = 15 * time.Second
)

// Handlers adapts a Facade to net/http.
type Handlers struct {
	facade *ingest.Facade
}

// New returns Handlers backed by facade.
func New(facade *ingest.Facade) *Handlers {
	return &Handlers{facade: facade}
}

// Mount registers every read API route on mux.
func (h *Handlers) Mount(mux *http.ServeMux) {
	mux.HandleFunc("GET /agents", h.listAgents)
	mux.HandleFunc("GET /agents/{id}/latest", h.latest)
	mux.HandleFunc("GET /agents/{id}/history", h.history)
	mux.HandleFunc("GET /stream", h.stream)
}

type agentSummary struct {
	AgentID    string `json:"agent_id"`
	LastSeenMs int64  `json:"last_seen_ms"`
	Hostname   string `json:"hostname"`
}

// listAgents answers spec.md §6's `list_agents()`.
func (h *Handlers) listAgents(w http.ResponseWriter, r *http.Request) {
	ids, err := h.facade.ListAgents(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	out := make([]agentSummary, 0, len(ids))
	for _, id := range ids {
		sample, err := h.facade.Latest(r.Context(), id)
		if err != nil {
			// The agent was listed a moment ago but its last sample aged
			// out between calls; skip rather than fail the whole page.
			continue
		}
		out = append(out, agentSummary{AgentID: id, LastSeenMs: sample.Timestamp, Hostname: sample.Hostname})
	}
	writeJSON(w, http.StatusOK, out)
}

// latest answers spec.md §6's `latest(agent)`.
func (h *Handlers) latest(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	sample, err := h.facade.Latest(r.Context(), agentID)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, sample)
}

// history answers spec.md §6's `history(agent, limit)`.
func (h *Handlers) history(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a positive integer"))
			return
		}
		limit = n
	}

	samples, err := h.facade.History(r.Context(), agentID, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// Facade.History never errors for an unknown agent (it just finds
	// nothing in either source); the 404 mapping is a read API concern,
	// so fall back to Latest to distinguish "known but empty" from
	// "never reported".
	if len(samples) == 0 {
		if _, err := h.facade.Latest(r.Context(), agentID); isNotFound(err) {
			writeError(w, http.StatusNotFound, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, samples)
}

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// stream is the live subscription feed: every ingested Sample, JSON-encoded,
// plus a keep-alive every 15s (spec.md §6). Slow consumers may miss
// messages; there is no replay.
func (h *Handlers) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Sugar().Warnw("read API: ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ch, unsubscribe := h.facade.Subscribe()
	defer unsubscribe()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case sample, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(sample); err != nil {
				return
			}
		case <-keepAlive.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

func isNotFound(err error) bool {
	var serr *ingest.StorageError
	if errors.As(err, &serr) {
		return serr.Kind == ingest.KindNotFound
	}
	return errors.Is(err, ingest.ErrNotFound)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
