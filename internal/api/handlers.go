package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mcoot/numberhunt/internal/api/templates"
	"github.com/mcoot/numberhunt/internal/relay"
	"github.com/mcoot/numberhunt/internal/transport"
)

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status      string      `json:"status"`
	Connections int         `json:"connections"`
	Stats       relay.Stats `json:"stats"`
}

// DebugResponse is the body of GET /debug.json
type DebugResponse struct {
	*relay.Snapshot
	Connections []transport.ConnInfo `json:"connections"`
}

type handlers struct {
	hub    *relay.Hub
	conns  *transport.Set
	logger *slog.Logger
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	stats, err := h.hub.Stats(r.Context())
	if err != nil {
		h.internalError(w, "health", err)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:      "ok",
		Connections: h.conns.Count(),
		Stats:       stats,
	})
}

func (h *handlers) debugJSON(w http.ResponseWriter, r *http.Request) {
	resp, err := h.debugState(r)
	if err != nil {
		h.internalError(w, "debug", err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) debugPage(w http.ResponseWriter, r *http.Request) {
	resp, err := h.debugState(r)
	if err != nil {
		h.internalError(w, "debug", err)
		return
	}
	data := templates.DebugData{Snapshot: resp.Snapshot, Connections: resp.Connections}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := templates.DebugPage(data).Render(r.Context(), w); err != nil {
		h.logger.Error("render debug page", slog.String("error", err.Error()))
	}
}

func (h *handlers) debugState(r *http.Request) (*DebugResponse, error) {
	snap, err := h.hub.Snapshot(r.Context())
	if err != nil {
		return nil, err
	}
	return &DebugResponse{
		Snapshot:    snap,
		Connections: h.conns.Snapshot(),
	}, nil
}

func (h *handlers) internalError(w http.ResponseWriter, op string, err error) {
	h.logger.Error("request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
}

type errorBody struct {
	Error string `json:"error"`
}

func notFound(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
