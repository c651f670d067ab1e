package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/period"
	"github.com/challengerdaily/challengerdaily/internal/websocket"
)

type SettingsHandler struct {
	logbooks *logbook.Manager
	hub      *websocket.Hub
	logger   *slog.Logger
}

func NewSettingsHandler(lm *logbook.Manager, hub *websocket.Hub, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		logbooks: lm,
		hub:      hub,
		logger:   logger,
	}
}

func (h *SettingsHandler) GetMode(w http.ResponseWriter, r *http.Request) {
	engine, err := h.logbooks.Engine(auth.OwnerID(r.Context()))
	if err != nil {
		h.logger.Error("load logbook", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load settings"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": string(engine.Mode())})
}

// UpdateMode switches the owner's period granularity. Existing log
// entries are untouched; only future bucketing changes.
func (h *SettingsHandler) UpdateMode(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Mode != string(period.ModeNormal) && req.Mode != string(period.ModeAccelerated) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "mode must be normal or accelerated"})
		return
	}

	engine, err := h.logbooks.Engine(ownerID)
	if err != nil {
		h.logger.Error("load logbook", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load settings"})
		return
	}
	if err := engine.SetMode(period.Mode(req.Mode)); err != nil {
		h.logger.Error("persist mode", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save mode"})
		return
	}

	if h.hub != nil {
		h.hub.Broadcast(ownerID, websocket.NewMessage("mode", "changed", 0, map[string]any{"mode": req.Mode}))
	}
	writeJSON(w, http.StatusOK, map[string]string{"mode": req.Mode})
}
