package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/store"
	"github.com/challengerdaily/challengerdaily/internal/websocket"
)

type LogHandler struct {
	challenges *store.ChallengeStore
	logbooks   *logbook.Manager
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewLogHandler(cs *store.ChallengeStore, lm *logbook.Manager, hub *websocket.Hub, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		challenges: cs,
		logbooks:   lm,
		hub:        hub,
		logger:     logger,
	}
}

func (h *LogHandler) broadcast(ownerID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(ownerID, msg)
	}
}

// resolve loads the owner's challenge and engine, writing the error
// response itself when either step fails.
func (h *LogHandler) resolve(w http.ResponseWriter, r *http.Request) (*model.Challenge, *logbook.Engine, bool) {
	ownerID := auth.OwnerID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return nil, nil, false
	}

	challenge, err := h.challenges.GetByID(id, ownerID)
	if err != nil {
		h.logger.Error("get challenge", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get challenge"})
		return nil, nil, false
	}
	if challenge == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "challenge not found"})
		return nil, nil, false
	}

	engine, err := h.logbooks.Engine(ownerID)
	if err != nil {
		h.logger.Error("load logbook", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load logs"})
		return nil, nil, false
	}
	return challenge, engine, true
}

type createLogRequest struct {
	Status *bool `json:"status"`
}

// CreateLog records a completion (or explicit miss) for the current
// period. A second attempt within the same period is rejected with 409.
func (h *LogHandler) CreateLog(w http.ResponseWriter, r *http.Request) {
	challenge, engine, ok := h.resolve(w, r)
	if !ok {
		return
	}
	ownerID := auth.OwnerID(r.Context())

	var req createLogRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	status := true
	if req.Status != nil {
		status = *req.Status
	}

	accepted, err := engine.AddLog(challenge.ID, challenge.Title, status)
	if !accepted {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "already logged this period"})
		return
	}
	if err != nil {
		// Entry is applied in memory; the durable write failed
		h.logger.Error("persist log", "challenge_id", challenge.ID, "error", err)
	}

	h.broadcast(ownerID, websocket.NewMessage("log", "created", challenge.ID, map[string]any{"status": status}))

	group := engine.Group(challenge.ID)
	if group == nil || len(group.Logs) == 0 {
		writeJSON(w, http.StatusCreated, map[string]any{"accepted": true})
		return
	}
	writeJSON(w, http.StatusCreated, group.Logs[0])
}

type progressResponse struct {
	ChallengeID int64   `json:"challenge_id"`
	Count       int     `json:"count"`
	Days        int     `json:"days"`
	Percent     float64 `json:"percent"`
	Dense       []int   `json:"dense"`
}

// Progress returns the completion count, percentage against the target
// length, and the dense period sequence used by the progress gauge.
func (h *LogHandler) Progress(w http.ResponseWriter, r *http.Request) {
	challenge, engine, ok := h.resolve(w, r)
	if !ok {
		return
	}

	count := engine.LogsCount(challenge.ID)
	percent := 0.0
	if challenge.Days > 0 {
		percent = float64(count) / float64(challenge.Days) * 100
		if percent > 100 {
			percent = 100
		}
	}

	dense := engine.DensePeriodSequence(challenge.ID, challenge.CreatedAt)
	if dense == nil {
		dense = []int{}
	}

	writeJSON(w, http.StatusOK, progressResponse{
		ChallengeID: challenge.ID,
		Count:       count,
		Days:        challenge.Days,
		Percent:     percent,
		Dense:       dense,
	})
}

// Calendar returns the dated calendar cells from the challenge's
// creation period through the current one.
func (h *LogHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	challenge, engine, ok := h.resolve(w, r)
	if !ok {
		return
	}

	cells := engine.CalendarWithDates(challenge.ID, challenge.CreatedAt)
	if cells == nil {
		cells = []logbook.CalendarCell{}
	}
	writeJSON(w, http.StatusOK, cells)
}
