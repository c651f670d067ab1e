package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/logbook"
	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/store"
	"github.com/challengerdaily/challengerdaily/internal/websocket"
)

const maxChallengeDays = 3650

type ChallengeHandler struct {
	challenges *store.ChallengeStore
	logbooks   *logbook.Manager
	hub        *websocket.Hub
	logger     *slog.Logger
}

func NewChallengeHandler(cs *store.ChallengeStore, lm *logbook.Manager, hub *websocket.Hub, logger *slog.Logger) *ChallengeHandler {
	return &ChallengeHandler{
		challenges: cs,
		logbooks:   lm,
		hub:        hub,
		logger:     logger,
	}
}

func (h *ChallengeHandler) broadcast(ownerID string, msg websocket.Message) {
	if h.hub != nil {
		h.hub.Broadcast(ownerID, msg)
	}
}

type challengeRequest struct {
	Title string `json:"title"`
	Days  int    `json:"days"`
}

func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}
	if req.Days <= 0 || req.Days > maxChallengeDays {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "days must be between 1 and 3650"})
		return
	}

	challenge, err := h.challenges.Create(ownerID, req.Title, req.Days)
	if err != nil {
		h.logger.Error("create challenge", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to create challenge"})
		return
	}

	h.broadcast(ownerID, websocket.NewMessage("challenge", "created", challenge.ID, nil))
	writeJSON(w, http.StatusCreated, challenge)
}

func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	challenges, err := h.challenges.ListByOwner(ownerID)
	if err != nil {
		h.logger.Error("list challenges", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list challenges"})
		return
	}
	if challenges == nil {
		challenges = []model.Challenge{}
	}
	writeJSON(w, http.StatusOK, challenges)
}

func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	challenge, err := h.challenges.GetByID(id, ownerID)
	if err != nil {
		h.logger.Error("get challenge", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get challenge"})
		return
	}
	if challenge == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "challenge not found"})
		return
	}
	writeJSON(w, http.StatusOK, challenge)
}

// Update renames a challenge. The new title propagates into the owner's
// log groups so projections keep showing the current name.
func (h *ChallengeHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	var req challengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	challenge, err := h.challenges.UpdateTitle(id, ownerID, req.Title)
	if err != nil {
		h.logger.Error("update challenge", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update challenge"})
		return
	}
	if challenge == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "challenge not found"})
		return
	}

	engine, err := h.logbooks.Engine(ownerID)
	if err != nil {
		h.logger.Error("load logbook", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to update logs"})
		return
	}
	if err := engine.RenameGroup(id, req.Title); err != nil {
		h.logger.Error("rename log group", "challenge_id", id, "error", err)
	}

	h.broadcast(ownerID, websocket.NewMessage("challenge", "updated", id, nil))
	writeJSON(w, http.StatusOK, challenge)
}

// Delete removes a challenge and cascades to its log group.
func (h *ChallengeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.challenges.GetByID(id, ownerID)
	if err != nil {
		h.logger.Error("get challenge", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get challenge"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "challenge not found"})
		return
	}

	if err := h.challenges.Delete(id, ownerID); err != nil {
		h.logger.Error("delete challenge", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete challenge"})
		return
	}

	engine, err := h.logbooks.Engine(ownerID)
	if err != nil {
		h.logger.Error("load logbook", "error", err)
	} else if err := engine.RemoveGroup(id); err != nil {
		h.logger.Error("remove log group", "challenge_id", id, "error", err)
	}

	h.broadcast(ownerID, websocket.NewMessage("challenge", "deleted", id, nil))
	w.WriteHeader(http.StatusNoContent)
}
