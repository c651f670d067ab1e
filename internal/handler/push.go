package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/challengerdaily/challengerdaily/internal/auth"
	"github.com/challengerdaily/challengerdaily/internal/model"
	"github.com/challengerdaily/challengerdaily/internal/push"
	"github.com/challengerdaily/challengerdaily/internal/store"
)

type PushHandler struct {
	service *push.Service
	store   *store.PushStore
	logger  *slog.Logger
}

func NewPushHandler(svc *push.Service, ps *store.PushStore, logger *slog.Logger) *PushHandler {
	return &PushHandler{
		service: svc,
		store:   ps,
		logger:  logger,
	}
}

func (h *PushHandler) VAPIDKey(w http.ResponseWriter, r *http.Request) {
	if !h.service.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "push notifications not configured"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"public_key": h.service.VAPIDPublicKey()})
}

// subscribeRequest mirrors the browser's PushSubscription JSON.
type subscribeRequest struct {
	Endpoint string `json:"endpoint"`
	Keys     struct {
		P256dh string `json:"p256dh"`
		Auth   string `json:"auth"`
	} `json:"keys"`
	DeviceName string `json:"device_name"`
}

func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if req.Endpoint == "" || req.Keys.P256dh == "" || req.Keys.Auth == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "endpoint and keys are required"})
		return
	}

	sub, err := h.store.CreateSubscription(ownerID, req.Endpoint, req.Keys.P256dh, req.Keys.Auth, req.DeviceName)
	if err != nil {
		h.logger.Error("create push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to save subscription"})
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *PushHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	subs, err := h.store.ListByOwner(ownerID)
	if err != nil {
		h.logger.Error("list push subscriptions", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list subscriptions"})
		return
	}
	if subs == nil {
		subs = []model.PushSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	ownerID := auth.OwnerID(r.Context())

	id, err := parseIDParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid id"})
		return
	}

	existing, err := h.store.GetByID(id, ownerID)
	if err != nil {
		h.logger.Error("get push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to get subscription"})
		return
	}
	if existing == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "subscription not found"})
		return
	}

	if err := h.store.DeleteSubscription(id, ownerID); err != nil {
		h.logger.Error("delete push subscription", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to delete subscription"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
