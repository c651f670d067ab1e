package handler

import (
	"log/slog"
	"net/http"

	"github.com/challengerdaily/challengerdaily/internal/backup"
)

type BackupHandler struct {
	manager *backup.Manager
	logger  *slog.Logger
}

func NewBackupHandler(m *backup.Manager, logger *slog.Logger) *BackupHandler {
	return &BackupHandler{manager: m, logger: logger}
}

func (h *BackupHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Status())
}

func (h *BackupHandler) RunNow(w http.ResponseWriter, r *http.Request) {
	if !h.manager.Enabled() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "backups not configured"})
		return
	}

	key, err := h.manager.RunNow(r.Context())
	if err != nil {
		h.logger.Error("manual backup", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "backup failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key})
}
