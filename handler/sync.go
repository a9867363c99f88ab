/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       Sync control surface: start a background run over one or
             all credentials, report progress, pause/resume, inspect
             task queue counts, list and retry failed tasks.
Root Cause:  Operators drive and observe sync runs through this API
             rather than a CLI, since the engine runs as a long-lived
             service.
Suitability: L3 model for REST surface over the orchestrator.
──────────────────────────────────────────────────────────────
*/

package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/orchestrator"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/taskqueue"
)

const defaultFailedTaskLimit = 100

// SyncHandler implements /api/sync/*.
type SyncHandler struct {
	logger zerolog.Logger
	db     *store.Store
	queue  *taskqueue.Queue
	orch   *orchestrator.Orchestrator
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(logger zerolog.Logger, db *store.Store, queue *taskqueue.Queue, orch *orchestrator.Orchestrator) *SyncHandler {
	return &SyncHandler{logger: logger, db: db, queue: queue, orch: orch}
}

type startSyncRequest struct {
	APIKeyIDs []string `json:"apiKeyIds"`
}

// Start handles POST /api/sync/start.
func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req startSyncRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
			return
		}
	}

	credentialIDs := req.APIKeyIDs
	if len(credentialIDs) == 0 {
		creds, err := h.db.ListCredentials(r.Context())
		if err != nil {
			h.logger.Error().Err(err).Msg("list credentials failed")
			writeError(w, http.StatusInternalServerError, "store_error", "failed to list credentials")
			return
		}
		for _, c := range creds {
			credentialIDs = append(credentialIDs, c.ID)
		}
	}
	if len(credentialIDs) == 0 {
		writeError(w, http.StatusBadRequest, "no_credentials", "no credentials configured to sync")
		return
	}

	// The run outlives this request, so it must not inherit the request
	// context, which net/http cancels as soon as the handler returns.
	syncID := h.orch.RunSyncAll(context.WithoutCancel(r.Context()), credentialIDs)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{"syncId": syncID})
}

// Status handles GET /api/sync/status/{syncId}.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncId")
	snap, ok := h.orch.SyncStatus(r.Context(), syncID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "unknown or expired sync id")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Pause handles POST /api/sync/pause/{syncId}.
func (h *SyncHandler) Pause(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncId")
	if !h.orch.Pause(syncID) {
		writeError(w, http.StatusNotFound, "not_found", "unknown sync id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"syncId": syncID, "paused": true})
}

// Resume handles POST /api/sync/resume/{syncId}.
func (h *SyncHandler) Resume(w http.ResponseWriter, r *http.Request) {
	syncID := chi.URLParam(r, "syncId")
	if !h.orch.Resume(syncID) {
		writeError(w, http.StatusNotFound, "not_found", "unknown sync id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"syncId": syncID, "paused": false})
}

// TaskCounts handles GET /api/sync/tasks.
func (h *SyncHandler) TaskCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.queue.CountsByStatusAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("load task counts failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load task counts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": counts})
}

// TaskCountsForCredential handles GET /api/sync/tasks/{apiKeyId}.
func (h *SyncHandler) TaskCountsForCredential(w http.ResponseWriter, r *http.Request) {
	credentialID := chi.URLParam(r, "apiKeyId")
	counts, err := h.orch.PendingStatus(r.Context(), credentialID)
	if err != nil {
		h.logger.Error().Err(err).Str("credential_id", credentialID).Msg("load task counts failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load task counts")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credentialId": credentialID,
		"pending":      counts.Pending,
		"inProgress":   counts.InProgress,
		"completed":    counts.Completed,
		"failed":       counts.Failed,
	})
}

// Failed handles GET /api/sync/failed.
func (h *SyncHandler) Failed(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.queue.ListRecentFailed(r.Context(), defaultFailedTaskLimit)
	if err != nil {
		h.logger.Error().Err(err).Msg("list failed tasks failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to list failed tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Retry handles POST /api/sync/retry/{apiKeyId}.
func (h *SyncHandler) Retry(w http.ResponseWriter, r *http.Request) {
	credentialID := chi.URLParam(r, "apiKeyId")
	n, err := h.orch.RetryFailed(r.Context(), credentialID)
	if err != nil {
		h.logger.Error().Err(err).Str("credential_id", credentialID).Msg("retry failed tasks failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to reset failed tasks")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"credentialId": credentialID, "reset": n})
}
