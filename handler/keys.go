/*
[AI GENERATED - GOVERNANCE PROTOCOL]
──────────────────────────────────────────────────────────────
Model:       Claude Opus 4.6
Tier:        L3
Logic:       CRUD over remote API credentials: list, add (encrypt +
             seed sync state), rename, delete (cascade), per-credential
             stats (highwatermark, last sync, task counts).
Root Cause:  Operators add and retire partner API keys without a
             deploy; the credential's plaintext must never be returned
             once stored.
Suitability: L3 model for a straightforward REST CRUD surface.
──────────────────────────────────────────────────────────────
*/

package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/radialgames/salessync/secretprovider"
	"github.com/radialgames/salessync/store"
	"github.com/radialgames/salessync/taskqueue"
)

// KeysHandler implements /api/keys.
type KeysHandler struct {
	logger  zerolog.Logger
	db      *store.Store
	secrets *secretprovider.Provider
	queue   *taskqueue.Queue
}

// NewKeysHandler creates a new keys handler.
func NewKeysHandler(logger zerolog.Logger, db *store.Store, secrets *secretprovider.Provider, queue *taskqueue.Queue) *KeysHandler {
	return &KeysHandler{logger: logger, db: db, secrets: secrets, queue: queue}
}

type credentialResponse struct {
	ID        string `json:"id"`
	Label     string `json:"displayName"`
	TailHash  string `json:"tailHash"`
	CreatedAt string `json:"createdAt"`
}

func toCredentialResponse(c store.Credential) credentialResponse {
	return credentialResponse{
		ID:        c.ID,
		Label:     c.Label,
		TailHash:  c.TailHash,
		CreatedAt: c.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

// List handles GET /api/keys.
func (h *KeysHandler) List(w http.ResponseWriter, r *http.Request) {
	creds, err := h.db.ListCredentials(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("list credentials failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to list credentials")
		return
	}
	out := make([]credentialResponse, 0, len(creds))
	for _, c := range creds {
		out = append(out, toCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"keys": out})
}

type createKeyRequest struct {
	Key         string `json:"key"`
	DisplayName string `json:"displayName"`
}

// Create handles POST /api/keys.
func (h *KeysHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
		return
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "key is required")
		return
	}

	blob, err := h.secrets.Encrypt(req.Key)
	if err != nil {
		h.logger.Error().Err(err).Msg("encrypt credential failed")
		writeError(w, http.StatusInternalServerError, "encrypt_error", "failed to store credential")
		return
	}
	tailHash := secretprovider.ShortHash(req.Key, 4)
	label := req.DisplayName
	if label == "" {
		label = tailHash
	}

	cred, err := h.db.CreateCredential(r.Context(), label, tailHash, blob)
	if err != nil {
		h.logger.Error().Err(err).Msg("create credential failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to create credential")
		return
	}
	writeJSON(w, http.StatusCreated, toCredentialResponse(*cred))
}

type renameKeyRequest struct {
	DisplayName string `json:"displayName"`
}

// Rename handles PUT /api/keys/{id}.
func (h *KeysHandler) Rename(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req renameKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "failed to parse request body: "+err.Error())
		return
	}
	if req.DisplayName == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "displayName is required")
		return
	}

	if err := h.db.RenameCredential(r.Context(), id, req.DisplayName); err != nil {
		h.writeStoreErr(w, err, "credential not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"id": id, "displayName": req.DisplayName})
}

// Delete handles DELETE /api/keys/{id}.
func (h *KeysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.db.DeleteCredential(r.Context(), id); err != nil {
		h.writeStoreErr(w, err, "credential not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /api/keys/{id}/stats.
func (h *KeysHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	state, err := h.db.GetSyncState(r.Context(), id)
	if err != nil {
		h.writeStoreErr(w, err, "credential not found")
		return
	}
	counts, err := h.queue.CountsByStatus(r.Context(), id)
	if err != nil {
		h.logger.Error().Err(err).Str("credential_id", id).Msg("load task counts failed")
		writeError(w, http.StatusInternalServerError, "store_error", "failed to load task counts")
		return
	}

	var lastSync interface{}
	if state.LastSyncAt != nil {
		lastSync = state.LastSyncAt.Format("2006-01-02T15:04:05Z07:00")
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"credentialId":  id,
		"highwatermark": state.Highwatermark,
		"lastSyncAt":    lastSync,
		"tasks": map[string]int{
			"pending":    counts.Pending,
			"inProgress": counts.InProgress,
			"completed":  counts.Completed,
			"failed":     counts.Failed,
		},
	})
}

func (h *KeysHandler) writeStoreErr(w http.ResponseWriter, err error, notFoundMsg string) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", notFoundMsg)
		return
	}
	h.logger.Error().Err(err).Msg("store operation failed")
	writeError(w, http.StatusInternalServerError, "store_error", "store operation failed")
}
