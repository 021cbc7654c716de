// Package handlers provides the JSON HTTP handlers
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"musicvault/internal/downloads"
	"musicvault/internal/network"
	"musicvault/internal/uploads"
	"musicvault/pkg/models"
)

// Session headers set by the authenticating reverse proxy. A request
// without a user id has no session and gets a 403.
const (
	headerUserID = "X-User-Id"
	headerAdmin  = "X-User-Admin"
)

// Handlers contains the HTTP handlers and their dependencies
type Handlers struct {
	orchestrator *downloads.Orchestrator
	registry     *uploads.Registry
	monitor      *network.Monitor
	logger       *slog.Logger
}

// NewHandlers creates a new handlers instance
func NewHandlers(orchestrator *downloads.Orchestrator, registry *uploads.Registry, monitor *network.Monitor) *Handlers {
	return &Handlers{
		orchestrator: orchestrator,
		registry:     registry,
		monitor:      monitor,
		logger:       slog.Default(),
	}
}

func (h *Handlers) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := r.Header.Get(headerUserID)
	if userID == "" {
		http.Error(w, `{"error": "authentication required"}`, http.StatusForbidden)
		return "", false
	}
	return userID, true
}

func (h *Handlers) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	if _, ok := h.requireUser(w, r); !ok {
		return false
	}
	if r.Header.Get(headerAdmin) != "true" {
		http.Error(w, `{"error": "admin required"}`, http.StatusForbidden)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// StartDownload accepts a download request and runs it in the background.
// The response only acknowledges acceptance; completion is observable via
// the downloads listing, not a return value.
func (h *Handlers) StartDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	itemType, err := models.ParseItemType(r.PathValue("type"))
	if err != nil {
		http.Error(w, `{"error": "unknown item type"}`, http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	go func() {
		if err := h.orchestrator.DownloadItem(context.Background(), userID, itemType, id); err != nil {
			h.logger.Error("download rejected", "item_id", id, "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "id": id})
}

// DeleteDownload removes a downloaded item
func (h *Handlers) DeleteDownload(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	itemType, err := models.ParseItemType(r.PathValue("type"))
	if err != nil {
		http.Error(w, `{"error": "unknown item type"}`, http.StatusBadRequest)
		return
	}
	id := r.PathValue("id")

	if err := h.orchestrator.DeleteItem(r.Context(), userID, itemType, id); err != nil {
		h.logger.Error("failed to delete item", "item_id", id, "error", err)
		http.Error(w, `{"error": "failed to delete item"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// CancelDownload flags an in-flight download for cancellation
func (h *Handlers) CancelDownload(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	id := r.PathValue("id")
	h.orchestrator.CancelDownload(id)

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling", "id": id})
}

// ListDownloads returns the downloaded item and song id sets
func (h *Handlers) ListDownloads(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string][]string{
		"item_ids": h.orchestrator.DownloadedItemIDs(),
		"song_ids": h.orchestrator.DownloadedSongIDs(),
	})
}

// DownloadProgress returns the in-flight progress map
func (h *Handlers) DownloadProgress(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.orchestrator.Progress())
}

// ClearDownloads deletes every downloaded item of the requesting user
func (h *Handlers) ClearDownloads(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	if err := h.orchestrator.ClearAllDownloads(r.Context(), userID); err != nil {
		h.logger.Error("failed to clear downloads", "user_id", userID, "error", err)
		http.Error(w, `{"error": "failed to clear downloads"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// OfflineSize returns the total cached bytes of the user's downloads
func (h *Handlers) OfflineSize(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	size, err := h.orchestrator.OfflineSize(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to compute offline size", "user_id", userID, "error", err)
		http.Error(w, `{"error": "failed to compute offline size"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int64{"bytes": size})
}

// NetworkStatus returns the current reachability state
func (h *Handlers) NetworkStatus(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"online": h.monitor.Online()})
}

// UploadStats returns aggregate counts of active uploads
func (h *Handlers) UploadStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	writeJSON(w, http.StatusOK, h.registry.Snapshot())
}

// ActiveUploads reports whether the requesting user has an upload in flight
func (h *Handlers) ActiveUploads(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"active": h.registry.HasActiveForUser(userID)})
}

// AdminUploadDump returns every active registration; admin only
func (h *Handlers) AdminUploadDump(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"uploads": h.registry.Dump()})
}
