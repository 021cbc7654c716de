// Package uploads tracks temp directories held by in-flight uploads
package uploads

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"musicvault/pkg/models"
)

// StaleAge is how long a registration may exist before a sweep discards it.
// A registration this old belongs to an upload that died without
// unregistering.
const StaleAge = time.Hour

// Registry maps user ids to their active temp-upload directories and the
// reverse, path to registration. Registering the same path twice is
// last-writer-wins.
type Registry struct {
	logger *slog.Logger

	mu     sync.RWMutex
	byUser map[string]map[string]*models.UploadRegistration
	byPath map[string]*models.UploadRegistration
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		logger: slog.Default(),
		byUser: make(map[string]map[string]*models.UploadRegistration),
		byPath: make(map[string]*models.UploadRegistration),
	}
}

// Register records an active upload holding the given directory and returns
// the registration id
func (r *Registry) Register(userID, path, uploadType string) string {
	reg := &models.UploadRegistration{
		ID:        uuid.New().String(),
		UserID:    userID,
		Path:      path,
		Type:      uploadType,
		StartedAt: time.Now(),
	}

	r.mu.Lock()
	if r.byUser[userID] == nil {
		r.byUser[userID] = make(map[string]*models.UploadRegistration)
	}
	r.byUser[userID][path] = reg
	r.byPath[path] = reg
	r.mu.Unlock()

	r.logger.Info("upload registered", "user_id", userID, "path", path, "type", uploadType)

	return reg.ID
}

// Unregister releases a single directory for a user
func (r *Registry) Unregister(userID, path string) {
	r.mu.Lock()
	r.remove(userID, path)
	r.mu.Unlock()

	r.logger.Info("upload unregistered", "user_id", userID, "path", path)
}

// UnregisterAllForUser releases every directory held by a user
func (r *Registry) UnregisterAllForUser(userID string) {
	r.mu.Lock()
	for path := range r.byUser[userID] {
		r.remove(userID, path)
	}
	r.mu.Unlock()

	r.logger.Info("all uploads unregistered", "user_id", userID)
}

// remove must be called with the lock held
func (r *Registry) remove(userID, path string) {
	if regs := r.byUser[userID]; regs != nil {
		delete(regs, path)
		if len(regs) == 0 {
			delete(r.byUser, userID)
		}
	}
	if reg := r.byPath[path]; reg != nil && reg.UserID == userID {
		delete(r.byPath, path)
	}
}

// IsDirInUse reports whether any upload currently holds the directory
func (r *Registry) IsDirInUse(path string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byPath[path]
	return ok
}

// HasAnyActive reports whether any upload is in flight anywhere
func (r *Registry) HasAnyActive() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPath) > 0
}

// HasActiveForUser reports whether the user has any upload in flight
func (r *Registry) HasActiveForUser(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// SweepStale drops registrations older than StaleAge and returns how many
// were dropped
func (r *Registry) SweepStale() int {
	cutoff := time.Now().Add(-StaleAge)

	r.mu.Lock()
	var stale []*models.UploadRegistration
	for _, reg := range r.byPath {
		if reg.StartedAt.Before(cutoff) {
			stale = append(stale, reg)
		}
	}
	for _, reg := range stale {
		r.remove(reg.UserID, reg.Path)
	}
	r.mu.Unlock()

	if len(stale) > 0 {
		r.logger.Warn("stale upload registrations dropped", "count", len(stale))
	}

	return len(stale)
}

// Stats summarizes the registry for the status endpoint
type Stats struct {
	ActiveUploads int `json:"active_uploads"`
	ActiveUsers   int `json:"active_users"`
	DirsInUse     int `json:"dirs_in_use"`
}

// Snapshot returns aggregate counts
func (r *Registry) Snapshot() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		ActiveUploads: len(r.byPath),
		ActiveUsers:   len(r.byUser),
		DirsInUse:     len(r.byPath),
	}
}

// Dump returns a copy of every active registration, for the admin endpoint
func (r *Registry) Dump() []models.UploadRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	regs := make([]models.UploadRegistration, 0, len(r.byPath))
	for _, reg := range r.byPath {
		regs = append(regs, *reg)
	}
	return regs
}
