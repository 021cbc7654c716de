// Package syncer refreshes stale downloaded items when connectivity returns
package syncer

import (
	"context"
	"log/slog"
	"time"

	"musicvault/internal/catalog"
	"musicvault/internal/musicapi"
	"musicvault/internal/network"
	"musicvault/pkg/models"
)

// Downloader re-runs the full download operation for an item
type Downloader interface {
	DownloadItem(ctx context.Context, userID string, itemType models.ItemType, id string) error
}

// Reconciler compares locally downloaded playlists and mixes against the
// server's modification timestamps and re-downloads the stale ones. Albums
// are not reconciled; they are assumed immutable once published.
type Reconciler struct {
	catalog    *catalog.DB
	api        musicapi.Client
	downloader Downloader
	delay      time.Duration
	logger     *slog.Logger
}

// New creates a new reconciler. The delay is applied between the
// online transition and the reconciliation pass so the network stack has
// settled before the first metadata fetch.
func New(cat *catalog.DB, api musicapi.Client, downloader Downloader, delay time.Duration) *Reconciler {
	return &Reconciler{
		catalog:    cat,
		api:        api,
		downloader: downloader,
		delay:      delay,
		logger:     slog.Default(),
	}
}

// Attach subscribes the reconciler to online transitions. Each transition to
// online schedules one delayed reconciliation pass.
func (r *Reconciler) Attach(ctx context.Context, monitor *network.Monitor) {
	monitor.Subscribe(func(online bool) {
		if !online {
			return
		}
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.delay):
			}
			if err := r.Reconcile(ctx); err != nil {
				r.logger.Error("reconciliation pass failed", "error", err)
			}
		}()
	})
}

// Reconcile runs one reconciliation pass over every user with downloads.
// Per-item failures are logged and the pass keeps going.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	userIDs, err := r.catalog.UserIDs()
	if err != nil {
		return err
	}

	r.logger.Info("reconciliation pass started", "users", len(userIDs))

	for _, userID := range userIDs {
		r.reconcileUser(ctx, userID)
	}

	return nil
}

func (r *Reconciler) reconcileUser(ctx context.Context, userID string) {
	for _, table := range []string{models.TablePlaylists, models.TableMixes} {
		items, err := r.catalog.GetAllForUser(table, userID)
		if err != nil {
			r.logger.Error("failed to list items", "table", table, "user_id", userID, "error", err)
			continue
		}

		for _, item := range items {
			meta, err := r.api.GetItem(ctx, item.Type, item.ID)
			if err != nil {
				r.logger.Warn("failed to fetch item for comparison", "item_id", item.ID, "error", err)
				continue
			}

			serverModified := meta.ModifiedAt(item.Type)
			if !serverModified.After(item.ServerModifiedAt) {
				continue
			}

			r.logger.Info("item stale, re-downloading",
				"item_id", item.ID, "type", item.Type,
				"local", item.ServerModifiedAt, "server", serverModified)

			if err := r.downloader.DownloadItem(ctx, userID, item.Type, item.ID); err != nil {
				r.logger.Error("failed to re-download item", "item_id", item.ID, "error", err)
			}
		}
	}
}
