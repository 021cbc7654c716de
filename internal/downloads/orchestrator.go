// Package downloads coordinates fetching, caching and indexing of offline items
package downloads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"musicvault/internal/assetcache"
	"musicvault/internal/catalog"
	"musicvault/internal/hls"
	"musicvault/internal/musicapi"
	"musicvault/pkg/models"
)

// ErrAuthRequired is returned when an operation is attempted without a user id
var ErrAuthRequired = errors.New("authentication required")

// Orchestrator runs item downloads and deletions against the asset cache and
// the catalog index, and tracks in-memory download state. Progress moves
// through the milestone values in models; cancellation is cooperative and is
// only observed between phases.
type Orchestrator struct {
	catalog    *catalog.DB
	assets     *assetcache.Cache
	api        musicapi.Client
	httpClient *http.Client
	logger     *slog.Logger

	mu              sync.Mutex
	downloading     map[string]bool
	cancelled       map[string]bool
	progress        map[string]int
	downloadedItems map[string]bool
	downloadedSongs map[string]bool
}

// New creates a new download orchestrator
func New(cat *catalog.DB, assets *assetcache.Cache, api musicapi.Client) *Orchestrator {
	return &Orchestrator{
		catalog: cat,
		assets:  assets,
		api:     api,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger:          slog.Default(),
		downloading:     make(map[string]bool),
		cancelled:       make(map[string]bool),
		progress:        make(map[string]int),
		downloadedItems: make(map[string]bool),
		downloadedSongs: make(map[string]bool),
	}
}

// Init loads the downloaded id sets from the catalog. Call once at startup
// before serving requests.
func (o *Orchestrator) Init(ctx context.Context) error {
	items := make(map[string]bool)
	for _, table := range []string{models.TableAlbums, models.TablePlaylists, models.TableMixes} {
		records, err := o.catalog.GetAllItems(table)
		if err != nil {
			return fmt.Errorf("failed to load %s: %w", table, err)
		}
		for _, record := range records {
			items[record.ID] = true
		}
	}

	songIDs, err := o.catalog.SongIDs()
	if err != nil {
		return fmt.Errorf("failed to load songs: %w", err)
	}
	songs := make(map[string]bool, len(songIDs))
	for _, id := range songIDs {
		songs[id] = true
	}

	o.mu.Lock()
	o.downloadedItems = items
	o.downloadedSongs = songs
	o.mu.Unlock()

	o.logger.Info("download state loaded", "items", len(items), "songs", len(songs))

	return nil
}

// DownloadItem fetches an item's metadata, caches every asset it references
// and records it in the catalog. A download already in flight for the same
// item id is left alone. Failures after the metadata phase are logged and
// swallowed; the item simply does not become downloaded.
func (o *Orchestrator) DownloadItem(ctx context.Context, userID string, itemType models.ItemType, id string) error {
	if userID == "" {
		return ErrAuthRequired
	}
	if !itemType.Valid() {
		return fmt.Errorf("unknown item type %q", itemType)
	}

	o.mu.Lock()
	if o.downloading[id] {
		o.mu.Unlock()
		o.logger.Info("download already in progress", "item_id", id)
		return nil
	}
	o.downloading[id] = true
	delete(o.cancelled, id)
	o.progress[id] = models.ProgressStarted
	o.mu.Unlock()

	o.logger.Info("download started", "item_id", id, "type", itemType, "user_id", userID)

	meta, err := o.api.GetItem(ctx, itemType, id)
	if err != nil {
		o.logger.Error("failed to fetch item metadata", "item_id", id, "error", err)
		o.finish(id)
		return nil
	}
	if len(meta.Songs) == 0 {
		o.logger.Warn("item has no songs, skipping download", "item_id", id)
		o.finish(id)
		return nil
	}

	o.setProgress(id, models.ProgressMetadata)
	if o.cancelObserved(id) {
		o.logger.Info("download cancelled", "item_id", id, "phase", "metadata")
		o.finish(id)
		return nil
	}

	urls := o.collectAssetURLs(ctx, meta)

	o.setProgress(id, models.ProgressCollected)
	if o.cancelObserved(id) {
		o.logger.Info("download cancelled", "item_id", id, "phase", "collected")
		o.finish(id)
		return nil
	}

	cached := 0
	for _, assetURL := range urls {
		data, err := o.fetchAsset(ctx, assetURL)
		if err != nil {
			o.logger.Warn("failed to fetch asset", "item_id", id, "url", assetURL, "error", err)
			continue
		}
		if err := o.assets.Put(assetURL, data); err != nil {
			o.logger.Warn("failed to cache asset", "item_id", id, "url", assetURL, "error", err)
			continue
		}
		cached++
	}
	o.logger.Info("assets cached", "item_id", id, "cached", cached, "total", len(urls))

	o.setProgress(id, models.ProgressCached)
	if o.cancelObserved(id) {
		o.logger.Info("download cancelled", "item_id", id, "phase", "cached")
		o.finish(id)
		return nil
	}

	item := &models.Item{
		ID:               id,
		UserID:           userID,
		Type:             itemType,
		Title:            meta.DisplayTitle(),
		ImageURL:         meta.ImageURL,
		Songs:            meta.Songs,
		ServerModifiedAt: meta.ModifiedAt(itemType),
		DownloadedAt:     time.Now(),
	}
	if err := o.catalog.SaveItem(item); err != nil {
		o.logger.Error("failed to save item record", "item_id", id, "error", err)
		o.finish(id)
		return nil
	}
	for _, song := range meta.Songs {
		if err := o.catalog.SaveSong(userID, song); err != nil {
			o.logger.Error("failed to save song record", "item_id", id, "song_id", song.ID, "error", err)
		}
	}

	o.setProgress(id, models.ProgressPersisted)
	if o.cancelObserved(id) {
		// Records were just written; undo them so a cancelled download
		// never surfaces as downloaded.
		o.logger.Info("download cancelled", "item_id", id, "phase", "persisted")
		if err := o.removeItem(ctx, userID, item); err != nil {
			o.logger.Error("failed to roll back cancelled download", "item_id", id, "error", err)
		}
		o.finish(id)
		return nil
	}

	o.mu.Lock()
	o.downloadedItems[id] = true
	for _, song := range meta.Songs {
		o.downloadedSongs[song.ID] = true
	}
	o.progress[id] = models.ProgressDone
	o.mu.Unlock()

	o.logger.Info("download complete", "item_id", id, "songs", len(meta.Songs))
	o.finish(id)

	return nil
}

// CancelDownload flags an in-flight download for cancellation. The flag is
// honored at the next phase boundary; there is nothing to cancel once the
// download has finished.
func (o *Orchestrator) CancelDownload(id string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.downloading[id] {
		return
	}
	o.cancelled[id] = true
	o.logger.Info("download cancellation requested", "item_id", id)
}

// DeleteItem removes an item's catalog record, evicts its cached assets and
// deletes song records no other downloaded item of the user still references.
// Deleting an item that is not downloaded is a no-op.
func (o *Orchestrator) DeleteItem(ctx context.Context, userID string, itemType models.ItemType, id string) error {
	if userID == "" {
		return ErrAuthRequired
	}
	if !itemType.Valid() {
		return fmt.Errorf("unknown item type %q", itemType)
	}

	item, err := o.catalog.GetItem(itemType.Table(), id, userID)
	if err != nil {
		return fmt.Errorf("failed to look up item: %w", err)
	}
	if item == nil {
		return nil
	}

	if err := o.removeItem(ctx, userID, item); err != nil {
		return err
	}

	o.logger.Info("item deleted", "item_id", id, "type", itemType, "user_id", userID)

	return nil
}

// ClearAllDownloads deletes every downloaded item belonging to a user.
// Per-item failures are logged and the clear keeps going.
func (o *Orchestrator) ClearAllDownloads(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrAuthRequired
	}

	for _, table := range []string{models.TableAlbums, models.TablePlaylists, models.TableMixes} {
		items, err := o.catalog.GetAllForUser(table, userID)
		if err != nil {
			return fmt.Errorf("failed to list %s: %w", table, err)
		}
		for _, item := range items {
			if err := o.removeItem(ctx, userID, item); err != nil {
				o.logger.Error("failed to delete item during clear", "item_id", item.ID, "error", err)
			}
		}
	}

	o.logger.Info("downloads cleared", "user_id", userID)

	return nil
}

// removeItem evicts an item's assets and deletes its catalog records. Songs
// still referenced by another downloaded item of the same user are kept.
func (o *Orchestrator) removeItem(ctx context.Context, userID string, item *models.Item) error {
	for _, assetURL := range o.itemAssetURLs(ctx, item) {
		if err := o.assets.Delete(assetURL); err != nil {
			o.logger.Warn("failed to evict asset", "item_id", item.ID, "url", assetURL, "error", err)
		}
	}

	table := item.Type.Table()
	if err := o.catalog.DeleteItem(table, item.ID); err != nil {
		return fmt.Errorf("failed to delete item record: %w", err)
	}

	remaining, err := o.remainingSongRefs(userID, item.ID)
	if err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.downloadedItems, item.ID)
	o.mu.Unlock()

	for _, song := range item.Songs {
		if remaining[song.ID] {
			continue
		}
		if err := o.catalog.DeleteSong(song.ID); err != nil {
			o.logger.Error("failed to delete song record", "song_id", song.ID, "error", err)
			continue
		}
		o.mu.Lock()
		delete(o.downloadedSongs, song.ID)
		o.mu.Unlock()
	}

	return nil
}

// remainingSongRefs returns the song ids still referenced by the user's
// downloaded items, excluding the item being removed.
func (o *Orchestrator) remainingSongRefs(userID, excludeItemID string) (map[string]bool, error) {
	refs := make(map[string]bool)
	for _, table := range []string{models.TableAlbums, models.TablePlaylists, models.TableMixes} {
		items, err := o.catalog.GetAllForUser(table, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %w", table, err)
		}
		for _, item := range items {
			if item.ID == excludeItemID {
				continue
			}
			for _, song := range item.Songs {
				refs[song.ID] = true
			}
		}
	}
	return refs, nil
}

// collectAssetURLs derives the full asset set for an item: the item cover,
// each song's cover and each song's media segments. The HLS manifest is
// fetched transiently to discover segments and is not itself a cache entry.
// Manifest failures drop that song's segments, not the download.
func (o *Orchestrator) collectAssetURLs(ctx context.Context, meta *musicapi.ItemMetadata) []string {
	seen := make(map[string]bool)
	var urls []string
	add := func(u string) {
		if u == "" || seen[u] {
			return
		}
		seen[u] = true
		urls = append(urls, u)
	}

	add(meta.ImageURL)
	for _, song := range meta.Songs {
		add(song.ImageURL)
		if song.HLSURL == "" {
			continue
		}
		segments, err := hls.SegmentURLs(ctx, o.httpClient, song.HLSURL)
		if err != nil {
			o.logger.Warn("failed to expand manifest", "song_id", song.ID, "url", song.HLSURL, "error", err)
			continue
		}
		for _, segment := range segments {
			add(segment)
		}
	}

	return urls
}

// itemAssetURLs derives the asset set from a stored item record, using the
// same manifest expansion as the download path so deletion and size
// accounting see the same URLs.
func (o *Orchestrator) itemAssetURLs(ctx context.Context, item *models.Item) []string {
	meta := &musicapi.ItemMetadata{
		ImageURL: item.ImageURL,
		Songs:    item.Songs,
	}
	return o.collectAssetURLs(ctx, meta)
}

func (o *Orchestrator) fetchAsset(ctx context.Context, assetURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", assetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed with status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return data, nil
}

// setProgress records a milestone for an in-flight download
func (o *Orchestrator) setProgress(id string, pct int) {
	o.mu.Lock()
	o.progress[id] = pct
	o.mu.Unlock()
}

// cancelObserved reports whether a cancellation was requested for the item
// and consumes the flag
func (o *Orchestrator) cancelObserved(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.cancelled[id] {
		return false
	}
	delete(o.cancelled, id)
	return true
}

// finish clears the in-flight state for an item
func (o *Orchestrator) finish(id string) {
	o.mu.Lock()
	delete(o.downloading, id)
	delete(o.cancelled, id)
	delete(o.progress, id)
	o.mu.Unlock()
}

// IsItemDownloaded reports whether an item id is fully downloaded
func (o *Orchestrator) IsItemDownloaded(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.downloadedItems[id]
}

// IsSongDownloaded reports whether a song id is available offline
func (o *Orchestrator) IsSongDownloaded(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.downloadedSongs[id]
}

// IsDownloading reports whether a download is in flight for the item id
func (o *Orchestrator) IsDownloading(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.downloading[id]
}

// Progress returns a snapshot of the in-flight progress map, keyed by item id
func (o *Orchestrator) Progress() map[string]int {
	o.mu.Lock()
	defer o.mu.Unlock()

	snapshot := make(map[string]int, len(o.progress))
	for id, pct := range o.progress {
		snapshot[id] = pct
	}
	return snapshot
}

// DownloadedItemIDs returns the sorted ids of all downloaded items
func (o *Orchestrator) DownloadedItemIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sortedKeys(o.downloadedItems)
}

// DownloadedSongIDs returns the sorted ids of all downloaded songs
func (o *Orchestrator) DownloadedSongIDs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return sortedKeys(o.downloadedSongs)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// OfflineSize sums the cached bytes of every asset belonging to the user's
// downloaded items. Manifests are re-expanded on each call, so the number
// tracks what deletion would actually evict.
func (o *Orchestrator) OfflineSize(ctx context.Context, userID string) (int64, error) {
	if userID == "" {
		return 0, ErrAuthRequired
	}

	var total int64
	for _, table := range []string{models.TableAlbums, models.TablePlaylists, models.TableMixes} {
		items, err := o.catalog.GetAllForUser(table, userID)
		if err != nil {
			return 0, fmt.Errorf("failed to list %s: %w", table, err)
		}
		for _, item := range items {
			for _, assetURL := range o.itemAssetURLs(ctx, item) {
				data, err := o.assets.Match(assetURL)
				if err != nil {
					return 0, fmt.Errorf("failed to read cache: %w", err)
				}
				total += int64(len(data))
			}
		}
	}

	return total, nil
}
