// Package musicapi provides client functionality for the streaming backend's REST API
package musicapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"musicvault/pkg/models"
)

// ItemMetadata is the server's view of an album, playlist or mix,
// including the full song list used to derive the offline asset set.
type ItemMetadata struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Name        string        `json:"name"`
	ImageURL    string        `json:"imageUrl"`
	Songs       []models.Song `json:"songs"`
	UpdatedAt   time.Time     `json:"updatedAt"`
	GeneratedOn time.Time     `json:"generatedOn"`
}

// DisplayTitle returns the item's display name; playlists use "name",
// albums and mixes use "title".
func (m *ItemMetadata) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return m.Name
}

// ModifiedAt returns the server-side modification timestamp for the given
// item type. Mixes and generated playlists carry a generation timestamp,
// everything else an update timestamp.
func (m *ItemMetadata) ModifiedAt(itemType models.ItemType) time.Time {
	switch itemType {
	case models.ItemTypeMix, models.ItemTypeGeneratedPlaylist:
		return m.GeneratedOn
	default:
		return m.UpdatedAt
	}
}

// Client defines the interface for music API operations
//
//go:generate mockgen -source=client.go -destination=mocks/mock_client.go -package=mocks
type Client interface {
	GetItem(ctx context.Context, itemType models.ItemType, id string) (*ItemMetadata, error)
}

// HTTPClient is the HTTP implementation of Client
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// endpoints maps item types to their REST collection paths. Personal mixes
// and generated playlists are served from their own endpoints even though
// they are stored under the shared mixes/playlists tables.
var endpoints = map[models.ItemType]string{
	models.ItemTypeAlbum:             "albums",
	models.ItemTypePlaylist:          "playlists",
	models.ItemTypeMix:               "mixes",
	models.ItemTypePersonalMix:       "personal-mixes",
	models.ItemTypeGeneratedPlaylist: "generated-playlists",
}

// New creates a new music API client
func New(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetItem fetches item metadata from the item type's REST endpoint
func (c *HTTPClient) GetItem(ctx context.Context, itemType models.ItemType, id string) (*ItemMetadata, error) {
	path, ok := endpoints[itemType]
	if !ok {
		return nil, fmt.Errorf("unknown item type %q", itemType)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", c.baseURL, path, id)

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d", resp.StatusCode)
	}

	// Albums nest their payload under an "album" key; all other item
	// types return the metadata at the top level.
	if itemType == models.ItemTypeAlbum {
		var wrapped struct {
			Album ItemMetadata `json:"album"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wrapped); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		return &wrapped.Album, nil
	}

	var meta ItemMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &meta, nil
}
