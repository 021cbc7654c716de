package musicapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"musicvault/pkg/models"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	client := New("https://api.example.com")
	require.NotNil(t, client)
	require.Equal(t, "https://api.example.com", client.baseURL)
	require.NotNil(t, client.httpClient)
}

func TestHTTPClient_GetItem_Playlist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/playlists/pl-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"_id": "pl-1",
			"name": "Road Trip",
			"imageUrl": "https://cdn.example.com/pl-1.jpg",
			"updatedAt": "2026-05-01T10:00:00Z",
			"songs": [
				{"_id": "s-1", "title": "First", "artist": "A", "hlsUrl": "https://cdn.example.com/s-1/master.m3u8"},
				{"_id": "s-2", "title": "Second", "artist": "B"}
			]
		}`))
	}))
	defer server.Close()

	client := New(server.URL)
	meta, err := client.GetItem(context.Background(), models.ItemTypePlaylist, "pl-1")
	require.NoError(t, err)
	require.Equal(t, "pl-1", meta.ID)
	require.Equal(t, "Road Trip", meta.DisplayTitle())
	require.Len(t, meta.Songs, 2)
	require.Equal(t, "https://cdn.example.com/s-1/master.m3u8", meta.Songs[0].HLSURL)
	require.Equal(t, time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC), meta.ModifiedAt(models.ItemTypePlaylist))
}

func TestHTTPClient_GetItem_AlbumNestedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/albums/al-1", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"album": {
				"_id": "al-1",
				"title": "Night Drive",
				"imageUrl": "https://cdn.example.com/al-1.jpg",
				"songs": [{"_id": "s-9", "title": "Only", "artist": "C"}]
			}
		}`))
	}))
	defer server.Close()

	client := New(server.URL)
	meta, err := client.GetItem(context.Background(), models.ItemTypeAlbum, "al-1")
	require.NoError(t, err)
	require.Equal(t, "al-1", meta.ID)
	require.Equal(t, "Night Drive", meta.DisplayTitle())
	require.Len(t, meta.Songs, 1)
}

func TestHTTPClient_GetItem_PersonalMixEndpoint(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Write([]byte(`{"_id": "pm-1", "title": "My Mix", "generatedOn": "2026-04-01T00:00:00Z", "songs": []}`))
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.GetItem(context.Background(), models.ItemTypePersonalMix, "pm-1")
	require.NoError(t, err)
	require.Equal(t, "/personal-mixes/pm-1", requestedPath)
}

func TestHTTPClient_GetItem_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL)
	_, err := client.GetItem(context.Background(), models.ItemTypeMix, "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 404")
}

func TestHTTPClient_GetItem_UnknownType(t *testing.T) {
	client := New("https://api.example.com")
	_, err := client.GetItem(context.Background(), models.ItemType("podcast"), "x")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown item type")
}

func TestItemMetadata_ModifiedAt(t *testing.T) {
	updated := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	generated := time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)
	meta := &ItemMetadata{UpdatedAt: updated, GeneratedOn: generated}

	require.Equal(t, updated, meta.ModifiedAt(models.ItemTypePlaylist))
	require.Equal(t, updated, meta.ModifiedAt(models.ItemTypePersonalMix))
	require.Equal(t, generated, meta.ModifiedAt(models.ItemTypeMix))
	require.Equal(t, generated, meta.ModifiedAt(models.ItemTypeGeneratedPlaylist))
}
