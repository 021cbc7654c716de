package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"musicvault/pkg/models"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return db
}

func testItem(id, userID string, itemType models.ItemType) *models.Item {
	return &models.Item{
		ID:       id,
		UserID:   userID,
		Type:     itemType,
		Title:    "Test " + id,
		ImageURL: "https://cdn.example.com/" + id + ".jpg",
		Songs: []models.Song{
			{ID: "song-1", Title: "First", Artist: "Artist A", HLSURL: "https://cdn.example.com/s1/master.m3u8"},
			{ID: "song-2", Title: "Second", Artist: "Artist B", HLSURL: "https://cdn.example.com/s2/master.m3u8"},
		},
		ServerModifiedAt: time.Now().Add(-time.Hour).UTC().Truncate(time.Second),
		DownloadedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestSaveAndGetItem(t *testing.T) {
	db := setupTestDB(t)

	item := testItem("pl-1", "user-1", models.ItemTypePlaylist)
	require.NoError(t, db.SaveItem(item))

	got, err := db.GetItem(models.TablePlaylists, "pl-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, item.ID, got.ID)
	require.Equal(t, item.UserID, got.UserID)
	require.Equal(t, item.Type, got.Type)
	require.Equal(t, item.Title, got.Title)
	require.Equal(t, item.Songs, got.Songs)
	require.True(t, item.ServerModifiedAt.Equal(got.ServerModifiedAt))
	require.True(t, item.DownloadedAt.Equal(got.DownloadedAt))
}

func TestGetItemAbsent(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetItem(models.TableAlbums, "missing", "user-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetItemOtherUser(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveItem(testItem("al-1", "user-1", models.ItemTypeAlbum)))

	got, err := db.GetItem(models.TableAlbums, "al-1", "user-2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestSaveItemOverwrites(t *testing.T) {
	db := setupTestDB(t)

	item := testItem("mx-1", "user-1", models.ItemTypeMix)
	require.NoError(t, db.SaveItem(item))

	item.Title = "Renamed"
	item.Songs = item.Songs[:1]
	require.NoError(t, db.SaveItem(item))

	got, err := db.GetItem(models.TableMixes, "mx-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Renamed", got.Title)
	require.Len(t, got.Songs, 1)
}

func TestSharedTables(t *testing.T) {
	db := setupTestDB(t)

	// Generated playlists land in the playlists table, personal mixes in mixes
	require.NoError(t, db.SaveItem(testItem("gp-1", "user-1", models.ItemTypeGeneratedPlaylist)))
	require.NoError(t, db.SaveItem(testItem("pm-1", "user-1", models.ItemTypePersonalMix)))

	got, err := db.GetItem(models.TablePlaylists, "gp-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, models.ItemTypeGeneratedPlaylist, got.Type)

	got, err = db.GetItem(models.TableMixes, "pm-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, models.ItemTypePersonalMix, got.Type)
}

func TestDeleteItem(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveItem(testItem("pl-1", "user-1", models.ItemTypePlaylist)))
	require.NoError(t, db.DeleteItem(models.TablePlaylists, "pl-1"))

	got, err := db.GetItem(models.TablePlaylists, "pl-1", "user-1")
	require.NoError(t, err)
	require.Nil(t, got)

	// Deleting an absent record is a no-op
	require.NoError(t, db.DeleteItem(models.TablePlaylists, "pl-1"))
}

func TestGetAllForUser(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveItem(testItem("pl-1", "user-1", models.ItemTypePlaylist)))
	require.NoError(t, db.SaveItem(testItem("pl-2", "user-1", models.ItemTypePlaylist)))
	require.NoError(t, db.SaveItem(testItem("pl-3", "user-2", models.ItemTypePlaylist)))

	items, err := db.GetAllForUser(models.TablePlaylists, "user-1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	for _, item := range items {
		require.Equal(t, "user-1", item.UserID)
	}
}

func TestGetAllItems(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveItem(testItem("al-1", "user-1", models.ItemTypeAlbum)))
	require.NoError(t, db.SaveItem(testItem("al-2", "user-2", models.ItemTypeAlbum)))

	items, err := db.GetAllItems(models.TableAlbums)
	require.NoError(t, err)
	require.Len(t, items, 2)
}

func TestUnknownTable(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetItem("downloads", "x", "user-1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown item table")

	require.Error(t, db.DeleteItem("songs; DROP TABLE albums", "x"))
}

func TestSaveAndGetSong(t *testing.T) {
	db := setupTestDB(t)

	song := models.Song{
		ID:       "song-1",
		Title:    "Track",
		Artist:   "Artist",
		ImageURL: "https://cdn.example.com/song-1.jpg",
		HLSURL:   "https://cdn.example.com/song-1/master.m3u8",
		Duration: 241.5,
	}
	require.NoError(t, db.SaveSong("user-1", song))

	got, err := db.GetSong("song-1", "user-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, song, *got)
}

func TestGetSongAbsentOrOtherUser(t *testing.T) {
	db := setupTestDB(t)

	got, err := db.GetSong("missing", "user-1")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, db.SaveSong("user-1", models.Song{ID: "song-1", Title: "Track"}))

	got, err = db.GetSong("song-1", "user-2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestDeleteSong(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveSong("user-1", models.Song{ID: "song-1", Title: "Track"}))
	require.NoError(t, db.DeleteSong("song-1"))

	got, err := db.GetSong("song-1", "user-1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestGetAllSongsForUser(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveSong("user-1", models.Song{ID: "song-1", Title: "A"}))
	require.NoError(t, db.SaveSong("user-1", models.Song{ID: "song-2", Title: "B"}))
	require.NoError(t, db.SaveSong("user-2", models.Song{ID: "song-3", Title: "C"}))

	songs, err := db.GetAllSongsForUser("user-1")
	require.NoError(t, err)
	require.Len(t, songs, 2)
}

func TestSongIDs(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.SaveSong("user-1", models.Song{ID: "song-b", Title: "B"}))
	require.NoError(t, db.SaveSong("user-2", models.Song{ID: "song-a", Title: "A"}))

	ids, err := db.SongIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"song-a", "song-b"}, ids)
}

func TestUserIDs(t *testing.T) {
	db := setupTestDB(t)

	ids, err := db.UserIDs()
	require.NoError(t, err)
	require.Empty(t, ids)

	require.NoError(t, db.SaveItem(testItem("al-1", "user-b", models.ItemTypeAlbum)))
	require.NoError(t, db.SaveItem(testItem("pl-1", "user-a", models.ItemTypePlaylist)))
	require.NoError(t, db.SaveItem(testItem("mx-1", "user-a", models.ItemTypeMix)))

	ids, err = db.UserIDs()
	require.NoError(t, err)
	require.Equal(t, []string{"user-a", "user-b"}, ids)
}
