// Package catalog provides the persisted per-user index of downloaded items and songs
package catalog

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"musicvault/pkg/models"

	_ "modernc.org/sqlite"
)

// itemTables are the tables that hold downloadable-item records. Songs live
// in their own table because the same song may appear in several items.
var itemTables = map[string]bool{
	models.TableAlbums:    true,
	models.TablePlaylists: true,
	models.TableMixes:     true,
}

// DB wraps the SQLite catalog index
type DB struct {
	conn *sql.DB
}

// New creates a new catalog connection and initializes the schema
func New(dbPath string) (*DB, error) {
	// Add connection parameters to help with concurrent access
	connString := dbPath
	if dbPath != ":memory:" {
		connString = dbPath + "?_busy_timeout=30000&_journal_mode=WAL&_synchronous=NORMAL"
	}

	conn, err := sql.Open("sqlite", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// Set connection pool settings
	conn.SetMaxOpenConns(1) // SQLite doesn't handle concurrent writes well
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn}

	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// Close closes the catalog connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS albums (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_type TEXT NOT NULL,
		title TEXT NOT NULL,
		image_url TEXT,
		songs_json TEXT NOT NULL,
		server_modified_at DATETIME,
		downloaded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS playlists (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_type TEXT NOT NULL,
		title TEXT NOT NULL,
		image_url TEXT,
		songs_json TEXT NOT NULL,
		server_modified_at DATETIME,
		downloaded_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS mixes (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		item_type TEXT NOT NULL,
		title TEXT NOT NULL,
		image_url TEXT,
		songs_json TEXT NOT NULL,
		server_modified_at DATETIME,
		downloaded_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_albums_user_id ON albums(user_id);
	CREATE INDEX IF NOT EXISTS idx_playlists_user_id ON playlists(user_id);
	CREATE INDEX IF NOT EXISTS idx_mixes_user_id ON mixes(user_id);

	CREATE TABLE IF NOT EXISTS songs (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		artist TEXT,
		image_url TEXT,
		hls_url TEXT,
		duration REAL DEFAULT 0,
		saved_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_songs_user_id ON songs(user_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

func validItemTable(table string) error {
	if !itemTables[table] {
		return fmt.Errorf("unknown item table %q", table)
	}
	return nil
}

// SaveItem writes an item record to its table, overwriting any existing
// record with the same id (last write wins)
func (db *DB) SaveItem(item *models.Item) error {
	table := item.Type.Table()
	if err := validItemTable(table); err != nil {
		return err
	}

	songsJSON, err := json.Marshal(item.Songs)
	if err != nil {
		return fmt.Errorf("failed to encode songs: %w", err)
	}

	query := fmt.Sprintf(`
	INSERT INTO %s (id, user_id, item_type, title, image_url, songs_json, server_modified_at, downloaded_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		item_type = excluded.item_type,
		title = excluded.title,
		image_url = excluded.image_url,
		songs_json = excluded.songs_json,
		server_modified_at = excluded.server_modified_at,
		downloaded_at = excluded.downloaded_at
	`, table)

	_, err = db.conn.Exec(query,
		item.ID, item.UserID, item.Type, item.Title, item.ImageURL,
		string(songsJSON), item.ServerModifiedAt, item.DownloadedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save item: %w", err)
	}

	return nil
}

// GetItem retrieves an item record by id. Returns nil when the record is
// absent or belongs to a different user; user scoping is applied here, not
// by the storage engine.
func (db *DB) GetItem(table, id, userID string) (*models.Item, error) {
	if err := validItemTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, user_id, item_type, title, image_url, songs_json, server_modified_at, downloaded_at
	FROM %s WHERE id = ?
	`, table)

	item, err := scanItem(db.conn.QueryRow(query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	if item.UserID != userID {
		return nil, nil
	}

	return item, nil
}

// DeleteItem removes an item record by id
func (db *DB) DeleteItem(table, id string) error {
	if err := validItemTable(table); err != nil {
		return err
	}

	_, err := db.conn.Exec(fmt.Sprintf("DELETE FROM %s WHERE id = ?", table), id)
	if err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}

	return nil
}

// GetAllForUser retrieves every item record in a table belonging to a user
func (db *DB) GetAllForUser(table, userID string) ([]*models.Item, error) {
	if err := validItemTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, user_id, item_type, title, image_url, songs_json, server_modified_at, downloaded_at
	FROM %s WHERE user_id = ?
	ORDER BY downloaded_at ASC, id ASC
	`, table)

	return db.queryItems(query, userID)
}

// GetAllItems retrieves every item record in a table across all users
func (db *DB) GetAllItems(table string) ([]*models.Item, error) {
	if err := validItemTable(table); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`
	SELECT id, user_id, item_type, title, image_url, songs_json, server_modified_at, downloaded_at
	FROM %s
	ORDER BY downloaded_at ASC, id ASC
	`, table)

	return db.queryItems(query)
}

func (db *DB) queryItems(query string, args ...any) ([]*models.Item, error) {
	rows, err := db.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var item models.Item
	var songsJSON string
	err := row.Scan(
		&item.ID, &item.UserID, &item.Type, &item.Title, &item.ImageURL,
		&songsJSON, &item.ServerModifiedAt, &item.DownloadedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(songsJSON), &item.Songs); err != nil {
		return nil, fmt.Errorf("failed to decode songs: %w", err)
	}

	return &item, nil
}

// SaveSong writes a song record, overwriting any existing record with the
// same id (last write wins)
func (db *DB) SaveSong(userID string, song models.Song) error {
	query := `
	INSERT INTO songs (id, user_id, title, artist, image_url, hls_url, duration, saved_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		user_id = excluded.user_id,
		title = excluded.title,
		artist = excluded.artist,
		image_url = excluded.image_url,
		hls_url = excluded.hls_url,
		duration = excluded.duration,
		saved_at = excluded.saved_at
	`

	_, err := db.conn.Exec(query,
		song.ID, userID, song.Title, song.Artist, song.ImageURL,
		song.HLSURL, song.Duration, time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to save song: %w", err)
	}

	return nil
}

// GetSong retrieves a song record by id scoped to a user. Returns nil when
// absent.
func (db *DB) GetSong(id, userID string) (*models.Song, error) {
	query := `
	SELECT id, user_id, title, artist, image_url, hls_url, duration
	FROM songs WHERE id = ?
	`

	var song models.Song
	var owner string
	err := db.conn.QueryRow(query, id).Scan(
		&song.ID, &owner, &song.Title, &song.Artist,
		&song.ImageURL, &song.HLSURL, &song.Duration,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get song: %w", err)
	}

	if owner != userID {
		return nil, nil
	}

	return &song, nil
}

// DeleteSong removes a song record by id
func (db *DB) DeleteSong(id string) error {
	_, err := db.conn.Exec("DELETE FROM songs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete song: %w", err)
	}

	return nil
}

// GetAllSongsForUser retrieves every song record belonging to a user
func (db *DB) GetAllSongsForUser(userID string) ([]models.Song, error) {
	query := `
	SELECT id, title, artist, image_url, hls_url, duration
	FROM songs WHERE user_id = ?
	ORDER BY saved_at ASC, id ASC
	`

	rows, err := db.conn.Query(query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query songs: %w", err)
	}
	defer rows.Close()

	var songs []models.Song
	for rows.Next() {
		var song models.Song
		err := rows.Scan(
			&song.ID, &song.Title, &song.Artist,
			&song.ImageURL, &song.HLSURL, &song.Duration,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan song: %w", err)
		}
		songs = append(songs, song)
	}

	return songs, rows.Err()
}

// SongIDs returns the id of every stored song record
func (db *DB) SongIDs() ([]string, error) {
	rows, err := db.conn.Query("SELECT id FROM songs ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to query song ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan song id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// UserIDs returns the distinct user ids that own at least one downloaded item
func (db *DB) UserIDs() ([]string, error) {
	query := `
	SELECT DISTINCT user_id FROM (
		SELECT user_id FROM albums
		UNION SELECT user_id FROM playlists
		UNION SELECT user_id FROM mixes
	) ORDER BY user_id
	`

	rows, err := db.conn.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query user ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}
