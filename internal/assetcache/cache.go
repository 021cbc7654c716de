// Package assetcache provides a URL-keyed binary blob store for offline assets
package assetcache

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketAssets = []byte("assets")

// Cache stores fetched asset bytes (cover images, HLS manifests, media
// segments) keyed by their absolute URL. Entries have no expiry; they live
// until explicit deletion or a full purge.
type Cache struct {
	db *bolt.DB
}

// New opens the asset cache at the given path
func New(path string) (*Cache, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open asset cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketAssets)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create assets bucket: %w", err)
	}

	return &Cache{db: db}, nil
}

// Close closes the underlying store
func (c *Cache) Close() error {
	return c.db.Close()
}

// Put stores the response bytes for a URL, overwriting any existing entry
func (c *Cache) Put(url string, data []byte) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAssets).Put([]byte(url), data)
	})
}

// Match returns the cached bytes for a URL, or nil if the URL is not cached
func (c *Cache) Match(url string) ([]byte, error) {
	var data []byte
	err := c.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketAssets).Get([]byte(url))
		if v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// Delete removes the entry for a URL; deleting an absent URL is a no-op
func (c *Cache) Delete(url string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAssets).Delete([]byte(url))
	})
}

// DeleteAll purges every cached asset
func (c *Cache) DeleteAll() error {
	return c.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bucketAssets); err != nil {
			return err
		}
		_, err := tx.CreateBucket(bucketAssets)
		return err
	})
}

// Len returns the number of cached entries
func (c *Cache) Len() (int, error) {
	var n int
	err := c.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketAssets).Stats().KeyN
		return nil
	})
	return n, err
}

// Size returns the total number of stored value bytes
func (c *Cache) Size() (int64, error) {
	var total int64
	err := c.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketAssets).ForEach(func(_, v []byte) error {
			total += int64(len(v))
			return nil
		})
	})
	return total, err
}
