// Package registry remembers every access key the converter has emitted, so
// a manifest converted twice is reported instead of silently duplicated.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const keysBucketName = "keys"

var ErrKeysBucketNotFound = errors.New("keys bucket not found")

// Entry is what is stored for one key.
type Entry struct {
	Key        string    `json:"key"`
	Source     string    `json:"source"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Store is a bbolt-backed key registry.
type Store struct {
	db  *bolt.DB
	now func() time.Time
}

// Open opens (creating if needed) the registry file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create registry directory: %w", err)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open registry %s: %w", path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(keysBucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores key as emitted from source. When the key is already present
// the stored entry is kept and returned with seen set.
func (s *Store) Record(key, source string) (prev Entry, seen bool, err error) {
	err = s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysBucketName))
		if bucket == nil {
			return ErrKeysBucketNotFound
		}

		if v := bucket.Get([]byte(key)); v != nil {
			seen = true
			return json.Unmarshal(v, &prev)
		}

		data, err := json.Marshal(Entry{Key: key, Source: source, RecordedAt: s.now().UTC()})
		if err != nil {
			return err
		}
		return bucket.Put([]byte(key), data)
	})
	return prev, seen, err
}

// Lookup returns the entry of key.
func (s *Store) Lookup(key string) (e Entry, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysBucketName))
		if bucket == nil {
			return ErrKeysBucketNotFound
		}
		v := bucket.Get([]byte(key))
		if v == nil {
			return nil
		}
		ok = true
		return json.Unmarshal(v, &e)
	})
	return e, ok, err
}

// Count returns the number of registered keys.
func (s *Store) Count() (n int, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(keysBucketName))
		if bucket == nil {
			return ErrKeysBucketNotFound
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}
