// Package state persists the small pieces of session state that outlive a
// map attach/detach cycle, currently just the viewport record.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

var (
	bucketSession = []byte("session")
	keyViewport   = []byte("viewport")
)

// Record is the persisted viewport: restored on attach, saved on detach.
type Record struct {
	Zoom float64 `json:"zoom"`
	Lon  float64 `json:"centerLongitude"`
	Lat  float64 `json:"centerLatitude"`
}

// Store is a bbolt-backed session store at a fixed application-local path.
type Store struct {
	db *bbolt.DB
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open state store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveViewport(r Record) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode viewport record: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(bucketSession)
		if err != nil {
			return err
		}
		return b.Put(keyViewport, data)
	})
}

// LoadViewport returns the saved record, or ok=false when no record has been
// saved yet.
func (s *Store) LoadViewport() (Record, bool, error) {
	var r Record
	var ok bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketSession)
		if b == nil {
			return nil
		}
		data := b.Get(keyViewport)
		if data == nil {
			return nil
		}
		if err := json.Unmarshal(data, &r); err != nil {
			return fmt.Errorf("failed to decode viewport record: %w", err)
		}
		ok = true
		return nil
	})
	return r, ok, err
}
