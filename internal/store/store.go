// Package store is the bbolt-backed device store. It keeps the last
// good playlist document and the resume position so a rebooted device
// can put its show back up before any network is available. The playback
// engine itself never touches it.
package store

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var (
	playlistBucket = []byte("playlist")
	stateBucket    = []byte("state")

	documentKey = []byte("document")
	positionKey = []byte("position")
)

// Store wraps the device database.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the device store at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open device store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, bucket := range [][]byte{playlistBucket, stateBucket} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("could not create store buckets: %w", err)
	}

	return &Store{db: db}, nil
}

// SavePlaylist stores the raw playlist document as the last good one.
func (s *Store) SavePlaylist(document []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(playlistBucket).Put(documentKey, document)
	})
}

// Playlist returns the last good playlist document, or nil when none was
// saved yet.
func (s *Store) Playlist() ([]byte, error) {
	var document []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(playlistBucket).Get(documentKey); v != nil {
			document = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return document, nil
}

// SavePosition stores the resume offset.
func (s *Store) SavePosition(offset time.Duration) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		var buf [8]byte
		binary.BigEndian.PutUint64(buf[:], uint64(offset))
		return tx.Bucket(stateBucket).Put(positionKey, buf[:])
	})
}

// Position returns the stored resume offset, 0 when none exists.
func (s *Store) Position() (time.Duration, error) {
	var offset time.Duration
	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(stateBucket).Get(positionKey); len(v) == 8 {
			offset = time.Duration(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return offset, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
