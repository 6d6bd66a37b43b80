// Package cursor provides the read-cursor persistence adapters: a local
// bbolt file for single-device use and redis for shared state.
package cursor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/avoskov/huddle/internal/core"
	"github.com/avoskov/huddle/internal/domain"
)

var bucketCursors = []byte("cursors")

// BoltStore keeps cursors in a local bbolt file, surviving process
// restarts.
type BoltStore struct {
	db *bolt.DB
}

var _ core.CursorStore = (*BoltStore)(nil)

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCursors)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("bolt bucket: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func boltKey(meetingID domain.MeetingID, userID domain.ParticipantID) []byte {
	return []byte(string(meetingID) + "|" + string(userID))
}

func (s *BoltStore) Get(ctx context.Context, meetingID domain.MeetingID, userID domain.ParticipantID) (domain.SyncCursor, error) {
	var cur domain.SyncCursor
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCursors).Get(boltKey(meetingID, userID))
		if v == nil {
			return core.ErrCursorMiss
		}
		return json.Unmarshal(v, &cur)
	})
	if err != nil {
		return domain.SyncCursor{}, err
	}
	return cur, nil
}

func (s *BoltStore) Set(ctx context.Context, meetingID domain.MeetingID, userID domain.ParticipantID, cursor domain.SyncCursor) error {
	v, err := json.Marshal(cursor)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCursors).Put(boltKey(meetingID, userID), v)
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
