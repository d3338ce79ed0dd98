package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/bibsync/internal/models"
	bolt "go.etcd.io/bbolt"
)

// ErrNoPendingMerge is returned when no merge is waiting for the given file
var ErrNoPendingMerge = errors.New("no merge in progress")

// SavePendingMerge stores a prepared merge for a tracked file, replacing any
// earlier one. ID and CreatedAt are assigned when empty.
func (s *Store) SavePendingMerge(pm *models.PendingMerge) error {
	if pm.ID == "" {
		pm.ID = uuid.New().String()
	}
	if pm.CreatedAt.IsZero() {
		pm.CreatedAt = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket == nil {
			return fmt.Errorf("pending merges bucket not found")
		}

		data, err := json.Marshal(pm)
		if err != nil {
			return fmt.Errorf("marshal pending merge: %w", err)
		}
		return bucket.Put([]byte(pm.Path), data)
	})
}

// GetPendingMerge returns the pending merge for a tracked file, or
// ErrNoPendingMerge if there is none.
func (s *Store) GetPendingMerge(path string) (*models.PendingMerge, error) {
	var pm *models.PendingMerge

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket == nil {
			return nil
		}

		data := bucket.Get([]byte(path))
		if data == nil {
			return nil
		}

		pm = &models.PendingMerge{}
		return json.Unmarshal(data, pm)
	})
	if err != nil {
		return nil, fmt.Errorf("get pending merge: %w", err)
	}
	if pm == nil {
		return nil, ErrNoPendingMerge
	}
	return pm, nil
}

// HasPendingMerge reports whether a merge is waiting for the tracked file
func (s *Store) HasPendingMerge(path string) (bool, error) {
	_, err := s.GetPendingMerge(path)
	if errors.Is(err, ErrNoPendingMerge) {
		return false, nil
	}
	return err == nil, err
}

// DeletePendingMerge removes the pending merge for a tracked file
func (s *Store) DeletePendingMerge(path string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketPending)
		if bucket == nil {
			return fmt.Errorf("pending merges bucket not found")
		}

		if bucket.Get([]byte(path)) == nil {
			return ErrNoPendingMerge
		}
		return bucket.Delete([]byte(path))
	})
}
