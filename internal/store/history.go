package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kilupskalvis/bibsync/internal/models"
	bolt "go.etcd.io/bbolt"
)

// historyKey orders records by insertion
func historyKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%016d", seq))
}

// RecordSync appends a record to the sync history. ID and Timestamp are
// assigned when empty.
func (s *Store) RecordSync(rec *models.SyncRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)
		if bucket == nil {
			return fmt.Errorf("sync history bucket not found")
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("next sequence: %w", err)
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal sync record: %w", err)
		}
		return bucket.Put(historyKey(seq), data)
	})
}

// ListSyncHistory returns records newest first. A limit of 0 returns all.
func (s *Store) ListSyncHistory(limit int) ([]*models.SyncRecord, error) {
	var records []*models.SyncRecord

	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketHistory)
		if bucket == nil {
			return nil
		}

		c := bucket.Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var rec models.SyncRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unmarshal sync record: %w", err)
			}
			records = append(records, &rec)
			if limit > 0 && len(records) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}
