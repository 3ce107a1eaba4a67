package storage

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/gwicho38/polidisc/internal/model"
)

// RecordCorrection appends one data_quality_corrections audit row, written
// by the politician normalizer's batch-audit job whenever it rewrites a
// field it did not have full confidence in.
func (s *Store) RecordCorrection(c model.DataQualityCorrection) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	encoded, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketCorrections)).Put([]byte(c.ID), encoded)
	})
}

// ListCorrections returns every correction for one entity, oldest first.
func (s *Store) ListCorrections(entityType, entityID string) ([]model.DataQualityCorrection, error) {
	var out []model.DataQualityCorrection
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketCorrections)).ForEach(func(k, v []byte) error {
			var c model.DataQualityCorrection
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if c.EntityType == entityType && c.EntityID == entityID {
				out = append(out, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}
