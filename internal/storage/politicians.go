package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/gwicho38/polidisc/internal/model"
)

// politicianKey builds the normalized lookup key used when a record has no
// BioguideID: lowercased last_first_chamber. This mirrors the substring
// cache key the original politician matcher used, narrowed to an exact key
// for the identity index and left to the caller for fuzzy matching.
func politicianKey(lastName, firstName, chamber string) string {
	return strings.ToLower(fmt.Sprintf("%s_%s_%s", lastName, firstName, chamber))
}

// GetPoliticianByID returns a politician by its storage id.
func (s *Store) GetPoliticianByID(id string) (model.Politician, bool, error) {
	var out model.Politician
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketPoliticians)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	return out, found, err
}

// FindPolitician looks up a politician by BioguideID first (if present),
// falling back to the normalized (last, first, chamber) index.
func (s *Store) FindPolitician(bioguideID, lastName, firstName, chamber string) (model.Politician, bool, error) {
	var out model.Politician
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		politicians := tx.Bucket([]byte(BucketPoliticians))
		byKey := tx.Bucket([]byte(BucketPoliticiansByKey))

		if bioguideID != "" {
			if err := politicians.ForEach(func(k, v []byte) error {
				if found {
					return nil
				}
				var p model.Politician
				if err := json.Unmarshal(v, &p); err != nil {
					return err
				}
				if p.BioguideID == bioguideID {
					out, found = p, true
				}
				return nil
			}); err != nil || found {
				return err
			}
		}

		key := []byte(politicianKey(lastName, firstName, chamber))
		id := byKey.Get(key)
		if id == nil {
			return nil
		}
		v := politicians.Get(id)
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	return out, found, err
}

// UpsertPolitician finds an existing politician by BioguideID or normalized
// name+chamber, updates whichever fields on p are non-empty, or inserts p as
// a new row if no match exists. Returns the final stored row and whether
// this call created it (false means an existing politician was matched).
func (s *Store) UpsertPolitician(p model.Politician) (model.Politician, bool, error) {
	now := time.Now().UTC()
	var out model.Politician
	created := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		politicians := tx.Bucket([]byte(BucketPoliticians))
		byKey := tx.Bucket([]byte(BucketPoliticiansByKey))

		existing, found, err := s.findPoliticianTx(tx, p.BioguideID, p.LastName, p.FirstName, p.Chamber)
		if err != nil {
			return err
		}

		if found {
			merged := existing
			mergePolitician(&merged, p)
			merged.UpdatedAt = now
			out = merged
		} else {
			p.ID = uuid.NewString()
			p.CreatedAt = now
			p.UpdatedAt = now
			out = p
			created = true
		}

		encoded, err := json.Marshal(out)
		if err != nil {
			return err
		}
		if err := politicians.Put([]byte(out.ID), encoded); err != nil {
			return err
		}
		key := []byte(politicianKey(out.LastName, out.FirstName, out.Chamber))
		return byKey.Put(key, []byte(out.ID))
	})
	return out, created, err
}

func (s *Store) findPoliticianTx(tx *bolt.Tx, bioguideID, lastName, firstName, chamber string) (model.Politician, bool, error) {
	politicians := tx.Bucket([]byte(BucketPoliticians))
	byKey := tx.Bucket([]byte(BucketPoliticiansByKey))

	var out model.Politician
	if bioguideID != "" {
		found := false
		err := politicians.ForEach(func(k, v []byte) error {
			if found {
				return nil
			}
			var p model.Politician
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			if p.BioguideID == bioguideID {
				out, found = p, true
			}
			return nil
		})
		if err != nil || found {
			return out, found, err
		}
	}

	key := []byte(politicianKey(lastName, firstName, chamber))
	id := byKey.Get(key)
	if id == nil {
		return model.Politician{}, false, nil
	}
	v := politicians.Get(id)
	if v == nil {
		return model.Politician{}, false, nil
	}
	if err := json.Unmarshal(v, &out); err != nil {
		return model.Politician{}, false, err
	}
	return out, true, nil
}

// mergePolitician overlays non-empty fields from next onto base, following
// the distillation's explicit update_existing field list (everything except
// transaction_type, which does not apply to a politician row at all).
func mergePolitician(base *model.Politician, next model.Politician) {
	if next.FirstName != "" {
		base.FirstName = next.FirstName
	}
	if next.LastName != "" {
		base.LastName = next.LastName
	}
	if next.FullName != "" {
		base.FullName = next.FullName
	}
	if next.Role != "" {
		base.Role = next.Role
	}
	if next.Chamber != "" {
		base.Chamber = next.Chamber
	}
	if next.Party != "" {
		base.Party = next.Party
	}
	if next.StateOrCountry != "" {
		base.StateOrCountry = next.StateOrCountry
	}
	if next.BioguideID != "" {
		base.BioguideID = next.BioguideID
	}
	if next.District != "" {
		base.District = next.District
	}
}

// AllPoliticians returns every politician row, for the normalizer audit job
// and for PoliticianMatcher's roster load.
func (s *Store) AllPoliticians() ([]model.Politician, error) {
	var out []model.Politician
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketPoliticians)).ForEach(func(k, v []byte) error {
			var p model.Politician
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	return out, err
}
