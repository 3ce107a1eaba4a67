package storage

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/gwicho38/polidisc/internal/model"
)

// disclosureKey builds the uniqueness key for trading_disclosures:
// (politician_id, transaction_date, asset_name, transaction_type,
// disclosure_date).
func disclosureKey(d model.NormalizedDisclosure) string {
	return fmt.Sprintf("%s|%s|%s|%s|%s",
		d.PoliticianID,
		d.TransactionDate.Format("2006-01-02"),
		d.AssetName,
		d.TransactionType,
		d.DisclosureDate.Format("2006-01-02"))
}

// PublishOutcome reports what UpsertDisclosure did with one record.
type PublishOutcome string

const (
	PublishInserted PublishOutcome = "inserted"
	PublishUpdated  PublishOutcome = "updated"
	PublishSkipped  PublishOutcome = "skipped"
)

// UpsertDisclosure implements the publisher's insert/update/skip decision
// (§4.4): if no row exists for the uniqueness key, insert. If one exists and
// updateExisting is false, skip. If one exists and updateExisting is true,
// update only the mutable field list — asset_ticker, asset_type, the amount
// fields, source_url, and raw_data — explicitly leaving transaction_type
// untouched, matching this system's documented publisher contract.
func (s *Store) UpsertDisclosure(d model.NormalizedDisclosure, updateExisting bool) (PublishOutcome, error) {
	key := disclosureKey(d)

	var outcome PublishOutcome
	err := s.db.Update(func(tx *bolt.Tx) error {
		disclosures := tx.Bucket([]byte(BucketDisclosures))
		dedup := tx.Bucket([]byte(BucketDisclosuresByDedup))

		existingID := dedup.Get([]byte(key))
		if existingID == nil {
			id := uuid.NewString()
			encoded, err := json.Marshal(d)
			if err != nil {
				return err
			}
			if err := disclosures.Put([]byte(id), encoded); err != nil {
				return err
			}
			outcome = PublishInserted
			return dedup.Put([]byte(key), []byte(id))
		}

		if !updateExisting {
			outcome = PublishSkipped
			return nil
		}

		v := disclosures.Get(existingID)
		if v == nil {
			outcome = PublishSkipped
			return nil
		}
		var stored model.NormalizedDisclosure
		if err := json.Unmarshal(v, &stored); err != nil {
			return err
		}
		stored.AssetTicker = d.AssetTicker
		stored.AssetType = d.AssetType
		stored.AmountRangeMin = d.AmountRangeMin
		stored.AmountRangeMax = d.AmountRangeMax
		stored.AmountExact = d.AmountExact
		stored.SourceURL = d.SourceURL
		stored.RawData = d.RawData
		encoded, err := json.Marshal(stored)
		if err != nil {
			return err
		}
		outcome = PublishUpdated
		return disclosures.Put(existingID, encoded)
	})
	return outcome, err
}

// GetDisclosureByID returns a trading_disclosures row by its storage id.
func (s *Store) GetDisclosureByID(id string) (model.NormalizedDisclosure, bool, error) {
	var out model.NormalizedDisclosure
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketDisclosures)).Get([]byte(id))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	return out, found, err
}

// CountDisclosures returns the total number of trading_disclosures rows.
func (s *Store) CountDisclosures() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketDisclosures)).ForEach(func(k, v []byte) error {
			n++
			return nil
		})
	})
	return n, err
}
