// Package storage is polidisc's single persistence substrate: a bbolt
// database holding both content-addressed blobs (raw PDFs, raw API
// responses, parsed JSON) and the structured rows the pipeline and
// scheduler accumulate (politicians, disclosures, job definitions and
// executions, data-quality corrections). There is no SQL driver anywhere in
// this project; every concern that would normally reach for Postgres reaches
// for a bbolt bucket instead, following the same bucket-constant, envelope,
// and migration conventions this project has always used for its cache.
package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names. Blob buckets pair a "_blob" bucket (raw bytes keyed by
// sha256:<hex>) with a "_meta" bucket (JSON-marshaled model.StoredFile
// envelopes keyed by the same hash), mirroring this project's original
// cache/metadata split.
const (
	BucketRawPDFsBlob      = "raw_pdfs_blob"
	BucketRawPDFsMeta      = "raw_pdfs_meta"
	BucketAPIResponsesBlob = "api_responses_blob"
	BucketAPIResponsesMeta = "api_responses_meta"
	BucketParsedDataBlob   = "parsed_data_blob"
	BucketParsedDataMeta   = "parsed_data_meta"

	BucketPoliticians        = "politicians"
	BucketPoliticiansByKey   = "politicians_by_key" // normalized last_first_chamber -> politician id
	BucketDisclosures        = "trading_disclosures"
	BucketDisclosuresByDedup = "trading_disclosures_dedup" // dedup key -> disclosure id

	BucketScheduledJobs  = "scheduled_jobs"
	BucketJobExecutions  = "job_executions" // key: job_id + big-endian started_at unix nano, for ordered scans
	BucketCorrections    = "data_quality_corrections"

	bucketInternal = "_meta"
)

// AllBuckets lists every bucket migrate() must ensure exists.
var AllBuckets = []string{
	BucketRawPDFsBlob, BucketRawPDFsMeta,
	BucketAPIResponsesBlob, BucketAPIResponsesMeta,
	BucketParsedDataBlob, BucketParsedDataMeta,
	BucketPoliticians, BucketPoliticiansByKey,
	BucketDisclosures, BucketDisclosuresByDedup,
	BucketScheduledJobs, BucketJobExecutions,
	BucketCorrections,
	bucketInternal,
}

const schemaVersion = 1

// Store wraps a bbolt database file. It is safe for concurrent use from
// multiple goroutines.
type Store struct {
	db *bolt.DB
}

// Open opens (creating if necessary) the bbolt file at path and runs any
// pending schema migration.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating db: %w", err)
	}
	return s, nil
}

// Close closes the underlying database file.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket([]byte(bucketInternal))
		var current int
		if v := meta.Get([]byte("schema_version")); v != nil {
			fmt.Sscanf(string(v), "%d", &current)
		}
		if current < schemaVersion {
			return meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion)))
		}
		return nil
	})
}

// BucketStats reports the row count and approximate byte size of one bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns per-bucket counts and sizes, used by `polidisc store stats`.
func (s *Store) Stats() ([]BucketStats, error) {
	var out []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			stat := BucketStats{Name: name}
			err := b.ForEach(func(k, v []byte) error {
				stat.Count++
				stat.Bytes += int64(len(k) + len(v))
				return nil
			})
			if err != nil {
				return err
			}
			out = append(out, stat)
		}
		return nil
	})
	return out, err
}

// ClearBucket drops and recreates the named bucket, returning its pages to
// the freelist. The retention sweep (GC) does not use it; GC deletes
// expired blobs one at a time via DeleteBlob.
func (s *Store) ClearBucket(name string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket([]byte(name)); err != nil && err != bolt.ErrBucketNotFound {
			return err
		}
		_, err := tx.CreateBucket([]byte(name))
		return err
	})
}

// Compact rewrites the database file into a fresh file with reclaimed free
// space, then atomically replaces the original. Used by `polidisc store gc`
// after a retention sweep frees a meaningful number of pages.
func (s *Store) Compact() (before, after int64, err error) {
	path := s.db.Path()
	if fi, statErr := os.Stat(path); statErr == nil {
		before = fi.Size()
	}

	tmpPath := path + ".compact"
	dst, err := bolt.Open(tmpPath, 0o600, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("opening compaction target: %w", err)
	}
	if err := bolt.Compact(dst, s.db, 0); err != nil {
		dst.Close()
		os.Remove(tmpPath)
		return 0, 0, fmt.Errorf("compacting: %w", err)
	}
	if err := dst.Close(); err != nil {
		return 0, 0, fmt.Errorf("closing compaction target: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return 0, 0, fmt.Errorf("closing original: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return 0, 0, fmt.Errorf("replacing original: %w", err)
	}

	reopened, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return 0, 0, fmt.Errorf("reopening after compaction: %w", err)
	}
	s.db = reopened

	if fi, statErr := os.Stat(path); statErr == nil {
		after = fi.Size()
	}
	return before, after, nil
}

// sequenceKey builds a lexicographically-ordered key from a nanosecond
// timestamp, used for job-execution history so a bucket scan returns
// executions in chronological order without a secondary index.
func sequenceKey(prefix string, ts time.Time) []byte {
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], uint64(ts.UnixNano()))
	return key
}
