package storage

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/gwicho38/polidisc/internal/model"
)

// Retention windows for the three blob buckets (C2 §4.2).
const (
	RetentionRawPDFs      = 365 * 24 * time.Hour
	RetentionAPIResponses = 90 * 24 * time.Hour
	RetentionParsedData   = 730 * 24 * time.Hour
)

var sanitizeNonAlnum = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// sanitizeName collapses runs of non-alphanumeric characters to a single
// underscore and truncates to maxLen, for building filesystem-safe path
// segments out of free-text politician names.
func sanitizeName(name string, maxLen int) string {
	s := sanitizeNonAlnum.ReplaceAllString(strings.TrimSpace(name), "_")
	s = strings.Trim(s, "_")
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	if s == "" {
		s = "unknown"
	}
	return s
}

// PDFPath builds the conventional storage path for a disclosure PDF:
// {chamber}/{YYYY}/{MM}/{disclosure_id}_{politician_name[:50]}_{YYYYMMDD}.pdf
func PDFPath(chamber, disclosureID, politicianName string, docDate time.Time) string {
	return fmt.Sprintf("%s/%04d/%02d/%s_%s_%s.pdf",
		strings.ToLower(chamber), docDate.Year(), docDate.Month(),
		disclosureID, sanitizeName(politicianName, 50), docDate.Format("20060102"))
}

func hashOf(data []byte) string {
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}

func blobBuckets(bucket string) (blobBucket, metaBucket string, err error) {
	switch bucket {
	case "raw-pdfs":
		return BucketRawPDFsBlob, BucketRawPDFsMeta, nil
	case "api-responses":
		return BucketAPIResponsesBlob, BucketAPIResponsesMeta, nil
	case "parsed-data":
		return BucketParsedDataBlob, BucketParsedDataMeta, nil
	default:
		return "", "", fmt.Errorf("storage: unknown bucket %q", bucket)
	}
}

func retentionFor(bucket string) time.Duration {
	switch bucket {
	case "raw-pdfs":
		return RetentionRawPDFs
	case "api-responses":
		return RetentionAPIResponses
	default:
		return RetentionParsedData
	}
}

// SaveBlobOpts carries the metadata fields callers supply when saving a new
// blob; fields left zero are derived.
type SaveBlobOpts struct {
	Bucket       string // "raw-pdfs" | "api-responses" | "parsed-data"
	Path         string // conventional storage path, e.g. from PDFPath
	FileType     string
	MimeType     string
	SourceURL    string
	SourceType   string
	DisclosureID string
}

// SaveBlob content-addresses data by its sha256 hash and stores it (if not
// already present) alongside a StoredFile metadata envelope. Returns the
// StoredFile row whether or not the bytes were already present — the dedup
// check is purely on content, never on Path, so the same PDF fetched via two
// different URLs is stored once.
func (s *Store) SaveBlob(data []byte, opts SaveBlobOpts) (model.StoredFile, error) {
	blobBucket, metaBucket, err := blobBuckets(opts.Bucket)
	if err != nil {
		return model.StoredFile{}, err
	}
	hash := hashOf(data)

	var out model.StoredFile
	err = s.db.Update(func(tx *bolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if existing := meta.Get([]byte(hash)); existing != nil {
			return json.Unmarshal(existing, &out)
		}

		blobs := tx.Bucket([]byte(blobBucket))
		if err := blobs.Put([]byte(hash), data); err != nil {
			return fmt.Errorf("writing blob: %w", err)
		}

		now := time.Now().UTC()
		out = model.StoredFile{
			ID:             hash,
			StorageBucket:  opts.Bucket,
			StoragePath:    opts.Path,
			FileType:       opts.FileType,
			FileSizeBytes:  int64(len(data)),
			FileHashSHA256: hash,
			MimeType:       opts.MimeType,
			SourceURL:      opts.SourceURL,
			SourceType:     opts.SourceType,
			ParseStatus:    model.ParseStatusPending,
			CreatedAt:      now,
			ExpiresAt:      now.Add(retentionFor(opts.Bucket)),
			DisclosureID:   opts.DisclosureID,
		}
		if opts.Bucket == "api-responses" || opts.Bucket == "parsed-data" {
			// Neither has a meaningful "parse" step of its own.
			out.ParseStatus = model.ParseStatusSuccess
		}
		encoded, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		return meta.Put([]byte(hash), encoded)
	})
	return out, err
}

// SavePDF stores a raw PDF download. Equivalent to C2's save_pdf operation.
func (s *Store) SavePDF(data []byte, path, sourceURL, disclosureID string) (model.StoredFile, error) {
	return s.SaveBlob(data, SaveBlobOpts{
		Bucket:       "raw-pdfs",
		Path:         path,
		FileType:     "pdf",
		MimeType:     "application/pdf",
		SourceURL:    sourceURL,
		SourceType:   "pdf",
		DisclosureID: disclosureID,
	})
}

// SaveAPIResponse stores a raw upstream API response body. Equivalent to
// C2's save_api_response operation.
func (s *Store) SaveAPIResponse(data []byte, path, sourceURL, sourceType string) (model.StoredFile, error) {
	return s.SaveBlob(data, SaveBlobOpts{
		Bucket:     "api-responses",
		Path:       path,
		FileType:   "json",
		MimeType:   "application/json",
		SourceURL:  sourceURL,
		SourceType: sourceType,
	})
}

// SaveParsedData stores the structured output of parsing a raw blob (e.g.
// the transactions extracted from a PDF). Equivalent to C2's
// save_parsed_data operation.
func (s *Store) SaveParsedData(data []byte, path, disclosureID string) (model.StoredFile, error) {
	return s.SaveBlob(data, SaveBlobOpts{
		Bucket:       "parsed-data",
		Path:         path,
		FileType:     "json",
		MimeType:     "application/json",
		DisclosureID: disclosureID,
	})
}

// GetBlob returns the raw bytes for a stored file by its content hash.
func (s *Store) GetBlob(bucket, hash string) ([]byte, error) {
	blobBucket, _, err := blobBuckets(bucket)
	if err != nil {
		return nil, err
	}
	var out []byte
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(blobBucket)).Get([]byte(hash))
		if v == nil {
			return fmt.Errorf("storage: blob %s not found in %s", hash, bucket)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// MarkFileParsed records a successful PDF parse: status, transaction count,
// and (if present) the disclosure it was ultimately linked to.
func (s *Store) MarkFileParsed(hash string, transactionsFound int, disclosureID string) error {
	return s.updateStoredFile(BucketRawPDFsMeta, hash, func(f *model.StoredFile) {
		f.ParseStatus = model.ParseStatusSuccess
		f.TransactionsFound = transactionsFound
		f.ParseError = ""
		if disclosureID != "" {
			f.DisclosureID = disclosureID
		}
	})
}

// MarkFileFailed records a failed PDF parse attempt with its error message.
func (s *Store) MarkFileFailed(hash string, parseErr error) error {
	return s.updateStoredFile(BucketRawPDFsMeta, hash, func(f *model.StoredFile) {
		f.ParseStatus = model.ParseStatusFailed
		f.ParseError = parseErr.Error()
	})
}

func (s *Store) updateStoredFile(metaBucket, hash string, mutate func(*model.StoredFile)) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(metaBucket))
		v := b.Get([]byte(hash))
		if v == nil {
			return fmt.Errorf("storage: file %s not found", hash)
		}
		var f model.StoredFile
		if err := json.Unmarshal(v, &f); err != nil {
			return err
		}
		mutate(&f)
		encoded, err := json.Marshal(f)
		if err != nil {
			return err
		}
		return b.Put([]byte(hash), encoded)
	})
}

// GetFilesToParse returns pending raw-PDF StoredFile rows, oldest first.
// Equivalent to C2's get_files_to_parse operation, used by the PDF
// reprocessing job to find backlog work.
func (s *Store) GetFilesToParse(limit int) ([]model.StoredFile, error) {
	var out []model.StoredFile
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(BucketRawPDFsMeta))
		return b.ForEach(func(k, v []byte) error {
			var f model.StoredFile
			if err := json.Unmarshal(v, &f); err != nil {
				return err
			}
			if f.ParseStatus == model.ParseStatusPending {
				out = append(out, f)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ExpiredBlobs returns the bucket-qualified hashes of every blob past its
// ExpiresAt, across all three blob buckets. Used by the retention sweep.
func (s *Store) ExpiredBlobs(now time.Time) (map[string][]string, error) {
	out := map[string][]string{}
	for _, bucket := range []string{"raw-pdfs", "api-responses", "parsed-data"} {
		_, metaBucket, _ := blobBuckets(bucket)
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket([]byte(metaBucket))
			return b.ForEach(func(k, v []byte) error {
				var f model.StoredFile
				if err := json.Unmarshal(v, &f); err != nil {
					return err
				}
				if !f.ExpiresAt.IsZero() && f.ExpiresAt.Before(now) {
					out[bucket] = append(out[bucket], f.FileHashSHA256)
				}
				return nil
			})
		})
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DeleteBlob removes both the blob bytes and its metadata envelope.
func (s *Store) DeleteBlob(bucket, hash string) error {
	blobBucket, metaBucket, err := blobBuckets(bucket)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket([]byte(blobBucket)).Delete([]byte(hash)); err != nil {
			return err
		}
		return tx.Bucket([]byte(metaBucket)).Delete([]byte(hash))
	})
}

// GC deletes every blob past its retention window and returns the count
// removed per bucket. Equivalent to `polidisc store gc`.
func (s *Store) GC(now time.Time) (map[string]int, error) {
	expired, err := s.ExpiredBlobs(now)
	if err != nil {
		return nil, err
	}
	counts := map[string]int{}
	for bucket, hashes := range expired {
		for _, hash := range hashes {
			if err := s.DeleteBlob(bucket, hash); err != nil {
				return counts, err
			}
			counts[bucket]++
		}
	}
	return counts, nil
}
