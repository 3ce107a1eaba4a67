package storage

import (
	"encoding/json"
	"sort"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/gwicho38/polidisc/internal/model"
)

// PutJobDefinition inserts or replaces a scheduled-job row keyed by JobID.
func (s *Store) PutJobDefinition(j model.JobDefinition) error {
	encoded, err := json.Marshal(j)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketScheduledJobs)).Put([]byte(j.JobID), encoded)
	})
}

// GetJobDefinition returns one scheduled-job row by id.
func (s *Store) GetJobDefinition(jobID string) (model.JobDefinition, bool, error) {
	var out model.JobDefinition
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(BucketScheduledJobs)).Get([]byte(jobID))
		if v == nil {
			return nil
		}
		found = true
		return json.Unmarshal(v, &out)
	})
	return out, found, err
}

// ListJobDefinitions returns every scheduled job, sorted by JobID.
func (s *Store) ListJobDefinitions() ([]model.JobDefinition, error) {
	var out []model.JobDefinition
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketScheduledJobs)).ForEach(func(k, v []byte) error {
			var j model.JobDefinition
			if err := json.Unmarshal(v, &j); err != nil {
				return err
			}
			out = append(out, j)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JobID < out[j].JobID })
	return out, nil
}

// DeleteJobDefinition removes a scheduled-job row.
func (s *Store) DeleteJobDefinition(jobID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketScheduledJobs)).Delete([]byte(jobID))
	})
}

// PutJobExecution records one execution-history row, keyed so that
// ListJobExecutions can return a job's history in chronological order
// without a secondary index.
func (s *Store) PutJobExecution(e model.JobExecution) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	encoded, err := json.Marshal(e)
	if err != nil {
		return err
	}
	key := sequenceKey(e.JobID+"|", e.StartedAt)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(BucketJobExecutions)).Put(key, encoded)
	})
}

// ListJobExecutions returns up to limit most-recent executions for jobID,
// newest first. limit<=0 means unbounded. Used both by `polidisc schedule
// list` and by the in-memory last-100 cache the scheduler keeps per job.
func (s *Store) ListJobExecutions(jobID string, limit int) ([]model.JobExecution, error) {
	prefix := []byte(jobID + "|")
	var out []model.JobExecution
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(BucketJobExecutions)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if len(k) < len(prefix) || string(k[:len(prefix)]) != string(prefix) {
				if len(out) > 0 {
					break
				}
				continue
			}
			var e model.JobExecution
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
		return nil
	})
	return out, err
}

// LastJobExecution returns the most recent execution for jobID, if any.
func (s *Store) LastJobExecution(jobID string) (model.JobExecution, bool, error) {
	execs, err := s.ListJobExecutions(jobID, 1)
	if err != nil || len(execs) == 0 {
		return model.JobExecution{}, false, err
	}
	return execs[0], true, nil
}
