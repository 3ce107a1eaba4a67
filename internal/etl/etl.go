// Package etl implements the finer-grained per-source job framework (C6)
// used by adjacent services that need the same fetch→parse→validate→upload
// discipline as the four-stage pipeline but driven record-by-record, with
// its own JobStatus and ETLResult bookkeeping independent of
// internal/pipeline's stage contracts.
package etl

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
	"github.com/gwicho38/polidisc/internal/ratelimit"
)

// Service is the abstract contract every source-specific ETL implementation
// satisfies. Unlike internal/source.Source (which only fetches), a Service
// owns its own parse/validate/upload lifecycle so adjacent jobs can run a
// narrower slice of work than a full orchestrator pass.
type Service interface {
	SourceID() string
	SourceName() string
	FetchDisclosures(ctx context.Context, params map[string]any) ([]map[string]any, error)
	ParseDisclosure(raw map[string]any) (model.NormalizedDisclosure, bool, error)
	ValidateDisclosure(d model.NormalizedDisclosure) bool
	UploadDisclosure(d model.NormalizedDisclosure, updateMode bool) (string, error)
}

// Hooks are optional lifecycle callbacks a Service may also implement.
type Hooks interface {
	OnStart(jobID string, params map[string]any)
	OnComplete(jobID string, result ETLResult)
}

// JobStatus is the live, in-memory status of one running or completed job,
// polled by callers that want progress without waiting on the full result.
type JobStatus struct {
	JobID     string
	Status    string // running|completed|failed
	Message   string
	Total     int
	Processed int
	StartedAt time.Time
}

// ETLResult is the terminal report for one run() call (§4.6 step 7).
type ETLResult struct {
	SourceID          string
	RecordsProcessed  int
	RecordsInserted   int
	RecordsUpdated    int
	RecordsSkipped    int
	RecordsFailed     int
	Errors            []string
	Warnings          []string
	StartedAt         time.Time
	CompletedAt       time.Time
	DurationSeconds   float64
	Metadata          map[string]any
}

// SuccessRate mirrors PipelineMetrics.SuccessRate: the fraction of processed
// records that were not failures, 100% when nothing was processed.
func (r ETLResult) SuccessRate() float64 {
	if r.RecordsProcessed == 0 {
		return 100.0
	}
	return float64(r.RecordsProcessed-r.RecordsFailed) / float64(r.RecordsProcessed) * 100.0
}

// IsSuccess reports whether the run produced zero errors.
func (r ETLResult) IsSuccess() bool {
	return len(r.Errors) == 0
}

// Registry tracks available ETL services by source_id. Callers add services
// via Register (app.New registers one per source at startup); duplicate
// registration is an error.
type Registry struct {
	mu       sync.Mutex
	services map[string]Service
	statuses map[string]*JobStatus

	// UploadLimiter, if set, paces the per-record upload step in Run
	// independently of whatever HTTP-level pacing the source's own fetch
	// already applies.
	UploadLimiter *ratelimit.Limiter
}

// NewRegistry builds an empty Registry.
func NewRegistry() *Registry {
	return &Registry{services: map[string]Service{}, statuses: map[string]*JobStatus{}}
}

// Register adds svc to the registry, keyed by svc.SourceID(). Returns an
// error if that source_id is already registered.
func (r *Registry) Register(svc Service) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := svc.SourceID()
	if _, exists := r.services[id]; exists {
		return fmt.Errorf("etl: service %q already registered", id)
	}
	r.services[id] = svc
	return nil
}

// Get returns the registered service for sourceID, if any.
func (r *Registry) Get(sourceID string) (Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	svc, ok := r.services[sourceID]
	return svc, ok
}

// Status returns the live JobStatus for jobID, if one is tracked.
func (r *Registry) Status(jobID string) (JobStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.statuses[jobID]
	if !ok {
		return JobStatus{}, false
	}
	return *st, true
}

func (r *Registry) setStatus(jobID string, mutate func(*JobStatus)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.statuses[jobID]
	if !ok {
		st = &JobStatus{JobID: jobID}
		r.statuses[jobID] = st
	}
	mutate(st)
}

// Run drives svc through the full fetch→parse→validate→upload lifecycle for
// one job (§4.6). limit truncates the fetched list when > 0.
func (r *Registry) Run(ctx context.Context, svc Service, jobID string, limit int, updateMode bool, params map[string]any) ETLResult {
	started := time.Now()
	result := ETLResult{SourceID: svc.SourceID(), StartedAt: started, Metadata: map[string]any{}}

	r.setStatus(jobID, func(s *JobStatus) {
		s.Status = "running"
		s.Message = "starting"
		s.StartedAt = started
	})
	if hooks, ok := svc.(Hooks); ok {
		hooks.OnStart(jobID, params)
	}

	r.setStatus(jobID, func(s *JobStatus) { s.Message = "Fetching disclosures..." })
	raw, err := svc.FetchDisclosures(ctx, params)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		result.CompletedAt = time.Now()
		result.DurationSeconds = result.CompletedAt.Sub(started).Seconds()
		r.finish(jobID, svc, result, "failed")
		return result
	}
	if len(raw) == 0 {
		result.Warnings = append(result.Warnings, "no disclosures fetched")
		result.CompletedAt = time.Now()
		result.DurationSeconds = result.CompletedAt.Sub(started).Seconds()
		r.finish(jobID, svc, result, "completed")
		return result
	}

	if limit > 0 && limit < len(raw) {
		raw = raw[:limit]
	}
	r.setStatus(jobID, func(s *JobStatus) { s.Total = len(raw) })

	for i, item := range raw {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, ctx.Err().Error())
			break
		}
		result.RecordsProcessed++

		parsed, ok, err := svc.ParseDisclosure(item)
		if err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: parse: %v", i, err))
			continue
		}
		if !ok || !svc.ValidateDisclosure(parsed) {
			result.RecordsSkipped++
			continue
		}

		if err := r.UploadLimiter.Wait(ctx); err != nil {
			result.Errors = append(result.Errors, err.Error())
			break
		}
		if _, err := svc.UploadDisclosure(parsed, updateMode); err != nil {
			result.RecordsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("item %d: upload: %v", i, err))
			continue
		}
		if updateMode {
			result.RecordsUpdated++
		} else {
			result.RecordsInserted++
		}

		r.setStatus(jobID, func(s *JobStatus) {
			s.Processed = i + 1
			s.Message = fmt.Sprintf("processed %d/%d", i+1, len(raw))
		})
	}

	result.CompletedAt = time.Now()
	result.DurationSeconds = result.CompletedAt.Sub(started).Seconds()
	status := "completed"
	if len(result.Errors) > 0 && result.RecordsProcessed == result.RecordsFailed {
		status = "failed"
	}
	r.finish(jobID, svc, result, status)
	return result
}

func (r *Registry) finish(jobID string, svc Service, result ETLResult, status string) {
	r.setStatus(jobID, func(s *JobStatus) {
		s.Status = status
		s.Message = fmt.Sprintf("%s: %d processed, %d failed", status, result.RecordsProcessed, result.RecordsFailed)
	})
	if hooks, ok := svc.(Hooks); ok {
		hooks.OnComplete(jobID, result)
	}
}
