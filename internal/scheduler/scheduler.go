// Package scheduler implements the durable job scheduler (C7): cron and
// interval triggers backed by the storage package's JobDefinition/
// JobExecution buckets, at-most-one-running-instance semantics per job_id,
// missed-job recovery on startup, and bounded per-execution log capture.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gwicho38/polidisc/internal/logging"
	"github.com/gwicho38/polidisc/internal/model"
)

// maxLogLines bounds the per-execution captured log so a runaway job can't
// grow one execution row without limit.
const maxLogLines = 1000

// maxHistoryCache is the in-memory last-N executions kept per job, backed on
// startup by a read from storage.
const maxHistoryCache = 100

const defaultMisfireGrace = 300 * time.Second

// Store is the narrow persistence interface the scheduler needs.
type Store interface {
	PutJobDefinition(model.JobDefinition) error
	GetJobDefinition(jobID string) (model.JobDefinition, bool, error)
	ListJobDefinitions() ([]model.JobDefinition, error)
	DeleteJobDefinition(jobID string) error
	PutJobExecution(model.JobExecution) error
	ListJobExecutions(jobID string, limit int) ([]model.JobExecution, error)
}

// JobFunc is the work a scheduled job performs. It receives a context
// carrying a per-execution logger (retrievable via logging.From) so captured
// log lines can be folded into the resulting JobExecution.
type JobFunc func(ctx context.Context) error

var (
	once     sync.Once
	instance *Scheduler
)

// Get returns the process-wide Scheduler singleton, constructing it on first
// call with store. Later calls ignore their arguments and return the
// existing instance — the "exactly one scheduler per process lifetime"
// discipline from §9.
func Get(store Store, logger *slog.Logger) *Scheduler {
	once.Do(func() {
		instance = New(store, logger)
	})
	return instance
}

// Scheduler owns the in-memory cron engine, the registered job functions,
// and per-job run-state used to enforce max_instances=1.
type Scheduler struct {
	store  Store
	logger *slog.Logger
	cron   *cron.Cron

	mu       sync.Mutex
	funcs    map[string]JobFunc
	entries  map[string]cron.EntryID
	running  map[string]bool
	history  map[string][]model.JobExecution
}

// New builds a Scheduler. Most callers should use Get instead to respect the
// singleton discipline; New is exported for tests that need an isolated
// instance.
func New(store Store, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   store,
		logger:  logger,
		cron:    cron.New(cron.WithSeconds()),
		funcs:   map[string]JobFunc{},
		entries: map[string]cron.EntryID{},
		running: map[string]bool{},
		history: map[string][]model.JobExecution{},
	}
}

// RegisterFunc associates functionRef with fn so job definitions that name
// functionRef as their FunctionReference can be scheduled and run. This must
// be called for every function a JobDefinition references before Start, or
// recovery/triggering will fail with ErrUnknownFunction.
func (s *Scheduler) RegisterFunc(functionRef string, fn JobFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[functionRef] = fn
}

// ErrUnknownFunction is returned when a JobDefinition names a
// FunctionReference that was never registered via RegisterFunc — the
// "SchedulerStartupFailure" case from §7.
var ErrUnknownFunction = fmt.Errorf("scheduler: function reference not registered")

// Start loads every enabled JobDefinition from the store, reconstructs its
// trigger, and begins the cron engine. It then recovers missed jobs whose
// next_scheduled_run has already passed (§4.7 step 2).
func (s *Scheduler) Start(ctx context.Context) error {
	defs, err := s.store.ListJobDefinitions()
	if err != nil {
		return fmt.Errorf("scheduler: loading job definitions: %w", err)
	}

	now := time.Now()
	for _, def := range defs {
		if execs, err := s.store.ListJobExecutions(def.JobID, maxHistoryCache); err == nil {
			s.mu.Lock()
			s.history[def.JobID] = execs
			s.mu.Unlock()
		}
		if !def.Enabled {
			continue
		}
		if err := s.schedule(def); err != nil {
			s.logger.Error("scheduler: skipping job on startup", "job_id", def.JobID, "error", err)
			continue
		}
		if def.AutoRetryOnStartup && !def.NextScheduledRun.IsZero() &&
			!def.NextScheduledRun.After(now) && def.ConsecutiveFailures < def.MaxConsecutiveFailures {
			s.logger.Info("scheduler: recovering missed job", "job_id", def.JobID)
			go s.runNow(ctx, def.JobID)
		}
	}

	s.cron.Start()
	return nil
}

// Stop shuts the cron engine down non-blockingly (§9's process-exit hook
// note — the caller wires this into its own signal handling).
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// AddCronJob registers and persists a cron-triggered job. expr is a 5-field
// standard cron expression; a 6-field expression is also accepted, with its
// leading seconds field ignored (the job always fires at second 0).
// replaceExisting=true (§4.7's default, which the CLI passes) overwrites an
// existing job_id; passing false on an existing job_id is an error.
func (s *Scheduler) AddCronJob(jobID, name, functionRef, expr string, autoRetry bool, replaceExisting bool) error {
	return s.addJob(model.JobDefinition{
		JobID:                  jobID,
		Name:                   name,
		FunctionReference:      functionRef,
		ScheduleType:           model.ScheduleCron,
		ScheduleValue:          expr,
		Enabled:                true,
		MaxConsecutiveFailures: 5,
		AutoRetryOnStartup:     autoRetry,
	}, replaceExisting)
}

// AddIntervalJob registers and persists an interval-triggered job firing
// every d.
func (s *Scheduler) AddIntervalJob(jobID, name, functionRef string, d time.Duration, autoRetry bool, replaceExisting bool) error {
	return s.addJob(model.JobDefinition{
		JobID:                  jobID,
		Name:                   name,
		FunctionReference:      functionRef,
		ScheduleType:           model.ScheduleInterval,
		ScheduleValue:          d.String(),
		Enabled:                true,
		MaxConsecutiveFailures: 5,
		AutoRetryOnStartup:     autoRetry,
	}, replaceExisting)
}

func (s *Scheduler) addJob(def model.JobDefinition, replaceExisting bool) error {
	if !replaceExisting {
		if _, found, _ := s.store.GetJobDefinition(def.JobID); found {
			return fmt.Errorf("scheduler: job %q already exists", def.JobID)
		}
	}
	def.NextScheduledRun = s.nextRun(def)
	if err := s.store.PutJobDefinition(def); err != nil {
		return err
	}
	return s.schedule(def)
}

func (s *Scheduler) nextRun(def model.JobDefinition) time.Time {
	switch def.ScheduleType {
	case model.ScheduleInterval:
		if d, err := time.ParseDuration(def.ScheduleValue); err == nil {
			return time.Now().Add(d)
		}
	case model.ScheduleCron:
		if sched, err := cron.ParseStandard(normalizeCronExpr(def.ScheduleValue)); err == nil {
			return sched.Next(time.Now())
		}
	}
	return time.Time{}
}

// normalizeCronExpr accepts both a bare 5-field standard expression and a
// 6-field seconds-included one; cron.ParseStandard wants exactly 5 fields.
func normalizeCronExpr(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 6 {
		return strings.Join(fields[1:], " ")
	}
	return expr
}

func (s *Scheduler) schedule(def model.JobDefinition) error {
	s.mu.Lock()
	fn, ok := s.funcs[def.FunctionReference]
	if oldID, scheduled := s.entries[def.JobID]; scheduled {
		s.cron.Remove(oldID)
		delete(s.entries, def.JobID)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownFunction, def.FunctionReference)
	}

	spec, err := s.cronSpec(def)
	if err != nil {
		return err
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		s.runNow(context.Background(), def.JobID)
	})
	if err != nil {
		return fmt.Errorf("scheduler: adding trigger for %q: %w", def.JobID, err)
	}
	_ = fn

	s.mu.Lock()
	s.entries[def.JobID] = entryID
	s.mu.Unlock()
	return nil
}

func (s *Scheduler) cronSpec(def model.JobDefinition) (string, error) {
	switch def.ScheduleType {
	case model.ScheduleCron:
		return "0 " + normalizeCronExpr(def.ScheduleValue), nil
	case model.ScheduleInterval:
		d, err := time.ParseDuration(def.ScheduleValue)
		if err != nil {
			return "", fmt.Errorf("scheduler: invalid interval %q: %w", def.ScheduleValue, err)
		}
		return fmt.Sprintf("@every %s", d), nil
	default:
		return "", fmt.Errorf("scheduler: unknown schedule type %q", def.ScheduleType)
	}
}

// RemoveJob unschedules and deletes jobID.
func (s *Scheduler) RemoveJob(jobID string) error {
	s.mu.Lock()
	if id, ok := s.entries[jobID]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobID)
	}
	s.mu.Unlock()
	return s.store.DeleteJobDefinition(jobID)
}

// PauseJob disables jobID without deleting its definition; it remains
// unscheduled until ResumeJob.
func (s *Scheduler) PauseJob(jobID string) error {
	def, found, err := s.store.GetJobDefinition(jobID)
	if err != nil || !found {
		return fmt.Errorf("scheduler: job %q not found", jobID)
	}
	s.mu.Lock()
	if id, ok := s.entries[jobID]; ok {
		s.cron.Remove(id)
		delete(s.entries, jobID)
	}
	s.mu.Unlock()
	def.Enabled = false
	return s.store.PutJobDefinition(def)
}

// ResumeJob re-enables and reschedules a paused job.
func (s *Scheduler) ResumeJob(jobID string) error {
	def, found, err := s.store.GetJobDefinition(jobID)
	if err != nil || !found {
		return fmt.Errorf("scheduler: job %q not found", jobID)
	}
	def.Enabled = true
	if err := s.store.PutJobDefinition(def); err != nil {
		return err
	}
	return s.schedule(def)
}

// RunJobNow triggers an immediate out-of-band execution of jobID, as if its
// next_run_time had been set to now.
func (s *Scheduler) RunJobNow(ctx context.Context, jobID string) {
	go s.runNow(ctx, jobID)
}

// GetJobs returns every durable job definition.
func (s *Scheduler) GetJobs() ([]model.JobDefinition, error) {
	return s.store.ListJobDefinitions()
}

// GetJobInfo returns one job's definition plus its last execution.
func (s *Scheduler) GetJobInfo(jobID string) (model.JobDefinition, model.JobExecution, error) {
	def, found, err := s.store.GetJobDefinition(jobID)
	if err != nil {
		return def, model.JobExecution{}, err
	}
	if !found {
		return def, model.JobExecution{}, fmt.Errorf("scheduler: job %q not found", jobID)
	}
	execs, err := s.store.ListJobExecutions(jobID, 1)
	if err != nil || len(execs) == 0 {
		return def, model.JobExecution{}, err
	}
	return def, execs[0], nil
}

// runNow enforces max_instances=1 for jobID, captures logs, runs the
// registered function, and records the resulting JobExecution.
func (s *Scheduler) runNow(ctx context.Context, jobID string) {
	s.mu.Lock()
	if s.running[jobID] {
		s.mu.Unlock()
		s.logger.Debug("scheduler: skipping overlapping run", "job_id", jobID)
		return
	}
	s.running[jobID] = true
	s.mu.Unlock()

	def, found, err := s.store.GetJobDefinition(jobID)
	if err != nil || !found {
		s.mu.Lock()
		s.running[jobID] = false
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	jobFn := s.funcs[def.FunctionReference]
	s.mu.Unlock()

	capture := newLogCapture(maxLogLines)
	captureLogger := logging.WithJob(slog.New(slog.NewTextHandler(capture, nil)), jobID)
	runCtx := logging.Into(ctx, captureLogger)

	exec := model.JobExecution{
		JobID:     jobID,
		StartedAt: time.Now(),
		Status:    model.JobRunning,
	}

	var runErr error
	if jobFn == nil {
		runErr = fmt.Errorf("%w: %q", ErrUnknownFunction, def.FunctionReference)
	} else {
		runErr = jobFn(runCtx)
	}

	exec.CompletedAt = time.Now()
	exec.DurationSeconds = exec.CompletedAt.Sub(exec.StartedAt).Seconds()
	exec.Logs = capture.Lines()
	if runErr != nil {
		exec.Status = model.JobFailed
		exec.ErrorMessage = runErr.Error()
		def.ConsecutiveFailures++
	} else {
		exec.Status = model.JobSuccess
		def.ConsecutiveFailures = 0
	}
	def.LastRunAt = exec.CompletedAt
	def.NextScheduledRun = s.nextRun(def)

	if err := s.store.PutJobExecution(exec); err != nil {
		s.logger.Error("scheduler: recording execution", "job_id", jobID, "error", err)
	}
	if err := s.store.PutJobDefinition(def); err != nil {
		s.logger.Error("scheduler: updating job after execution", "job_id", jobID, "error", err)
	}

	s.mu.Lock()
	s.history[jobID] = append([]model.JobExecution{exec}, s.history[jobID]...)
	if len(s.history[jobID]) > maxHistoryCache {
		s.history[jobID] = s.history[jobID][:maxHistoryCache]
	}
	s.running[jobID] = false
	s.mu.Unlock()
}

// misfireGrace is exposed for tests/documentation; production callers never
// need to read it directly since runNow's overlap guard already enforces
// at-most-one-instance.
func MisfireGrace() time.Duration { return defaultMisfireGrace }
