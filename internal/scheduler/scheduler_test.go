package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gwicho38/polidisc/internal/model"
)

// fakeStore is an in-memory Store for tests that don't need bbolt durability.
type fakeStore struct {
	mu    sync.Mutex
	defs  map[string]model.JobDefinition
	execs map[string][]model.JobExecution
}

func newFakeStore() *fakeStore {
	return &fakeStore{defs: map[string]model.JobDefinition{}, execs: map[string][]model.JobExecution{}}
}

func (s *fakeStore) PutJobDefinition(d model.JobDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defs[d.JobID] = d
	return nil
}

func (s *fakeStore) GetJobDefinition(jobID string) (model.JobDefinition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.defs[jobID]
	return d, ok, nil
}

func (s *fakeStore) ListJobDefinitions() ([]model.JobDefinition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.JobDefinition, 0, len(s.defs))
	for _, d := range s.defs {
		out = append(out, d)
	}
	return out, nil
}

func (s *fakeStore) DeleteJobDefinition(jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.defs, jobID)
	return nil
}

func (s *fakeStore) PutJobExecution(e model.JobExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs[e.JobID] = append(s.execs[e.JobID], e)
	return nil
}

func (s *fakeStore) ListJobExecutions(jobID string, limit int) ([]model.JobExecution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	execs := s.execs[jobID]
	if limit > 0 && len(execs) > limit {
		execs = execs[len(execs)-limit:]
	}
	out := make([]model.JobExecution, len(execs))
	for i := range execs {
		out[i] = execs[len(execs)-1-i]
	}
	return out, nil
}

func (s *fakeStore) executionCount(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.execs[jobID])
}

// TestSchedulerAtMostOneRunning asserts runNow's overlap guard (§4.7
// "max_instances=1"): a second trigger while a job is still running must be
// skipped rather than running concurrently.
func TestSchedulerAtMostOneRunning(t *testing.T) {
	store := newFakeStore()
	s := New(store, nil)

	release := make(chan struct{})
	entered := make(chan struct{}, 2)
	var concurrent int32
	var mu sync.Mutex
	maxConcurrent := 0

	s.RegisterFunc("slow_job", func(ctx context.Context) error {
		mu.Lock()
		concurrent++
		if int(concurrent) > maxConcurrent {
			maxConcurrent = int(concurrent)
		}
		mu.Unlock()
		entered <- struct{}{}
		<-release
		mu.Lock()
		concurrent--
		mu.Unlock()
		return nil
	})

	if err := s.AddIntervalJob("job-1", "Slow Job", "slow_job", time.Hour, false, true); err != nil {
		t.Fatalf("AddIntervalJob: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.runNow(context.Background(), "job-1") }()
	<-entered // first run is in flight and holding the lock

	go func() { defer wg.Done(); s.runNow(context.Background(), "job-1") }()
	// The second call must observe running=true and return immediately
	// without ever entering the job function.
	time.Sleep(50 * time.Millisecond)

	close(release)
	wg.Wait()

	if maxConcurrent != 1 {
		t.Fatalf("expected at most 1 concurrent execution, observed %d", maxConcurrent)
	}
	if got := store.executionCount("job-1"); got != 1 {
		t.Fatalf("expected exactly 1 recorded execution, got %d", got)
	}
}

// TestSchedulerMissedJobRecovery asserts Start's recovery pass (§4.7 step 2):
// a job whose NextScheduledRun has already passed and that has
// AutoRetryOnStartup set runs immediately rather than waiting for its next
// trigger.
func TestSchedulerMissedJobRecovery(t *testing.T) {
	store := newFakeStore()
	ran := make(chan struct{}, 1)
	s := New(store, nil)
	s.RegisterFunc("recovered_job", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})

	store.defs["job-missed"] = model.JobDefinition{
		JobID:                  "job-missed",
		Name:                   "Missed Job",
		FunctionReference:      "recovered_job",
		ScheduleType:           model.ScheduleInterval,
		ScheduleValue:          time.Hour.String(),
		Enabled:                true,
		NextScheduledRun:       time.Now().Add(-time.Hour),
		AutoRetryOnStartup:     true,
		MaxConsecutiveFailures: 5,
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("expected missed job to be recovered and run on Start")
	}
}

// TestSchedulerSkipsRecoveryWhenAutoRetryDisabled ensures a missed job
// without AutoRetryOnStartup is left for its next regular trigger instead of
// being run immediately.
func TestSchedulerSkipsRecoveryWhenAutoRetryDisabled(t *testing.T) {
	store := newFakeStore()
	ran := make(chan struct{}, 1)
	s := New(store, nil)
	s.RegisterFunc("quiet_job", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})

	store.defs["job-quiet"] = model.JobDefinition{
		JobID:                  "job-quiet",
		Name:                   "Quiet Job",
		FunctionReference:      "quiet_job",
		ScheduleType:           model.ScheduleInterval,
		ScheduleValue:          time.Hour.String(),
		Enabled:                true,
		NextScheduledRun:       time.Now().Add(-time.Hour),
		AutoRetryOnStartup:     false,
		MaxConsecutiveFailures: 5,
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
		t.Fatal("expected job without AutoRetryOnStartup not to be recovered")
	case <-time.After(200 * time.Millisecond):
	}
}

// TestSchedulerConsecutiveFailuresBlockRecovery ensures a job that has
// already exhausted MaxConsecutiveFailures is not recovered again on
// startup, avoiding a crash-loop of a permanently broken job.
func TestSchedulerConsecutiveFailuresBlockRecovery(t *testing.T) {
	store := newFakeStore()
	ran := make(chan struct{}, 1)
	s := New(store, nil)
	s.RegisterFunc("broken_job", func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	})

	store.defs["job-broken"] = model.JobDefinition{
		JobID:                  "job-broken",
		Name:                   "Broken Job",
		FunctionReference:      "broken_job",
		ScheduleType:           model.ScheduleInterval,
		ScheduleValue:          time.Hour.String(),
		Enabled:                true,
		NextScheduledRun:       time.Now().Add(-time.Hour),
		AutoRetryOnStartup:     true,
		ConsecutiveFailures:    5,
		MaxConsecutiveFailures: 5,
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
		t.Fatal("expected a job at its failure cap not to be recovered")
	case <-time.After(200 * time.Millisecond):
	}
}
