package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"github.com/edgedesk/scanforge/internal/metrics"
	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/repo"
)

// StatusClient defines the execution backend behaviour the tracker needs.
type StatusClient interface {
	Status(ctx context.Context, scanID string) (repo.StatusResult, error)
	Cancel(ctx context.Context, scanID string) error
}

// TrackerOptions tunes the polling loop. Zero values take defaults.
type TrackerOptions struct {
	PollInterval time.Duration
	MaxInterval  time.Duration
	WallClock    time.Duration
}

const (
	defaultPollInterval = 2 * time.Second
	defaultMaxInterval  = 30 * time.Second
	defaultWallClock    = 30 * time.Minute
)

type trackedJob struct {
	job    models.ScanJob
	cancel context.CancelFunc
}

// Tracker owns the lifecycle of submitted scans. Each job gets its own
// polling goroutine; transient poll errors back off exponentially and reset
// on the next good poll, and a wall clock bounds the whole job.
type Tracker struct {
	logger  *slog.Logger
	client  StatusClient
	opts    TrackerOptions
	onEvent func(models.ScanJob)

	mu     sync.RWMutex
	jobs   map[string]*trackedJob
	closed bool
	wg     sync.WaitGroup
}

// NewTracker constructs a tracker. onEvent, when non-nil, fires after every
// state or progress change with a snapshot of the job.
func NewTracker(logger *slog.Logger, client StatusClient, opts TrackerOptions, onEvent func(models.ScanJob)) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.MaxInterval <= 0 {
		opts.MaxInterval = defaultMaxInterval
	}
	if opts.WallClock <= 0 {
		opts.WallClock = defaultWallClock
	}
	return &Tracker{
		logger:  logger,
		client:  client,
		opts:    opts,
		onEvent: onEvent,
		jobs:    make(map[string]*trackedJob),
	}
}

// Submit registers a job and starts its polling goroutine. The job arrives in
// the queued state; terminal jobs (synchronous backend completions) are
// recorded without a poll loop.
func (t *Tracker) Submit(job models.ScanJob) error {
	if job.ID == "" {
		return fmt.Errorf("job id is required")
	}
	if job.State == "" {
		job.State = models.ScanQueued
	}
	now := time.Now().UTC()
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = now
	}
	job.UpdatedAt = now

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return fmt.Errorf("tracker is closed")
	}
	if _, exists := t.jobs[job.ID]; exists {
		t.mu.Unlock()
		return fmt.Errorf("job %q already tracked", job.ID)
	}

	// The poll loop outlives the submitting request, so it runs on a
	// detached context with its own cancel token.
	ctx, cancel := context.WithCancel(context.Background())
	t.jobs[job.ID] = &trackedJob{job: job, cancel: cancel}

	if job.State.Terminal() {
		cancel()
		t.mu.Unlock()
		t.emit(job)
		return nil
	}

	t.wg.Add(1)
	t.mu.Unlock()

	go t.poll(ctx, job.ID)
	return nil
}

// Get returns a snapshot of one tracked job.
func (t *Tracker) Get(id string) (models.ScanJob, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	tracked, ok := t.jobs[id]
	if !ok {
		return models.ScanJob{}, false
	}
	return tracked.job, true
}

// List returns snapshots of all tracked jobs, newest first.
func (t *Tracker) List() []models.ScanJob {
	t.mu.RLock()
	defer t.mu.RUnlock()
	jobs := make([]models.ScanJob, 0, len(t.jobs))
	for _, tracked := range t.jobs {
		jobs = append(jobs, tracked.job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		if !jobs[i].SubmittedAt.Equal(jobs[j].SubmittedAt) {
			return jobs[i].SubmittedAt.After(jobs[j].SubmittedAt)
		}
		return jobs[i].ID < jobs[j].ID
	})
	return jobs
}

// Cancel asks the backend to stop the job and marks it cancelled locally.
// Cancelling a terminal job is a no-op.
func (t *Tracker) Cancel(ctx context.Context, id string) error {
	t.mu.RLock()
	tracked, ok := t.jobs[id]
	var terminal bool
	if ok {
		terminal = tracked.job.State.Terminal()
	}
	t.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not tracked", id)
	}
	if terminal {
		return nil
	}

	if t.client != nil {
		if err := t.client.Cancel(ctx, id); err != nil {
			return fmt.Errorf("cancel job %q: %w", id, err)
		}
	}
	tracked.cancel()
	t.update(id, func(job *models.ScanJob) {
		job.State = models.ScanCancelled
		job.Message = "cancelled by request"
	})
	return nil
}

// Close stops all poll loops and waits for them to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	t.closed = true
	for _, tracked := range t.jobs {
		tracked.cancel()
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Tracker) poll(ctx context.Context, id string) {
	defer t.wg.Done()

	deadline := time.Now().Add(t.opts.WallClock)

	retry := backoff.NewExponentialBackOff()
	retry.InitialInterval = t.opts.PollInterval
	retry.MaxInterval = t.opts.MaxInterval
	retry.MaxElapsedTime = 0
	retry.Reset()

	wait := t.opts.PollInterval
	for {
		select {
		case <-ctx.Done():
			t.update(id, func(job *models.ScanJob) {
				if job.State.Terminal() {
					return
				}
				job.State = models.ScanCancelled
				job.Message = "tracking stopped"
			})
			return
		case <-time.After(wait):
		}

		if time.Now().After(deadline) {
			t.update(id, func(job *models.ScanJob) {
				job.State = models.ScanFailed
				job.Error = "timed out waiting for backend"
			})
			return
		}

		status, err := t.client.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait = retry.NextBackOff()
			metrics.ObservePollError()
			t.logger.Warn("scan status poll failed",
				slog.String("scan_id", id),
				slog.Duration("retry_in", wait),
				slog.Any("error", err))
			t.update(id, func(job *models.ScanJob) {
				job.Message = "backend unreachable, retrying"
			})
			continue
		}

		retry.Reset()
		wait = t.opts.PollInterval

		terminal := false
		t.update(id, func(job *models.ScanJob) {
			job.State = status.State
			job.Progress = status.Progress
			job.Message = status.Message
			job.Error = status.Error
			if len(status.Results) > 0 {
				job.Results = status.Results
				job.TotalFound = status.TotalFound
			}
			terminal = job.State.Terminal()
		})
		if terminal {
			return
		}
	}
}

// update applies a mutation under the lock and fires the event hook when the
// job changed.
func (t *Tracker) update(id string, fn func(*models.ScanJob)) {
	t.mu.Lock()
	tracked, ok := t.jobs[id]
	if !ok {
		t.mu.Unlock()
		return
	}
	before := tracked.job
	fn(&tracked.job)
	tracked.job.UpdatedAt = time.Now().UTC()
	snapshot := tracked.job
	t.mu.Unlock()

	if before.State != snapshot.State || before.Progress != snapshot.Progress || before.Message != snapshot.Message {
		t.emit(snapshot)
	}
}

func (t *Tracker) emit(job models.ScanJob) {
	if t.onEvent == nil {
		return
	}
	t.onEvent(job)
}
