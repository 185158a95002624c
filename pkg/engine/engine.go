package engine

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/internal/backoff"
	"github.com/Saiteja21M/studentsvc/pkg/jobctx"
	"github.com/Saiteja21M/studentsvc/pkg/registry"
	"github.com/Saiteja21M/studentsvc/pkg/schedule"
)

// Engine fires due triggers from a store.
type Engine struct {
	*Hub

	store    core.Store
	registry *registry.Registry
	config   Config
	logger   *slog.Logger
	metrics  *Metrics

	sem     *semaphore.Weighted
	wg      sync.WaitGroup
	running atomic.Bool
}

var _ core.Starter = (*Engine)(nil)

// New creates an engine for store, running work functions from reg.
func New(store core.Store, reg *registry.Registry, opts ...Option) *Engine {
	config := defaultConfig()
	for _, opt := range opts {
		opt.apply(&config)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Engine{
		Hub:      &Hub{},
		store:    store,
		registry: reg,
		config:   config,
		logger:   logger.With("component", "engine"),
		metrics:  config.Metrics,
		sem:      semaphore.NewWeighted(int64(config.Concurrency)),
	}
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.config }

// Running reports whether Start is in progress.
func (e *Engine) Running() bool { return e.running.Load() }

// Start recovers fires interrupted by a previous process, then polls for
// due triggers until ctx is cancelled. In-flight fires are awaited before
// it returns. Store errors are logged and retried on the next poll.
func (e *Engine) Start(ctx context.Context) error {
	if !e.running.CompareAndSwap(false, true) {
		return core.ErrEngineAlreadyRuns
	}
	defer e.running.Store(false)

	e.logger.Info("engine started",
		"poll_interval", e.config.PollInterval,
		"concurrency", e.config.Concurrency,
		"job_types", e.registry.Types())

	ticker := time.NewTicker(e.config.PollInterval)
	defer ticker.Stop()
	purge := time.NewTicker(e.config.PurgeInterval)
	defer purge.Stop()

	// Nothing is claimed until recovery succeeds, otherwise it would re-arm
	// this engine's own fires.
	recovered := e.recoverBlocked(ctx)
	if recovered {
		e.dispatch(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			e.wg.Wait()
			e.logger.Info("engine stopped")
			return ctx.Err()
		case <-ticker.C:
			if !recovered {
				if recovered = e.recoverBlocked(ctx); !recovered {
					continue
				}
			}
			e.dispatch(ctx)
		case <-purge.C:
			e.Purge(ctx)
		}
	}
}

// recoverBlocked re-arms triggers left BLOCKED by a process that died
// mid-fire. It reports whether the store answered.
func (e *Engine) recoverBlocked(ctx context.Context) bool {
	n, err := e.store.RecoverBlocked(ctx)
	if err != nil {
		if ctx.Err() == nil {
			e.metrics.tickFailed()
			e.logger.Error("failed to recover interrupted fires", "error", err)
		}
		return false
	}
	if n > 0 {
		e.logger.Warn("re-arming triggers interrupted mid-fire", "count", n)
	}
	return true
}

// Tick claims and runs every trigger due now, waiting for the fires to
// finish. The store error of a failed poll is returned.
func (e *Engine) Tick(ctx context.Context) error {
	err := e.dispatch(ctx)
	e.wg.Wait()
	return err
}

// dispatch starts a fire for each due trigger it can claim and returns
// without waiting for them.
func (e *Engine) dispatch(ctx context.Context) error {
	now := e.config.Now()
	due, err := e.store.DueTriggers(ctx, now, e.config.BatchSize)
	if err != nil {
		if ctx.Err() == nil {
			e.metrics.tickFailed()
			e.logger.Error("failed to read due triggers", "error", err)
		}
		return err
	}

	for _, t := range due {
		if err := e.sem.Acquire(ctx, 1); err != nil {
			return nil
		}

		token := uuid.New().String()
		claimed, err := e.store.AcquireTrigger(ctx, t.Key(), token, now)
		if err != nil || !claimed {
			e.sem.Release(1)
			if err != nil && ctx.Err() == nil {
				e.logger.Error("failed to claim trigger", "trigger", t.Key(), "error", err)
			}
			continue
		}

		e.wg.Add(1)
		go func(t *core.Trigger) {
			defer e.wg.Done()
			defer e.sem.Release(1)
			e.fire(ctx, t, token)
		}(t)
	}
	return nil
}

// fire runs one claimed trigger and writes its outcome.
func (e *Engine) fire(ctx context.Context, t *core.Trigger, token string) {
	// Store writes after the work function must land even during shutdown.
	storeCtx := context.WithoutCancel(ctx)
	scheduled := *t.NextFireAt
	jobKey := t.JobKey()

	job, err := e.store.GetJob(storeCtx, jobKey)
	if err != nil {
		e.logger.Error("failed to load job", "job", jobKey, "error", err)
		e.release(storeCtx, t, token, e.unfired(t))
		return
	}
	if job == nil {
		e.fail(storeCtx, t, token, "", scheduled, core.ErrJobNotFound)
		return
	}
	entry, ok := e.registry.Lookup(job.Type)
	if !ok {
		e.fail(storeCtx, t, token, job.Type, scheduled, e.registry.Check(job.Type))
		return
	}
	spec, err := t.Spec()
	if err != nil {
		e.fail(storeCtx, t, token, job.Type, scheduled, err)
		return
	}

	started := e.config.Now()
	e.Emit(&core.TriggerFired{Trigger: t.Key(), Job: jobKey, ScheduledAt: scheduled, Timestamp: started})
	e.metrics.fireStarted()
	e.logger.Debug("firing trigger", "trigger", t.Key(), "job", jobKey, "type", job.Type, "scheduled_at", scheduled)

	runErr := e.execute(ctx, entry, job, t, token, scheduled)
	finished := e.config.Now()
	elapsed := finished.Sub(started)

	if runErr != nil && ctx.Err() != nil && errors.Is(runErr, context.Canceled) {
		// Interrupted by shutdown: the fire did not happen.
		e.metrics.fireFinished(job.Type, core.StatusFailed, elapsed)
		e.logger.Info("fire interrupted by shutdown", "trigger", t.Key())
		e.release(storeCtx, t, token, e.unfired(t))
		return
	}

	status := core.StatusCompleted
	if runErr != nil {
		status = core.StatusFailed
	}
	e.metrics.fireFinished(job.Type, status, elapsed)
	e.record(storeCtx, t, job.Type, scheduled, started, finished, status, runErr)

	if runErr != nil {
		runErr = &core.ExecutionError{Job: jobKey, Trigger: t.Key(), Err: runErr}
		e.logger.Error("job failed", "trigger", t.Key(), "job", jobKey, "type", job.Type, "error", runErr)
		e.release(storeCtx, t, token, core.FireOutcome{
			State:      core.StateError,
			NextFireAt: t.NextFireAt,
			PrevFireAt: &scheduled,
			TimesFired: t.TimesFired + 1,
			Error:      runErr.Error(),
		})
		e.Emit(&core.FireFailed{Trigger: t.Key(), Job: jobKey, Error: runErr, Timestamp: finished})
		return
	}

	remaining := t.RemainingRepeats()
	if remaining > 0 {
		remaining--
	}
	outcome := core.FireOutcome{
		State:      core.StateNormal,
		PrevFireAt: &scheduled,
		TimesFired: t.TimesFired + 1,
	}
	if next, ok := schedule.NextFireTime(spec, schedule.FireState{LastFireTime: scheduled, RemainingRepeats: remaining}, finished); ok {
		outcome.NextFireAt = &next
	} else {
		outcome.State = core.StateComplete
	}

	if !e.release(storeCtx, t, token, outcome) {
		return
	}
	e.logger.Info("job completed", "trigger", t.Key(), "job", jobKey, "type", job.Type, "duration", elapsed)
	e.Emit(&core.FireCompleted{Trigger: t.Key(), Job: jobKey, Duration: elapsed, NextFireAt: outcome.NextFireAt, Timestamp: finished})

	if outcome.State == core.StateComplete {
		e.Emit(&core.TriggerCompleted{Trigger: t.Key(), Job: jobKey, Timestamp: finished})
		if e.config.CompletedRetention == 0 {
			if _, _, err := e.store.DeleteTrigger(storeCtx, t.Key()); err != nil {
				e.logger.Error("failed to delete completed trigger", "trigger", t.Key(), "error", err)
			}
		}
	}
}

func (e *Engine) execute(ctx context.Context, entry *registry.Entry, job *core.Job, t *core.Trigger, token string, scheduled time.Time) (err error) {
	ctx = jobctx.WithFire(ctx, &jobctx.Fire{
		Job:         job.Key(),
		Trigger:     t.Key(),
		JobType:     job.Type,
		Token:       token,
		ScheduledAt: scheduled,
		FiredAt:     e.config.Now(),
		TimesFired:  t.TimesFired,
	})
	if entry.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, entry.Timeout)
		defer cancel()
	}

	defer recoverPanic(&err)
	return entry.Fn(ctx, maps.Clone(job.Data))
}

// fail moves a trigger that could not run to ERROR.
func (e *Engine) fail(ctx context.Context, t *core.Trigger, token, jobType string, scheduled time.Time, cause error) {
	now := e.config.Now()
	err := &core.ExecutionError{Job: t.JobKey(), Trigger: t.Key(), Err: cause}
	e.logger.Error("cannot fire trigger", "trigger", t.Key(), "job", t.JobKey(), "error", err)
	e.record(ctx, t, jobType, scheduled, now, now, core.StatusFailed, err)
	e.release(ctx, t, token, core.FireOutcome{
		State:      core.StateError,
		NextFireAt: t.NextFireAt,
		PrevFireAt: t.PrevFireAt,
		TimesFired: t.TimesFired,
		Error:      err.Error(),
	})
	e.Emit(&core.FireFailed{Trigger: t.Key(), Job: t.JobKey(), Error: err, Timestamp: now})
}

// unfired hands a claimed trigger back untouched.
func (e *Engine) unfired(t *core.Trigger) core.FireOutcome {
	return core.FireOutcome{
		State:      core.StateNormal,
		NextFireAt: t.NextFireAt,
		PrevFireAt: t.PrevFireAt,
		TimesFired: t.TimesFired,
		Error:      t.LastError,
	}
}

// release writes a fire outcome with retry. It reports false if the
// trigger was cancelled or replaced during the fire, or the write failed.
func (e *Engine) release(ctx context.Context, t *core.Trigger, token string, outcome core.FireOutcome) bool {
	var released bool
	err := backoff.Retry(ctx, e.config.StorageRetry, func(ctx context.Context) error {
		var err error
		released, err = e.store.ReleaseTrigger(ctx, t.Key(), token, outcome)
		return err
	})
	if err != nil {
		e.logger.Error("failed to release trigger after retries", "trigger", t.Key(), "error", err)
		return false
	}
	if !released {
		e.logger.Debug("trigger removed during fire", "trigger", t.Key())
	}
	return released
}

func (e *Engine) record(ctx context.Context, t *core.Trigger, jobType string, scheduled, started, finished time.Time, status core.FireStatus, runErr error) {
	rec := &core.FireRecord{
		TriggerName:  t.Name,
		TriggerGroup: t.Group,
		JobName:      t.JobName,
		JobGroup:     t.JobGroup,
		JobType:      jobType,
		ScheduledAt:  scheduled,
		StartedAt:    started,
		FinishedAt:   finished,
		DurationMS:   finished.Sub(started).Milliseconds(),
		Status:       status,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	if err := e.store.RecordFire(ctx, rec); err != nil {
		e.logger.Warn("failed to record fire", "trigger", t.Key(), "error", err)
	}
}

// Purge deletes triggers that completed longer ago than the retention and
// refreshes the trigger state gauges.
func (e *Engine) Purge(ctx context.Context) {
	if e.config.CompletedRetention > 0 {
		cutoff := e.config.Now().Add(-e.config.CompletedRetention)
		n, err := e.store.PurgeCompleted(ctx, cutoff)
		if err != nil {
			e.logger.Error("failed to purge completed triggers", "error", err)
		} else if n > 0 {
			e.logger.Info("purged completed triggers", "count", n)
		}
	}

	if e.metrics != nil {
		counts, err := e.store.StateCounts(ctx)
		if err != nil {
			e.logger.Warn("failed to count triggers", "error", err)
			return
		}
		e.metrics.setStateCounts(counts)
	}
}
