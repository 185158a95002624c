package admin

import (
	"context"
	"errors"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/Saiteja21M/studentsvc/pkg/aftercommit"
	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/registry"
	"github.com/Saiteja21M/studentsvc/pkg/schedule"
	"github.com/Saiteja21M/studentsvc/pkg/security"
)

// Scheduler schedules and manages jobs in a store.
type Scheduler struct {
	store    core.Store
	registry *registry.Registry
	events   Emitter
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Scheduler. Job types are checked against reg.
func New(store core.Store, reg *registry.Registry, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		registry: reg,
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt.apply(s)
	}
	s.logger = s.logger.With("component", "admin")
	return s
}

// Schedule stores a new job and trigger. It fails with
// core.ErrInvalidSchedule if the trigger key is held by a trigger that has
// not completed, the job type is unknown, a name is blank or the spec can
// never fire. A COMPLETE trigger under the key is replaced.
func (s *Scheduler) Schedule(ctx context.Context, jobType string, data map[string]string, spec core.TriggerSpec, opts ...ScheduleOption) (core.TriggerKey, error) {
	job, trigger, err := s.build(jobType, data, spec, opts)
	if err != nil {
		return core.TriggerKey{}, err
	}
	if err := s.store.ScheduleJob(ctx, job, trigger); err != nil {
		return core.TriggerKey{}, err
	}
	s.scheduled(job, trigger)
	return trigger.Key(), nil
}

// Reschedule stores the job and trigger, replacing any trigger with the
// same key. Calling it again with the same arguments is harmless.
func (s *Scheduler) Reschedule(ctx context.Context, jobType string, data map[string]string, spec core.TriggerSpec, opts ...ScheduleOption) (core.TriggerKey, error) {
	job, trigger, err := s.build(jobType, data, spec, opts)
	if err != nil {
		return core.TriggerKey{}, err
	}
	if err := s.store.ReplaceTrigger(ctx, job, trigger); err != nil {
		return core.TriggerKey{}, err
	}
	s.scheduled(job, trigger)
	return trigger.Key(), nil
}

// ScheduleAfterCommit validates the request now and performs a Reschedule
// once the transaction in ctx commits. Without a transaction the
// Reschedule happens immediately.
func (s *Scheduler) ScheduleAfterCommit(ctx context.Context, jobType string, data map[string]string, spec core.TriggerSpec, opts ...ScheduleOption) (core.TriggerKey, error) {
	job, trigger, err := s.build(jobType, data, spec, opts)
	if err != nil {
		return core.TriggerKey{}, err
	}
	err = aftercommit.Register(ctx, "schedule "+trigger.Key().String(), func(ctx context.Context) error {
		j, t := *job, *trigger
		if err := s.store.ReplaceTrigger(ctx, &j, &t); err != nil {
			return err
		}
		s.scheduled(&j, &t)
		return nil
	})
	if err != nil {
		return core.TriggerKey{}, err
	}
	return trigger.Key(), nil
}

func (s *Scheduler) build(jobType string, data map[string]string, spec core.TriggerSpec, opts []ScheduleOption) (*core.Job, *core.Trigger, error) {
	if err := s.registry.Check(jobType); err != nil {
		return nil, nil, err
	}

	o := scheduleOptions{}
	for _, opt := range opts {
		opt.applySchedule(&o)
	}
	if o.job.Name == "" {
		o.job = core.NewJobKey(jobType+"-"+uuid.New().String()[:8], o.job.Group)
	}
	if o.trigger.Name == "" {
		o.trigger = core.NewTriggerKey("trigger-"+o.job.Name, o.trigger.Group)
	}
	if err := security.ValidateJobKey(o.job); err != nil {
		return nil, nil, err
	}
	if err := security.ValidateTriggerKey(o.trigger); err != nil {
		return nil, nil, err
	}
	if err := security.ValidateJobData(data); err != nil {
		return nil, nil, err
	}

	now := s.now()
	if spec.Kind == core.KindInterval && spec.StartAt.IsZero() {
		spec.StartAt = now
	}
	if err := schedule.Validate(spec, now); err != nil {
		return nil, nil, err
	}
	next, ok := schedule.FirstFireTime(spec, now)
	if !ok {
		return nil, nil, core.Invalid("schedule", "never fires")
	}

	job := &core.Job{
		Name:        o.job.Name,
		Group:       o.job.Group,
		Type:        jobType,
		Data:        maps.Clone(data),
		Durable:     o.durable,
		Description: o.description,
	}
	trigger := core.NewTrigger(o.trigger, o.job, spec)
	trigger.State = core.StateNormal
	next = next.UTC()
	trigger.NextFireAt = &next
	return job, trigger, nil
}

func (s *Scheduler) scheduled(job *core.Job, trigger *core.Trigger) {
	s.logger.Info("job scheduled",
		"job", job.Key(), "trigger", trigger.Key(), "type", job.Type, "next_fire_at", trigger.NextFireAt)
	s.emit(&core.JobScheduled{
		Job:        job.Key(),
		Trigger:    trigger.Key(),
		NextFireAt: *trigger.NextFireAt,
		Timestamp:  s.now(),
	})
}

// CancelTrigger removes a trigger, and its job if the job is not durable
// and has no other triggers. It reports false if the trigger is unknown.
// A fire already running completes; its outcome is discarded.
func (s *Scheduler) CancelTrigger(ctx context.Context, key core.TriggerKey) (bool, error) {
	deleted, jobDeleted, err := s.store.DeleteTrigger(ctx, key)
	if err != nil || !deleted {
		return false, err
	}
	s.logger.Info("trigger cancelled", "trigger", key, "job_deleted", jobDeleted)
	s.emit(&core.TriggerCancelled{Trigger: key, JobDeleted: jobDeleted, Timestamp: s.now()})
	return true, nil
}

// DeleteJob removes a job and all of its triggers.
func (s *Scheduler) DeleteJob(ctx context.Context, key core.JobKey) (bool, error) {
	deleted, err := s.store.DeleteJob(ctx, key)
	if err != nil || !deleted {
		return false, err
	}
	s.logger.Info("job deleted", "job", key)
	s.emit(&core.JobDeleted{Job: key, Timestamp: s.now()})
	return true, nil
}

// PauseJob stops a job's triggers from firing. Next fire times are kept.
func (s *Scheduler) PauseJob(ctx context.Context, key core.JobKey) (bool, error) {
	found, err := s.store.PauseJob(ctx, key)
	if err != nil || !found {
		return false, err
	}
	s.logger.Info("job paused", "job", key)
	s.emit(&core.JobPaused{Job: key, Timestamp: s.now()})
	return true, nil
}

// ResumeJob lets a paused job fire again. A fire time that passed while
// paused is treated as a misfire and fires on the next tick.
func (s *Scheduler) ResumeJob(ctx context.Context, key core.JobKey) (bool, error) {
	found, err := s.store.ResumeJob(ctx, key)
	if err != nil || !found {
		return false, err
	}
	s.logger.Info("job resumed", "job", key)
	s.emit(&core.JobResumed{Job: key, Timestamp: s.now()})
	return true, nil
}

// PauseTrigger pauses one trigger of a job.
func (s *Scheduler) PauseTrigger(ctx context.Context, key core.TriggerKey) (bool, error) {
	return s.store.PauseTrigger(ctx, key)
}

// ResumeTrigger resumes one paused trigger.
func (s *Scheduler) ResumeTrigger(ctx context.Context, key core.TriggerKey) (bool, error) {
	return s.store.ResumeTrigger(ctx, key)
}

// JobStatus describes a job and its triggers. It returns
// core.ErrJobNotFound for an unknown key.
func (s *Scheduler) JobStatus(ctx context.Context, key core.JobKey) (*core.JobStatus, error) {
	job, err := s.store.GetJob(ctx, key)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	triggers, err := s.store.TriggersOfJob(ctx, key)
	if err != nil {
		return nil, err
	}

	st := &core.JobStatus{
		JobName:  job.Name,
		JobGroup: job.Group,
		JobType:  job.Type,
		Durable:  job.Durable,
		Triggers: make([]core.TriggerStatus, 0, len(triggers)),
	}
	for _, t := range triggers {
		st.Triggers = append(st.Triggers, core.StatusOf(t))
	}
	return st, nil
}

// TriggerStatus describes one trigger. Unknown keys report StateNone.
func (s *Scheduler) TriggerStatus(ctx context.Context, key core.TriggerKey) (core.TriggerStatus, error) {
	t, err := s.store.GetTrigger(ctx, key)
	if err != nil {
		return core.TriggerStatus{}, err
	}
	if t == nil {
		return core.NoneStatus(key), nil
	}
	return core.StatusOf(t), nil
}

// ListAll returns every job grouped by job group. It never returns nil.
func (s *Scheduler) ListAll(ctx context.Context) ([]core.GroupSummary, error) {
	groups, err := s.store.JobGroups(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]core.GroupSummary, 0, len(groups))
	for _, g := range groups {
		keys, err := s.store.JobKeys(ctx, g)
		if err != nil {
			return nil, err
		}
		summary := core.GroupSummary{Group: g, Jobs: make([]core.JobStatus, 0, len(keys))}
		for _, k := range keys {
			st, err := s.JobStatus(ctx, k)
			if errors.Is(err, core.ErrJobNotFound) {
				// Deleted between listing and reading.
				continue
			}
			if err != nil {
				return nil, err
			}
			summary.Jobs = append(summary.Jobs, *st)
		}
		out = append(out, summary)
	}
	return out, nil
}

// History returns up to limit recent fires of a job, newest first. It
// returns core.ErrJobNotFound if the job is unknown and has no history.
func (s *Scheduler) History(ctx context.Context, key core.JobKey, limit int) ([]*core.FireRecord, error) {
	recs, err := s.store.FireHistory(ctx, key, limit)
	if err != nil {
		return nil, err
	}
	if len(recs) > 0 {
		return recs, nil
	}
	job, err := s.store.GetJob(ctx, key)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, core.ErrJobNotFound
	}
	return []*core.FireRecord{}, nil
}

func (s *Scheduler) emit(e core.Event) {
	if s.events != nil {
		s.events.Emit(e)
	}
}
