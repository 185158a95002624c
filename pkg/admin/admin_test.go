package admin

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Saiteja21M/studentsvc/pkg/aftercommit"
	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/engine"
	"github.com/Saiteja21M/studentsvc/pkg/internal/backoff"
	"github.com/Saiteja21M/studentsvc/pkg/registry"
	"github.com/Saiteja21M/studentsvc/pkg/storage"
)

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

type env struct {
	db     *gorm.DB
	store  *storage.GormStorage
	reg    *registry.Registry
	hub    *engine.Hub
	admin  *Scheduler
	runner *aftercommit.Runner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, storage.ConfigurePool(db))

	store := storage.NewGormStorage(db)
	require.NoError(t, store.Migrate(context.Background()))

	reg := registry.New()
	noop := func(context.Context, map[string]string) error { return nil }
	reg.MustRegister("calculate-marks", noop)
	reg.MustRegister("daily-report", noop)
	reg.MustRegister("sync-records", noop)

	hub := &engine.Hub{}
	return &env{
		db:     db,
		store:  store,
		reg:    reg,
		hub:    hub,
		admin:  New(store, reg, WithEmitter(hub), WithClock(func() time.Time { return testNow })),
		runner: aftercommit.New(db, aftercommit.WithRetry(backoff.Config{MaxAttempts: 2, Initial: time.Millisecond})),
	}
}

func marksKeys(name string) []ScheduleOption {
	return []ScheduleOption{
		JobKey("calculate-marks-"+name, "student-jobs"),
		TriggerKey("trigger-marks-"+name, "student-triggers"),
	}
}

// ─── Schedule ───────────────────────────────────────────────────────────────

func TestSchedule_OneTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	events := e.hub.Events()

	key, err := e.admin.Schedule(ctx, "calculate-marks", map[string]string{"studentName": "Ravi"},
		core.OneTime(testNow.Add(10*time.Second)), marksKeys("Ravi")...)
	require.NoError(t, err)
	assert.Equal(t, core.NewTriggerKey("trigger-marks-Ravi", "student-triggers"), key)

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNormal, st.State)
	assert.Equal(t, core.KindOneTime, st.Kind)
	require.NotNil(t, st.NextFireTime)
	assert.True(t, st.NextFireTime.Equal(testNow.Add(10*time.Second)))
	assert.Nil(t, st.PreviousFireTime)

	job, err := e.store.GetJob(ctx, core.NewJobKey("calculate-marks-Ravi", "student-jobs"))
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, "Ravi", job.Data["studentName"])

	require.Len(t, events, 1)
	ev, ok := (<-events).(*core.JobScheduled)
	require.True(t, ok)
	assert.Equal(t, key, ev.Trigger)
}

func TestSchedule_GeneratesKeysWhenOmitted(t *testing.T) {
	e := newEnv(t)

	key, err := e.admin.Schedule(context.Background(), "sync-records", nil, core.Interval(time.Minute, core.RepeatForever, time.Time{}))
	require.NoError(t, err)
	assert.Equal(t, core.DefaultGroup, key.Group)
	assert.Contains(t, key.Name, "trigger-sync-records-")

	st, err := e.admin.TriggerStatus(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, st.NextFireTime.Equal(testNow), "interval starts now by default")
}

func TestSchedule_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		jobType string
		spec    core.TriggerSpec
		opts    []ScheduleOption
	}{
		{"unknown job type", "send-email", core.OneTime(testNow), nil},
		{"blank job name", "calculate-marks", core.OneTime(testNow), []ScheduleOption{JobKey("  ", "")}},
		{"bad cron", "daily-report", core.Cron("not a cron"), nil},
		{"five field cron", "daily-report", core.Cron("0 9 * * *"), nil},
		{"zero interval", "sync-records", core.Interval(0, core.RepeatForever, testNow), nil},
		{"negative interval", "sync-records", core.Interval(-time.Minute, core.RepeatForever, testNow), nil},
		{"zero repeat", "sync-records", core.Interval(time.Minute, 0, testNow), nil},
		{"cron in the past", "daily-report", core.Cron("0 0 9 1 1 ? 2020"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			_, err := e.admin.Schedule(context.Background(), tt.jobType, nil, tt.spec, tt.opts...)

			assert.ErrorIs(t, err, core.ErrInvalidSchedule)
			var ve *core.ValidationError
			assert.ErrorAs(t, err, &ve)

			all, err := e.admin.ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, all, "nothing stored")
		})
	}
}

func TestSchedule_UnknownJobTypeMatchesSentinel(t *testing.T) {
	e := newEnv(t)
	_, err := e.admin.Schedule(context.Background(), "send-email", nil, core.OneTime(testNow))
	assert.ErrorIs(t, err, core.ErrUnknownJobType)
}

func TestSchedule_DuplicateTriggerKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.admin.Schedule(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Ravi")...)
	require.NoError(t, err)
	_, err = e.admin.Schedule(ctx, "calculate-marks", nil, core.OneTime(testNow.Add(time.Hour)), marksKeys("Ravi")...)
	assert.ErrorIs(t, err, core.ErrInvalidSchedule)
}

func TestSchedule_AgainAfterOneTimeFired(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	eng := engine.New(e.store, e.reg, engine.WithClock(func() time.Time { return testNow }))

	key, err := e.admin.Schedule(ctx, "calculate-marks", map[string]string{"studentName": "Alice"},
		core.OneTime(testNow.Add(-5*time.Second)), marksKeys("Alice")...)
	require.NoError(t, err)
	require.NoError(t, eng.Tick(ctx))

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	require.Equal(t, core.StateComplete, st.State)

	again, err := e.admin.Schedule(ctx, "calculate-marks", map[string]string{"studentName": "Alice"},
		core.OneTime(testNow.Add(10*time.Second)), marksKeys("Alice")...)
	require.NoError(t, err)
	assert.Equal(t, key, again)

	st, err = e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNormal, st.State)
	require.NotNil(t, st.NextFireTime)
	assert.True(t, st.NextFireTime.Equal(testNow.Add(10*time.Second)))
}

func TestReschedule_ReplacesTrigger(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	_, err := e.admin.Reschedule(ctx, "daily-report", nil, core.Cron("0 0 9 * * ?"),
		JobKey("daily-report", "report-jobs"), TriggerKey("daily-report-trigger", "report-triggers"))
	require.NoError(t, err)
	key, err := e.admin.Reschedule(ctx, "daily-report", nil, core.Cron("0 30 18 * * ?"),
		JobKey("daily-report", "report-jobs"), TriggerKey("daily-report-trigger", "report-triggers"))
	require.NoError(t, err)

	st, err := e.admin.JobStatus(ctx, core.NewJobKey("daily-report", "report-jobs"))
	require.NoError(t, err)
	require.Len(t, st.Triggers, 1)
	assert.Equal(t, key.Name, st.Triggers[0].TriggerName)
	assert.True(t, st.Triggers[0].NextFireTime.Equal(time.Date(2026, 3, 2, 18, 30, 0, 0, time.UTC)))
}

// ─── After commit ───────────────────────────────────────────────────────────

func TestScheduleAfterCommit_WaitsForCommit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var key core.TriggerKey

	err := e.runner.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		key, err = e.admin.ScheduleAfterCommit(ctx, "calculate-marks", map[string]string{"studentName": "Sita"},
			core.OneTime(testNow.Add(10*time.Second)), marksKeys("Sita")...)
		return err
	})
	require.NoError(t, err)
	e.runner.Wait()

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNormal, st.State)
}

func TestScheduleAfterCommit_SkippedOnRollback(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	var key core.TriggerKey
	boom := errors.New("boom")

	err := e.runner.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var err error
		key, err = e.admin.ScheduleAfterCommit(ctx, "calculate-marks", nil,
			core.OneTime(testNow), marksKeys("Sita")...)
		require.NoError(t, err)
		return boom
	})
	require.ErrorIs(t, err, boom)
	e.runner.Wait()

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNone, st.State)
}

func TestScheduleAfterCommit_ValidatesImmediately(t *testing.T) {
	e := newEnv(t)
	err := e.runner.Transaction(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		_, err := e.admin.ScheduleAfterCommit(ctx, "nope", nil, core.OneTime(testNow))
		return err
	})
	assert.ErrorIs(t, err, core.ErrInvalidSchedule)
}

func TestScheduleAfterCommit_NoTransactionRunsNow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	key, err := e.admin.ScheduleAfterCommit(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Ravi")...)
	require.NoError(t, err)

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNormal, st.State)

	// Idempotent on repeat.
	_, err = e.admin.ScheduleAfterCommit(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Ravi")...)
	require.NoError(t, err)
}

// ─── Cancel / delete / pause ────────────────────────────────────────────────

func TestCancelTrigger_ThenStatusIsNone(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	key, err := e.admin.Schedule(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Ravi")...)
	require.NoError(t, err)

	cancelled, err := e.admin.CancelTrigger(ctx, key)
	require.NoError(t, err)
	assert.True(t, cancelled)

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNone, st.State)
	assert.Equal(t, key.Name, st.TriggerName)

	_, err = e.admin.JobStatus(ctx, core.NewJobKey("calculate-marks-Ravi", "student-jobs"))
	assert.ErrorIs(t, err, core.ErrJobNotFound, "non-durable job removed with its last trigger")
}

func TestCancelTrigger_DurableJobSurvives(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	key, err := e.admin.Schedule(ctx, "daily-report", nil, core.Cron("0 0 9 * * ?"),
		JobKey("daily-report", "report-jobs"), Durable(), Description("morning summary"))
	require.NoError(t, err)

	_, err = e.admin.CancelTrigger(ctx, key)
	require.NoError(t, err)

	st, err := e.admin.JobStatus(ctx, core.NewJobKey("daily-report", "report-jobs"))
	require.NoError(t, err)
	assert.True(t, st.Durable)
	assert.Empty(t, st.Triggers)
}

func TestNotFoundIsNotAnError(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	ghostJob := core.NewJobKey("ghost", "")
	ghostTrigger := core.NewTriggerKey("ghost", "")

	for name, op := range map[string]func() (bool, error){
		"cancel":         func() (bool, error) { return e.admin.CancelTrigger(ctx, ghostTrigger) },
		"delete":         func() (bool, error) { return e.admin.DeleteJob(ctx, ghostJob) },
		"pause":          func() (bool, error) { return e.admin.PauseJob(ctx, ghostJob) },
		"resume":         func() (bool, error) { return e.admin.ResumeJob(ctx, ghostJob) },
		"pause trigger":  func() (bool, error) { return e.admin.PauseTrigger(ctx, ghostTrigger) },
		"resume trigger": func() (bool, error) { return e.admin.ResumeTrigger(ctx, ghostTrigger) },
	} {
		found, err := op()
		assert.NoError(t, err, name)
		assert.False(t, found, name)
	}

	st, err := e.admin.TriggerStatus(ctx, ghostTrigger)
	require.NoError(t, err)
	assert.Equal(t, core.StateNone, st.State)

	_, err = e.admin.JobStatus(ctx, ghostJob)
	assert.ErrorIs(t, err, core.ErrJobNotFound)
	_, err = e.admin.History(ctx, ghostJob, 10)
	assert.ErrorIs(t, err, core.ErrJobNotFound)
}

func TestDeleteJob_RemovesAllTriggers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	jk := JobKey("sync", "sync-jobs")

	first, err := e.admin.Schedule(ctx, "sync-records", nil, core.Interval(time.Minute, core.RepeatForever, testNow), jk, TriggerKey("every-minute", ""))
	require.NoError(t, err)
	second, err := e.admin.Schedule(ctx, "sync-records", nil, core.Cron("0 0 * * * ?"), jk, TriggerKey("hourly", ""))
	require.NoError(t, err)

	deleted, err := e.admin.DeleteJob(ctx, core.NewJobKey("sync", "sync-jobs"))
	require.NoError(t, err)
	assert.True(t, deleted)

	for _, k := range []core.TriggerKey{first, second} {
		st, err := e.admin.TriggerStatus(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, core.StateNone, st.State)
	}
}

func TestPauseResume_PreservesNextFireTime(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	jk := core.NewJobKey("daily-report", "report-jobs")

	key, err := e.admin.Schedule(ctx, "daily-report", nil, core.Cron("0 0 9 * * ?"), JobKey(jk.Name, jk.Group))
	require.NoError(t, err)
	before, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)

	paused, err := e.admin.PauseJob(ctx, jk)
	require.NoError(t, err)
	assert.True(t, paused)

	st, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StatePaused, st.State)
	due, err := e.store.DueTriggers(ctx, testNow.Add(48*time.Hour), 0)
	require.NoError(t, err)
	assert.Empty(t, due, "paused triggers are never due")

	resumed, err := e.admin.ResumeJob(ctx, jk)
	require.NoError(t, err)
	assert.True(t, resumed)

	after, err := e.admin.TriggerStatus(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, core.StateNormal, after.State)
	assert.True(t, before.NextFireTime.Equal(*after.NextFireTime))
}

// ─── Queries ────────────────────────────────────────────────────────────────

func TestListAll(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	all, err := e.admin.ListAll(ctx)
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)

	_, err = e.admin.Schedule(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Ravi")...)
	require.NoError(t, err)
	_, err = e.admin.Schedule(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Sita")...)
	require.NoError(t, err)
	_, err = e.admin.Schedule(ctx, "daily-report", nil, core.Cron("0 0 9 * * ?"), JobKey("daily-report", "report-jobs"))
	require.NoError(t, err)

	all, err = e.admin.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "report-jobs", all[0].Group)
	assert.Len(t, all[0].Jobs, 1)
	assert.Equal(t, "student-jobs", all[1].Group)
	require.Len(t, all[1].Jobs, 2)
	assert.Equal(t, "calculate-marks-Ravi", all[1].Jobs[0].JobName)
	assert.Len(t, all[1].Jobs[0].Triggers, 1)
}

func TestHistory(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	jk := core.NewJobKey("calculate-marks-Ravi", "student-jobs")

	_, err := e.admin.Schedule(ctx, "calculate-marks", nil, core.OneTime(testNow), marksKeys("Ravi")...)
	require.NoError(t, err)

	recs, err := e.admin.History(ctx, jk, 10)
	require.NoError(t, err)
	assert.NotNil(t, recs)
	assert.Empty(t, recs)

	eng := engine.New(e.store, e.reg, engine.WithClock(func() time.Time { return testNow }))
	require.NoError(t, eng.Tick(ctx))

	recs, err = e.admin.History(ctx, jk, 10)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, core.StatusCompleted, recs[0].Status)
}
