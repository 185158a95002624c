// Package storage provides the GORM-backed job store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/security"
)

// GormStorage implements core.Store using GORM.
type GormStorage struct {
	db *gorm.DB
}

var _ core.Store = (*GormStorage)(nil)

// NewGormStorage creates a new GORM-backed store.
func NewGormStorage(db *gorm.DB) *GormStorage {
	return &GormStorage{db: db}
}

// DB returns the underlying connection.
func (s *GormStorage) DB() *gorm.DB { return s.db }

// IsSQLite reports whether the store runs on SQLite.
func (s *GormStorage) IsSQLite() bool {
	return s.db != nil && s.db.Dialector.Name() == "sqlite"
}

// Migrate creates the necessary tables.
func (s *GormStorage) Migrate(ctx context.Context) error {
	err := s.db.WithContext(ctx).AutoMigrate(&core.Job{}, &core.Trigger{}, &core.FireRecord{})
	return core.WrapStore("migrate", err)
}

func byJob(k core.JobKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("job_name = ? AND job_group = ?", k.Name, k.Group)
	}
}

func byTrigger(k core.TriggerKey) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("trigger_name = ? AND trigger_group = ?", k.Name, k.Group)
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func normalize(t *core.Trigger) {
	t.FireAt = utc(t.FireAt)
	t.StartAt = utc(t.StartAt)
	t.NextFireAt = utc(t.NextFireAt)
	t.PrevFireAt = utc(t.PrevFireAt)
	t.FiredAt = utc(t.FiredAt)
}

// ScheduleJob stores a trigger and, if needed, its job in one transaction.
// A COMPLETE trigger under the same key is retired and replaced. Any other
// existing TriggerKey, or an existing job of a different type, is a
// validation error.
func (s *GormStorage) ScheduleJob(ctx context.Context, job *core.Job, trigger *core.Trigger) error {
	normalize(trigger)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var prev core.Trigger
		err := tx.Scopes(byTrigger(trigger.Key())).First(&prev).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			return err
		case prev.State != core.StateComplete:
			return core.Invalid("triggerKey", fmt.Sprintf("trigger %s already exists", trigger.Key()))
		default:
			if err := tx.Scopes(byTrigger(trigger.Key())).Delete(&core.Trigger{}).Error; err != nil {
				return err
			}
			if prev.JobKey() != job.Key() {
				if _, err := deleteOrphanJob(tx, prev.JobKey()); err != nil {
					return err
				}
			}
		}

		var existing core.Job
		err = tx.Scopes(byJob(job.Key())).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(job).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		case existing.Type != job.Type:
			return core.Invalid("jobKey", fmt.Sprintf("job %s already exists with type %q", job.Key(), existing.Type))
		default:
			err := tx.Model(&existing).
				Select("data", "durable", "description").
				Updates(&core.Job{Data: job.Data, Durable: job.Durable || existing.Durable, Description: job.Description}).Error
			if err != nil {
				return err
			}
		}

		return tx.Create(trigger).Error
	})
	if errors.Is(err, core.ErrInvalidSchedule) {
		return err
	}
	return core.WrapStore("schedule job", err)
}

// ReplaceTrigger creates or overwrites a job and trigger. Repeating it with
// the same arguments leaves the same rows, so callers may retry freely. An
// in-flight fire of the replaced trigger loses its token and its outcome
// is discarded.
func (s *GormStorage) ReplaceTrigger(ctx context.Context, job *core.Job, trigger *core.Trigger) error {
	normalize(trigger)
	trigger.FireToken = ""
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "job_name"}, {Name: "job_group"}},
			DoUpdates: clause.AssignmentColumns([]string{"job_type", "data", "durable", "description", "updated_at"}),
		}).Create(job).Error
		if err != nil {
			return err
		}
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "trigger_name"}, {Name: "trigger_group"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"job_name", "job_group", "kind", "fire_at", "start_at", "every_millis",
				"repeat_count", "times_fired", "cron_expression", "timezone", "state",
				"next_fire_at", "prev_fire_at", "fire_token", "fired_at", "last_error", "updated_at",
			}),
		}).Create(trigger).Error
	})
	return core.WrapStore("replace trigger", err)
}

// GetJob retrieves a job by key. It returns nil, nil if the job does not exist.
func (s *GormStorage) GetJob(ctx context.Context, key core.JobKey) (*core.Job, error) {
	var job core.Job
	err := s.db.WithContext(ctx).Scopes(byJob(key)).First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapStore("get job", err)
	}
	return &job, nil
}

// GetTrigger retrieves a trigger by key. It returns nil, nil if the trigger
// does not exist.
func (s *GormStorage) GetTrigger(ctx context.Context, key core.TriggerKey) (*core.Trigger, error) {
	var t core.Trigger
	err := s.db.WithContext(ctx).Scopes(byTrigger(key)).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, core.WrapStore("get trigger", err)
	}
	return &t, nil
}

// DeleteTrigger removes a trigger, and its job when the job is not durable
// and has no triggers left.
func (s *GormStorage) DeleteTrigger(ctx context.Context, key core.TriggerKey) (deleted bool, jobDeleted bool, err error) {
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var t core.Trigger
		err := tx.Scopes(byTrigger(key)).First(&t).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Scopes(byTrigger(key)).Delete(&core.Trigger{}).Error; err != nil {
			return err
		}
		deleted = true

		jobDeleted, err = deleteOrphanJob(tx, t.JobKey())
		return err
	})
	if err != nil {
		return false, false, core.WrapStore("delete trigger", err)
	}
	return deleted, jobDeleted, nil
}

func deleteOrphanJob(tx *gorm.DB, key core.JobKey) (bool, error) {
	var remaining int64
	if err := tx.Model(&core.Trigger{}).Scopes(byJob(key)).Count(&remaining).Error; err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}
	res := tx.Scopes(byJob(key)).Where("durable = ?", false).Delete(&core.Job{})
	return res.RowsAffected > 0, res.Error
}

// DeleteJob removes a job and every trigger attached to it.
func (s *GormStorage) DeleteJob(ctx context.Context, key core.JobKey) (bool, error) {
	var deleted bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(byJob(key)).Delete(&core.Trigger{}).Error; err != nil {
			return err
		}
		res := tx.Scopes(byJob(key)).Delete(&core.Job{})
		deleted = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return false, core.WrapStore("delete job", err)
	}
	return deleted, nil
}

// TriggersOfJob lists the triggers of a job in key order.
func (s *GormStorage) TriggersOfJob(ctx context.Context, key core.JobKey) ([]*core.Trigger, error) {
	var triggers []*core.Trigger
	err := s.db.WithContext(ctx).
		Scopes(byJob(key)).
		Order("trigger_group ASC, trigger_name ASC").
		Find(&triggers).Error
	return triggers, core.WrapStore("triggers of job", err)
}

// JobGroups lists the distinct job groups in ascending order.
func (s *GormStorage) JobGroups(ctx context.Context) ([]string, error) {
	var groups []string
	err := s.db.WithContext(ctx).
		Model(&core.Job{}).
		Distinct().
		Order("job_group ASC").
		Pluck("job_group", &groups).Error
	return groups, core.WrapStore("job groups", err)
}

// JobKeys lists the jobs of a group in name order.
func (s *GormStorage) JobKeys(ctx context.Context, group string) ([]core.JobKey, error) {
	var jobs []core.Job
	err := s.db.WithContext(ctx).
		Select("job_name", "job_group").
		Where("job_group = ?", group).
		Order("job_name ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, core.WrapStore("job keys", err)
	}
	keys := make([]core.JobKey, len(jobs))
	for i := range jobs {
		keys[i] = jobs[i].Key()
	}
	return keys, nil
}

// TriggerState returns the stored state of a trigger, or StateNone.
func (s *GormStorage) TriggerState(ctx context.Context, key core.TriggerKey) (core.TriggerState, error) {
	t, err := s.GetTrigger(ctx, key)
	if err != nil {
		return core.StateNone, err
	}
	if t == nil {
		return core.StateNone, nil
	}
	return t.State, nil
}

// PauseJob moves every NORMAL or BLOCKED trigger of a job to PAUSED. The
// fire token of a BLOCKED trigger is kept so its running fire can still
// release it. It reports false if the job does not exist.
func (s *GormStorage) PauseJob(ctx context.Context, key core.JobKey) (bool, error) {
	found, err := s.setPaused(ctx, &core.Job{}, byJob(key), true)
	return found, core.WrapStore("pause job", err)
}

// ResumeJob returns the PAUSED triggers of a job to NORMAL, or to BLOCKED
// if a fire is still running. Next fire times are left as they were.
func (s *GormStorage) ResumeJob(ctx context.Context, key core.JobKey) (bool, error) {
	found, err := s.setPaused(ctx, &core.Job{}, byJob(key), false)
	return found, core.WrapStore("resume job", err)
}

// PauseTrigger pauses a single trigger. It reports false if the trigger
// does not exist.
func (s *GormStorage) PauseTrigger(ctx context.Context, key core.TriggerKey) (bool, error) {
	found, err := s.setPaused(ctx, &core.Trigger{}, byTrigger(key), true)
	return found, core.WrapStore("pause trigger", err)
}

// ResumeTrigger resumes a single paused trigger.
func (s *GormStorage) ResumeTrigger(ctx context.Context, key core.TriggerKey) (bool, error) {
	found, err := s.setPaused(ctx, &core.Trigger{}, byTrigger(key), false)
	return found, core.WrapStore("resume trigger", err)
}

// setPaused pauses or resumes the triggers matched by scope, provided a
// row of owner matches it too.
func (s *GormStorage) setPaused(ctx context.Context, owner any, scope func(*gorm.DB) *gorm.DB, pause bool) (bool, error) {
	var found bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(owner).Scopes(scope).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		found = true

		if pause {
			return tx.Model(&core.Trigger{}).
				Scopes(scope).
				Where("state IN ?", []core.TriggerState{core.StateNormal, core.StateBlocked}).
				Update("state", core.StatePaused).Error
		}
		err := tx.Model(&core.Trigger{}).
			Scopes(scope).
			Where("state = ? AND fire_token = ?", core.StatePaused, "").
			Update("state", core.StateNormal).Error
		if err != nil {
			return err
		}
		return tx.Model(&core.Trigger{}).
			Scopes(scope).
			Where("state = ? AND fire_token <> ?", core.StatePaused, "").
			Update("state", core.StateBlocked).Error
	})
	return found, err
}

// DueTriggers returns NORMAL triggers whose next fire time is at or before
// asOf, ordered by next fire time, then trigger group, then trigger name.
// A limit of zero or less returns every due trigger.
func (s *GormStorage) DueTriggers(ctx context.Context, asOf time.Time, limit int) ([]*core.Trigger, error) {
	var triggers []*core.Trigger
	q := s.db.WithContext(ctx).
		Where("state = ?", core.StateNormal).
		Where("next_fire_at IS NOT NULL AND next_fire_at <= ?", asOf.UTC()).
		Order("next_fire_at ASC, trigger_group ASC, trigger_name ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&triggers).Error
	return triggers, core.WrapStore("due triggers", err)
}

// AcquireTrigger claims a due trigger for one fire by moving it from
// NORMAL to BLOCKED under token. Only one caller can win a given fire.
func (s *GormStorage) AcquireTrigger(ctx context.Context, key core.TriggerKey, token string, asOf time.Time) (bool, error) {
	if token == "" {
		return false, fmt.Errorf("scheduler: empty fire token")
	}
	res := s.db.WithContext(ctx).
		Model(&core.Trigger{}).
		Scopes(byTrigger(key)).
		Where("state = ? AND fire_token = ?", core.StateNormal, "").
		Where("next_fire_at IS NOT NULL AND next_fire_at <= ?", asOf.UTC()).
		Updates(map[string]any{
			"state":      core.StateBlocked,
			"fire_token": token,
			"fired_at":   asOf.UTC(),
		})
	if res.Error != nil {
		return false, core.WrapStore("acquire trigger", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ReleaseTrigger writes the outcome of a fire. A trigger paused while it
// fired stays PAUSED unless the outcome is terminal. It reports false,
// without error, if the trigger was deleted or replaced meanwhile.
func (s *GormStorage) ReleaseTrigger(ctx context.Context, key core.TriggerKey, token string, outcome core.FireOutcome) (bool, error) {
	if token == "" {
		return false, nil
	}
	updates := func(state core.TriggerState) map[string]any {
		return map[string]any{
			"state":        state,
			"fire_token":   "",
			"times_fired":  outcome.TimesFired,
			"next_fire_at": utc(outcome.NextFireAt),
			"prev_fire_at": utc(outcome.PrevFireAt),
			"last_error":   security.SanitizeErrorMessage(outcome.Error),
		}
	}

	var released bool
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&core.Trigger{}).
			Scopes(byTrigger(key)).
			Where("fire_token = ? AND state = ?", token, core.StateBlocked).
			Updates(updates(outcome.State))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			released = true
			return nil
		}

		state := core.StatePaused
		if outcome.State.Terminal() {
			state = outcome.State
		}
		res = tx.Model(&core.Trigger{}).
			Scopes(byTrigger(key)).
			Where("fire_token = ? AND state = ?", token, core.StatePaused).
			Updates(updates(state))
		released = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return false, core.WrapStore("release trigger", err)
	}
	return released, nil
}

// RecoverBlocked clears fire markers left behind by a process that stopped
// mid-fire. Affected triggers become due again with their old next fire time.
func (s *GormStorage) RecoverBlocked(ctx context.Context) (int64, error) {
	var recovered int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&core.Trigger{}).
			Where("state = ?", core.StateBlocked).
			Updates(map[string]any{"state": core.StateNormal, "fire_token": ""})
		if res.Error != nil {
			return res.Error
		}
		recovered = res.RowsAffected
		return tx.Model(&core.Trigger{}).
			Where("state = ? AND fire_token <> ?", core.StatePaused, "").
			Update("fire_token", "").Error
	})
	if err != nil {
		return 0, core.WrapStore("recover blocked", err)
	}
	return recovered, nil
}

// PurgeCompleted deletes COMPLETE triggers last fired before the cutoff,
// then non-durable jobs left without triggers.
func (s *GormStorage) PurgeCompleted(ctx context.Context, before time.Time) (int64, error) {
	var purged int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("state = ? AND fired_at < ?", core.StateComplete, before.UTC()).
			Delete(&core.Trigger{})
		if res.Error != nil {
			return res.Error
		}
		purged = res.RowsAffected
		return tx.Where("durable = ?", false).
			Where("NOT EXISTS (SELECT 1 FROM scheduler_triggers t WHERE t.job_name = scheduler_jobs.job_name AND t.job_group = scheduler_jobs.job_group)").
			Delete(&core.Job{}).Error
	})
	if err != nil {
		return 0, core.WrapStore("purge completed", err)
	}
	return purged, nil
}

// RecordFire appends an entry to the fire history.
func (s *GormStorage) RecordFire(ctx context.Context, rec *core.FireRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Error = security.SanitizeErrorMessage(rec.Error)
	rec.ScheduledAt = rec.ScheduledAt.UTC()
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	return core.WrapStore("record fire", s.db.WithContext(ctx).Create(rec).Error)
}

// FireHistory returns the most recent fires of a job, newest first.
func (s *GormStorage) FireHistory(ctx context.Context, key core.JobKey, limit int) ([]*core.FireRecord, error) {
	var recs []*core.FireRecord
	q := s.db.WithContext(ctx).Scopes(byJob(key)).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, core.WrapStore("fire history", err)
}

// StateCounts returns the number of triggers in each stored state.
func (s *GormStorage) StateCounts(ctx context.Context) (map[core.TriggerState]int64, error) {
	type row struct {
		State core.TriggerState
		Count int64
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Model(&core.Trigger{}).
		Select("state, count(*) as count").
		Group("state").
		Find(&rows).Error
	if err != nil {
		return nil, core.WrapStore("state counts", err)
	}
	counts := make(map[core.TriggerState]int64, len(rows))
	for _, r := range rows {
		counts[r.State] = r.Count
	}
	return counts, nil
}
