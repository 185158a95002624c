package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/Saiteja21M/studentsvc/pkg/admin"
	"github.com/Saiteja21M/studentsvc/pkg/aftercommit"
	"github.com/Saiteja21M/studentsvc/pkg/cache"
	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// ErrInvalidStudent rejects a student that cannot be saved.
var ErrInvalidStudent = errors.New("records: invalid student")

// DefaultMarksDelay is how long after a save the marks calculation fires.
const DefaultMarksDelay = 10 * time.Second

const listCacheKey = "student-details"

// MarksScheduler defers a job until the surrounding transaction commits.
// *admin.Scheduler satisfies it.
type MarksScheduler interface {
	ScheduleAfterCommit(ctx context.Context, jobType string, data map[string]string, spec core.TriggerSpec, opts ...admin.ScheduleOption) (core.TriggerKey, error)
}

// Service manages student records.
type Service struct {
	tx         *aftercommit.Runner
	db         *gorm.DB
	scheduler  MarksScheduler
	cache      cache.Cache
	shows      ShowLookup
	marksDelay time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCache caches student listings.
func WithCache(c cache.Cache) Option { return func(s *Service) { s.cache = c } }

// WithShows sets where favorite shows come from.
func WithShows(l ShowLookup) Option { return func(s *Service) { s.shows = l } }

// WithMarksDelay sets the delay before marks are calculated.
func WithMarksDelay(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.marksDelay = d
		}
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// NewService creates a Service over the runner's database.
func NewService(tx *aftercommit.Runner, scheduler MarksScheduler, opts ...Option) *Service {
	s := &Service{
		tx:         tx,
		db:         tx.DB(),
		scheduler:  scheduler,
		cache:      cache.NewMemory(1, time.Minute),
		shows:      NoShow{},
		marksDelay: DefaultMarksDelay,
		now:        time.Now,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "records")
	return s
}

// Migrate creates the record tables.
func (s *Service) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&Subject{}, &TvShow{}, &Student{})
}

// MarksJobKey is the job that recalculates a student's marks.
func MarksJobKey(name string) core.JobKey {
	return core.NewJobKey("calculate-marks-"+name, "student-jobs")
}

// MarksTriggerKey is the trigger of MarksJobKey.
func MarksTriggerKey(name string) core.TriggerKey {
	return core.NewTriggerKey("trigger-marks-"+name, "student-triggers")
}

// Save stores a student with their favorite show and schedules a marks
// calculation once the write commits. Cached listings are dropped before
// Save returns.
func (s *Service) Save(ctx context.Context, st *Student) (*Student, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: missing body", ErrInvalidStudent)
	}
	st.Name = strings.TrimSpace(st.Name)
	if st.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidStudent)
	}
	if st.Age < 0 {
		return nil, fmt.Errorf("%w: age must not be negative", ErrInvalidStudent)
	}

	show, err := s.shows.FavoriteShow(ctx)
	if err != nil {
		s.logger.Warn("favorite show lookup failed", "student", st.Name, "error", err)
		show = nil
	}
	if show.Empty() {
		st.TvShow = nil
	} else {
		st.TvShow = show
	}

	err = s.tx.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(st).Error; err != nil {
			return fmt.Errorf("records: save student: %w", err)
		}
		_, err := s.scheduler.ScheduleAfterCommit(ctx, JobCalculateMarks,
			map[string]string{"studentName": st.Name},
			core.OneTime(s.now().Add(s.marksDelay)),
			admin.JobKey(MarksJobKey(st.Name).Name, MarksJobKey(st.Name).Group),
			admin.TriggerKey(MarksTriggerKey(st.Name).Name, MarksTriggerKey(st.Name).Group),
			admin.Description("recalculate total marks for "+st.Name),
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("saved student", "id", st.ID, "name", st.Name)
	s.invalidate(ctx)

	return s.Get(ctx, st.ID)
}

// Get loads one student, or returns nil if the id is unknown.
func (s *Service) Get(ctx context.Context, id int64) (*Student, error) {
	var st Student
	err := s.db.WithContext(ctx).Preload("Subject").Preload("TvShow").First(&st, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("records: get student %d: %w", id, err)
	}
	return &st, nil
}

// List returns every student, served from the cache when possible.
func (s *Service) List(ctx context.Context) ([]Student, error) {
	if raw, ok, err := s.cache.Get(ctx, listCacheKey); err != nil {
		s.logger.Warn("cache read failed", "error", err)
	} else if ok {
		var students []Student
		if err := json.Unmarshal(raw, &students); err == nil {
			return students, nil
		}
		s.logger.Warn("discarding unreadable cache entry", "key", listCacheKey)
	}

	students := []Student{}
	err := s.db.WithContext(ctx).Preload("Subject").Preload("TvShow").Order("id ASC").Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("records: list students: %w", err)
	}

	if raw, err := json.Marshal(students); err == nil {
		if err := s.cache.Set(ctx, listCacheKey, raw); err != nil {
			s.logger.Warn("cache write failed", "error", err)
		}
	}
	return students, nil
}

// FindByName returns the students with the given name.
func (s *Service) FindByName(ctx context.Context, name string) ([]Student, error) {
	students := []Student{}
	err := s.db.WithContext(ctx).
		Preload("Subject").Preload("TvShow").
		Where("name = ?", strings.TrimSpace(name)).
		Order("id ASC").
		Find(&students).Error
	if err != nil {
		return nil, fmt.Errorf("records: find students by name: %w", err)
	}
	return students, nil
}

// Delete removes a student and their subject marks. It reports false if
// the id is unknown.
func (s *Service) Delete(ctx context.Context, id int64) (bool, error) {
	var deleted bool
	err := s.tx.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		var st Student
		if err := tx.First(&st, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if err := tx.Delete(&st).Error; err != nil {
			return err
		}
		if st.SubjectID != nil {
			if err := tx.Delete(&Subject{}, *st.SubjectID).Error; err != nil {
				return err
			}
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("records: delete student %d: %w", id, err)
	}
	if deleted {
		s.logger.Info("deleted student", "id", id)
		s.invalidate(ctx)
	}
	return deleted, nil
}

func (s *Service) invalidate(ctx context.Context) {
	if err := s.cache.Delete(ctx, listCacheKey); err != nil {
		s.logger.Error("cache invalidation failed", "key", listCacheKey, "error", err)
	}
}
