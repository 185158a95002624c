package records

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/registry"
)

// Job types run by the scheduler.
const (
	JobCalculateMarks = "calculate-marks"
	JobDailyReport    = "daily-report"
	JobSyncRecords    = "sync-records"
)

const syncBatchSize = 100

// Fixed keys of the report and sync schedules. Rescheduling replaces them.
var (
	DailyReportJobKey     = core.NewJobKey("daily-report", "report-jobs")
	DailyReportTriggerKey = core.NewTriggerKey("daily-report-trigger", "report-triggers")
	SyncJobKey            = core.NewJobKey("student-sync", "sync-jobs")
	SyncTriggerKey        = core.NewTriggerKey("student-sync-trigger", "sync-triggers")
)

// RegisterJobs adds the record work functions to reg.
func (s *Service) RegisterJobs(reg *registry.Registry) error {
	jobs := []struct {
		name string
		fn   registry.WorkFunc
		desc string
	}{
		{JobCalculateMarks, s.calculateMarksJob, "sum a student's subject marks"},
		{JobDailyReport, s.dailyReportJob, "log student statistics"},
		{JobSyncRecords, s.syncRecordsJob, "walk every student record"},
	}
	for _, j := range jobs {
		if err := reg.Register(j.name, j.fn, registry.Description(j.desc)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) calculateMarksJob(ctx context.Context, data map[string]string) error {
	_, err := s.CalculateMarks(ctx, data["studentName"])
	return err
}

func (s *Service) dailyReportJob(ctx context.Context, _ map[string]string) error {
	_, err := s.DailyReport(ctx)
	return err
}

func (s *Service) syncRecordsJob(ctx context.Context, _ map[string]string) error {
	_, err := s.SyncRecords(ctx)
	return err
}

// CalculateMarks stores the sum of the first matching student's subject
// marks as their total. A missing student or subject is logged and
// reported as false without error.
func (s *Service) CalculateMarks(ctx context.Context, name string) (bool, error) {
	s.logger.Info("calculating marks", "student", name)

	var st Student
	err := s.db.WithContext(ctx).Preload("Subject").Where("name = ?", name).Order("id ASC").First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("student not found", "student", name)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("records: load student %q: %w", name, err)
	}
	if st.Subject == nil {
		s.logger.Warn("no subject found for student", "student", name)
		return false, nil
	}

	total := st.Subject.Total()
	err = s.db.WithContext(ctx).Model(&Student{}).Where("id = ?", st.ID).Update("total_marks", total).Error
	if err != nil {
		return false, fmt.Errorf("records: update marks of %q: %w", name, err)
	}
	s.invalidate(ctx)
	s.logger.Info("updated total marks", "student", name, "total_marks", total)
	return true, nil
}

// DailyReport computes and logs student statistics.
func (s *Service) DailyReport(ctx context.Context) (Report, error) {
	var r Report
	db := s.db.WithContext(ctx).Model(&Student{})
	if err := db.Count(&r.TotalStudents).Error; err != nil {
		return Report{}, fmt.Errorf("records: count students: %w", err)
	}

	var row struct {
		N   int64
		Avg *float64
	}
	err := s.db.WithContext(ctx).Model(&Student{}).
		Select("COUNT(*) AS n, AVG(total_marks) AS avg").
		Where("total_marks > 0").
		Scan(&row).Error
	if err != nil {
		return Report{}, fmt.Errorf("records: average marks: %w", err)
	}
	r.StudentsWithMarks = row.N
	if row.Avg != nil {
		r.AverageMarks = *row.Avg
	}

	s.logger.Info("daily report",
		"total_students", r.TotalStudents,
		"students_with_marks", r.StudentsWithMarks,
		"average_marks", r.AverageMarks)
	return r, nil
}

// SyncRecords walks every student in batches and returns how many it saw.
func (s *Service) SyncRecords(ctx context.Context) (int, error) {
	var batch []Student
	seen := 0
	res := s.db.WithContext(ctx).FindInBatches(&batch, syncBatchSize, func(tx *gorm.DB, _ int) error {
		for _, st := range batch {
			if err := ctx.Err(); err != nil {
				return err
			}
			s.logger.Debug("syncing student", "student", st.Name)
		}
		seen += len(batch)
		return nil
	})
	if res.Error != nil {
		return seen, fmt.Errorf("records: sync students: %w", res.Error)
	}
	s.logger.Info("student sync completed", "processed", seen)
	return seen, nil
}
