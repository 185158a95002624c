package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// openTestDB opens a database for tests.
// When TEST_DATABASE_URL is set it connects to PostgreSQL; otherwise it
// opens a fresh in-memory SQLite instance on a single connection.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn != "" {
		db, err := gorm.Open(postgres.Open(dsn), cfg)
		require.NoError(t, err, "open postgres test db")

		sqlDB, err := db.DB()
		require.NoError(t, err, "get underlying sql.DB")
		sqlDB.SetMaxOpenConns(4)
		sqlDB.SetMaxIdleConns(1)

		// Clean before AND after to ensure test isolation.
		cleanupPostgresDB(t, db)
		t.Cleanup(func() {
			cleanupPostgresDB(t, db)
			_ = sqlDB.Close()
		})
		return db
	}
	db, err := gorm.Open(sqlite.Open(":memory:"), cfg)
	require.NoError(t, err, "open in-memory sqlite")
	require.NoError(t, ConfigurePool(db))
	return db
}

// cleanupPostgresDB deletes all rows so tests are isolated without
// requiring a fresh database per test.
func cleanupPostgresDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	for _, tbl := range []string{"scheduler_fire_records", "scheduler_triggers", "scheduler_jobs"} {
		db.Exec("DELETE FROM " + tbl)
	}
}

// newTestStorage creates a fully migrated store for each test.
func newTestStorage(t *testing.T) *GormStorage {
	t.Helper()
	s := NewGormStorage(openTestDB(t))
	require.NoError(t, s.Migrate(context.Background()), "migrate schema")
	return s
}

var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

// newTestJob builds a minimal valid job.
func newTestJob(name, group string) *core.Job {
	return &core.Job{
		Name:  name,
		Group: group,
		Type:  "calculate-marks",
		Data:  map[string]string{"studentName": name},
	}
}

// newTestTrigger builds a NORMAL one-time trigger due at fireAt.
func newTestTrigger(name string, job *core.Job, fireAt time.Time) *core.Trigger {
	tr := core.NewTrigger(core.NewTriggerKey(name, "triggers"), job.Key(), core.OneTime(fireAt))
	tr.State = core.StateNormal
	tr.NextFireAt = &fireAt
	return tr
}

// scheduleTest stores a job with one trigger and fails the test on error.
func scheduleTest(t *testing.T, s *GormStorage, jobName, triggerName string, fireAt time.Time) (*core.Job, *core.Trigger) {
	t.Helper()
	job := newTestJob(jobName, "jobs")
	tr := newTestTrigger(triggerName, job, fireAt)
	require.NoError(t, s.ScheduleJob(context.Background(), job, tr))
	return job, tr
}
