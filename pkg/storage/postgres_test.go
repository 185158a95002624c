package storage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// skipIfNotPostgres skips the test when TEST_DATABASE_URL is not set.
func skipIfNotPostgres(t *testing.T) {
	t.Helper()
	if os.Getenv("TEST_DATABASE_URL") == "" {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL-specific test")
	}
}

func TestAcquireTrigger_PostgreSQL_ParallelConnections(t *testing.T) {
	skipIfNotPostgres(t)

	ctx := context.Background()
	s := newTestStorage(t)
	assert.False(t, s.IsSQLite())

	var keys []core.TriggerKey
	for i := 0; i < 5; i++ {
		_, tr := scheduleTest(t, s, fmt.Sprintf("job-%d", i), fmt.Sprintf("trigger-%d", i), testNow)
		keys = append(keys, tr.Key())
	}

	var (
		wins atomic.Int64
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for _, k := range keys {
				ok, err := s.AcquireTrigger(ctx, k, fmt.Sprintf("worker-%d", w), testNow)
				assert.NoError(t, err)
				if ok {
					wins.Add(1)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, int64(len(keys)), wins.Load(), "each trigger is acquired exactly once")
}

func TestPurgeCompleted_PostgreSQL(t *testing.T) {
	skipIfNotPostgres(t)

	ctx := context.Background()
	s := newTestStorage(t)
	job, tr := scheduleTest(t, s, "once", "once-trigger", testNow)

	ok, err := s.AcquireTrigger(ctx, tr.Key(), "tok", testNow)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = s.ReleaseTrigger(ctx, tr.Key(), "tok", core.FireOutcome{State: core.StateComplete, TimesFired: 1})
	require.NoError(t, err)

	n, err := s.PurgeCompleted(ctx, testNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.GetJob(ctx, job.Key())
	require.NoError(t, err)
	assert.Nil(t, got)
}
