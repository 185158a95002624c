package aftercommit

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Saiteja21M/studentsvc/pkg/internal/backoff"
)

type note struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

func newTestRunner(t *testing.T) *Runner {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&note{}))

	return New(db, WithRetry(backoff.Config{MaxAttempts: 3, Initial: time.Millisecond, Multiplier: 1}))
}

func TestTransaction_RunsHooksAfterCommit(t *testing.T) {
	r := newTestRunner(t)
	var ran atomic.Int32
	var sawRow atomic.Bool

	err := r.Transaction(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		require.True(t, InTransaction(ctx))
		require.NoError(t, tx.Create(&note{Body: "saved"}).Error)
		return Register(ctx, "count", func(ctx context.Context) error {
			var n int64
			if err := r.DB().WithContext(ctx).Model(&note{}).Count(&n).Error; err != nil {
				return err
			}
			sawRow.Store(n == 1)
			ran.Add(1)
			return nil
		})
	})
	require.NoError(t, err)
	r.Wait()

	assert.Equal(t, int32(1), ran.Load())
	assert.True(t, sawRow.Load(), "hook sees committed data")
}

func TestTransaction_DropsHooksOnRollback(t *testing.T) {
	r := newTestRunner(t)
	var ran atomic.Int32
	boom := errors.New("boom")

	err := r.Transaction(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		require.NoError(t, tx.Create(&note{Body: "lost"}).Error)
		_ = Register(ctx, "never", func(context.Context) error {
			ran.Add(1)
			return nil
		})
		return boom
	})
	r.Wait()

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(0), ran.Load())
	var n int64
	require.NoError(t, r.DB().Model(&note{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestTransaction_HooksSurviveCallerCancellation(t *testing.T) {
	r := newTestRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	release := make(chan struct{})
	var hookErr atomic.Value

	err := r.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		return Register(ctx, "slow", func(ctx context.Context) error {
			<-release
			hookErr.Store(ctx.Err() == nil)
			return nil
		})
	})
	require.NoError(t, err)

	cancel()
	close(release)
	r.Wait()
	assert.Equal(t, true, hookErr.Load())
}

func TestTransaction_RetriesFailingHook(t *testing.T) {
	r := newTestRunner(t)
	var attempts atomic.Int32

	err := r.Transaction(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		return Register(ctx, "flaky", func(context.Context) error {
			if attempts.Add(1) < 3 {
				return errors.New("database is locked")
			}
			return nil
		})
	})
	require.NoError(t, err)
	r.Wait()

	assert.Equal(t, int32(3), attempts.Load())
}

func TestTransaction_NestedJoinsOuter(t *testing.T) {
	r := newTestRunner(t)
	var ran atomic.Int32

	err := r.Transaction(context.Background(), func(ctx context.Context, tx *gorm.DB) error {
		return r.Transaction(ctx, func(ctx context.Context, _ *gorm.DB) error {
			return Register(ctx, "inner", func(context.Context) error {
				ran.Add(1)
				return nil
			})
		})
	})
	require.NoError(t, err)
	r.Wait()

	assert.Equal(t, int32(1), ran.Load())
}

func TestRegister_WithoutTransactionRunsNow(t *testing.T) {
	ctx := context.Background()
	assert.False(t, InTransaction(ctx))

	ran := false
	require.NoError(t, Register(ctx, "now", func(context.Context) error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, Register(ctx, "fails", func(context.Context) error { return boom }), boom)
}
