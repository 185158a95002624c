// Package aftercommit runs callbacks once a database transaction commits.
//
// Work registered with Register inside a Transaction runs only if the
// transaction commits, on a goroutine detached from the caller's
// cancellation, with retry. Outside a Transaction it runs immediately.
package aftercommit

import (
	"context"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/Saiteja21M/studentsvc/pkg/internal/backoff"
)

// Hook is a post-commit callback. It must be idempotent: it may run more
// than once when a retry follows a partial failure.
type Hook func(ctx context.Context) error

type hooksKey struct{}

type hookList struct {
	tx    *gorm.DB
	mu    sync.Mutex
	hooks []namedHook
}

type namedHook struct {
	name string
	fn   Hook
}

// Runner opens transactions and runs their hooks after commit.
type Runner struct {
	db     *gorm.DB
	retry  backoff.Config
	logger *slog.Logger
	wg     sync.WaitGroup
}

// Option configures a Runner.
type Option interface {
	apply(*Runner)
}

type optionFunc func(*Runner)

func (f optionFunc) apply(r *Runner) { f(r) }

// WithRetry sets the retry policy for hooks.
func WithRetry(cfg backoff.Config) Option {
	return optionFunc(func(r *Runner) { r.retry = cfg })
}

// WithLogger sets the logger used to report failed hooks.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(r *Runner) { r.logger = l })
}

// New creates a Runner over db.
func New(db *gorm.DB, opts ...Option) *Runner {
	r := &Runner{db: db, retry: backoff.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt.apply(r)
	}
	return r
}

// DB returns the underlying connection.
func (r *Runner) DB() *gorm.DB { return r.db }

// Transaction runs fn in a database transaction. Hooks registered on the
// context passed to fn are started once the transaction commits and
// dropped if it rolls back. A nested Transaction joins the outer one.
func (r *Runner) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	if outer, nested := ctx.Value(hooksKey{}).(*hookList); nested {
		return fn(ctx, outer.tx)
	}

	list := &hookList{}
	txCtx := context.WithValue(ctx, hooksKey{}, list)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		list.tx = tx
		return fn(txCtx, tx)
	})
	if err != nil {
		return err
	}

	list.mu.Lock()
	hooks := list.hooks
	list.hooks = nil
	list.mu.Unlock()

	detached := context.WithoutCancel(ctx)
	for _, h := range hooks {
		r.wg.Add(1)
		go func(h namedHook) {
			defer r.wg.Done()
			r.run(detached, h)
		}(h)
	}
	return nil
}

// Register adds fn to the hooks of the transaction in ctx. Without a
// transaction, fn runs synchronously and its error is returned.
func Register(ctx context.Context, name string, fn Hook) error {
	list, ok := ctx.Value(hooksKey{}).(*hookList)
	if !ok {
		return fn(ctx)
	}
	list.mu.Lock()
	list.hooks = append(list.hooks, namedHook{name: name, fn: fn})
	list.mu.Unlock()
	return nil
}

// InTransaction reports whether ctx belongs to a Runner transaction.
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(hooksKey{}).(*hookList)
	return ok
}

// Wait blocks until every started hook has returned.
func (r *Runner) Wait() { r.wg.Wait() }

func (r *Runner) run(ctx context.Context, h namedHook) {
	err := backoff.Retry(ctx, r.retry, func(ctx context.Context) error {
		return h.fn(ctx)
	})
	if err != nil {
		r.logger.Error("post-commit hook failed", "hook", h.name, "error", err)
		return
	}
	r.logger.Debug("post-commit hook done", "hook", h.name)
}
