// Package registry maps job types to the work functions the engine runs.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Saiteja21M/studentsvc/pkg/core"
	"github.com/Saiteja21M/studentsvc/pkg/security"
)

// WorkFunc is the executable body of a job. data is the job's stored data
// map; it must not be retained after the call returns.
type WorkFunc func(ctx context.Context, data map[string]string) error

// Entry is a registered work function and its settings.
type Entry struct {
	Type        string
	Fn          WorkFunc
	Timeout     time.Duration // zero means no timeout
	Description string
}

// Registry is a closed table of job types. Scheduling an unregistered type
// is rejected.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Register adds a work function under jobType. Registering the same type
// twice is an error.
func (r *Registry) Register(jobType string, fn WorkFunc, opts ...Option) error {
	if err := security.ValidateJobTypeName(jobType); err != nil {
		return fmt.Errorf("scheduler: job type %q: %w", jobType, err)
	}
	if fn == nil {
		return fmt.Errorf("scheduler: job type %q: nil work function", jobType)
	}

	e := &Entry{Type: jobType, Fn: fn}
	for _, opt := range opts {
		opt.apply(e)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.entries[jobType]; dup {
		return fmt.Errorf("scheduler: job type %q already registered", jobType)
	}
	r.entries[jobType] = e
	return nil
}

// MustRegister is Register that panics on error, for use at start-up.
func (r *Registry) MustRegister(jobType string, fn WorkFunc, opts ...Option) {
	if err := r.Register(jobType, fn, opts...); err != nil {
		panic(err)
	}
}

// Lookup returns the entry for jobType.
func (r *Registry) Lookup(jobType string) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[jobType]
	return e, ok
}

// Has reports whether jobType is registered.
func (r *Registry) Has(jobType string) bool {
	_, ok := r.Lookup(jobType)
	return ok
}

// Check returns a validation error for unregistered job types.
func (r *Registry) Check(jobType string) error {
	if !r.Has(jobType) {
		return core.InvalidErr("jobType", fmt.Errorf("%w %q", core.ErrUnknownJobType, jobType))
	}
	return nil
}

// Types lists the registered job types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.entries))
	for t := range r.entries {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
