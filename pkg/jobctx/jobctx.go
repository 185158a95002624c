// Package jobctx gives work functions access to the fire they are running in.
package jobctx

import (
	"context"
	"time"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// Fire describes one execution of a job on behalf of a trigger.
type Fire struct {
	Job         core.JobKey
	Trigger     core.TriggerKey
	JobType     string
	Token       string
	ScheduledAt time.Time
	FiredAt     time.Time
	// TimesFired counts earlier fires of the trigger, excluding this one.
	TimesFired int
}

type fireKey struct{}

// WithFire attaches fire details to ctx.
func WithFire(ctx context.Context, f *Fire) context.Context {
	return context.WithValue(ctx, fireKey{}, f)
}

// FireFromContext returns the current fire, or nil outside a work function.
func FireFromContext(ctx context.Context) *Fire {
	if f, ok := ctx.Value(fireKey{}).(*Fire); ok {
		return f
	}
	return nil
}

// JobKeyFromContext returns the key of the job being run, or the zero key.
func JobKeyFromContext(ctx context.Context) core.JobKey {
	if f := FireFromContext(ctx); f != nil {
		return f.Job
	}
	return core.JobKey{}
}

// ScheduledAt returns the instant the current fire was due, or the zero time.
func ScheduledAt(ctx context.Context) time.Time {
	if f := FireFromContext(ctx); f != nil {
		return f.ScheduledAt
	}
	return time.Time{}
}
