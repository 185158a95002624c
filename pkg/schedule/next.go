package schedule

import (
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

// FireState is what the calculator needs to know about a trigger's past.
type FireState struct {
	// LastFireTime is the scheduled instant of the previous fire, or the
	// zero time if the trigger has never fired.
	LastFireTime time.Time
	// RemainingRepeats is the fire budget of an interval trigger, or
	// core.RepeatForever.
	RemainingRepeats int
}

// parsed expressions are immutable, so they are shared across triggers.
var exprCache, _ = lru.New[string, *CronExpression](512)

func compile(expr string) (*CronExpression, error) {
	if c, ok := exprCache.Get(expr); ok {
		return c, nil
	}
	c, err := ParseCron(expr)
	if err != nil {
		return nil, err
	}
	exprCache.Add(expr, c)
	return c, nil
}

// NextFireTime returns the next instant spec should fire, given its fire
// history and the current time. It reports false when the trigger has no
// further fires. It has no side effects.
func NextFireTime(spec core.TriggerSpec, st FireState, now time.Time) (time.Time, bool) {
	switch spec.Kind {
	case core.KindOneTime:
		if st.LastFireTime.IsZero() || st.LastFireTime.Before(spec.FireAt) {
			return spec.FireAt, true
		}
		return time.Time{}, false

	case core.KindInterval:
		if st.RemainingRepeats == 0 || spec.Every <= 0 {
			return time.Time{}, false
		}
		if st.LastFireTime.IsZero() {
			return spec.StartAt, true
		}
		next := st.LastFireTime.Add(spec.Every)
		if next.Before(spec.StartAt) {
			next = spec.StartAt
		}
		return next, true

	case core.KindCron:
		c, err := compile(spec.Expression)
		if err != nil {
			return time.Time{}, false
		}
		from := now
		if st.LastFireTime.After(from) {
			from = st.LastFireTime
		}
		next := c.Next(from, spec.Location)
		if next.IsZero() {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

// FirstFireTime is NextFireTime for a trigger that has never fired. A
// one-time trigger in the past is returned as is so it fires on the next
// tick.
func FirstFireTime(spec core.TriggerSpec, now time.Time) (time.Time, bool) {
	return NextFireTime(spec, FireState{RemainingRepeats: spec.RepeatCount}, now)
}

// Validate rejects specs that can never fire or are malformed. Errors
// match core.ErrInvalidSchedule.
func Validate(spec core.TriggerSpec, now time.Time) error {
	switch spec.Kind {
	case core.KindOneTime:
		if spec.FireAt.IsZero() {
			return core.Invalid("fireAt", "must be set")
		}
	case core.KindInterval:
		if spec.Every < time.Millisecond {
			return core.Invalid("interval", "must be at least one millisecond")
		}
		if spec.RepeatCount == 0 || spec.RepeatCount < core.RepeatForever {
			return core.Invalid("repeatCount", "must be positive or RepeatForever")
		}
		if spec.StartAt.IsZero() {
			return core.Invalid("startAt", "must be set")
		}
	case core.KindCron:
		if _, err := compile(spec.Expression); err != nil {
			return core.InvalidErr("cronExpression", err)
		}
		if _, ok := FirstFireTime(spec, now); !ok {
			return core.Invalid("cronExpression", "no future fire time")
		}
	default:
		return core.Invalid("kind", "unknown trigger kind "+string(spec.Kind))
	}
	return nil
}
