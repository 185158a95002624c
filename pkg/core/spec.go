package core

import (
	"fmt"
	"time"
)

// TriggerKind selects the TriggerSpec variant.
type TriggerKind string

const (
	KindOneTime  TriggerKind = "ONE_TIME"
	KindInterval TriggerKind = "INTERVAL"
	KindCron     TriggerKind = "CRON"
)

// RepeatForever makes an interval trigger recur until removed.
const RepeatForever = -1

// TriggerSpec describes when a trigger fires. Only the fields of the
// selected Kind are meaningful.
type TriggerSpec struct {
	Kind TriggerKind

	// OneTime
	FireAt time.Time

	// Interval
	Every       time.Duration
	RepeatCount int // total fires, or RepeatForever
	StartAt     time.Time

	// Cron
	Expression string
	Location   *time.Location
}

// OneTime fires exactly once at the given instant.
func OneTime(at time.Time) TriggerSpec {
	return TriggerSpec{Kind: KindOneTime, FireAt: at}
}

// Interval fires every d starting at start, repeat times in total.
// Pass RepeatForever for an unbounded trigger.
func Interval(d time.Duration, repeat int, start time.Time) TriggerSpec {
	return TriggerSpec{Kind: KindInterval, Every: d, RepeatCount: repeat, StartAt: start}
}

// Cron fires on the calendar pattern of a six or seven field expression,
// evaluated in UTC.
func Cron(expr string) TriggerSpec {
	return TriggerSpec{Kind: KindCron, Expression: expr, Location: time.UTC}
}

// CronIn is Cron evaluated in the given location.
func CronIn(expr string, loc *time.Location) TriggerSpec {
	if loc == nil {
		loc = time.UTC
	}
	return TriggerSpec{Kind: KindCron, Expression: expr, Location: loc}
}

func (s TriggerSpec) String() string {
	switch s.Kind {
	case KindOneTime:
		return fmt.Sprintf("once at %s", s.FireAt.Format(time.RFC3339))
	case KindInterval:
		if s.RepeatCount == RepeatForever {
			return fmt.Sprintf("every %s", s.Every)
		}
		return fmt.Sprintf("every %s x%d", s.Every, s.RepeatCount)
	case KindCron:
		return fmt.Sprintf("cron %q", s.Expression)
	default:
		return string(s.Kind)
	}
}
