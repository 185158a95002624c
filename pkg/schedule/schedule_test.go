package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Saiteja21M/studentsvc/pkg/core"
)

func assertTime(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.True(t, want.Equal(got), "want %s, got %s", want, got)
}

// ─── Cron parsing ─────────────────────────────────────────────────────────────

func TestParseCron_Accepts(t *testing.T) {
	exprs := []string{
		"0 0 9 * * ?",
		"0 */5 * * * ?",
		"0 0 9 ? * MON-FRI",
		"0 30 8 1 * *",
		"0 0 12 1 1 ? 2030",
		"0 0 12 1 1 ? 2026-2030/2",
		"TZ=Europe/Berlin 0 0 9 * * ?",
		"@daily",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			c, err := ParseCron(expr)
			require.NoError(t, err)
			assert.Equal(t, expr, c.String())
		})
	}
}

func TestParseCron_Rejects(t *testing.T) {
	exprs := []string{
		"",
		"0 9 * * *",
		"0 0 9 * * ? 2030 extra",
		"61 0 9 * * ?",
		"0 0 25 * * ?",
		"0 0 9 * * ? 1900",
		"0 0 9 * * ? 2031-2030",
		"0 0 9 * * ? 2030/0",
		"@every 5m",
		"TZ=Europe/Berlin",
	}
	for _, expr := range exprs {
		t.Run(expr, func(t *testing.T) {
			_, err := ParseCron(expr)
			assert.Error(t, err)
		})
	}
}

func TestCronExpression_WeekdaysCountFromSunday(t *testing.T) {
	from := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC) // Monday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 0 9 ? * 1", time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)},
		{"0 0 9 ? * 7", time.Date(2026, 3, 7, 9, 0, 0, 0, time.UTC)},
		{"0 0 9 ? * 2-6", time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		{"0 0 9 ? * 4,6", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
		{"0 0 9 ? * 1/7", time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)},
		{"0 0 9 ? * WED", time.Date(2026, 3, 4, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			c, err := ParseCron(tt.expr)
			require.NoError(t, err)
			assertTime(t, tt.want, c.Next(from, time.UTC))
		})
	}
}

func TestParseCron_RejectsWeekdayOutOfRange(t *testing.T) {
	for _, expr := range []string{"0 0 9 ? * 0", "0 0 9 ? * 8", "0 0 9 ? * 0-3"} {
		_, err := ParseCron(expr)
		assert.ErrorContains(t, err, "outside 1-7", expr)
	}
}

func TestValidate_NamesUnsupportedDayModifiers(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
	for _, expr := range []string{
		"0 0 9 L * ?",
		"0 0 9 15W * ?",
		"0 0 9 ? * 6L",
		"0 0 9 ? * MON#1",
	} {
		t.Run(expr, func(t *testing.T) {
			err := Validate(core.Cron(expr), now)
			var verr *core.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "cronExpression", verr.Field)
			assert.Contains(t, verr.Reason, "L, W or #")
		})
	}
}

func TestCronExpression_NextWithYear(t *testing.T) {
	c, err := ParseCron("0 0 12 1 1 ? 2030")
	require.NoError(t, err)

	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	assertTime(t, time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC), c.Next(from, time.UTC))

	after := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)
	assert.True(t, c.Next(after, time.UTC).IsZero())
}

func TestCronExpression_NextYearStep(t *testing.T) {
	c, err := ParseCron("0 0 0 1 1 ? 2026/2")
	require.NoError(t, err)

	from := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	assertTime(t, time.Date(2028, 1, 1, 0, 0, 0, 0, time.UTC), c.Next(from, time.UTC))
}

func TestCronExpression_Location(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	c, err := ParseCron("0 0 9 * * ?")
	require.NoError(t, err)

	from := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	assertTime(t, time.Date(2026, 1, 15, 8, 0, 0, 0, time.UTC), c.Next(from, berlin))
}

// ─── One-time ─────────────────────────────────────────────────────────────────

func TestNextFireTime_OneTime(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	spec := core.OneTime(at)

	next, ok := NextFireTime(spec, FireState{}, at.Add(-time.Hour))
	require.True(t, ok)
	assertTime(t, at, next)

	_, ok = NextFireTime(spec, FireState{LastFireTime: at}, at.Add(time.Second))
	assert.False(t, ok)
}

func TestFirstFireTime_OneTimeInPastFiresNow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	past := now.Add(-5 * time.Second)

	next, ok := FirstFireTime(core.OneTime(past), now)
	require.True(t, ok)
	assertTime(t, past, next)
	assert.False(t, next.After(now))
}

// ─── Interval ─────────────────────────────────────────────────────────────────

func TestNextFireTime_IntervalBounded(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	spec := core.Interval(time.Minute, 3, start)
	now := start

	var fires []time.Time
	st := FireState{RemainingRepeats: spec.RepeatCount}
	for {
		next, ok := NextFireTime(spec, st, now)
		if !ok {
			break
		}
		fires = append(fires, next)
		st = FireState{LastFireTime: next, RemainingRepeats: st.RemainingRepeats - 1}
		now = next
	}

	require.Len(t, fires, 3)
	assertTime(t, start, fires[0])
	assertTime(t, start.Add(time.Minute), fires[1])
	assertTime(t, start.Add(2*time.Minute), fires[2])
}

func TestNextFireTime_IntervalUnbounded(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	spec := core.Interval(30*time.Minute, core.RepeatForever, start)

	next, ok := NextFireTime(spec, FireState{LastFireTime: start.Add(10 * time.Hour), RemainingRepeats: core.RepeatForever}, start)
	require.True(t, ok)
	assertTime(t, start.Add(10*time.Hour+30*time.Minute), next)
}

func TestNextFireTime_IntervalRespectsStart(t *testing.T) {
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	spec := core.Interval(time.Minute, core.RepeatForever, start)

	next, ok := NextFireTime(spec, FireState{LastFireTime: start.Add(-time.Hour), RemainingRepeats: core.RepeatForever}, start)
	require.True(t, ok)
	assertTime(t, start, next)
}

// ─── Cron ─────────────────────────────────────────────────────────────────────

func TestNextFireTime_DailyReportScenario(t *testing.T) {
	spec := core.Cron("0 0 9 * * ?")
	morning := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

	first, ok := FirstFireTime(spec, morning)
	require.True(t, ok)
	assertTime(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), first)

	// The tick that fires it runs slightly after nine.
	next, ok := NextFireTime(spec, FireState{LastFireTime: first}, first.Add(400*time.Millisecond))
	require.True(t, ok)
	assertTime(t, time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC), next)
}

func TestNextFireTime_CronUsesLaterOfNowAndLast(t *testing.T) {
	spec := core.Cron("0 */5 * * * ?")
	last := time.Date(2026, 3, 2, 10, 10, 0, 0, time.UTC)

	next, ok := NextFireTime(spec, FireState{LastFireTime: last}, last.Add(-time.Hour))
	require.True(t, ok)
	assertTime(t, last.Add(5*time.Minute), next)

	// After downtime, missed slots collapse into the next future one.
	next, ok = NextFireTime(spec, FireState{LastFireTime: last}, last.Add(time.Hour+time.Second))
	require.True(t, ok)
	assertTime(t, last.Add(time.Hour+5*time.Minute), next)
}

func TestNextFireTime_CronPastYearNeverMatches(t *testing.T) {
	_, ok := NextFireTime(core.Cron("0 0 0 1 1 ? 2020"), FireState{}, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.False(t, ok)
}

func TestNextFireTime_Deterministic(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)
	specs := []core.TriggerSpec{
		core.OneTime(now.Add(time.Minute)),
		core.Interval(time.Minute, 5, now),
		core.Cron("0 15 10 ? * MON-FRI"),
	}
	st := FireState{LastFireTime: now.Add(-time.Minute), RemainingRepeats: 2}
	for _, spec := range specs {
		a, okA := NextFireTime(spec, st, now)
		b, okB := NextFireTime(spec, st, now)
		assert.Equal(t, okA, okB)
		assertTime(t, a, b)
	}
}

// ─── Validation ───────────────────────────────────────────────────────────────

func TestValidate(t *testing.T) {
	now := time.Date(2026, 3, 2, 7, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		spec    core.TriggerSpec
		wantErr bool
	}{
		{"one time", core.OneTime(now), false},
		{"one time zero", core.OneTime(time.Time{}), true},
		{"interval", core.Interval(time.Minute, core.RepeatForever, now), false},
		{"interval zero period", core.Interval(0, core.RepeatForever, now), true},
		{"interval zero repeats", core.Interval(time.Minute, 0, now), true},
		{"interval negative repeats", core.Interval(time.Minute, -2, now), true},
		{"interval no start", core.Interval(time.Minute, 1, time.Time{}), true},
		{"cron", core.Cron("0 0 9 * * ?"), false},
		{"cron malformed", core.Cron("not a cron"), true},
		{"cron feb 30", core.Cron("0 0 0 30 2 ?"), true},
		{"cron past year", core.Cron("0 0 0 1 1 ? 2020"), true},
		{"unknown kind", core.TriggerSpec{Kind: "WEEKLY"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.spec, now)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, core.ErrInvalidSchedule))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
