package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Year bounds accepted by the optional seventh field.
const (
	MinYear = 1970
	MaxYear = 2099
)

var cronParser = cron.NewParser(
	cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// CronExpression is a parsed six or seven field cron expression:
//
//	second minute hour day-of-month month day-of-week [year]
//
// "?" is accepted in the day fields as an alias for "*". Day-of-week runs
// 1-7 starting on Sunday (1=SUN, 7=SAT), or SUN-SAT. The L, W and #
// day modifiers are not supported. Descriptors such as @daily are also
// accepted.
type CronExpression struct {
	expr  string
	spec  *cron.SpecSchedule
	years []int // ascending; nil means any year
	zoned bool  // expression carries its own TZ= prefix
}

// ParseCron parses expr into its field-constraint set.
func ParseCron(expr string) (*CronExpression, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("empty cron expression")
	}

	var prefix string
	body := expr
	if strings.HasPrefix(body, "TZ=") || strings.HasPrefix(body, "CRON_TZ=") {
		i := strings.IndexByte(body, ' ')
		if i < 0 {
			return nil, fmt.Errorf("missing fields after time zone in %q", expr)
		}
		prefix, body = body[:i+1], strings.TrimSpace(body[i+1:])
	}

	var years []int
	fields := strings.Fields(body)
	if !strings.HasPrefix(body, "@") {
		switch len(fields) {
		case 6:
		case 7:
			ys, err := parseYears(fields[6])
			if err != nil {
				return nil, err
			}
			years = ys
			fields = fields[:6]
		default:
			return nil, fmt.Errorf("expected 6 or 7 fields, found %d: %q", len(fields), expr)
		}
		if err := rejectModifiers("day-of-month", fields[3]); err != nil {
			return nil, err
		}
		if err := rejectModifiers("day-of-week", fields[5]); err != nil {
			return nil, err
		}
		dow, err := weekdayField(fields[5])
		if err != nil {
			return nil, err
		}
		fields[5] = dow
	}

	parsed, err := cronParser.Parse(prefix + strings.Join(fields, " "))
	if err != nil {
		return nil, err
	}
	spec, ok := parsed.(*cron.SpecSchedule)
	if !ok {
		return nil, fmt.Errorf("%q is a fixed delay, use an interval trigger", expr)
	}
	return &CronExpression{expr: expr, spec: spec, years: years, zoned: prefix != ""}, nil
}

func (c *CronExpression) String() string { return c.expr }

// Next returns the first matching instant strictly after t, evaluated in
// loc unless the expression names its own zone. The zero time means the
// expression never matches again.
func (c *CronExpression) Next(t time.Time, loc *time.Location) time.Time {
	sched := *c.spec
	if !c.zoned {
		if loc == nil {
			loc = time.UTC
		}
		sched.Location = loc
	}
	zone := sched.Location

	from := t
	for hops := 0; hops <= len(c.years)+1; hops++ {
		next := sched.Next(from)
		if next.IsZero() || c.years == nil {
			return next
		}
		y := next.In(zone).Year()
		if c.allowsYear(y) {
			return next
		}
		ny, ok := c.nextYear(y)
		if !ok {
			return time.Time{}
		}
		// Next is strictly-after, so start one second before the new year.
		from = time.Date(ny, time.January, 1, 0, 0, 0, 0, zone).Add(-time.Second)
	}
	return time.Time{}
}

func (c *CronExpression) allowsYear(y int) bool {
	i := sort.SearchInts(c.years, y)
	return i < len(c.years) && c.years[i] == y
}

func (c *CronExpression) nextYear(y int) (int, bool) {
	i := sort.SearchInts(c.years, y+1)
	if i == len(c.years) {
		return 0, false
	}
	return c.years[i], true
}

var dayNames = strings.NewReplacer("SUN", "", "MON", "", "TUE", "", "WED", "", "THU", "", "FRI", "", "SAT", "")

func rejectModifiers(name, field string) error {
	if i := strings.IndexAny(dayNames.Replace(strings.ToUpper(field)), "LW#"); i >= 0 {
		return fmt.Errorf("%s %q uses L, W or #, which are not supported", name, field)
	}
	return nil
}

// weekdayField rewrites numeric days from 1-7 (SUN-SAT) to the 0-6
// numbering of the underlying parser. Day names pass through.
func weekdayField(field string) (string, error) {
	parts := strings.Split(field, ",")
	for i, part := range parts {
		rng, step, hasStep := strings.Cut(part, "/")
		bounds := strings.SplitN(rng, "-", 2)
		for j, b := range bounds {
			if b == "*" || b == "?" || b == "" || !isDigits(b) {
				continue
			}
			n, err := strconv.Atoi(b)
			if err != nil || n < 1 || n > 7 {
				return "", fmt.Errorf("day-of-week %q outside 1-7", b)
			}
			bounds[j] = strconv.Itoa(n - 1)
		}
		parts[i] = strings.Join(bounds, "-")
		if hasStep {
			parts[i] += "/" + step
		}
	}
	return strings.Join(parts, ","), nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// parseYears expands a year field ("*", "2030", "2026-2030", "2026/2",
// "2026,2028") into an ascending list, or nil for any year.
func parseYears(field string) ([]int, error) {
	if field == "*" || field == "?" {
		return nil, nil
	}
	set := make(map[int]struct{})
	for _, part := range strings.Split(field, ",") {
		lo, hi, step, err := yearRange(part)
		if err != nil {
			return nil, err
		}
		for y := lo; y <= hi; y += step {
			set[y] = struct{}{}
		}
	}
	years := make([]int, 0, len(set))
	for y := range set {
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func yearRange(part string) (lo, hi, step int, err error) {
	step = 1
	rng := part
	if i := strings.IndexByte(part, '/'); i >= 0 {
		rng = part[:i]
		step, err = strconv.Atoi(part[i+1:])
		if err != nil || step <= 0 {
			return 0, 0, 0, fmt.Errorf("invalid year step in %q", part)
		}
	}

	switch {
	case rng == "*" || rng == "?":
		lo, hi = MinYear, MaxYear
	case strings.Contains(rng, "-"):
		bounds := strings.SplitN(rng, "-", 2)
		if lo, err = parseYear(bounds[0]); err != nil {
			return 0, 0, 0, err
		}
		if hi, err = parseYear(bounds[1]); err != nil {
			return 0, 0, 0, err
		}
		if lo > hi {
			return 0, 0, 0, fmt.Errorf("year range %q is reversed", part)
		}
	default:
		if lo, err = parseYear(rng); err != nil {
			return 0, 0, 0, err
		}
		hi = lo
		if step > 1 {
			hi = MaxYear
		}
	}
	return lo, hi, step, nil
}

func parseYear(s string) (int, error) {
	y, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid year %q", s)
	}
	if y < MinYear || y > MaxYear {
		return 0, fmt.Errorf("year %d outside %d-%d", y, MinYear, MaxYear)
	}
	return y, nil
}
