package period

import (
	"time"
)

// Interval is an inclusive [Start, End] time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t lies within the interval, bounds included.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && !t.After(iv.End)
}

// Resolver turns period specs into concrete intervals in a fixed location.
type Resolver struct {
	loc *time.Location
	now func() time.Time
}

// NewResolver creates a resolver for loc. A nil loc means UTC.
func NewResolver(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{loc: loc, now: time.Now}
}

// WithClock returns a copy of the resolver that reads the current time from now.
func (r *Resolver) WithClock(now func() time.Time) *Resolver {
	cp := *r
	cp.now = now
	return &cp
}

// Location returns the location intervals are resolved in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Resolve returns the exact interval of spec. A zero spec resolves to the
// rolling window from one month ago until now.
func (r *Resolver) Resolve(spec Spec) (Interval, error) {
	if spec.IsZero() {
		return r.Rolling(), nil
	}
	if err := spec.Validate(); err != nil {
		return Interval{}, err
	}

	switch spec.Granularity {
	case Month:
		return r.MonthInterval(spec.Year, time.Month(spec.Month)), nil
	case Quarter:
		startMonth := time.Month((spec.Quarter-1)*3 + 1)
		return Interval{
			Start: time.Date(spec.Year, startMonth, 1, 0, 0, 0, 0, r.loc),
			End:   endOfDay(time.Date(spec.Year, startMonth+3, 0, 0, 0, 0, 0, r.loc)),
		}, nil
	default:
		return r.YearInterval(spec.Year), nil
	}
}

// Rolling returns the fallback window: today minus one month until now.
func (r *Resolver) Rolling() Interval {
	end := r.now().In(r.loc)
	return Interval{Start: end.AddDate(0, -1, 0), End: end}
}

// Baseline returns the calendar month immediately before iv.Start,
// regardless of the granularity iv was resolved from.
func (r *Resolver) Baseline(iv Interval) Interval {
	start := iv.Start.In(r.loc)
	prev := time.Date(start.Year(), start.Month()-1, 1, 0, 0, 0, 0, r.loc)
	return r.MonthInterval(prev.Year(), prev.Month())
}

// MonthInterval spans the first instant of the month to 23:59:59 on its last day.
func (r *Resolver) MonthInterval(year int, month time.Month) Interval {
	return Interval{
		Start: time.Date(year, month, 1, 0, 0, 0, 0, r.loc),
		End:   endOfDay(time.Date(year, month+1, 0, 0, 0, 0, 0, r.loc)),
	}
}

// YearInterval spans Jan 1 00:00:00 to Dec 31 23:59:59.
func (r *Resolver) YearInterval(year int) Interval {
	return Interval{
		Start: time.Date(year, time.January, 1, 0, 0, 0, 0, r.loc),
		End:   time.Date(year, time.December, 31, 23, 59, 59, 0, r.loc),
	}
}

// Weeks partitions a month into four fixed buckets: days 1-7, 8-14, 15-21
// and 22 through the end of the month. The last bucket holds 7 to 10 days.
func (r *Resolver) Weeks(year int, month time.Month) [4]Interval {
	last := DaysIn(year, month)
	bounds := [4][2]int{{1, 7}, {8, 14}, {15, 21}, {22, last}}

	var weeks [4]Interval
	for i, b := range bounds {
		weeks[i] = Interval{
			Start: time.Date(year, month, b[0], 0, 0, 0, 0, r.loc),
			End:   endOfDay(time.Date(year, month, b[1], 0, 0, 0, 0, r.loc)),
		}
	}
	return weeks
}

// DaysIn returns the number of days in the month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
