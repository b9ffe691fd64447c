package schedule

import (
	"regexp"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/samber/mo"
)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ParseCalendarDate parses a strict YYYY-MM-DD value as a civil date.
// The result carries no timezone; its weekday is the weekday of that date on
// any wall clock.
func ParseCalendarDate(text string) mo.Option[civil.Date] {
	s := strings.TrimSpace(text)
	if !isoDateRe.MatchString(s) {
		return mo.None[civil.Date]()
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return mo.None[civil.Date]()
	}
	return mo.Some(d)
}

// WeekdayOf returns the day of week of a civil date.
func WeekdayOf(d civil.Date) time.Weekday {
	return d.In(time.UTC).Weekday()
}

// Window is an inclusive range of calendar dates.
// A window whose End is before its Start is empty.
type Window struct {
	Start civil.Date
	End   civil.Date
}

func (w Window) Empty() bool { return w.End.Before(w.Start) }

// Contains reports whether d lies within [Start, End].
func (w Window) Contains(d civil.Date) bool {
	return !d.Before(w.Start) && !d.After(w.End)
}

// narrow intersects two windows without discarding an empty result, so that
// several windows can be folded before the emptiness check.
func (w Window) narrow(o Window) Window {
	out := w
	if o.Start.After(out.Start) {
		out.Start = o.Start
	}
	if o.End.Before(out.End) {
		out.End = o.End
	}
	return out
}

// IntersectWindows returns [max(starts), min(ends)], or None when that range
// is empty.
func IntersectWindows(a, b Window) mo.Option[Window] {
	w := a.narrow(b)
	if w.Empty() {
		return mo.None[Window]()
	}
	return mo.Some(w)
}

// searchDays bounds FirstOccurrenceOnOrAfter. Every weekday recurs within
// seven days, so two weeks is always enough for a non-empty set.
const searchDays = 14

// FirstOccurrenceOnOrAfter returns the first date on or after d whose weekday
// is in days. days must not be empty.
func FirstOccurrenceOnOrAfter(d civil.Date, days WeekdaySet) civil.Date {
	cur := d
	for i := 0; i < searchDays; i++ {
		if days.Has(WeekdayOf(cur)) {
			return cur
		}
		cur = cur.AddDays(1)
	}
	panic("schedule: FirstOccurrenceOnOrAfter called with an empty weekday set")
}
