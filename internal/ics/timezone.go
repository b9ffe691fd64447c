package ics

import (
	"fmt"
	"strconv"
	"time"

	"roomcal/internal/schedule"
)

// transition is a UTC offset change observed in a zone.
type transition struct {
	at   time.Time // first instant of the new offset
	from int       // offset before, seconds east of UTC
	to   int       // offset after
	name string    // abbreviation after the change
	dst  bool
}

// zoneTransitions probes loc for offset changes during the given year. The
// year is walked hour by hour and each change is narrowed to the second.
func zoneTransitions(loc *time.Location, year int) []transition {
	offset := func(t time.Time) int {
		_, off := t.In(loc).Zone()
		return off
	}

	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(1, 0, 0)

	var out []transition
	prev := start
	prevOff := offset(prev)
	for t := start.Add(time.Hour); !t.After(end); t = t.Add(time.Hour) {
		off := offset(t)
		if off == prevOff {
			prev = t
			continue
		}
		lo, hi := prev, t
		for secs := int64(hi.Sub(lo) / time.Second); secs > 1; secs = int64(hi.Sub(lo) / time.Second) {
			mid := lo.Add(time.Duration(secs/2) * time.Second)
			if offset(mid) == prevOff {
				lo = mid
			} else {
				hi = mid
			}
		}
		local := hi.In(loc)
		name, _ := local.Zone()
		out = append(out, transition{at: hi, from: prevOff, to: off, name: name, dst: local.IsDST()})
		prev, prevOff = t, off
	}
	return out
}

// formatOffset renders seconds east of UTC as +HHMM (or +HHMMSS).
func formatOffset(sec int) string {
	sign := '+'
	if sec < 0 {
		sign = '-'
		sec = -sec
	}
	s := fmt.Sprintf("%c%02d%02d", sign, sec/3600, sec%3600/60)
	if sec%60 != 0 {
		s += fmt.Sprintf("%02d", sec%60)
	}
	return s
}

// yearlyRule describes the wall date as "the nth weekday of the month", using
// -1 when it falls in the last seven days of the month.
func yearlyRule(wall time.Time) string {
	day := wall.Day()
	daysInMonth := time.Date(wall.Year(), wall.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	nth := strconv.Itoa((day-1)/7 + 1)
	if day+7 > daysInMonth {
		nth = "-1"
	}
	return fmt.Sprintf("FREQ=YEARLY;BYMONTH=%d;BYDAY=%s%s",
		int(wall.Month()), nth, schedule.DayOf(wall.Weekday()).Code)
}

// TimezoneBlock returns the VTIMEZONE content lines for loc, describing the
// offset rules in force during year. A zone without transitions gets a single
// STANDARD observance. A zone with the usual two yearly changes gets a
// STANDARD and a DAYLIGHT observance with yearly rules; any other pattern is
// written as plain observances without rules.
func TimezoneBlock(loc *time.Location, year int) []string {
	lines := []string{"BEGIN:VTIMEZONE", "TZID:" + loc.String()}

	trans := zoneTransitions(loc, year)
	if len(trans) == 0 {
		name, off := time.Date(year, time.January, 1, 0, 0, 0, 0, loc).Zone()
		lines = append(lines,
			"BEGIN:STANDARD",
			"DTSTART:19700101T000000",
			"TZOFFSETFROM:"+formatOffset(off),
			"TZOFFSETTO:"+formatOffset(off),
			"TZNAME:"+name,
			"END:STANDARD",
		)
		return append(lines, "END:VTIMEZONE")
	}

	recurring := len(trans) == 2
	for _, tr := range trans {
		kind := "STANDARD"
		if tr.dst {
			kind = "DAYLIGHT"
		}
		// DTSTART is the wall clock time just before the change.
		wall := tr.at.Add(time.Duration(tr.from) * time.Second).UTC()
		lines = append(lines,
			"BEGIN:"+kind,
			"DTSTART:"+wall.Format(localLayout),
			"TZOFFSETFROM:"+formatOffset(tr.from),
			"TZOFFSETTO:"+formatOffset(tr.to),
			"TZNAME:"+tr.name,
		)
		if recurring {
			lines = append(lines, "RRULE:"+yearlyRule(wall))
		}
		lines = append(lines, "END:"+kind)
	}
	return append(lines, "END:VTIMEZONE")
}
