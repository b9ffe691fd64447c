package schedule

import (
	"fmt"
	"sort"

	"github.com/golang-sql/civil"
	"github.com/samber/mo"

	"roomcal/internal/model"
)

// SkipReason names why a pattern or group produced no event.
type SkipReason string

const (
	SkipUnknownDay     SkipReason = "unknown_day"
	SkipBadStartTime   SkipReason = "bad_start_time"
	SkipBadEndTime     SkipReason = "bad_end_time"
	SkipDegenerateTime SkipReason = "degenerate_time"
	SkipEmptyWindow    SkipReason = "empty_window"
	SkipNoOccurrence   SkipReason = "no_occurrence"
)

// Skip records a pattern or time group that was dropped. Dropping is not an
// error: the rest of the session and room still export.
type Skip struct {
	SessionID string
	// Pattern is the index of the meeting pattern, or -1 for a time group.
	Pattern int
	// Slot is the group's time range (HH:MM-HH:MM), set for group skips.
	Slot   string
	Reason SkipReason
}

func (s Skip) String() string {
	if s.Pattern >= 0 {
		return fmt.Sprintf("session %s pattern %d: %s", s.SessionID, s.Pattern, s.Reason)
	}
	return fmt.Sprintf("session %s slot %s: %s", s.SessionID, s.Slot, s.Reason)
}

// TimeGroup merges all patterns of one session that share a time of day.
type TimeGroup struct {
	StartMinutes int
	EndMinutes   int
	Weekdays     WeekdaySet
	Window       Window
}

// Slot renders the group's time range as HH:MM-HH:MM.
func (g TimeGroup) Slot() string {
	return FormatMinutes(g.StartMinutes) + "-" + FormatMinutes(g.EndMinutes)
}

type slotKey struct{ start, end int }

type patternSlot struct {
	key    slotKey
	day    DayInfo
	window Window
}

// GroupPatterns folds the session's meeting patterns into one TimeGroup per
// distinct (start, end) time. Weekdays are unioned and date windows are
// intersected across the patterns of a group. Patterns that cannot be parsed
// and groups whose window ends up empty are reported as skips.
//
// Groups are returned ordered by start time, then end time.
func GroupPatterns(session model.ScheduleSession, term model.TermWindow) ([]TimeGroup, []Skip) {
	base := sessionWindow(session, term)

	groups := make(map[slotKey]*TimeGroup)
	var skips []Skip

	for i, p := range session.MeetingPatterns {
		res := resolvePattern(session.ID, i, p, base)
		ps, ok := res.Right()
		if !ok {
			skips = append(skips, res.MustLeft())
			continue
		}
		g, exists := groups[ps.key]
		if !exists {
			groups[ps.key] = &TimeGroup{
				StartMinutes: ps.key.start,
				EndMinutes:   ps.key.end,
				Weekdays:     NewWeekdaySet(ps.day.Weekday),
				Window:       ps.window,
			}
			continue
		}
		g.Weekdays = g.Weekdays.With(ps.day.Weekday)
		g.Window = g.Window.narrow(ps.window)
	}

	out := make([]TimeGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartMinutes != out[j].StartMinutes {
			return out[i].StartMinutes < out[j].StartMinutes
		}
		return out[i].EndMinutes < out[j].EndMinutes
	})

	kept := out[:0]
	for _, g := range out {
		if g.Window.Empty() {
			skips = append(skips, Skip{SessionID: session.ID, Pattern: -1, Slot: g.Slot(), Reason: SkipEmptyWindow})
			continue
		}
		kept = append(kept, g)
	}
	return kept, skips
}

// sessionWindow applies the session's own bounds, falling back to the term
// and clamped to it.
func sessionWindow(session model.ScheduleSession, term model.TermWindow) Window {
	termWin := Window{Start: term.StartDate, End: term.EndDate}
	return termWin.narrow(overrideWindow(termWin, session.StartDate, session.EndDate))
}

// overrideWindow replaces the bounds of parent that have an override.
func overrideWindow(parent Window, start, end *civil.Date) Window {
	w := parent
	if start != nil {
		w.Start = *start
	}
	if end != nil {
		w.End = *end
	}
	return w
}

func resolvePattern(sessionID string, idx int, p model.MeetingPattern, base Window) mo.Either[Skip, patternSlot] {
	skip := func(r SkipReason) mo.Either[Skip, patternSlot] {
		return mo.Left[Skip, patternSlot](Skip{SessionID: sessionID, Pattern: idx, Reason: r})
	}

	day, ok := ResolveDay(p.Day).Get()
	if !ok {
		return skip(SkipUnknownDay)
	}
	start, ok := ParseTimeOfDay(p.StartTime).Get()
	if !ok {
		return skip(SkipBadStartTime)
	}
	end, ok := ParseTimeOfDay(p.EndTime).Get()
	if !ok {
		return skip(SkipBadEndTime)
	}
	if end <= start {
		return skip(SkipDegenerateTime)
	}

	return mo.Right[Skip](patternSlot{
		key:    slotKey{start: start, end: end},
		day:    day,
		window: base.narrow(overrideWindow(base, p.StartDate, p.EndDate)),
	})
}
