package ics

import (
	"sort"
	"strings"
	"time"

	"github.com/golang-sql/civil"
	"github.com/google/uuid"
	"github.com/samber/mo"

	"roomcal/internal/model"
	"roomcal/internal/schedule"
)

const (
	utcLayout   = "20060102T150405Z"
	localLayout = "20060102T150405"
)

// CalendarEvent is one weekly recurring VEVENT.
type CalendarEvent struct {
	UID         string
	Stamp       time.Time // generation time, UTC
	Summary     string
	Description string
	Location    string

	// Start and End bound the first occurrence, in the room's timezone.
	Start time.Time
	End   time.Time

	Weekdays schedule.WeekdaySet
	// Until is the last second of the final day, in the room's timezone.
	Until   time.Time
	ExDates []time.Time
}

// RRule renders the weekly recurrence rule. UNTIL is written in UTC, which
// RFC 5545 requires when DTSTART carries a TZID.
func (e CalendarEvent) RRule() string {
	return "FREQ=WEEKLY;UNTIL=" + e.Until.UTC().Format(utcLayout) + ";BYDAY=" + e.Weekdays.String()
}

// Lines returns the unfolded VEVENT content lines.
func (e CalendarEvent) Lines() []string {
	tzid := e.Start.Location().String()
	lines := []string{
		"BEGIN:VEVENT",
		"UID:" + e.UID,
		"DTSTAMP:" + e.Stamp.UTC().Format(utcLayout),
		"SUMMARY:" + EscapeText(e.Summary),
	}
	if e.Description != "" {
		lines = append(lines, "DESCRIPTION:"+EscapeText(e.Description))
	}
	lines = append(lines,
		"LOCATION:"+EscapeText(e.Location),
		"DTSTART;TZID="+tzid+":"+e.Start.Format(localLayout),
		"DTEND;TZID="+tzid+":"+e.End.Format(localLayout),
		"RRULE:"+e.RRule(),
	)
	for _, ex := range e.ExDates {
		lines = append(lines, "EXDATE;TZID="+tzid+":"+ex.Format(localLayout))
	}
	return append(lines, "END:VEVENT")
}

// Builder turns time groups into calendar events for one room timezone.
type Builder struct {
	Location  *time.Location
	UIDDomain string
	// Now supplies DTSTAMP. Defaults to time.Now.
	Now func() time.Time
}

func (b Builder) at(d civil.Date, minutes int) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minutes/60, minutes%60, 0, 0, b.Location)
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

// BuildEvent produces the recurring event for one time group of a session in
// a room. A group whose window holds no matching weekday yields a skip.
// Exception dates apply only when they fall inside the group's window on one
// of its weekdays.
func (b Builder) BuildEvent(room string, s model.ScheduleSession, g schedule.TimeGroup, exceptions []model.ExceptionDate) mo.Either[schedule.Skip, CalendarEvent] {
	first := schedule.FirstOccurrenceOnOrAfter(g.Window.Start, g.Weekdays)
	if first.After(g.Window.End) {
		return mo.Left[schedule.Skip, CalendarEvent](schedule.Skip{
			SessionID: s.ID,
			Pattern:   -1,
			Slot:      g.Slot(),
			Reason:    schedule.SkipNoOccurrence,
		})
	}

	last := g.Window.End
	ev := CalendarEvent{
		Stamp:       b.now().UTC().Truncate(time.Second),
		Summary:     summary(s),
		Description: description(s),
		Location:    room,
		Start:       b.at(first, g.StartMinutes),
		End:         b.at(first, g.EndMinutes),
		Weekdays:    g.Weekdays,
		Until:       time.Date(last.Year, last.Month, last.Day, 23, 59, 59, 0, b.Location),
		ExDates:     b.exDates(g, exceptions),
	}
	ev.UID = eventUID(b.UIDDomain, room, s.ID, g.Weekdays, ev.Start)
	return mo.Right[schedule.Skip](ev)
}

func (b Builder) exDates(g schedule.TimeGroup, exceptions []model.ExceptionDate) []time.Time {
	seen := make(map[civil.Date]bool)
	var out []time.Time
	for _, ex := range exceptions {
		d := ex.Date
		if seen[d] || !g.Window.Contains(d) || !g.Weekdays.Has(schedule.WeekdayOf(d)) {
			continue
		}
		seen[d] = true
		out = append(out, b.at(d, g.StartMinutes))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

func summary(s model.ScheduleSession) string {
	title := strings.TrimSpace(strings.TrimSpace(s.CourseCode) + " " + strings.TrimSpace(s.Section))
	if title == "" {
		return "Class " + s.ID
	}
	return title
}

func description(s model.ScheduleSession) string {
	var parts []string
	add := func(label, v string) {
		if v = strings.TrimSpace(v); v != "" {
			parts = append(parts, label+": "+v)
		}
	}
	add("Course", s.CourseTitle)
	add("Instructor", s.InstructorName)
	add("CRN", s.CRN)
	add("Term", s.Term)
	return strings.Join(parts, "\n")
}

// eventUID derives a stable identifier from the room, session, weekday set
// and first occurrence, so regenerating unchanged input reproduces it.
func eventUID(domain, room, sessionID string, days schedule.WeekdaySet, first time.Time) string {
	key := strings.Join([]string{
		Sanitize(room),
		sessionID,
		days.String(),
		first.Format(localLayout),
	}, "|")
	ns := uuid.NewSHA1(uuid.NameSpaceDNS, []byte(domain))
	return uuid.NewSHA1(ns, []byte(key)).String() + "@" + domain
}
