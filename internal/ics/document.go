package ics

import (
	"strings"
	"time"
)

// Document is one room's calendar: a header, a single VTIMEZONE shared by
// all events, and the events themselves.
type Document struct {
	ProductID string
	Name      string
	Location  *time.Location
	// Year selects the transition rules described by the VTIMEZONE block.
	Year   int
	Events []CalendarEvent
}

// Lines returns the unfolded content lines in document order.
func (d Document) Lines() []string {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + d.ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + EscapeText(d.Name),
		"X-WR-TIMEZONE:" + d.Location.String(),
	}
	lines = append(lines, TimezoneBlock(d.Location, d.Year)...)
	for _, ev := range d.Events {
		lines = append(lines, ev.Lines()...)
	}
	return append(lines, "END:VCALENDAR")
}

// Serialize renders the document with every line folded and CRLF-terminated.
func (d Document) Serialize() string {
	var b strings.Builder
	for _, l := range d.Lines() {
		b.WriteString(FoldLine(l))
		b.WriteString(crlf)
	}
	return b.String()
}
