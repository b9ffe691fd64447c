package ics

import (
	"bytes"
	"errors"
	"fmt"

	ical "github.com/arran4/golang-ical"
)

// ParsedEvent is the raw view of a VEVENT read back from a serialized
// document. Values are kept as they appear on the wire.
type ParsedEvent struct {
	UID      string
	Summary  string
	Location string
	DTStart  string
	StartTZ  string
	DTEnd    string
	RawRRule string
	ExDates  []string
}

// ParseEvents reads a calendar document with an independent parser and
// returns its events.
func ParseEvents(body []byte) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	events := make([]ParsedEvent, 0)
	for _, ve := range cal.Events() {
		events = append(events, parseVEvent(ve))
	}
	return events, nil
}

func parseVEvent(ve *ical.VEvent) ParsedEvent {
	var out ParsedEvent
	value := func(p ical.ComponentProperty) string {
		if prop := ve.GetProperty(p); prop != nil {
			return prop.Value
		}
		return ""
	}

	out.UID = value(ical.ComponentPropertyUniqueId)
	out.Summary = value(ical.ComponentPropertySummary)
	out.Location = value(ical.ComponentPropertyLocation)
	out.DTStart = value(ical.ComponentPropertyDtStart)
	out.DTEnd = value(ical.ComponentPropertyDtEnd)
	out.RawRRule = value(ical.ComponentPropertyRrule)

	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
			out.StartTZ = tzs[0]
		}
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		if p.Value != "" {
			out.ExDates = append(out.ExDates, p.Value)
		}
	}
	return out
}

// Verify re-parses a generated document and checks that it holds the
// expected number of recurring events, each with a UID and an RRULE.
func Verify(body []byte, wantEvents int) error {
	events, err := ParseEvents(body)
	if err != nil {
		return fmt.Errorf("ics: generated calendar does not parse: %w", err)
	}
	if len(events) != wantEvents {
		return fmt.Errorf("ics: generated calendar has %d events, want %d", len(events), wantEvents)
	}
	for i, ev := range events {
		if ev.UID == "" {
			return fmt.Errorf("ics: event %d has no UID", i)
		}
		if ev.RawRRule == "" {
			return fmt.Errorf("ics: event %s has no RRULE", ev.UID)
		}
	}
	return nil
}
