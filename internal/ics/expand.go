package ics

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

// Occurrences expands an event into the start time of every meeting, with
// exception dates removed.
func Occurrences(ev CalendarEvent) ([]time.Time, error) {
	opt, err := rrule.StrToROption(ev.RRule())
	if err != nil {
		return nil, fmt.Errorf("ics: parse RRULE %q: %w", ev.RRule(), err)
	}
	opt.Dtstart = ev.Start

	r, err := rrule.NewRRule(*opt)
	if err != nil {
		return nil, fmt.Errorf("ics: build RRULE %q: %w", ev.RRule(), err)
	}

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex)
	}
	return set.All(), nil
}

// CountOccurrences returns how many meetings an event stands for.
func CountOccurrences(ev CalendarEvent) (int, error) {
	occ, err := Occurrences(ev)
	if err != nil {
		return 0, err
	}
	return len(occ), nil
}
