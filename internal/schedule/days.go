package schedule

import (
	"strings"
	"time"

	"github.com/samber/mo"
)

// DayInfo is the canonical form of a weekday token.
type DayInfo struct {
	Weekday time.Weekday // Sunday=0
	Code    string       // RFC 5545 BYDAY code
}

var (
	sunday    = DayInfo{Weekday: time.Sunday, Code: "SU"}
	monday    = DayInfo{Weekday: time.Monday, Code: "MO"}
	tuesday   = DayInfo{Weekday: time.Tuesday, Code: "TU"}
	wednesday = DayInfo{Weekday: time.Wednesday, Code: "WE"}
	thursday  = DayInfo{Weekday: time.Thursday, Code: "TH"}
	friday    = DayInfo{Weekday: time.Friday, Code: "FR"}
	saturday  = DayInfo{Weekday: time.Saturday, Code: "SA"}
)

// dayTable maps every accepted spelling (upper-cased) to its weekday.
//
// Single letters follow the registrar convention (R = Thursday, S = Saturday,
// U = Sunday). H and N are the alternate single-letter spellings for Thursday
// and Sunday used by some feeds.
var dayTable = map[string]DayInfo{
	"M": monday, "T": tuesday, "W": wednesday, "R": thursday, "F": friday, "S": saturday, "U": sunday,
	"H": thursday, "N": sunday,

	"MO": monday, "TU": tuesday, "WE": wednesday, "TH": thursday, "FR": friday, "SA": saturday, "SU": sunday,

	"MON": monday, "TUE": tuesday, "WED": wednesday, "THU": thursday, "FRI": friday, "SAT": saturday, "SUN": sunday,
	"TUES": tuesday, "THUR": thursday, "THURS": thursday,

	"MONDAY": monday, "TUESDAY": tuesday, "WEDNESDAY": wednesday, "THURSDAY": thursday,
	"FRIDAY": friday, "SATURDAY": saturday, "SUNDAY": sunday,
}

var byWeekday = [7]DayInfo{sunday, monday, tuesday, wednesday, thursday, friday, saturday}

// ResolveDay looks up a weekday token. Lookup is case-insensitive and ignores
// surrounding whitespace.
func ResolveDay(token string) mo.Option[DayInfo] {
	d, ok := dayTable[strings.ToUpper(strings.TrimSpace(token))]
	if !ok {
		return mo.None[DayInfo]()
	}
	return mo.Some(d)
}

// DayOf returns the DayInfo for a time.Weekday.
func DayOf(wd time.Weekday) DayInfo {
	return byWeekday[wd]
}

// WeekdaySet is a set of weekdays stored as a bitmask indexed by time.Weekday.
type WeekdaySet uint8

// weekOrder is the order used when listing a set: Monday first.
var weekOrder = [7]time.Weekday{
	time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday,
}

func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s = s.With(d)
	}
	return s
}

func (s WeekdaySet) With(d time.Weekday) WeekdaySet { return s | 1<<uint(d) }

func (s WeekdaySet) Union(o WeekdaySet) WeekdaySet { return s | o }

func (s WeekdaySet) Has(d time.Weekday) bool { return s&(1<<uint(d)) != 0 }

func (s WeekdaySet) Empty() bool { return s == 0 }

// Days lists the set Monday first.
func (s WeekdaySet) Days() []DayInfo {
	out := make([]DayInfo, 0, 7)
	for _, wd := range weekOrder {
		if s.Has(wd) {
			out = append(out, byWeekday[wd])
		}
	}
	return out
}

// Codes lists the BYDAY codes of the set Monday first, e.g. [MO WE FR].
func (s WeekdaySet) Codes() []string {
	days := s.Days()
	out := make([]string, len(days))
	for i, d := range days {
		out[i] = d.Code
	}
	return out
}

func (s WeekdaySet) String() string { return strings.Join(s.Codes(), ",") }
