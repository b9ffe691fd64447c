package schedule

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/samber/mo"
)

var (
	// 9am, 9 am, 9:30pm, 930pm, 12:05 AM
	meridiemRe = regexp.MustCompile(`^(\d{1,2})(?::?(\d{2}))?\s*(am|pm)$`)
	// 9:30, 14:00
	clockRe = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	// 930, 0900, 1400; always 24-hour
	compactRe = regexp.MustCompile(`^(\d{1,2})(\d{2})$`)
)

// ParseTimeOfDay converts free-form time text into minutes since midnight.
//
// Shapes are tried in order: 12-hour with meridiem, 24-hour "H:MM", then
// compact "HMM"/"HHMM" read as 24-hour ("100" is 01:00, never 13:00).
// Anything else, or an out-of-range field, yields None.
func ParseTimeOfDay(text string) mo.Option[int] {
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return mo.None[int]()
	}

	if m := meridiemRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		mins := 0
		if m[2] != "" {
			mins, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || mins > 59 {
			return mo.None[int]()
		}
		h %= 12
		if m[3] == "pm" {
			h += 12
		}
		return mo.Some(h*60 + mins)
	}

	for _, re := range []*regexp.Regexp{clockRe, compactRe} {
		if m := re.FindStringSubmatch(s); m != nil {
			h, _ := strconv.Atoi(m[1])
			mins, _ := strconv.Atoi(m[2])
			if h > 23 || mins > 59 {
				return mo.None[int]()
			}
			return mo.Some(h*60 + mins)
		}
	}

	return mo.None[int]()
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(m int) string {
	return fmt.Sprintf("%02d:%02d", m/60, m%60)
}
