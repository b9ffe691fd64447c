package model

import (
	"strings"

	"github.com/golang-sql/civil"
)

// MeetingPattern is one weekly slot at which a session meets.
// Day and times are kept as the free-form text supplied by the schedule
// repository; parsing happens in internal/schedule.
type MeetingPattern struct {
	Day       string `yaml:"day" json:"day"`
	StartTime string `yaml:"start_time" json:"start_time"`
	EndTime   string `yaml:"end_time" json:"end_time"`

	// Optional per-pattern date bounds. A nil bound inherits the session bound.
	StartDate *civil.Date `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate   *civil.Date `yaml:"end_date,omitempty" json:"end_date,omitempty"`
}

// ScheduleSession is a class section as delivered by the schedule repository.
// A session may list several rooms (cross-listed or shared sections).
type ScheduleSession struct {
	ID             string `yaml:"id" json:"id" validate:"required"`
	CourseCode     string `yaml:"course_code" json:"course_code"`
	Section        string `yaml:"section" json:"section"`
	CourseTitle    string `yaml:"course_title,omitempty" json:"course_title,omitempty"`
	InstructorName string `yaml:"instructor,omitempty" json:"instructor,omitempty"`
	CRN            string `yaml:"crn,omitempty" json:"crn,omitempty"`
	Term           string `yaml:"term" json:"term" validate:"required"`

	RoomNames []string `yaml:"rooms" json:"rooms"`

	// Optional session-wide date bounds. A nil bound inherits the term bound.
	StartDate *civil.Date `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate   *civil.Date `yaml:"end_date,omitempty" json:"end_date,omitempty"`

	MeetingPatterns []MeetingPattern `yaml:"meeting_patterns" json:"meeting_patterns" validate:"dive"`
}

// InRoom reports whether the session lists the given room.
// Names are compared after trimming surrounding whitespace.
func (s ScheduleSession) InRoom(room string) bool {
	room = strings.TrimSpace(room)
	for _, r := range s.RoomNames {
		if strings.TrimSpace(r) == room {
			return true
		}
	}
	return false
}

// TermWindow is the default date boundary for every pattern of a term.
type TermWindow struct {
	Term      string     `yaml:"term" json:"term" validate:"required"`
	StartDate civil.Date `yaml:"start_date" json:"start_date"`
	EndDate   civil.Date `yaml:"end_date" json:"end_date"`
}

// Valid reports whether both bounds are real dates and start <= end.
func (t TermWindow) Valid() bool {
	if !t.StartDate.IsValid() || !t.EndDate.IsValid() {
		return false
	}
	return !t.EndDate.Before(t.StartDate)
}

// ExceptionDate is a day on which no class of the term meets (e.g. a holiday).
type ExceptionDate struct {
	Date  civil.Date `yaml:"date" json:"date"`
	Label string     `yaml:"label,omitempty" json:"label,omitempty"`
}
