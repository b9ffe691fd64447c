package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeOfDay(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"9am", 540, true},
		{"9:00am", 540, true},
		{"9:00 AM", 540, true},
		{"9 am", 540, true},
		{"930am", 570, true},
		{"0900", 540, true},
		{"900", 540, true},
		{"930", 570, true},
		{"1400", 840, true},
		{"14:00", 840, true},
		{"9:05", 545, true},
		{"  10:50  ", 650, true},
		{"12am", 0, true},
		{"12:30am", 30, true},
		{"12pm", 720, true},
		{"1:15pm", 795, true},
		{"100", 60, true},
		{"0:00", 0, true},
		{"23:59", 1439, true},

		{"", 0, false},
		{"noon", 0, false},
		{"13pm", 0, false},
		{"0am", 0, false},
		{"9:60am", 0, false},
		{"24:00", 0, false},
		{"2400", 0, false},
		{"1260", 0, false},
		{"9", 0, false},
		{"12345", 0, false},
		{"9:5", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseTimeOfDay(tt.in).Get()
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestFormatMinutes(t *testing.T) {
	assert.Equal(t, "00:00", FormatMinutes(0))
	assert.Equal(t, "09:05", FormatMinutes(545))
	assert.Equal(t, "23:59", FormatMinutes(1439))
}

func TestResolveDay(t *testing.T) {
	tests := []struct {
		token string
		want  time.Weekday
		code  string
	}{
		{"M", time.Monday, "MO"},
		{"t", time.Tuesday, "TU"},
		{"W", time.Wednesday, "WE"},
		{"R", time.Thursday, "TH"},
		{"H", time.Thursday, "TH"},
		{"F", time.Friday, "FR"},
		{"S", time.Saturday, "SA"},
		{"U", time.Sunday, "SU"},
		{"N", time.Sunday, "SU"},
		{"Th", time.Thursday, "TH"},
		{" wed ", time.Wednesday, "WE"},
		{"Thurs", time.Thursday, "TH"},
		{"TUES", time.Tuesday, "TU"},
		{"sunday", time.Sunday, "SU"},
		{"Saturday", time.Saturday, "SA"},
	}
	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			d, ok := ResolveDay(tt.token).Get()
			require.True(t, ok)
			assert.Equal(t, tt.want, d.Weekday)
			assert.Equal(t, tt.code, d.Code)
		})
	}

	for _, bad := range []string{"", "X", "Mondays", "MWF", "funday"} {
		assert.True(t, ResolveDay(bad).IsAbsent(), bad)
	}
}

func TestDayTableConsistency(t *testing.T) {
	for key, d := range dayTable {
		assert.Equal(t, DayOf(d.Weekday), d, key)
	}
}

func TestWeekdaySet(t *testing.T) {
	s := NewWeekdaySet(time.Friday, time.Monday, time.Sunday, time.Wednesday)
	assert.Equal(t, []string{"MO", "WE", "FR", "SU"}, s.Codes())
	assert.Equal(t, "MO,WE,FR,SU", s.String())
	assert.True(t, s.Has(time.Sunday))
	assert.False(t, s.Has(time.Tuesday))
	assert.True(t, WeekdaySet(0).Empty())
	assert.Equal(t, NewWeekdaySet(time.Monday, time.Tuesday), NewWeekdaySet(time.Monday).Union(NewWeekdaySet(time.Tuesday)))
}
