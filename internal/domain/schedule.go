package domain

import "time"

// BusinessHoursSchedule defines the operating calendar an SLA counts down
// against. A 24x7 schedule short-circuits entry and holiday lookups.
type BusinessHoursSchedule struct {
	ID       string
	Name     string
	Timezone string
	Is24x7   bool
	Entries  []BusinessHoursEntry
	Holidays []Holiday
}

// BusinessHoursEntry is one operating window on a weekday, expressed as
// minutes from local midnight. A day may carry multiple windows.
type BusinessHoursEntry struct {
	ScheduleID  string
	DayOfWeek   time.Weekday
	StartMinute int
	EndMinute   int
}

// Holiday excludes an entire calendar date from the schedule.
type Holiday struct {
	ScheduleID string
	Date       time.Time
	Name       string
}

// Location resolves the schedule's timezone, falling back to UTC when the
// zone name is missing or unknown.
func (s *BusinessHoursSchedule) Location() *time.Location {
	if s == nil || s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// EntriesFor returns the operating windows configured for a weekday.
func (s *BusinessHoursSchedule) EntriesFor(day time.Weekday) []BusinessHoursEntry {
	var out []BusinessHoursEntry
	for _, e := range s.Entries {
		if e.DayOfWeek == day {
			out = append(out, e)
		}
	}
	return out
}

// IsHoliday reports whether the given local calendar date is excluded.
func (s *BusinessHoursSchedule) IsHoliday(date string) bool {
	for _, h := range s.Holidays {
		if h.Date.Format("2006-01-02") == date {
			return true
		}
	}
	return false
}
