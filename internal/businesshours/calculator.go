package businesshours

import (
	"sort"
	"time"

	"github.com/spec-kit/sla-engine/internal/domain"
)

const dateLayout = "2006-01-02"

// maxHorizonDays bounds AddMinutes iteration. A schedule that cannot supply
// the requested minutes within four years has no usable business time.
const maxHorizonDays = 1461

// ElapsedMinutes returns the whole business minutes between from and to under
// the given schedule. A nil schedule, or one marked 24x7, counts raw
// wall-clock minutes. Results are never negative; to <= from yields 0.
func ElapsedMinutes(s *domain.BusinessHoursSchedule, from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	if s == nil || s.Is24x7 {
		return int(to.Sub(from).Minutes())
	}

	loc := s.Location()
	localFrom := from.In(loc)
	localTo := to.In(loc)

	day := civilMidnight(localFrom, loc)
	lastDay := civilMidnight(localTo, loc)

	total := 0
	for !day.After(lastDay) {
		if !s.IsHoliday(day.Format(dateLayout)) {
			for _, entry := range s.EntriesFor(day.Weekday()) {
				windowStart, windowEnd := entryWindow(day, entry, loc)
				lo := laterOf(windowStart, from)
				hi := earlierOf(windowEnd, to)
				if hi.After(lo) {
					total += int(hi.Sub(lo).Minutes())
				}
			}
		}
		day = nextCivilDay(day, loc)
	}
	return total
}

// AddMinutes advances from by the given number of business minutes. A nil or
// 24x7 schedule advances by wall-clock minutes. The boolean is false when the
// schedule cannot supply the minutes within the bounded horizon (e.g. no
// entries configured); callers treat that as "no due date".
func AddMinutes(s *domain.BusinessHoursSchedule, from time.Time, minutes int) (time.Time, bool) {
	if minutes <= 0 {
		return from, true
	}
	if s == nil || s.Is24x7 {
		return from.Add(time.Duration(minutes) * time.Minute), true
	}

	loc := s.Location()
	remaining := minutes
	day := civilMidnight(from.In(loc), loc)

	for i := 0; i < maxHorizonDays; i++ {
		if !s.IsHoliday(day.Format(dateLayout)) {
			for _, entry := range sortedEntries(s.EntriesFor(day.Weekday())) {
				windowStart, windowEnd := entryWindow(day, entry, loc)
				start := laterOf(windowStart, from)
				if !windowEnd.After(start) {
					continue
				}
				available := int(windowEnd.Sub(start).Minutes())
				if remaining <= available {
					return start.Add(time.Duration(remaining) * time.Minute), true
				}
				remaining -= available
			}
		}
		day = nextCivilDay(day, loc)
	}
	return time.Time{}, false
}

// ElapsedPercent computes pause-adjusted progress toward a target as a
// percentage. Elapsed time is measured in business minutes under the
// schedule, then reduced by accumulated pause minutes.
func ElapsedPercent(s *domain.BusinessHoursSchedule, startedAt, now time.Time, pauseMinutes, targetMinutes int) float64 {
	if targetMinutes <= 0 {
		return 0
	}
	elapsed := ElapsedMinutes(s, startedAt, now) - pauseMinutes
	if elapsed < 0 {
		elapsed = 0
	}
	return float64(elapsed) / float64(targetMinutes) * 100
}

// entryWindow resolves an entry's window on a given day as civil times in
// loc. Building via time.Date keeps the math correct across DST transitions.
func entryWindow(day time.Time, entry domain.BusinessHoursEntry, loc *time.Location) (time.Time, time.Time) {
	start := time.Date(day.Year(), day.Month(), day.Day(), entry.StartMinute/60, entry.StartMinute%60, 0, 0, loc)
	end := time.Date(day.Year(), day.Month(), day.Day(), entry.EndMinute/60, entry.EndMinute%60, 0, 0, loc)
	return start, end
}

func civilMidnight(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

func nextCivilDay(day time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day()+1, 0, 0, 0, 0, loc)
}

func sortedEntries(entries []domain.BusinessHoursEntry) []domain.BusinessHoursEntry {
	if len(entries) < 2 {
		return entries
	}
	out := make([]domain.BusinessHoursEntry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartMinute < out[j].StartMinute
	})
	return out
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
