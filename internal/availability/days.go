package availability

import (
	"sort"
	"time"
)

// DefaultLookAheadDays is the horizon used when the caller does not supply one.
const DefaultLookAheadDays = 7

// maxOptimalDays caps how many ranked dates a query returns.
const maxOptimalDays = 4

// DayScore is the per-day busyness used for ranking. It is never persisted.
type DayScore struct {
	Date      string // YYYY-MM-DD
	BusyCount int
}

// OptimalDays scores each workday in the look-ahead horizon by how many events
// overlap its work-hour window and returns the least-busy dates, fewest events
// first, ties broken by earlier date. Days without a schedule entry are not
// scored and cannot be returned. At most four dates come back.
func OptimalDays(now time.Time, lookAheadDays int, schedule WorkSchedule, events []CalendarEvent) []string {
	scores := ScoreDays(now, lookAheadDays, schedule, events)
	dates := make([]string, 0, len(scores))
	for _, s := range scores {
		dates = append(dates, s.Date)
	}
	if len(dates) > maxOptimalDays {
		dates = dates[:maxOptimalDays]
	}
	return dates
}

// ScoreDays returns every scored day in ranked order, without the top-4 cut.
func ScoreDays(now time.Time, lookAheadDays int, schedule WorkSchedule, events []CalendarEvent) []DayScore {
	var scores []DayScore
	for offset := 0; offset < lookAheadDays; offset++ {
		day := now.UTC().AddDate(0, 0, offset)
		window, ok := schedule.Window(day)
		if !ok {
			continue
		}
		scores = append(scores, DayScore{
			Date:      day.Format("2006-01-02"),
			BusyCount: len(EventsInWindow(events, window.Start, window.End)),
		})
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].BusyCount != scores[j].BusyCount {
			return scores[i].BusyCount < scores[j].BusyCount
		}
		return scores[i].Date < scores[j].Date
	})
	return scores
}
