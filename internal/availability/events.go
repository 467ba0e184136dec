package availability

import "time"

// EventsInWindow returns the events whose busy interval overlaps
// [start, end). A zero end means the window is open-ended: every well-formed
// event ending at or after start qualifies. Events with missing or inverted
// times are skipped individually.
func EventsInWindow(events []CalendarEvent, start, end time.Time) []CalendarEvent {
	window := Interval{Start: start, End: end}
	var matched []CalendarEvent
	for _, e := range events {
		if !e.wellFormed() {
			continue
		}
		if end.IsZero() {
			if !e.End.Before(start) {
				matched = append(matched, e)
			}
			continue
		}
		if e.Interval().Overlaps(window) {
			matched = append(matched, e)
		}
	}
	return matched
}

// BusyIntervals projects events onto their occupied spans, dropping malformed
// records.
func BusyIntervals(events []CalendarEvent) []Interval {
	busy := make([]Interval, 0, len(events))
	for _, e := range events {
		if e.wellFormed() {
			busy = append(busy, e.Interval())
		}
	}
	return busy
}
