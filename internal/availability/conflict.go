package availability

// HasConflict reports whether any existing event overlaps the candidate
// interval. It is a pure predicate: callers that need a race-free booking must
// re-check after acquiring write access to the calendar snapshot.
func HasConflict(candidate Interval, events []CalendarEvent) bool {
	for _, e := range events {
		if !e.wellFormed() {
			continue
		}
		if candidate.Overlaps(e.Interval()) {
			return true
		}
	}
	return false
}
