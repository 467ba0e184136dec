package availability

// ClipToWorkHours intersects a requested interval with the agent's recurring
// work hours, splitting a multi-day request into one sub-interval per calendar
// day. Days without a schedule entry, and days where the request and work
// hours do not meet, contribute nothing; that is normal, not an error.
// Results are wholly within a single UTC day and emitted in ascending order.
func ClipToWorkHours(iv Interval, schedule WorkSchedule) []Interval {
	var clipped []Interval
	lastDay := startOfDay(iv.End)
	for day := startOfDay(iv.Start); !day.After(lastDay); day = day.AddDate(0, 0, 1) {
		window, ok := schedule.Window(day)
		if !ok {
			continue
		}
		start := window.Start
		if iv.Start.After(start) {
			start = iv.Start
		}
		end := window.End
		if iv.End.Before(end) {
			end = iv.End
		}
		if start.Before(end) {
			clipped = append(clipped, Interval{Start: start, End: end})
		}
	}
	return clipped
}
