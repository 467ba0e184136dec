package availability

import "time"

// GenerateSlots tiles each clipped interval into candidate slots of exactly
// duration and keeps those that overlap no busy interval. The cursor advances
// by duration whether or not the candidate conflicted, so a long busy block is
// probed once per step rather than jumped over; the observable output is the
// same either way. A trailing remainder shorter than duration is dropped.
//
// Slots come back in ascending start order within each clipped interval,
// concatenated in the order the clipped intervals were given.
func GenerateSlots(clipped []Interval, busy []Interval, duration time.Duration) ([]Interval, error) {
	if duration <= 0 {
		return nil, ErrInvalidDuration
	}
	var slots []Interval
	for _, iv := range clipped {
		for cursor := iv.Start; !cursor.Add(duration).After(iv.End); cursor = cursor.Add(duration) {
			candidate := Interval{Start: cursor, End: cursor.Add(duration)}
			if !overlapsAny(candidate, busy) {
				slots = append(slots, candidate)
			}
		}
	}
	return slots, nil
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}
