package availability

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedRange covers unparsable time-range input and inverted intervals.
	ErrMalformedRange = errors.New("malformed time range")
	// ErrInvalidDuration is returned for non-positive slot durations.
	ErrInvalidDuration = errors.New("duration must be positive")
	// ErrMissingWorkSchedule means no schedule exists for the client/agent pair.
	ErrMissingWorkSchedule = errors.New("no work schedule for agent")
)

// Interval is a half-open time span [Start, End). All times are UTC wall clock.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval rejects zero-length and inverted spans.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s", ErrMalformedRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Overlaps reports whether two half-open intervals intersect. Intervals that
// only touch at a boundary (a.End == b.Start) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// CalendarEvent is an existing booking in an agent's calendar. Events arrive
// already parsed from the calendar snapshot; the engine treats them as
// read-only busy intervals.
type CalendarEvent struct {
	UID     string
	Summary string
	Start   time.Time
	End     time.Time
}

// Interval returns the busy span the event occupies.
func (e CalendarEvent) Interval() Interval {
	return Interval{Start: e.Start, End: e.End}
}

// wellFormed filters out events whose times cannot be compared. A single bad
// record must not fail a whole query.
func (e CalendarEvent) wellFormed() bool {
	return !e.Start.IsZero() && !e.End.IsZero() && e.Start.Before(e.End)
}
