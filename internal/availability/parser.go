package availability

import (
	"fmt"
	"strings"
	"time"
)

const (
	// rangeSeparator splits the start and end literal within one pair.
	rangeSeparator = "|"
	// rangeLayout is the accepted date-time literal form. Literals carry no
	// zone designator; ParseTimeRanges pins the digits as UTC clock values.
	rangeLayout = "2006-01-02T15:04:05"
)

// ParseTimeRanges turns a caller-supplied "start|end,start|end" string into
// validated intervals, preserving input order.
//
// Each literal is interpreted so that its numeric digits become the UTC wall
// clock directly (the stored calendars are UTC-normalized; no zone-rule
// conversion happens here).
func ParseTimeRanges(raw string) ([]Interval, error) {
	var intervals []Interval
	for _, pair := range strings.Split(raw, ",") {
		start, end, found := strings.Cut(pair, rangeSeparator)
		if !found {
			return nil, fmt.Errorf("%w: %q is missing the %q separator", ErrMalformedRange, pair, rangeSeparator)
		}
		startTime, err := parseRangeLiteral(start)
		if err != nil {
			return nil, err
		}
		endTime, err := parseRangeLiteral(end)
		if err != nil {
			return nil, err
		}
		iv, err := NewInterval(startTime, endTime)
		if err != nil {
			return nil, err
		}
		intervals = append(intervals, iv)
	}
	return intervals, nil
}

func parseRangeLiteral(literal string) (time.Time, error) {
	t, err := time.ParseInLocation(rangeLayout, strings.TrimSpace(literal), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse %q as %s", ErrMalformedRange, literal, rangeLayout)
	}
	return t, nil
}
