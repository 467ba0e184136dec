package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DayHours is a recurring work window for one weekday, as wall-clock "HH:MM"
// bounds within the day.
type DayHours struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

// WorkSchedule maps weekday names ("Sunday".."Saturday") to work hours.
// Missing entries mean the agent does not work that day.
type WorkSchedule map[string]DayHours

// Validate checks every present entry parses and has StartTime < EndTime.
func (ws WorkSchedule) Validate() error {
	for day, hours := range ws {
		if _, err := parseWeekday(day); err != nil {
			return err
		}
		start, err := parseClock(hours.StartTime)
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		end, err := parseClock(hours.EndTime)
		if err != nil {
			return fmt.Errorf("%s: %w", day, err)
		}
		if start >= end {
			return fmt.Errorf("%s: start %q is not before end %q", day, hours.StartTime, hours.EndTime)
		}
	}
	return nil
}

// Window resolves the work-hour interval for the UTC calendar day containing t.
// The second return is false when the weekday has no schedule entry or the
// entry is malformed.
func (ws WorkSchedule) Window(t time.Time) (Interval, bool) {
	hours, ok := ws[t.UTC().Weekday().String()]
	if !ok {
		return Interval{}, false
	}
	startMins, err := parseClock(hours.StartTime)
	if err != nil {
		return Interval{}, false
	}
	endMins, err := parseClock(hours.EndTime)
	if err != nil || startMins >= endMins {
		return Interval{}, false
	}
	day := startOfDay(t)
	return Interval{
		Start: day.Add(time.Duration(startMins) * time.Minute),
		End:   day.Add(time.Duration(endMins) * time.Minute),
	}, true
}

// parseClock converts "HH:MM" into minutes past midnight.
func parseClock(clock string) (int, error) {
	parts := strings.Split(clock, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid clock value %q", clock)
	}
	return hour*60 + minute, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if wd.String() == name {
			return wd, nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", name)
}

// startOfDay truncates to 00:00 UTC. Day boundaries are always UTC midnight.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
