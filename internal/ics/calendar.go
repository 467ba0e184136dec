// Package ics encodes and decodes agent calendar snapshots stored as
// iCalendar documents.
package ics

import (
	"bytes"
	"fmt"
	"time"

	"github.com/emersion/go-ical"
	"github.com/google/uuid"

	"github.com/housewhisper/scheduler/internal/availability"
)

const productID = "-//HouseWhisper//Agent Scheduler//EN"

// Empty returns a fresh calendar shell for agents with no snapshot yet.
func Empty() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	return cal
}

// Decode parses a stored snapshot payload.
func Decode(payload []byte) (*ical.Calendar, error) {
	cal, err := ical.NewDecoder(bytes.NewReader(payload)).Decode()
	if err != nil {
		return nil, fmt.Errorf("decode calendar snapshot: %w", err)
	}
	return cal, nil
}

// Encode serializes a calendar back into its stored payload form.
func Encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("encode calendar snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// Events extracts one busy event per VEVENT. Components whose times are
// missing, unparsable, or inverted are skipped individually; one bad record
// never fails the whole snapshot.
func Events(cal *ical.Calendar) []availability.CalendarEvent {
	var events []availability.CalendarEvent
	for _, child := range cal.Children {
		if child.Name != ical.CompEvent {
			continue
		}
		vevent := ical.Event{Component: child}
		start, err := vevent.DateTimeStart(time.UTC)
		if err != nil {
			continue
		}
		end, err := vevent.DateTimeEnd(time.UTC)
		if err != nil {
			continue
		}
		// Absent DTSTART/DTEND come back as zero times with a nil error.
		if start.IsZero() || end.IsZero() || !start.Before(end) {
			continue
		}

		e := availability.CalendarEvent{Start: start.UTC(), End: end.UTC()}
		if props := child.Props[ical.PropUID]; len(props) > 0 {
			e.UID = props[0].Value
		}
		if props := child.Props[ical.PropSummary]; len(props) > 0 {
			e.Summary = props[0].Value
		}
		events = append(events, e)
	}
	return events
}

// NewEvent builds a VEVENT for a freshly booked appointment. Description and
// location are optional.
func NewEvent(summary, description, location string, start, end time.Time) *ical.Event {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, uuid.NewString())
	now := time.Now().UTC()
	event.Props.SetDateTime(ical.PropDateTimeStamp, now)
	event.Props.SetDateTime(ical.PropCreated, now)
	event.Props.SetDateTime(ical.PropDateTimeStart, start.UTC())
	event.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())
	event.Props.SetText(ical.PropSummary, summary)
	if description != "" {
		event.Props.SetText(ical.PropDescription, description)
	}
	if location != "" {
		event.Props.SetText(ical.PropLocation, location)
	}
	return event
}

// Append adds an event to the calendar in place.
func Append(cal *ical.Calendar, event *ical.Event) {
	cal.Children = append(cal.Children, event.Component)
}
