package handlers

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/ics"
	"github.com/housewhisper/scheduler/internal/storage"
)

func doBook(t *testing.T, h *AppointmentsHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/api/appointments", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doList(t *testing.T, h *AppointmentsHandler, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/appointments?"+query, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestList_ReturnsCalendarEvents(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	calendars.seed(t, key, availability.CalendarEvent{
		Summary: "Property showing",
		Start:   utc(2025, 1, 1, 12, 0),
		End:     utc(2025, 1, 1, 13, 0),
	})
	h := NewAppointmentsHandler(calendars, &fakeRecorder{}, testLogger())

	rec := doList(t, h, "clientId=c1&agentId=a1")
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var items []appointmentItem
	if err := json.Unmarshal(rec.Body.Bytes(), &items); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(items))
	}
	if items[0].Summary != "Property showing" || items[0].StartTime != "2025-01-01T12:00:00Z" {
		t.Fatalf("unexpected item: %+v", items[0])
	}
}

func TestList_EmptyCalendar(t *testing.T) {
	h := NewAppointmentsHandler(newFakeCalendars(), &fakeRecorder{}, testLogger())
	rec := doList(t, h, "clientId=c1&agentId=a1")
	if rec.Code != 200 || rec.Body.String() != "[]" {
		t.Fatalf("expected 200 [], got %d %s", rec.Code, rec.Body.String())
	}
}

func TestList_MissingParams(t *testing.T) {
	h := NewAppointmentsHandler(newFakeCalendars(), &fakeRecorder{}, testLogger())
	rec := doList(t, h, "clientId=c1")
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestBook_Success(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	recorder := &fakeRecorder{}
	h := NewAppointmentsHandler(calendars, recorder, testLogger())

	rec := doBook(t, h, `{
		"clientId": "c1", "agentId": "a1",
		"startTime": "2025-01-01T14:00:00Z", "endTime": "2025-01-01T15:00:00Z",
		"title": "Kitchen walkthrough"
	}`)
	if rec.Code != 201 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if !resp.Success || resp.Message != "Appointment scheduled" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	// The event must have landed in the calendar snapshot.
	snap, _ := calendars.Snapshot(context.Background(), key)
	cal, err := ics.Decode(snap.Payload)
	if err != nil {
		t.Fatalf("stored snapshot unreadable: %v", err)
	}
	events := ics.Events(cal)
	if len(events) != 1 || events[0].Summary != "Kitchen walkthrough" {
		t.Fatalf("stored events: %+v", events)
	}

	// And the system-of-record row must have been written.
	if len(recorder.recorded) != 1 {
		t.Fatalf("expected 1 recorded appointment, got %d", len(recorder.recorded))
	}
	if recorder.recorded[0].ClientID != "c1" || recorder.recorded[0].AgentID != "a1" {
		t.Fatalf("recorded wrong key: %+v", recorder.recorded[0])
	}
}

// Booking the exact interval of an existing event is a conflict.
func TestBook_Conflict(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	calendars.seed(t, key, availability.CalendarEvent{
		Summary: "existing",
		Start:   utc(2025, 1, 1, 14, 0),
		End:     utc(2025, 1, 1, 15, 0),
	})
	h := NewAppointmentsHandler(calendars, &fakeRecorder{}, testLogger())

	rec := doBook(t, h, `{
		"clientId": "c1", "agentId": "a1",
		"startTime": "2025-01-01T14:00:00Z", "endTime": "2025-01-01T15:00:00Z"
	}`)
	if rec.Code != 400 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var resp bookResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if resp.Success || resp.Message != "Meeting conflict!" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestBook_BackToBackAllowed(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	calendars.seed(t, key, availability.CalendarEvent{
		Summary: "existing",
		Start:   utc(2025, 1, 1, 14, 0),
		End:     utc(2025, 1, 1, 15, 0),
	})
	h := NewAppointmentsHandler(calendars, &fakeRecorder{}, testLogger())

	rec := doBook(t, h, `{
		"clientId": "c1", "agentId": "a1",
		"startTime": "2025-01-01T15:00:00Z", "endTime": "2025-01-01T16:00:00Z"
	}`)
	if rec.Code != 201 {
		t.Fatalf("touching booking rejected: %d %s", rec.Code, rec.Body.String())
	}
}

func TestBook_ValidationErrors(t *testing.T) {
	h := NewAppointmentsHandler(newFakeCalendars(), &fakeRecorder{}, testLogger())

	cases := []struct {
		name string
		body string
	}{
		{"bad json", `{`},
		{"missing agent", `{"clientId":"c1","startTime":"2025-01-01T14:00:00Z","endTime":"2025-01-01T15:00:00Z"}`},
		{"bad start", `{"clientId":"c1","agentId":"a1","startTime":"today","endTime":"2025-01-01T15:00:00Z"}`},
		{"inverted", `{"clientId":"c1","agentId":"a1","startTime":"2025-01-01T15:00:00Z","endTime":"2025-01-01T14:00:00Z"}`},
	}
	for _, tc := range cases {
		rec := doBook(t, h, tc.body)
		if rec.Code != 400 {
			t.Fatalf("%s: expected 400, got %d", tc.name, rec.Code)
		}
		var resp bookResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("%s: non-JSON error body: %s", tc.name, rec.Body.String())
		}
		if resp.Success {
			t.Fatalf("%s: success should be false", tc.name)
		}
	}
}

// A lost version race re-reads, re-checks, and retries.
func TestBook_RetriesOnVersionConflict(t *testing.T) {
	calendars := newFakeCalendars()
	calendars.failCAS = 1
	h := NewAppointmentsHandler(calendars, &fakeRecorder{}, testLogger())

	rec := doBook(t, h, `{
		"clientId": "c1", "agentId": "a1",
		"startTime": "2025-01-01T14:00:00Z", "endTime": "2025-01-01T15:00:00Z"
	}`)
	if rec.Code != 201 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if calendars.casCalls != 2 {
		t.Fatalf("expected 2 CAS attempts, got %d", calendars.casCalls)
	}
}

func TestBook_GivesUpAfterRepeatedConflicts(t *testing.T) {
	calendars := newFakeCalendars()
	calendars.failCAS = bookRetries
	h := NewAppointmentsHandler(calendars, &fakeRecorder{}, testLogger())

	rec := doBook(t, h, `{
		"clientId": "c1", "agentId": "a1",
		"startTime": "2025-01-01T14:00:00Z", "endTime": "2025-01-01T15:00:00Z"
	}`)
	if rec.Code != 503 {
		t.Fatalf("expected 503 after exhausted retries, got %d", rec.Code)
	}
}
