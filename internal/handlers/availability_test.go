package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/storage"
)

func doSearch(t *testing.T, h *AvailabilityHandler, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/availability?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	return rec
}

func TestSearch_FullOpenWednesday(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	schedules := &fakeSchedules{schedules: map[string]availability.WorkSchedule{
		key.String(): wednesdaySchedule(),
	}}
	h := NewAvailabilityHandler(calendars, schedules, testLogger())

	rec := doSearch(t, h, url.Values{
		"clientId":   {"c1"},
		"agentId":    {"a1"},
		"timeRanges": {"2025-01-01T09:00:00|2025-01-01T19:00:00"},
		"eventType":  {"meeting"},
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var slots []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(slots) != 16 {
		t.Fatalf("expected 16 slots, got %d", len(slots))
	}
	if slots[0].Start != "2025-01-01T10:00:00Z" {
		t.Fatalf("first slot start = %s", slots[0].Start)
	}
	if slots[15].Start != "2025-01-01T17:30:00Z" {
		t.Fatalf("last slot start = %s", slots[15].Start)
	}
}

func TestSearch_BusyEventExcludesOverlappingSlots(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	calendars.seed(t, key, availability.CalendarEvent{
		Summary: "inspection",
		Start:   utc(2025, 1, 1, 12, 0),
		End:     utc(2025, 1, 1, 13, 0),
	})
	schedules := &fakeSchedules{schedules: map[string]availability.WorkSchedule{
		key.String(): wednesdaySchedule(),
	}}
	h := NewAvailabilityHandler(calendars, schedules, testLogger())

	rec := doSearch(t, h, url.Values{
		"clientId":   {"c1"},
		"agentId":    {"a1"},
		"timeRanges": {"2025-01-01T09:00:00|2025-01-01T19:00:00"},
		"eventType":  {"showing"}, // 60 minute slots
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var slots []slotItem
	if err := json.Unmarshal(rec.Body.Bytes(), &slots); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	// 10,11,13,14,15,16,17: the 11:00 slot touches the busy start and stays;
	// the 12:00 slot overlaps and goes.
	if len(slots) != 7 {
		t.Fatalf("expected 7 slots, got %d: %v", len(slots), slots)
	}
	for _, s := range slots {
		if s.Start == "2025-01-01T12:00:00Z" {
			t.Fatal("slot overlapping the busy event was returned")
		}
	}
}

func TestSearch_MissingParams(t *testing.T) {
	h := NewAvailabilityHandler(newFakeCalendars(), &fakeSchedules{}, testLogger())
	rec := doSearch(t, h, url.Values{"clientId": {"c1"}})
	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearch_MalformedTimeRanges(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	schedules := &fakeSchedules{schedules: map[string]availability.WorkSchedule{
		key.String(): wednesdaySchedule(),
	}}
	h := NewAvailabilityHandler(newFakeCalendars(), schedules, testLogger())

	rec := doSearch(t, h, url.Values{
		"clientId":   {"c1"},
		"agentId":    {"a1"},
		"timeRanges": {"2025-01-01T19:00:00|2025-01-01T09:00:00"},
	})
	if rec.Code != 400 {
		t.Fatalf("expected 400 for inverted range, got %d", rec.Code)
	}
}

func TestSearch_NoScheduleMeansNoAvailability(t *testing.T) {
	h := NewAvailabilityHandler(newFakeCalendars(), &fakeSchedules{}, testLogger())
	rec := doSearch(t, h, url.Values{
		"clientId":   {"c1"},
		"agentId":    {"a1"},
		"timeRanges": {"2025-01-01T09:00:00|2025-01-01T19:00:00"},
	})
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestSearch_CalendarUnreadable(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	calendars := newFakeCalendars()
	calendars.readErr = errStoreDown
	schedules := &fakeSchedules{schedules: map[string]availability.WorkSchedule{
		key.String(): wednesdaySchedule(),
	}}
	h := NewAvailabilityHandler(calendars, schedules, testLogger())

	rec := doSearch(t, h, url.Values{
		"clientId":   {"c1"},
		"agentId":    {"a1"},
		"timeRanges": {"2025-01-01T09:00:00|2025-01-01T19:00:00"},
	})
	if rec.Code != 503 {
		t.Fatalf("expected 503 when calendar store is down, got %d", rec.Code)
	}
}

func doOptimalDays(t *testing.T, h *AvailabilityHandler, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", "/api/availability/optimal-days?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	h.OptimalDays(rec, req)
	return rec
}

func TestOptimalDays_OnlyScheduledDaysReturned(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	schedules := &fakeSchedules{schedules: map[string]availability.WorkSchedule{
		key.String(): wednesdaySchedule(),
	}}
	h := NewAvailabilityHandler(newFakeCalendars(), schedules, testLogger())
	h.now = func() time.Time { return utc(2025, 1, 1, 8, 0) } // a Wednesday

	rec := doOptimalDays(t, h, url.Values{
		"clientId":      {"c1"},
		"agentId":       {"a1"},
		"lookAheadDays": {"3"},
	})
	if rec.Code != 200 {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var days []string
	if err := json.Unmarshal(rec.Body.Bytes(), &days); err != nil {
		t.Fatalf("bad response body: %v", err)
	}
	if len(days) != 1 || days[0] != "2025-01-01" {
		t.Fatalf("expected [2025-01-01], got %v", days)
	}
}

func TestOptimalDays_InvalidLookAhead(t *testing.T) {
	key := storage.Key{ClientID: "c1", AgentID: "a1"}
	schedules := &fakeSchedules{schedules: map[string]availability.WorkSchedule{
		key.String(): wednesdaySchedule(),
	}}
	h := NewAvailabilityHandler(newFakeCalendars(), schedules, testLogger())

	for _, bad := range []string{"-1", "soon"} {
		rec := doOptimalDays(t, h, url.Values{
			"clientId":      {"c1"},
			"agentId":       {"a1"},
			"lookAheadDays": {bad},
		})
		if rec.Code != 400 {
			t.Fatalf("lookAheadDays=%q: expected 400, got %d", bad, rec.Code)
		}
	}
}
