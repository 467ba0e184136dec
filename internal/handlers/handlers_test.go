package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/ics"
	"github.com/housewhisper/scheduler/internal/storage"
)

// fakeCalendars is an in-memory CalendarStore with the same versioning
// contract as the Redis store.
type fakeCalendars struct {
	mu       sync.Mutex
	snaps    map[string]storage.CalendarSnapshot
	failCAS  int // fail this many CompareAndSwap calls with ErrVersionConflict
	casCalls int
	readErr  error
}

func newFakeCalendars() *fakeCalendars {
	return &fakeCalendars{snaps: map[string]storage.CalendarSnapshot{}}
}

func (f *fakeCalendars) Snapshot(_ context.Context, k storage.Key) (storage.CalendarSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.readErr != nil {
		return storage.CalendarSnapshot{}, f.readErr
	}
	return f.snaps[k.String()], nil
}

func (f *fakeCalendars) CompareAndSwap(_ context.Context, k storage.Key, version int64, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.casCalls++
	if f.failCAS > 0 {
		f.failCAS--
		return storage.ErrVersionConflict
	}
	current := f.snaps[k.String()]
	if current.Version != version {
		return storage.ErrVersionConflict
	}
	f.snaps[k.String()] = storage.CalendarSnapshot{Payload: payload, Version: version + 1}
	return nil
}

func (f *fakeCalendars) seed(t *testing.T, k storage.Key, events ...availability.CalendarEvent) {
	t.Helper()
	cal := ics.Empty()
	for _, e := range events {
		ics.Append(cal, ics.NewEvent(e.Summary, "", "", e.Start, e.End))
	}
	payload, err := ics.Encode(cal)
	if err != nil {
		t.Fatalf("encode seed calendar: %v", err)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[k.String()] = storage.CalendarSnapshot{Payload: payload, Version: 1}
}

type fakeSchedules struct {
	schedules map[string]availability.WorkSchedule
	putErr    error
}

func (f *fakeSchedules) Get(_ context.Context, k storage.Key) (availability.WorkSchedule, error) {
	ws, ok := f.schedules[k.String()]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return ws, nil
}

func (f *fakeSchedules) Put(_ context.Context, k storage.Key, ws availability.WorkSchedule) error {
	if f.putErr != nil {
		return f.putErr
	}
	if f.schedules == nil {
		f.schedules = map[string]availability.WorkSchedule{}
	}
	f.schedules[k.String()] = ws
	return nil
}

type fakeRecorder struct {
	mu       sync.Mutex
	recorded []storage.Appointment
	err      error
}

func (f *fakeRecorder) Record(_ context.Context, appt storage.Appointment) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.recorded = append(f.recorded, appt)
	return "appt-1", nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

var errStoreDown = errors.New("store down")

func wednesdaySchedule() availability.WorkSchedule {
	return availability.WorkSchedule{"Wednesday": {StartTime: "10:00", EndTime: "18:00"}}
}

func utc(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
}
