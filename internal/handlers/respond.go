package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/storage"
)

// CalendarStore is the read-snapshot/write-back surface the booking flow
// needs. The version stamp makes the check-then-write sequence safe to retry.
type CalendarStore interface {
	Snapshot(ctx context.Context, k storage.Key) (storage.CalendarSnapshot, error)
	CompareAndSwap(ctx context.Context, k storage.Key, version int64, payload []byte) error
}

// ScheduleStore yields an agent's recurring work hours.
type ScheduleStore interface {
	Get(ctx context.Context, k storage.Key) (availability.WorkSchedule, error)
}

// AppointmentRecorder persists the system-of-record row for a booking.
type AppointmentRecorder interface {
	Record(ctx context.Context, appt storage.Appointment) (string, error)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "failed to build response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
