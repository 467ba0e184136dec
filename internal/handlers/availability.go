package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/ics"
	"github.com/housewhisper/scheduler/internal/storage"
)

// AvailabilityHandler serves slot search and optimal-day queries.
type AvailabilityHandler struct {
	calendars CalendarStore
	schedules ScheduleStore
	logger    *slog.Logger
	now       func() time.Time
}

func NewAvailabilityHandler(calendars CalendarStore, schedules ScheduleStore, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{
		calendars: calendars,
		schedules: schedules,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

type slotItem struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// durationForEventType maps the public event types onto slot lengths.
func durationForEventType(eventType string) time.Duration {
	switch eventType {
	case "call":
		return 15 * time.Minute
	case "showing":
		return time.Hour
	case "meeting":
		return 30 * time.Minute
	default:
		return 30 * time.Minute
	}
}

// Search handles GET /api/availability.
func (h *AvailabilityHandler) Search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("clientId"))
	agentID := strings.TrimSpace(q.Get("agentId"))
	timeRanges := strings.TrimSpace(q.Get("timeRanges"))
	if clientID == "" || agentID == "" || timeRanges == "" {
		http.Error(w, "clientId, agentId, and timeRanges are required", http.StatusBadRequest)
		return
	}
	duration := durationForEventType(q.Get("eventType"))

	ranges, err := availability.ParseTimeRanges(timeRanges)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	key := storage.Key{ClientID: clientID, AgentID: agentID}
	schedule, err := h.schedules.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// No work schedule means no availability, not an error.
			writeJSON(w, http.StatusOK, []slotItem{})
			return
		}
		h.logger.Error("schedule read failed", "key", key.String(), "err", err)
		http.Error(w, "failed to load work schedule", http.StatusInternalServerError)
		return
	}

	events, ok := h.loadEvents(w, r, key)
	if !ok {
		return
	}

	items := []slotItem{}
	for _, rng := range ranges {
		for _, clip := range availability.ClipToWorkHours(rng, schedule) {
			busy := availability.BusyIntervals(availability.EventsInWindow(events, clip.Start, clip.End))
			slots, err := availability.GenerateSlots([]availability.Interval{clip}, busy, duration)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			for _, s := range slots {
				items = append(items, slotItem{
					Start: s.Start.Format(time.RFC3339),
					End:   s.End.Format(time.RFC3339),
				})
			}
		}
	}
	writeJSON(w, http.StatusOK, items)
}

// OptimalDays handles GET /api/availability/optimal-days.
func (h *AvailabilityHandler) OptimalDays(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("clientId"))
	agentID := strings.TrimSpace(q.Get("agentId"))
	if clientID == "" || agentID == "" {
		http.Error(w, "clientId and agentId are required", http.StatusBadRequest)
		return
	}

	lookAhead := availability.DefaultLookAheadDays
	if raw := strings.TrimSpace(q.Get("lookAheadDays")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "lookAheadDays must be a non-negative integer", http.StatusBadRequest)
			return
		}
		lookAhead = n
	}

	key := storage.Key{ClientID: clientID, AgentID: agentID}
	schedule, err := h.schedules.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeJSON(w, http.StatusOK, []string{})
			return
		}
		h.logger.Error("schedule read failed", "key", key.String(), "err", err)
		http.Error(w, "failed to load work schedule", http.StatusInternalServerError)
		return
	}

	events, ok := h.loadEvents(w, r, key)
	if !ok {
		return
	}

	days := availability.OptimalDays(h.now(), lookAhead, schedule, events)
	if days == nil {
		days = []string{}
	}
	writeJSON(w, http.StatusOK, days)
}

// loadEvents reads and decodes the agent's calendar snapshot. A missing
// snapshot is an empty calendar; an unreadable one fails the request.
func (h *AvailabilityHandler) loadEvents(w http.ResponseWriter, r *http.Request, key storage.Key) ([]availability.CalendarEvent, bool) {
	snap, err := h.calendars.Snapshot(r.Context(), key)
	if err != nil {
		h.logger.Error("calendar read failed", "key", key.String(), "err", err)
		http.Error(w, "failed to load calendar", http.StatusServiceUnavailable)
		return nil, false
	}
	if len(snap.Payload) == 0 {
		return nil, true
	}
	cal, err := ics.Decode(snap.Payload)
	if err != nil {
		h.logger.Error("calendar decode failed", "key", key.String(), "err", err)
		http.Error(w, "calendar snapshot is unreadable", http.StatusInternalServerError)
		return nil, false
	}
	return ics.Events(cal), true
}
