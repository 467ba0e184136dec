package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/ics"
	"github.com/housewhisper/scheduler/internal/storage"
)

// bookRetries bounds how often a booking retries after losing a snapshot
// version race to a concurrent writer.
const bookRetries = 3

// AppointmentsHandler lists calendar events and books new appointments.
type AppointmentsHandler struct {
	calendars CalendarStore
	recorder  AppointmentRecorder
	logger    *slog.Logger
}

func NewAppointmentsHandler(calendars CalendarStore, recorder AppointmentRecorder, logger *slog.Logger) *AppointmentsHandler {
	return &AppointmentsHandler{calendars: calendars, recorder: recorder, logger: logger}
}

type bookRequest struct {
	ClientID  string `json:"clientId"`
	AgentID   string `json:"agentId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Title     string `json:"title"`
}

type bookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type appointmentItem struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Summary   string `json:"summary"`
}

// ServeHTTP dispatches GET (list) and POST (book) on /api/appointments.
func (h *AppointmentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.book(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *AppointmentsHandler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("clientId"))
	agentID := strings.TrimSpace(q.Get("agentId"))
	if clientID == "" || agentID == "" {
		http.Error(w, "clientId and agentId are required", http.StatusBadRequest)
		return
	}

	key := storage.Key{ClientID: clientID, AgentID: agentID}
	snap, err := h.calendars.Snapshot(r.Context(), key)
	if err != nil {
		h.logger.Error("calendar read failed", "key", key.String(), "err", err)
		http.Error(w, "failed to load calendar", http.StatusServiceUnavailable)
		return
	}

	items := []appointmentItem{}
	if len(snap.Payload) > 0 {
		cal, err := ics.Decode(snap.Payload)
		if err != nil {
			h.logger.Error("calendar decode failed", "key", key.String(), "err", err)
			http.Error(w, "calendar snapshot is unreadable", http.StatusInternalServerError)
			return
		}
		for _, e := range ics.Events(cal) {
			items = append(items, appointmentItem{
				StartTime: e.Start.Format(time.RFC3339),
				EndTime:   e.End.Format(time.RFC3339),
				Summary:   e.Summary,
			})
		}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *AppointmentsHandler) book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, bookResponse{Success: false, Message: "invalid json body"})
		return
	}
	req.ClientID = strings.TrimSpace(req.ClientID)
	req.AgentID = strings.TrimSpace(req.AgentID)
	if req.ClientID == "" || req.AgentID == "" || req.StartTime == "" || req.EndTime == "" {
		writeJSON(w, http.StatusBadRequest, bookResponse{Success: false, Message: "clientId, agentId, startTime, and endTime are required"})
		return
	}

	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, bookResponse{Success: false, Message: "invalid startTime"})
		return
	}
	end, err := time.Parse(time.RFC3339, req.EndTime)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, bookResponse{Success: false, Message: "invalid endTime"})
		return
	}
	candidate, err := availability.NewInterval(start.UTC(), end.UTC())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, bookResponse{Success: false, Message: "startTime must be before endTime"})
		return
	}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = fmt.Sprintf("Appointment with client %s", req.ClientID)
	}

	key := storage.Key{ClientID: req.ClientID, AgentID: req.AgentID}
	for attempt := 0; attempt < bookRetries; attempt++ {
		snap, err := h.calendars.Snapshot(r.Context(), key)
		if err != nil {
			h.logger.Error("calendar read failed", "key", key.String(), "err", err)
			http.Error(w, "failed to load calendar", http.StatusServiceUnavailable)
			return
		}

		cal := ics.Empty()
		if len(snap.Payload) > 0 {
			cal, err = ics.Decode(snap.Payload)
			if err != nil {
				h.logger.Error("calendar decode failed", "key", key.String(), "err", err)
				http.Error(w, "calendar snapshot is unreadable", http.StatusInternalServerError)
				return
			}
		}

		// Conflict check and write-back share the snapshot version, so a
		// concurrent booking forces this whole loop to run again.
		if availability.HasConflict(candidate, ics.Events(cal)) {
			writeJSON(w, http.StatusBadRequest, bookResponse{Success: false, Message: "Meeting conflict!"})
			return
		}

		ics.Append(cal, ics.NewEvent(title, "", "", candidate.Start, candidate.End))
		payload, err := ics.Encode(cal)
		if err != nil {
			h.logger.Error("calendar encode failed", "key", key.String(), "err", err)
			http.Error(w, "failed to update calendar", http.StatusInternalServerError)
			return
		}

		err = h.calendars.CompareAndSwap(r.Context(), key, snap.Version, payload)
		if errors.Is(err, storage.ErrVersionConflict) {
			h.logger.Info("snapshot version conflict, retrying", "key", key.String(), "attempt", attempt+1)
			continue
		}
		if err != nil {
			h.logger.Error("calendar write failed", "key", key.String(), "err", err)
			http.Error(w, "failed to update calendar", http.StatusServiceUnavailable)
			return
		}

		h.recordBooking(r, key, title, candidate)
		writeJSON(w, http.StatusCreated, bookResponse{Success: true, Message: "Appointment scheduled"})
		return
	}

	http.Error(w, "calendar is being updated concurrently, try again", http.StatusServiceUnavailable)
}

// recordBooking writes the system-of-record row and outbox event. The
// calendar write already succeeded, so a ledger failure is logged rather than
// surfaced; the snapshot stays authoritative for conflicts.
func (h *AppointmentsHandler) recordBooking(r *http.Request, key storage.Key, title string, iv availability.Interval) {
	if h.recorder == nil {
		return
	}
	id, err := h.recorder.Record(r.Context(), storage.Appointment{
		ClientID:  key.ClientID,
		AgentID:   key.AgentID,
		Title:     title,
		StartTime: iv.Start,
		EndTime:   iv.End,
	})
	if err != nil {
		h.logger.Error("appointment ledger write failed", "key", key.String(), "err", err)
		return
	}
	h.logger.Info("appointment booked", "key", key.String(), "appointment_id", id,
		"start", iv.Start.Format(time.RFC3339), "end", iv.End.Format(time.RFC3339))
}
