package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/housewhisper/scheduler/internal/availability"
	"github.com/housewhisper/scheduler/internal/storage"
)

// ScheduleReadWriter extends the read-only schedule surface with writes for
// the management endpoint.
type ScheduleReadWriter interface {
	ScheduleStore
	Put(ctx context.Context, k storage.Key, ws availability.WorkSchedule) error
}

// ScheduleHandler manages agent work schedules on /api/schedule.
type ScheduleHandler struct {
	schedules ScheduleReadWriter
	logger    *slog.Logger
}

func NewScheduleHandler(schedules ScheduleReadWriter, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{schedules: schedules, logger: logger}
}

func (h *ScheduleHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	clientID := strings.TrimSpace(q.Get("clientId"))
	agentID := strings.TrimSpace(q.Get("agentId"))
	if clientID == "" || agentID == "" {
		http.Error(w, "clientId and agentId are required", http.StatusBadRequest)
		return
	}
	key := storage.Key{ClientID: clientID, AgentID: agentID}

	switch r.Method {
	case http.MethodGet:
		h.get(w, r, key)
	case http.MethodPut:
		h.put(w, r, key)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *ScheduleHandler) get(w http.ResponseWriter, r *http.Request, key storage.Key) {
	ws, err := h.schedules.Get(r.Context(), key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			http.Error(w, "no work schedule for agent", http.StatusNotFound)
			return
		}
		h.logger.Error("schedule read failed", "key", key.String(), "err", err)
		http.Error(w, "failed to load work schedule", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (h *ScheduleHandler) put(w http.ResponseWriter, r *http.Request, key storage.Key) {
	var ws availability.WorkSchedule
	if err := json.NewDecoder(r.Body).Decode(&ws); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := ws.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.schedules.Put(r.Context(), key, ws); err != nil {
		h.logger.Error("schedule write failed", "key", key.String(), "err", err)
		http.Error(w, "failed to store work schedule", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
