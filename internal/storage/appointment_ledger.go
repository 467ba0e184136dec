package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/housewhisper/scheduler/internal/outbox"
	"github.com/housewhisper/scheduler/libs/db"
)

// Appointment is the system-of-record row written for every successful
// booking. The calendar snapshot stays authoritative for conflict checks;
// this table feeds reporting and the outbox.
type Appointment struct {
	ID        string
	ClientID  string
	AgentID   string
	Title     string
	StartTime time.Time
	EndTime   time.Time
	CreatedAt time.Time
}

// AppointmentLedger records bookings in Postgres together with their outbox
// event, in one transaction.
type AppointmentLedger struct {
	pool       *db.Pool
	outboxRepo *outbox.Repository
}

func NewAppointmentLedger(pool *db.Pool, outboxRepo *outbox.Repository) *AppointmentLedger {
	return &AppointmentLedger{pool: pool, outboxRepo: outboxRepo}
}

// Record inserts the appointment row and its booked event atomically and
// returns the generated appointment id.
func (l *AppointmentLedger) Record(ctx context.Context, appt Appointment) (string, error) {
	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return "", err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id string
	err = tx.QueryRow(ctx, `
		INSERT INTO appointments (client_id, agent_id, title, start_time, end_time)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, appt.ClientID, appt.AgentID, appt.Title, appt.StartTime.UTC(), appt.EndTime.UTC()).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert appointment: %w", err)
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": id,
		"client_id":      appt.ClientID,
		"agent_id":       appt.AgentID,
		"title":          appt.Title,
		"start_time":     appt.StartTime.UTC().Format(time.RFC3339),
		"end_time":       appt.EndTime.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}
	if err := l.outboxRepo.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   id,
		EventType:     outbox.EventAppointmentBooked,
		Payload:       payload,
	}); err != nil {
		return "", fmt.Errorf("insert outbox event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", err
	}
	return id, nil
}
