package outbox

// Event types published by the scheduler. Topic name equals event type.
const EventAppointmentBooked = "scheduling.appointment.booked.v1"

// Event is the envelope written to the outbox table inside the booking
// transaction.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}
