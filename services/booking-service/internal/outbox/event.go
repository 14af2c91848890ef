package outbox

import "encoding/json"

// Event types double as Kafka topic names (event per topic).
const (
	EventSlotReserved        = "booking.slot.reserved.v1"
	EventStatusChanged       = "booking.status.changed.v1"
	EventAvailabilityUpdated = "consultant.availability.updated.v1"
)

// Event is the domain event envelope written to the outbox table in the
// same transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// SlotReservedPayload announces a freshly admitted pending booking.
type SlotReservedPayload struct {
	BookingRef         string `json:"booking_ref"`
	ConsultantPublicID string `json:"consultant_public_id"`
	ConsultantName     string `json:"consultant_name"`
	ConsultantEmail    string `json:"consultant_email"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	BookingDate        string `json:"booking_date"`
	BookingTime        string `json:"booking_time"`
}

// StatusChangedPayload announces an admin-driven status transition.
type StatusChangedPayload struct {
	BookingRef         string `json:"booking_ref"`
	ConsultantPublicID string `json:"consultant_public_id"`
	CustomerName       string `json:"customer_name"`
	CustomerEmail      string `json:"customer_email"`
	BookingDate        string `json:"booking_date"`
	BookingTime        string `json:"booking_time"`
	OldStatus          string `json:"old_status"`
	NewStatus          string `json:"new_status"`
}

// AvailabilityUpdatedPayload announces a replaced weekly schedule.
type AvailabilityUpdatedPayload struct {
	ConsultantPublicID string `json:"consultant_public_id"`
	WindowCount        int    `json:"window_count"`
}

func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	}, nil
}
