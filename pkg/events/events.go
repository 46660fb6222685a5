package events

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types published by the scheduling services.
const (
	TypeSlotsGenerated   = "slots.generated"
	TypeBookingCreated   = "booking.created"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCancelled = "booking.cancelled"
	TypeBookingCompleted = "booking.completed"
)

// Header keys shared with downstream consumers.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderSource    = "source"
	HeaderTimestamp = "timestamp"
)

// Envelope is the wire format for every event payload.
type Envelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Data       json.RawMessage `json:"data"`
}

// SlotsGenerated is emitted after a shift's slots for a date are materialized.
type SlotsGenerated struct {
	ShiftID    string `json:"shift_id"`
	BusinessID string `json:"business_id"`
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	SlotCount  int    `json:"slot_count"`
}

// BookingChanged is emitted on booking creation and lifecycle transitions.
type BookingChanged struct {
	BookingID  string `json:"booking_id"`
	BusinessID string `json:"business_id"`
	EmployeeID string `json:"employee_id"`
	CustomerID string `json:"customer_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Status     string `json:"status"`
}

// NewEnvelope wraps data in an Envelope with a fresh event ID.
func NewEnvelope(eventType string, data any) (Envelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}, nil
}
