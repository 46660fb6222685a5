package model

import "time"

const (
	BookingPending   = "pending"
	BookingConfirmed = "confirmed"
	BookingCancelled = "cancelled"
	BookingCompleted = "completed"
)

// BookedService is a denormalized snapshot of a catalog service at booking
// time, kept for history even if the catalog entry changes later.
type BookedService struct {
	ServiceID   string  `json:"service_id" bson:"service_id" validate:"required"`
	Name        string  `json:"name" bson:"name"`
	DurationMin int     `json:"duration_min" bson:"duration_min" validate:"required,min=1"`
	Price       float64 `json:"price" bson:"price"`
}

// Booking is a customer's reservation of one or more contiguous slots on a
// single shift. While the booking is not cancelled, SlotIDs holds exactly
// ceil(TotalDurationMin/slot size) slot IDs ordered by start time, each of
// which is marked unavailable and linked back to this booking.
type Booking struct {
	ID               string          `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BusinessID       string          `json:"business_id" bson:"business_id" validate:"required,mongodb"`
	CustomerID       string          `json:"customer_id" bson:"customer_id" validate:"required"`
	EmployeeID       string          `json:"employee_id" bson:"employee_id" validate:"required,mongodb"`
	ShiftID          string          `json:"shift_id" bson:"shift_id" validate:"required,mongodb"`
	Date             string          `json:"date" bson:"date" validate:"required,valid_date"`
	StartTime        string          `json:"start_time" bson:"start_time" validate:"required,valid_clock"`
	EndTime          string          `json:"end_time" bson:"end_time" validate:"required,valid_clock"`
	Services         []BookedService `json:"services" bson:"services" validate:"required,min=1,dive"`
	TotalDurationMin int             `json:"total_duration_min" bson:"total_duration_min" validate:"required,min=1"`
	SlotIDs          []string        `json:"slot_ids" bson:"slot_ids" validate:"required,min=1,dive,required"`
	Status           string          `json:"status" bson:"status" validate:"required,oneof=pending confirmed cancelled completed"`
	Notes            string          `json:"notes,omitempty" bson:"notes,omitempty" validate:"omitempty,max=500"`
	CancelledAt      *time.Time      `json:"cancelled_at,omitempty" bson:"cancelled_at,omitempty"`
	CreatedAt        time.Time       `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt        time.Time       `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// IsActive reports whether the booking still holds its slots.
func (b *Booking) IsActive() bool {
	return b.Status != BookingCancelled
}

// CanBeCancelled reports whether a cancel transition is allowed.
func (b *Booking) CanBeCancelled() bool {
	return b.Status == BookingPending || b.Status == BookingConfirmed
}

// AllocationRequest is the booking-creation payload. Durations come from
// the service catalog, never from the client.
type AllocationRequest struct {
	BusinessID string   `json:"business_id" validate:"required,mongodb"`
	CustomerID string   `json:"customer_id" validate:"required"`
	EmployeeID string   `json:"employee_id" validate:"required,mongodb"`
	Date       string   `json:"date" validate:"required,valid_date"`
	StartTime  string   `json:"start_time" validate:"required,valid_clock"`
	ServiceIDs []string `json:"service_ids" validate:"required,min=1,dive,required"`
	Notes      string   `json:"notes,omitempty" validate:"omitempty,max=500"`
}

// BookingFilter is the typed filter for booking listings. Zero values mean
// "no constraint".
type BookingFilter struct {
	DateFrom       string
	DateTo         string
	Status         string
	EmployeeID     string
	CustomerSearch string
}

// AllocationLock is an advisory lock document preventing two allocations
// from racing over the same shift/date window. A TTL index on expires_at
// reaps abandoned locks.
type AllocationLock struct {
	ID        string    `bson:"_id" json:"id"`
	ExpiresAt time.Time `bson:"expires_at" json:"expires_at"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
