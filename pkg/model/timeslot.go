package model

import "time"

// TimeSlot is one fixed-size bookable sub-interval of a shift on a concrete
// date. Business and employee IDs are denormalized from the shift so
// availability queries never need a join. The (shift_id, date, start_time)
// triple is unique, enforced by an index.
type TimeSlot struct {
	ID         string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ShiftID    string    `json:"shift_id" bson:"shift_id" validate:"required,mongodb"`
	BusinessID string    `json:"business_id" bson:"business_id" validate:"required,mongodb"`
	EmployeeID string    `json:"employee_id" bson:"employee_id" validate:"required,mongodb"`
	Date       string    `json:"date" bson:"date" validate:"required,valid_date"`
	StartTime  string    `json:"start_time" bson:"start_time" validate:"required,valid_clock"`
	EndTime    string    `json:"end_time" bson:"end_time" validate:"required,valid_clock"`
	Available  bool      `json:"available" bson:"available"`
	BookingID  *string   `json:"booking_id,omitempty" bson:"booking_id,omitempty"`
	CreatedAt  time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// SlotQuery is the typed filter for range queries over slots. At least one
// of BusinessID / EmployeeID must be set.
type SlotQuery struct {
	BusinessID    string
	EmployeeID    string
	DateFrom      string
	DateTo        string
	AvailableOnly *bool
}

// Run is a contiguous chain of available slots on one shift, truncated to
// exactly the slot count the caller asked for.
type Run struct {
	ShiftID   string      `json:"shift_id"`
	Date      string      `json:"date"`
	StartTime string      `json:"start_time"`
	EndTime   string      `json:"end_time"`
	Slots     []*TimeSlot `json:"slots"`
}
