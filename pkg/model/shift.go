package model

import "time"

const (
	ShiftTypeRecurring = "recurring"
	ShiftTypeOneTime   = "one_time"
)

// Shift is one working interval for one employee: either a weekly recurring
// interval (DayOfWeek set, 0=Monday..6=Sunday) or a one-off interval on
// SpecificDate. Times of day are "HH:MM" strings in business-local time.
type Shift struct {
	ID           string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	BusinessID   string    `json:"business_id" bson:"business_id" validate:"required,mongodb"`
	EmployeeID   string    `json:"employee_id" bson:"employee_id" validate:"required,mongodb"`
	ShiftType    string    `json:"shift_type" bson:"shift_type" validate:"required,oneof=recurring one_time"`
	DayOfWeek    *int      `json:"day_of_week,omitempty" bson:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	SpecificDate *string   `json:"specific_date,omitempty" bson:"specific_date,omitempty" validate:"omitempty,valid_date"`
	StartTime    string    `json:"start_time" bson:"start_time" validate:"required,valid_clock"`
	EndTime      string    `json:"end_time" bson:"end_time" validate:"required,valid_clock"`
	Active       bool      `json:"active" bson:"active"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
	UpdatedAt    time.Time `json:"updated_at" bson:"updated_at" validate:"omitempty"`
}

// ShiftUpdate carries the mutable subset for PATCH. Nil / empty fields are
// left untouched by the merge.
type ShiftUpdate struct {
	DayOfWeek    *int    `json:"day_of_week,omitempty" validate:"omitempty,min=0,max=6"`
	SpecificDate *string `json:"specific_date,omitempty" validate:"omitempty,valid_date"`
	StartTime    string  `json:"start_time,omitempty" validate:"omitempty,valid_clock"`
	EndTime      string  `json:"end_time,omitempty" validate:"omitempty,valid_clock"`
	Active       *bool   `json:"active,omitempty"`
}

// IsRecurring reports whether the shift repeats weekly.
func (s *Shift) IsRecurring() bool {
	return s.ShiftType == ShiftTypeRecurring
}

// CoversDate reports whether the shift works on the given calendar date,
// where weekday uses the 0=Monday..6=Sunday convention.
func (s *Shift) CoversDate(date string, weekday int) bool {
	if s.IsRecurring() {
		return s.DayOfWeek != nil && *s.DayOfWeek == weekday
	}
	return s.SpecificDate != nil && *s.SpecificDate == date
}
