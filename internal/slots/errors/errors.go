package errors

import "errors"

var (
	// ErrShiftDateMismatch: the date does not fall on the shift's weekday or
	// one-time date.
	ErrShiftDateMismatch = errors.New("date does not match shift schedule")

	// ErrRegenerationConflict: a slot for the shift/date is already reserved,
	// so regeneration would destroy booking data.
	ErrRegenerationConflict = errors.New("reserved slots exist for this shift and date")
)
