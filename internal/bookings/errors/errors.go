package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	// ErrNoShiftFound: no active shift of the employee covers the requested
	// date and start time.
	ErrNoShiftFound = errors.New("no shift covers the requested time")

	// ErrAlreadyCancelled: the booking is cancelled and holds no slots.
	ErrAlreadyCancelled = errors.New("booking is already cancelled")

	// ErrAlreadyCompleted: completed bookings are immutable.
	ErrAlreadyCompleted = errors.New("booking is already completed")
)
