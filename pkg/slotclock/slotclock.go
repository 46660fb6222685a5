// Package slotclock is pure time-of-day arithmetic for slot tiling. It has no
// state and no persistence; every function is deterministic for its inputs.
package slotclock

import (
	"errors"
	"fmt"
	"time"
)

const (
	// ClockFormat is the wire format for times of day ("09:30").
	ClockFormat = "15:04"
	// DateFormat is the wire format for calendar dates ("2024-03-15").
	DateFormat = "2006-01-02"
)

var (
	ErrInvalidDuration = errors.New("slot duration must be a positive number of minutes")
	ErrInvalidTime     = errors.New("time of day must be in HH:MM 24-hour format")
)

// Interval is one tiled slot, [Start, End) in minutes-of-day wire format.
type Interval struct {
	Start string
	End   string
}

// ParseClock converts an "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockFormat, s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTime, s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock converts minutes since midnight back to "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// AddMinutes shifts an "HH:MM" time forward. The input must be valid.
func AddMinutes(s string, minutes int) (string, error) {
	m, err := ParseClock(s)
	if err != nil {
		return "", err
	}
	return FormatClock(m + minutes), nil
}

// Minutes returns end - start in minutes. Negative when end precedes start.
func Minutes(start, end string) (int, error) {
	s, err := ParseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return 0, err
	}
	return e - s, nil
}

// Tile divides [start, end) into consecutive durationMin-sized intervals. A
// cursor advances from start; an interval is emitted only while
// cursor+duration <= end, so a trailing remainder shorter than one slot is
// dropped. A window shorter than one slot yields an empty result, not an
// error. Zero or negative duration is a caller contract violation.
func Tile(start, end string, durationMin int) ([]Interval, error) {
	if durationMin <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidDuration, durationMin)
	}

	startMin, err := ParseClock(start)
	if err != nil {
		return nil, err
	}
	endMin, err := ParseClock(end)
	if err != nil {
		return nil, err
	}

	var intervals []Interval
	for cursor := startMin; cursor+durationMin <= endMin; cursor += durationMin {
		intervals = append(intervals, Interval{
			Start: FormatClock(cursor),
			End:   FormatClock(cursor + durationMin),
		})
	}
	return intervals, nil
}

// RequiredSlots is the ceiling of totalMin / slotMin: the number of
// fixed-size slots a booking of totalMin minutes has to consume.
func RequiredSlots(totalMin, slotMin int) (int, error) {
	if slotMin <= 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidDuration, slotMin)
	}
	if totalMin <= 0 {
		return 0, fmt.Errorf("total duration must be positive, got %d", totalMin)
	}
	return (totalMin + slotMin - 1) / slotMin, nil
}

// ParseDate validates a "YYYY-MM-DD" calendar date and returns it as a
// time.Time at midnight.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateFormat, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be in YYYY-MM-DD format: %q", s)
	}
	return d, nil
}

// Weekday maps a date to the 0=Monday..6=Sunday convention used by shifts.
func Weekday(d time.Time) int {
	// time.Weekday has Sunday == 0.
	return (int(d.Weekday()) + 6) % 7
}
