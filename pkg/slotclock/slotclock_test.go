package slotclock

import (
	"errors"
	"testing"
	"time"
)

func TestTile(t *testing.T) {
	tests := []struct {
		name      string
		start     string
		end       string
		duration  int
		wantCount int
		wantFirst Interval
		wantLast  Interval
	}{
		{
			name:      "full business day",
			start:     "09:00",
			end:       "17:00",
			duration:  30,
			wantCount: 16,
			wantFirst: Interval{Start: "09:00", End: "09:30"},
			wantLast:  Interval{Start: "16:30", End: "17:00"},
		},
		{
			name:      "trailing remainder dropped",
			start:     "09:00",
			end:       "10:45",
			duration:  30,
			wantCount: 3,
			wantFirst: Interval{Start: "09:00", End: "09:30"},
			wantLast:  Interval{Start: "10:00", End: "10:30"},
		},
		{
			name:      "hour slots",
			start:     "08:00",
			end:       "12:00",
			duration:  60,
			wantCount: 4,
			wantFirst: Interval{Start: "08:00", End: "09:00"},
			wantLast:  Interval{Start: "11:00", End: "12:00"},
		},
		{
			name:      "exact single slot",
			start:     "09:00",
			end:       "09:30",
			duration:  30,
			wantCount: 1,
			wantFirst: Interval{Start: "09:00", End: "09:30"},
			wantLast:  Interval{Start: "09:00", End: "09:30"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Tile(tt.start, tt.end, tt.duration)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("expected %d intervals, got %d", tt.wantCount, len(got))
			}
			if got[0] != tt.wantFirst {
				t.Errorf("first interval = %v, want %v", got[0], tt.wantFirst)
			}
			if got[len(got)-1] != tt.wantLast {
				t.Errorf("last interval = %v, want %v", got[len(got)-1], tt.wantLast)
			}
		})
	}
}

func TestTile_ContiguousAndInsideWindow(t *testing.T) {
	intervals, err := Tile("10:15", "18:40", 25)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(intervals) == 0 {
		t.Fatal("expected at least one interval")
	}
	for i := 1; i < len(intervals); i++ {
		if intervals[i-1].End != intervals[i].Start {
			t.Errorf("interval %d not contiguous: %v then %v", i, intervals[i-1], intervals[i])
		}
	}
	endMin, _ := ParseClock("18:40")
	lastEnd, _ := ParseClock(intervals[len(intervals)-1].End)
	if lastEnd > endMin {
		t.Errorf("last interval ends at %s, past window end 18:40", intervals[len(intervals)-1].End)
	}
}

func TestTile_WindowShorterThanSlot(t *testing.T) {
	intervals, err := Tile("09:00", "09:20", 30)
	if err != nil {
		t.Fatalf("expected empty result, got error: %v", err)
	}
	if len(intervals) != 0 {
		t.Fatalf("expected no intervals, got %d", len(intervals))
	}
}

func TestTile_InvalidDuration(t *testing.T) {
	for _, d := range []int{0, -30} {
		if _, err := Tile("09:00", "17:00", d); !errors.Is(err, ErrInvalidDuration) {
			t.Errorf("duration %d: expected ErrInvalidDuration, got %v", d, err)
		}
	}
}

func TestTile_InvalidTime(t *testing.T) {
	if _, err := Tile("9am", "17:00", 30); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}
	if _, err := Tile("09:00", "25:00", 30); !errors.Is(err, ErrInvalidTime) {
		t.Errorf("expected ErrInvalidTime, got %v", err)
	}
}

func TestRequiredSlots(t *testing.T) {
	tests := []struct {
		total int
		slot  int
		want  int
	}{
		{total: 30, slot: 30, want: 1},
		{total: 31, slot: 30, want: 2},
		{total: 45, slot: 30, want: 2},
		{total: 60, slot: 30, want: 2},
		{total: 61, slot: 30, want: 3},
		{total: 90, slot: 30, want: 3},
		{total: 15, slot: 30, want: 1},
	}

	for _, tt := range tests {
		got, err := RequiredSlots(tt.total, tt.slot)
		if err != nil {
			t.Fatalf("RequiredSlots(%d, %d): unexpected error: %v", tt.total, tt.slot, err)
		}
		if got != tt.want {
			t.Errorf("RequiredSlots(%d, %d) = %d, want %d", tt.total, tt.slot, got, tt.want)
		}
	}

	if _, err := RequiredSlots(30, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Errorf("expected ErrInvalidDuration for zero slot size, got %v", err)
	}
}

func TestWeekday(t *testing.T) {
	// 2024-03-11 is a Monday.
	monday, _ := ParseDate("2024-03-11")
	if Weekday(monday) != 0 {
		t.Errorf("Monday should map to 0, got %d", Weekday(monday))
	}
	sunday := monday.AddDate(0, 0, 6)
	if Weekday(sunday) != 6 {
		t.Errorf("Sunday should map to 6, got %d", Weekday(sunday))
	}
	if sunday.Weekday() != time.Sunday {
		t.Fatal("test fixture is wrong, expected a Sunday")
	}
}

func TestAddMinutesAndMinutes(t *testing.T) {
	got, err := AddMinutes("09:45", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "10:15" {
		t.Errorf("AddMinutes(09:45, 30) = %s, want 10:15", got)
	}

	d, err := Minutes("09:00", "17:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != 480 {
		t.Errorf("Minutes(09:00, 17:00) = %d, want 480", d)
	}
}
