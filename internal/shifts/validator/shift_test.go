package validator

import (
	"strings"
	"testing"

	"trimly/pkg/logger"
	"trimly/pkg/model"
)

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

func validRecurringShift() *model.Shift {
	return &model.Shift{
		BusinessID: "507f1f77bcf86cd799439011",
		EmployeeID: "507f1f77bcf86cd799439012",
		ShiftType:  model.ShiftTypeRecurring,
		DayOfWeek:  intPtr(0),
		StartTime:  "09:00",
		EndTime:    "17:00",
		Active:     true,
	}
}

func TestShiftValidator(t *testing.T) {
	v := NewShiftValidator(logger.Discard())

	tests := []struct {
		name    string
		mutate  func(*model.Shift)
		wantErr string
	}{
		{
			name:   "valid recurring shift",
			mutate: func(s *model.Shift) {},
		},
		{
			name: "valid one time shift",
			mutate: func(s *model.Shift) {
				s.ShiftType = model.ShiftTypeOneTime
				s.DayOfWeek = nil
				s.SpecificDate = strPtr("2026-03-14")
			},
		},
		{
			name: "recurring without day of week",
			mutate: func(s *model.Shift) {
				s.DayOfWeek = nil
			},
			wantErr: "DayOfWeek",
		},
		{
			name: "recurring with specific date",
			mutate: func(s *model.Shift) {
				s.SpecificDate = strPtr("2026-03-14")
			},
			wantErr: "SpecificDate",
		},
		{
			name: "one time without date",
			mutate: func(s *model.Shift) {
				s.ShiftType = model.ShiftTypeOneTime
				s.DayOfWeek = nil
			},
			wantErr: "SpecificDate",
		},
		{
			name: "one time with day of week",
			mutate: func(s *model.Shift) {
				s.ShiftType = model.ShiftTypeOneTime
				s.SpecificDate = strPtr("2026-03-14")
			},
			wantErr: "DayOfWeek",
		},
		{
			name: "end before start",
			mutate: func(s *model.Shift) {
				s.StartTime = "17:00"
				s.EndTime = "09:00"
			},
			wantErr: "EndTime",
		},
		{
			name: "end equals start",
			mutate: func(s *model.Shift) {
				s.EndTime = s.StartTime
			},
			wantErr: "EndTime",
		},
		{
			name: "malformed start time",
			mutate: func(s *model.Shift) {
				s.StartTime = "9am"
			},
			wantErr: "StartTime",
		},
		{
			name: "day of week out of range",
			mutate: func(s *model.Shift) {
				s.DayOfWeek = intPtr(7)
			},
			wantErr: "DayOfWeek",
		},
		{
			name: "unknown shift type",
			mutate: func(s *model.Shift) {
				s.ShiftType = "weekly"
			},
			wantErr: "ShiftType",
		},
		{
			name: "missing employee",
			mutate: func(s *model.Shift) {
				s.EmployeeID = ""
			},
			wantErr: "EmployeeID",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shift := validRecurringShift()
			tt.mutate(shift)

			err := v.Validate(shift)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error mentioning %q, got nil", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateClockBoundaries(t *testing.T) {
	v := NewShiftValidator(logger.Discard())

	shift := validRecurringShift()
	shift.StartTime = "00:00"
	shift.EndTime = "23:59"
	if err := v.Validate(shift); err != nil {
		t.Fatalf("full-day window should validate, got %v", err)
	}

	shift.EndTime = "24:00"
	if err := v.Validate(shift); err == nil {
		t.Fatal("24:00 should not validate")
	}
}
