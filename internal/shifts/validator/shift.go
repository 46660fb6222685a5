package validator

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"trimly/pkg/logger"
	"trimly/pkg/model"
	"trimly/pkg/slotclock"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

type ShiftValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewShiftValidator(log *logger.Logger) *ShiftValidator {
	v := validator.New()

	if err := v.RegisterValidation("valid_clock", ValidateClock); err != nil {
		log.Fatal("Failed to register 'valid_clock' validator", "error", err)
	}
	if err := v.RegisterValidation("valid_date", ValidateDate); err != nil {
		log.Fatal("Failed to register 'valid_date' validator", "error", err)
	}

	v.RegisterStructValidation(validateShiftShape, model.Shift{})

	return &ShiftValidator{
		validate: v,
		logger:   log,
	}
}

// ValidateClock accepts "HH:MM" wall-clock strings.
func ValidateClock(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	_, err := time.Parse(slotclock.ClockFormat, s)
	return err == nil
}

// ValidateDate accepts "YYYY-MM-DD" calendar dates.
func ValidateDate(fl validator.FieldLevel) bool {
	s := strings.TrimSpace(fl.Field().String())
	if s == "" {
		return false
	}
	_, err := time.Parse(slotclock.DateFormat, s)
	return err == nil
}

// validateShiftShape enforces the cross-field rules: a recurring shift needs
// DayOfWeek and no SpecificDate, a one-time shift the opposite, and the
// window must have positive length.
func validateShiftShape(sl validator.StructLevel) {
	shift := sl.Current().Interface().(model.Shift)

	switch shift.ShiftType {
	case model.ShiftTypeRecurring:
		if shift.DayOfWeek == nil {
			sl.ReportError(shift.DayOfWeek, "DayOfWeek", "day_of_week", "required_for_recurring", "")
		}
		if shift.SpecificDate != nil {
			sl.ReportError(shift.SpecificDate, "SpecificDate", "specific_date", "forbidden_for_recurring", "")
		}
	case model.ShiftTypeOneTime:
		if shift.SpecificDate == nil {
			sl.ReportError(shift.SpecificDate, "SpecificDate", "specific_date", "required_for_one_time", "")
		}
		if shift.DayOfWeek != nil {
			sl.ReportError(shift.DayOfWeek, "DayOfWeek", "day_of_week", "forbidden_for_one_time", "")
		}
	}

	start, errStart := slotclock.ParseClock(shift.StartTime)
	end, errEnd := slotclock.ParseClock(shift.EndTime)
	if errStart == nil && errEnd == nil && start >= end {
		sl.ReportError(shift.EndTime, "EndTime", "end_time", "end_after_start", "")
	}
}

func (v *ShiftValidator) Validate(shift *model.Shift) error {
	if err := v.validate.Struct(shift); err != nil {
		var validationErrs validator.ValidationErrors
		if errors.As(err, &validationErrs) {
			return v.translateValidationErrors(validationErrs)
		}
		return err
	}
	return nil
}

func (v *ShiftValidator) translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var out ValidationErrors
	for _, e := range errs {
		out = append(out, ValidationError{
			Field:   e.Field(),
			Message: messageForTag(e),
		})
	}
	return out
}

func messageForTag(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "mongodb":
		return "must be a valid object ID"
	case "valid_clock":
		return "must be a valid HH:MM time"
	case "valid_date":
		return "must be a valid YYYY-MM-DD date"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "required_for_recurring":
		return "is required when shift_type is recurring"
	case "forbidden_for_recurring":
		return "must not be set when shift_type is recurring"
	case "required_for_one_time":
		return "is required when shift_type is one_time"
	case "forbidden_for_one_time":
		return "must not be set when shift_type is one_time"
	case "end_after_start":
		return "must be after start_time"
	default:
		return fmt.Sprintf("failed validation: %s", e.Tag())
	}
}
