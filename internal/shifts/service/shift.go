package service

import (
	"context"
	"errors"

	shifterrors "trimly/internal/shifts/errors"
	"trimly/internal/shifts/repository"
	"trimly/internal/shifts/validator"
	"trimly/pkg/config"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/model"
	"trimly/pkg/slotclock"
)

// SlotStore is the slice of the slot repository the shift service needs for
// delete/update cascades.
type SlotStore interface {
	HasReservedSlots(ctx context.Context, shiftID string) (bool, error)
	DeleteByShift(ctx context.Context, shiftID string) (int64, error)
	DeleteAvailableByShift(ctx context.Context, shiftID string) (int64, error)
}

// OwnershipChecker answers whether a principal owns a business.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, principalID, businessID string) (bool, error)
}

// EmployeeShiftSummary is the weekly stats row for one shift of an employee.
type EmployeeShiftSummary struct {
	Shift         *model.Shift `json:"shift"`
	SlotsPerDay   int          `json:"slots_per_day"`
	WindowMinutes int          `json:"window_minutes"`
}

type ShiftService interface {
	Create(ctx context.Context, principalID string, shift *model.Shift) error
	GetByID(ctx context.Context, id string) (*model.Shift, error)
	ListForBusiness(ctx context.Context, businessID string, limit int, offset int64) ([]*model.Shift, int64, error)
	ListForEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error)
	EmployeeSummary(ctx context.Context, employeeID string) ([]*EmployeeShiftSummary, error)
	EmployeeIDs(ctx context.Context, businessID string) ([]string, error)
	Update(ctx context.Context, principalID string, id string, updates *model.ShiftUpdate) error
	Delete(ctx context.Context, principalID string, id string) error
}

type shiftService struct {
	repo      repository.ShiftRepository
	slots     SlotStore
	directory OwnershipChecker
	validator *validator.ShiftValidator
	cfg       *config.Config
}

func NewShiftService(
	repo repository.ShiftRepository,
	slots SlotStore,
	directory OwnershipChecker,
	v *validator.ShiftValidator,
	cfg *config.Config,
) ShiftService {
	return &shiftService{
		repo:      repo,
		slots:     slots,
		directory: directory,
		validator: v,
		cfg:       cfg,
	}
}

func (s *shiftService) requireOwner(ctx context.Context, principalID, businessID string) error {
	ok, err := s.directory.IsOwner(ctx, principalID, businessID)
	if err != nil {
		s.cfg.Log.Error("Ownership check failed",
			"principal_id", principalID,
			"business_id", businessID,
			"error", err,
		)
		return apperrors.Internal("Failed to verify business ownership", err)
	}
	if !ok {
		return apperrors.Forbidden("Only the business owner can manage shifts")
	}
	return nil
}

func (s *shiftService) Create(ctx context.Context, principalID string, shift *model.Shift) error {
	shift.ID = ""
	shift.Active = true

	if err := s.validator.Validate(shift); err != nil {
		s.cfg.Log.Warn("Shift validation failed",
			"employee_id", shift.EmployeeID,
			"business_id", shift.BusinessID,
			"error", err,
		)
		return apperrors.Validation("Shift validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.requireOwner(ctx, principalID, shift.BusinessID); err != nil {
		return err
	}

	err := s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		existing, err := s.repo.FindActiveByEmployee(txCtx, shift.EmployeeID)
		if err != nil {
			return apperrors.Internal("Failed to check for overlapping shifts", err)
		}
		for _, e := range existing {
			if shiftsOverlap(e, shift) {
				return apperrors.Conflict("Shift overlaps an existing shift for this employee")
			}
		}
		return s.repo.Create(txCtx, shift)
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		s.cfg.Log.Error("Failed to create shift",
			"employee_id", shift.EmployeeID,
			"business_id", shift.BusinessID,
			"error", err,
		)
		return apperrors.Internal("Failed to create shift", err)
	}

	s.cfg.Log.Info("Shift created",
		"id", shift.ID,
		"employee_id", shift.EmployeeID,
		"business_id", shift.BusinessID,
		"shift_type", shift.ShiftType,
	)
	return nil
}

// shiftsOverlap reports whether two shifts of the same employee can occupy
// the same calendar day with intersecting time windows.
func shiftsOverlap(a, b *model.Shift) bool {
	if a.EmployeeID != b.EmployeeID {
		return false
	}

	sameDay := false
	switch {
	case a.IsRecurring() && b.IsRecurring():
		sameDay = a.DayOfWeek != nil && b.DayOfWeek != nil && *a.DayOfWeek == *b.DayOfWeek
	case !a.IsRecurring() && !b.IsRecurring():
		sameDay = a.SpecificDate != nil && b.SpecificDate != nil && *a.SpecificDate == *b.SpecificDate
	case a.IsRecurring() && !b.IsRecurring():
		sameDay = recurringCoversOneTime(a, b)
	default:
		sameDay = recurringCoversOneTime(b, a)
	}
	if !sameDay {
		return false
	}

	aStart, err1 := slotclock.ParseClock(a.StartTime)
	aEnd, err2 := slotclock.ParseClock(a.EndTime)
	bStart, err3 := slotclock.ParseClock(b.StartTime)
	bEnd, err4 := slotclock.ParseClock(b.EndTime)
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
		return false
	}
	return aStart < bEnd && bStart < aEnd
}

func recurringCoversOneTime(recurring, oneTime *model.Shift) bool {
	if recurring.DayOfWeek == nil || oneTime.SpecificDate == nil {
		return false
	}
	d, err := slotclock.ParseDate(*oneTime.SpecificDate)
	if err != nil {
		return false
	}
	return slotclock.Weekday(d) == *recurring.DayOfWeek
}

func (s *shiftService) GetByID(ctx context.Context, id string) (*model.Shift, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Shift ID cannot be empty")
	}

	shift, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shifterrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Shift", id)
		}
		if errors.Is(err, shifterrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid shift ID format")
		}
		s.cfg.Log.Error("Failed to get shift by ID", "id", id, "error", err)
		return nil, apperrors.Internal("Failed to retrieve shift", err)
	}

	return shift, nil
}

func (s *shiftService) ListForBusiness(ctx context.Context, businessID string, limit int, offset int64) ([]*model.Shift, int64, error) {
	if businessID == "" {
		return nil, 0, apperrors.InvalidInput("Business ID cannot be empty")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	shifts, err := s.repo.FindByBusiness(ctx, businessID, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list shifts", "business_id", businessID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve shifts", err)
	}

	count, err := s.repo.CountByBusiness(ctx, businessID)
	if err != nil {
		s.cfg.Log.Error("Failed to count shifts", "business_id", businessID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count shifts", err)
	}

	return shifts, count, nil
}

func (s *shiftService) ListForEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error) {
	if employeeID == "" {
		return nil, apperrors.InvalidInput("Employee ID cannot be empty")
	}

	shifts, err := s.repo.FindActiveByEmployee(ctx, employeeID)
	if err != nil {
		s.cfg.Log.Error("Failed to list employee shifts", "employee_id", employeeID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve employee shifts", err)
	}
	return shifts, nil
}

func (s *shiftService) EmployeeSummary(ctx context.Context, employeeID string) ([]*EmployeeShiftSummary, error) {
	shifts, err := s.ListForEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	summaries := make([]*EmployeeShiftSummary, 0, len(shifts))
	for _, shift := range shifts {
		minutes, err := slotclock.Minutes(shift.StartTime, shift.EndTime)
		if err != nil {
			continue
		}
		tiles, err := slotclock.Tile(shift.StartTime, shift.EndTime, s.cfg.SlotDurationMin)
		if err != nil {
			continue
		}
		summaries = append(summaries, &EmployeeShiftSummary{
			Shift:         shift,
			SlotsPerDay:   len(tiles),
			WindowMinutes: minutes,
		})
	}
	return summaries, nil
}

func (s *shiftService) EmployeeIDs(ctx context.Context, businessID string) ([]string, error) {
	if businessID == "" {
		return nil, apperrors.InvalidInput("Business ID cannot be empty")
	}

	ids, err := s.repo.DistinctEmployeeIDs(ctx, businessID)
	if err != nil {
		s.cfg.Log.Error("Failed to list employees", "business_id", businessID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve employees", err)
	}
	return ids, nil
}

func (s *shiftService) Update(ctx context.Context, principalID string, id string, updates *model.ShiftUpdate) error {
	if id == "" {
		return apperrors.InvalidInput("Shift ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shifterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Shift", id)
		}
		if errors.Is(err, shifterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid shift ID format")
		}
		return apperrors.Internal("Failed to check shift existence", err)
	}

	if err := s.requireOwner(ctx, principalID, existing.BusinessID); err != nil {
		return err
	}

	merged := mergeShiftUpdates(existing, updates)
	if err := s.validator.Validate(merged); err != nil {
		s.cfg.Log.Warn("Shift validation failed", "id", id, "error", err)
		return apperrors.Validation("Shift validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	windowChanged := merged.StartTime != existing.StartTime ||
		merged.EndTime != existing.EndTime ||
		!intPtrEqual(merged.DayOfWeek, existing.DayOfWeek) ||
		!strPtrEqual(merged.SpecificDate, existing.SpecificDate)

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		others, err := s.repo.FindActiveByEmployee(txCtx, merged.EmployeeID)
		if err != nil {
			return apperrors.Internal("Failed to check for overlapping shifts", err)
		}
		for _, o := range others {
			if o.ID == merged.ID {
				continue
			}
			if shiftsOverlap(o, merged) {
				return apperrors.Conflict("Shift overlaps an existing shift for this employee")
			}
		}

		if err := s.repo.Update(txCtx, id, merged); err != nil {
			return apperrors.Internal("Failed to update shift", err)
		}

		// Reshaping the window orphans previously generated open slots.
		// Reserved slots stay untouched so existing bookings survive.
		if windowChanged {
			removed, err := s.slots.DeleteAvailableByShift(txCtx, id)
			if err != nil {
				return apperrors.Internal("Failed to invalidate open slots", err)
			}
			if removed > 0 {
				s.cfg.Log.Info("Invalidated open slots after shift change", "shift_id", id, "removed", removed)
			}
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Internal("Failed to update shift", err)
	}

	s.cfg.Log.Info("Shift updated", "id", id, "employee_id", merged.EmployeeID)
	return nil
}

func (s *shiftService) Delete(ctx context.Context, principalID string, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Shift ID cannot be empty")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, shifterrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Shift", id)
		}
		if errors.Is(err, shifterrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid shift ID format")
		}
		return apperrors.Internal("Failed to check shift existence", err)
	}

	if err := s.requireOwner(ctx, principalID, existing.BusinessID); err != nil {
		return err
	}

	err = s.repo.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		reserved, err := s.slots.HasReservedSlots(txCtx, id)
		if err != nil {
			return apperrors.Internal("Failed to check for booked slots", err)
		}
		if reserved {
			return apperrors.Conflict("Shift has booked slots; cancel the bookings first")
		}

		if _, err := s.slots.DeleteByShift(txCtx, id); err != nil {
			return apperrors.Internal("Failed to delete shift slots", err)
		}
		if err := s.repo.Delete(txCtx, id); err != nil {
			if errors.Is(err, shifterrors.ErrNotFound) {
				return apperrors.NotFoundWithID("Shift", id)
			}
			return apperrors.Internal("Failed to delete shift", err)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Internal("Failed to delete shift", err)
	}

	s.cfg.Log.Info("Shift deleted", "id", id, "employee_id", existing.EmployeeID)
	return nil
}

func mergeShiftUpdates(existing *model.Shift, updates *model.ShiftUpdate) *model.Shift {
	merged := *existing

	if updates.DayOfWeek != nil {
		merged.DayOfWeek = updates.DayOfWeek
	}
	if updates.SpecificDate != nil {
		merged.SpecificDate = updates.SpecificDate
	}
	if updates.StartTime != "" {
		merged.StartTime = updates.StartTime
	}
	if updates.EndTime != "" {
		merged.EndTime = updates.EndTime
	}
	if updates.Active != nil {
		merged.Active = *updates.Active
	}

	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt
	return &merged
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
