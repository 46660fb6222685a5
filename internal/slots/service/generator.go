package service

import (
	"context"
	"net/http"

	slotserrors "trimly/internal/slots/errors"
	"trimly/internal/slots/repository"
	"trimly/pkg/clock"
	"trimly/pkg/config"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/events"
	"trimly/pkg/metrics"
	"trimly/pkg/model"
	"trimly/pkg/slotclock"
)

// ShiftReader is the slice of the shift repository the generator needs.
type ShiftReader interface {
	FindByID(ctx context.Context, id string) (*model.Shift, error)
	FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error)
	DistinctEmployeeIDs(ctx context.Context, businessID string) ([]string, error)
}

// GenerationResult reports a single (shift, date) materialization.
type GenerationResult struct {
	ShiftID         string   `json:"shift_id"`
	Date            string   `json:"date"`
	SlotDurationMin int      `json:"slot_duration_min"`
	Created         int      `json:"created"`
	SlotIDs         []string `json:"slot_ids"`
}

// DateOutcome is one date inside a multi-day generation window. Skipped
// dates carry the reason instead of failing the whole window.
type DateOutcome struct {
	Date    string `json:"date"`
	Created int    `json:"created"`
	Skipped bool   `json:"skipped,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

// WindowResult reports generation over [today, today+days) for one shift.
type WindowResult struct {
	ShiftID      string        `json:"shift_id"`
	TotalCreated int           `json:"total_created"`
	Dates        []DateOutcome `json:"dates"`
}

// EmployeeResult aggregates the window results of one employee's shifts.
type EmployeeResult struct {
	EmployeeID   string          `json:"employee_id"`
	TotalCreated int             `json:"total_created"`
	Shifts       []*WindowResult `json:"shifts"`
}

// BusinessResult aggregates per-employee generation for a whole business.
type BusinessResult struct {
	BusinessID   string            `json:"business_id"`
	TotalCreated int               `json:"total_created"`
	Employees    []*EmployeeResult `json:"employees"`
}

type GeneratorService interface {
	Generate(ctx context.Context, shiftID, date string, slotDurationMin int) (*GenerationResult, error)
	GenerateForShift(ctx context.Context, shiftID string, daysAhead, slotDurationMin int) (*WindowResult, error)
	GenerateForEmployee(ctx context.Context, employeeID string, daysAhead, slotDurationMin int) (*EmployeeResult, error)
	GenerateForBusiness(ctx context.Context, businessID string, daysAhead, slotDurationMin int) (*BusinessResult, error)
}

type generatorService struct {
	slots     repository.TimeSlotRepository
	shifts    ShiftReader
	clock     clock.Clock
	publisher events.Publisher
	cfg       *config.Config
}

func NewGeneratorService(
	slots repository.TimeSlotRepository,
	shifts ShiftReader,
	clk clock.Clock,
	publisher events.Publisher,
	cfg *config.Config,
) GeneratorService {
	return &generatorService{
		slots:     slots,
		shifts:    shifts,
		clock:     clk,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *generatorService) normalizeDuration(slotDurationMin int) (int, error) {
	if slotDurationMin == 0 {
		slotDurationMin = s.cfg.SlotDurationMin
	}
	if slotDurationMin < config.MinSlotDurationMin || slotDurationMin > config.MaxSlotDurationMin {
		return 0, apperrors.InvalidInput("Slot duration is out of range")
	}
	return slotDurationMin, nil
}

func (s *generatorService) Generate(ctx context.Context, shiftID, date string, slotDurationMin int) (*GenerationResult, error) {
	slotDurationMin, err := s.normalizeDuration(slotDurationMin)
	if err != nil {
		return nil, err
	}

	day, err := slotclock.ParseDate(date)
	if err != nil {
		return nil, apperrors.InvalidInput("Date must be a concrete YYYY-MM-DD date")
	}

	shift, err := s.shifts.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apperrors.NotFoundWithID("Shift", shiftID)
	}
	if !shift.Active {
		return nil, apperrors.Conflict("Cannot generate slots for an inactive shift")
	}
	if !shift.CoversDate(date, slotclock.Weekday(day)) {
		return nil, apperrors.Wrap(slotserrors.ErrShiftDateMismatch,
			apperrors.CodeValidation, "Date does not fall on this shift's schedule",
			http.StatusUnprocessableEntity).WithDetails(map[string]any{
			"shift_id": shiftID,
			"date":     date,
		})
	}

	// Duration is already range-checked; a Tile failure means the stored
	// shift carries unparseable times.
	tiles, err := slotclock.Tile(shift.StartTime, shift.EndTime, slotDurationMin)
	if err != nil {
		s.cfg.Log.Error("Shift window times failed to parse",
			"shift_id", shiftID,
			"start_time", shift.StartTime,
			"end_time", shift.EndTime,
			"error", err,
		)
		return nil, apperrors.Internal("Shift window times failed to parse", err)
	}

	result := &GenerationResult{
		ShiftID:         shiftID,
		Date:            date,
		SlotDurationMin: slotDurationMin,
	}

	generate := func(txCtx context.Context) error {
		reserved, err := s.slots.HasReservedForShiftDate(txCtx, shiftID, date)
		if err != nil {
			return apperrors.Internal("Failed to check reserved slots", err)
		}
		if reserved {
			return apperrors.Wrap(slotserrors.ErrRegenerationConflict,
				apperrors.CodeConflict, "Reserved slots exist for this shift and date",
				http.StatusConflict)
		}

		if _, err := s.slots.DeleteAvailableByShiftDate(txCtx, shiftID, date); err != nil {
			return apperrors.Internal("Failed to clear open slots", err)
		}

		slots := make([]*model.TimeSlot, 0, len(tiles))
		for _, tile := range tiles {
			slots = append(slots, &model.TimeSlot{
				ShiftID:    shiftID,
				BusinessID: shift.BusinessID,
				EmployeeID: shift.EmployeeID,
				Date:       date,
				StartTime:  tile.Start,
				EndTime:    tile.End,
				Available:  true,
			})
		}
		if err := s.slots.InsertMany(txCtx, slots); err != nil {
			return apperrors.Internal("Failed to insert slots", err)
		}

		result.Created = len(slots)
		result.SlotIDs = result.SlotIDs[:0]
		for _, slot := range slots {
			result.SlotIDs = append(result.SlotIDs, slot.ID)
		}
		return nil
	}

	err = s.slots.ExecuteTransaction(ctx, generate)
	if err != nil && !apperrors.IsAppError(err) {
		// Transient tx failure gets one more attempt before surfacing.
		s.cfg.Log.Warn("Slot generation transaction failed, retrying",
			"shift_id", shiftID, "date", date, "error", err)
		err = s.slots.ExecuteTransaction(ctx, generate)
	}
	if err != nil {
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Slot generation failed", "shift_id", shiftID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to generate slots", err)
	}

	metrics.AddSlotsGenerated(shift.ShiftType, result.Created)
	s.publishGenerated(ctx, shift, date, result.Created)

	s.cfg.Log.Info("Slots generated",
		"shift_id", shiftID,
		"date", date,
		"created", result.Created,
		"slot_duration_min", slotDurationMin,
	)
	return result, nil
}

func (s *generatorService) publishGenerated(ctx context.Context, shift *model.Shift, date string, count int) {
	err := s.publisher.Publish(ctx, s.cfg.KafkaSlotsTopic, shift.ID, events.TypeSlotsGenerated, events.SlotsGenerated{
		ShiftID:    shift.ID,
		BusinessID: shift.BusinessID,
		EmployeeID: shift.EmployeeID,
		Date:       date,
		SlotCount:  count,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to publish slots.generated event", "shift_id", shift.ID, "error", err)
	}
}

func (s *generatorService) normalizeWindow(daysAhead int) (int, error) {
	if daysAhead == 0 {
		daysAhead = s.cfg.DaysAhead
	}
	if daysAhead < 1 || daysAhead > config.MaxDaysAhead {
		return 0, apperrors.InvalidInput("Generation window is out of range")
	}
	return daysAhead, nil
}

func (s *generatorService) GenerateForShift(ctx context.Context, shiftID string, daysAhead, slotDurationMin int) (*WindowResult, error) {
	daysAhead, err := s.normalizeWindow(daysAhead)
	if err != nil {
		return nil, err
	}

	shift, err := s.shifts.FindByID(ctx, shiftID)
	if err != nil {
		return nil, apperrors.NotFoundWithID("Shift", shiftID)
	}

	return s.generateWindow(ctx, shift, daysAhead, slotDurationMin)
}

func (s *generatorService) generateWindow(ctx context.Context, shift *model.Shift, daysAhead, slotDurationMin int) (*WindowResult, error) {
	result := &WindowResult{ShiftID: shift.ID}

	if !shift.Active {
		return result, nil
	}

	today := s.clock.Now()
	for i := 0; i < daysAhead; i++ {
		day := today.AddDate(0, 0, i)
		date := day.Format(slotclock.DateFormat)

		if !shift.CoversDate(date, slotclock.Weekday(day)) {
			continue
		}

		gen, err := s.Generate(ctx, shift.ID, date, slotDurationMin)
		if err != nil {
			appErr := apperrors.AsAppError(err)
			// A date already carrying reservations is reported, not destroyed.
			if appErr.Code == apperrors.CodeConflict {
				result.Dates = append(result.Dates, DateOutcome{
					Date:    date,
					Skipped: true,
					Reason:  appErr.Message,
				})
				continue
			}
			return nil, err
		}

		result.Dates = append(result.Dates, DateOutcome{Date: date, Created: gen.Created})
		result.TotalCreated += gen.Created
	}

	return result, nil
}

func (s *generatorService) GenerateForEmployee(ctx context.Context, employeeID string, daysAhead, slotDurationMin int) (*EmployeeResult, error) {
	return s.generateForEmployee(ctx, employeeID, "", daysAhead, slotDurationMin)
}

func (s *generatorService) generateForEmployee(ctx context.Context, employeeID, businessID string, daysAhead, slotDurationMin int) (*EmployeeResult, error) {
	if employeeID == "" {
		return nil, apperrors.InvalidInput("Employee ID cannot be empty")
	}
	daysAhead, err := s.normalizeWindow(daysAhead)
	if err != nil {
		return nil, err
	}

	shifts, err := s.shifts.FindActiveByEmployee(ctx, employeeID)
	if err != nil {
		s.cfg.Log.Error("Failed to load employee shifts", "employee_id", employeeID, "error", err)
		return nil, apperrors.Internal("Failed to load employee shifts", err)
	}

	result := &EmployeeResult{EmployeeID: employeeID}
	for _, shift := range shifts {
		if businessID != "" && shift.BusinessID != businessID {
			continue
		}
		window, err := s.generateWindow(ctx, shift, daysAhead, slotDurationMin)
		if err != nil {
			return nil, err
		}
		result.Shifts = append(result.Shifts, window)
		result.TotalCreated += window.TotalCreated
	}
	return result, nil
}

func (s *generatorService) GenerateForBusiness(ctx context.Context, businessID string, daysAhead, slotDurationMin int) (*BusinessResult, error) {
	if businessID == "" {
		return nil, apperrors.InvalidInput("Business ID cannot be empty")
	}

	employeeIDs, err := s.shifts.DistinctEmployeeIDs(ctx, businessID)
	if err != nil {
		s.cfg.Log.Error("Failed to list employees", "business_id", businessID, "error", err)
		return nil, apperrors.Internal("Failed to list employees", err)
	}

	result := &BusinessResult{BusinessID: businessID}
	for _, employeeID := range employeeIDs {
		employee, err := s.generateForEmployee(ctx, employeeID, businessID, daysAhead, slotDurationMin)
		if err != nil {
			return nil, err
		}
		result.Employees = append(result.Employees, employee)
		result.TotalCreated += employee.TotalCreated
	}
	return result, nil
}
