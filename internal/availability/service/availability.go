package service

import (
	"context"
	"sort"

	"trimly/pkg/client"
	"trimly/pkg/config"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/model"
	"trimly/pkg/slotclock"
)

// SlotReader is the read-only slice of the slot repository the availability
// index needs.
type SlotReader interface {
	Query(ctx context.Context, q model.SlotQuery) ([]*model.TimeSlot, error)
}

// CatalogReader resolves service definitions for duration math.
type CatalogReader interface {
	GetServices(ctx context.Context, businessID string, serviceIDs []string) ([]*client.CatalogService, error)
}

type AvailabilityService interface {
	SlotsInRange(ctx context.Context, q model.SlotQuery) ([]*model.TimeSlot, error)
	FreeRuns(ctx context.Context, employeeID, date string, requiredSlots int) ([]*model.Run, error)
	FreeRunsForServices(ctx context.Context, businessID, employeeID, date string, serviceIDs []string) ([]*model.Run, error)
}

type availabilityService struct {
	slots   SlotReader
	catalog CatalogReader
	cfg     *config.Config
}

func NewAvailabilityService(slots SlotReader, catalog CatalogReader, cfg *config.Config) AvailabilityService {
	return &availabilityService{
		slots:   slots,
		catalog: catalog,
		cfg:     cfg,
	}
}

func (s *availabilityService) SlotsInRange(ctx context.Context, q model.SlotQuery) ([]*model.TimeSlot, error) {
	if q.BusinessID == "" && q.EmployeeID == "" {
		return nil, apperrors.InvalidInput("Either business_id or employee_id must be provided")
	}
	if q.DateFrom != "" {
		if _, err := slotclock.ParseDate(q.DateFrom); err != nil {
			return nil, apperrors.InvalidInput("date_from must be a YYYY-MM-DD date")
		}
	}
	if q.DateTo != "" {
		if _, err := slotclock.ParseDate(q.DateTo); err != nil {
			return nil, apperrors.InvalidInput("date_to must be a YYYY-MM-DD date")
		}
	}
	if q.DateFrom != "" && q.DateTo != "" && q.DateTo < q.DateFrom {
		return nil, apperrors.InvalidInput("date_to must not precede date_from")
	}

	slots, err := s.slots.Query(ctx, q)
	if err != nil {
		s.cfg.Log.Error("Failed to query slots",
			"business_id", q.BusinessID,
			"employee_id", q.EmployeeID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve slots", err)
	}
	return slots, nil
}

func (s *availabilityService) FreeRuns(ctx context.Context, employeeID, date string, requiredSlots int) ([]*model.Run, error) {
	if employeeID == "" {
		return nil, apperrors.InvalidInput("Employee ID cannot be empty")
	}
	if _, err := slotclock.ParseDate(date); err != nil {
		return nil, apperrors.InvalidInput("Date must be a YYYY-MM-DD date")
	}
	if requiredSlots < 1 {
		return nil, apperrors.InvalidInput("Required slot count must be positive")
	}

	available := true
	slots, err := s.slots.Query(ctx, model.SlotQuery{
		EmployeeID:    employeeID,
		DateFrom:      date,
		DateTo:        date,
		AvailableOnly: &available,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to query free slots", "employee_id", employeeID, "date", date, "error", err)
		return nil, apperrors.Internal("Failed to retrieve free slots", err)
	}

	runs := []*model.Run{}
	for _, group := range groupByShift(slots) {
		runs = append(runs, runsInChain(group, requiredSlots)...)
	}

	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartTime != runs[j].StartTime {
			return runs[i].StartTime < runs[j].StartTime
		}
		return runs[i].ShiftID < runs[j].ShiftID
	})
	return runs, nil
}

// groupByShift splits slots by shift preserving the (date, start) order the
// repository returns.
func groupByShift(slots []*model.TimeSlot) [][]*model.TimeSlot {
	index := map[string]int{}
	var groups [][]*model.TimeSlot
	for _, slot := range slots {
		i, ok := index[slot.ShiftID]
		if !ok {
			i = len(groups)
			index[slot.ShiftID] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], slot)
	}
	return groups
}

// runsInChain walks a shift's slots sorted by start time. Each maximal
// contiguous chain long enough to hold requiredSlots yields exactly one run,
// truncated to the chain's first requiredSlots slots; a gap between slots
// ends the chain.
func runsInChain(slots []*model.TimeSlot, requiredSlots int) []*model.Run {
	var runs []*model.Run

	emit := func(chain []*model.TimeSlot) {
		if len(chain) < requiredSlots {
			return
		}
		window := chain[:requiredSlots]
		runs = append(runs, &model.Run{
			ShiftID:   window[0].ShiftID,
			Date:      window[0].Date,
			StartTime: window[0].StartTime,
			EndTime:   window[len(window)-1].EndTime,
			Slots:     window,
		})
	}

	chainStart := 0
	for i := 1; i < len(slots); i++ {
		if slots[i-1].EndTime != slots[i].StartTime {
			emit(slots[chainStart:i])
			chainStart = i
		}
	}
	if len(slots) > 0 {
		emit(slots[chainStart:])
	}

	return runs
}

func (s *availabilityService) FreeRunsForServices(ctx context.Context, businessID, employeeID, date string, serviceIDs []string) ([]*model.Run, error) {
	if len(serviceIDs) == 0 {
		return nil, apperrors.InvalidInput("At least one service ID is required")
	}

	services, err := s.catalog.GetServices(ctx, businessID, serviceIDs)
	if err != nil {
		return nil, err
	}

	totalMin := 0
	for _, svc := range services {
		totalMin += svc.DurationMin
	}

	requiredSlots, err := slotclock.RequiredSlots(totalMin, s.cfg.SlotDurationMin)
	if err != nil {
		return nil, apperrors.InvalidInput("Service durations do not form a bookable interval")
	}

	return s.FreeRuns(ctx, employeeID, date, requiredSlots)
}
