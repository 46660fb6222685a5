package service

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "trimly/internal/bookings/errors"
	"trimly/internal/bookings/repository"
	"trimly/internal/bookings/validator"
	"trimly/pkg/client"
	"trimly/pkg/config"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/events"
	"trimly/pkg/metrics"
	"trimly/pkg/model"
	"trimly/pkg/sanitizer"
	"trimly/pkg/slotclock"
)

// allocationLockTTL bounds how long an abandoned advisory lock can block a
// shift/date before the TTL index reaps it.
const allocationLockTTL = 10 * time.Second

// errReservationRace signals that the conditional slot flip modified fewer
// documents than expected; the transaction aborts and the attempt may be
// retried once.
var errReservationRace = errors.New("slot reservation lost a concurrent race")

// CatalogReader resolves catalog services for duration and price snapshots.
type CatalogReader interface {
	GetServices(ctx context.Context, businessID string, serviceIDs []string) ([]*client.CatalogService, error)
}

// OwnershipChecker answers whether a principal owns a business.
type OwnershipChecker interface {
	IsOwner(ctx context.Context, principalID, businessID string) (bool, error)
}

type BookingService interface {
	Allocate(ctx context.Context, req *model.AllocationRequest) (*model.Booking, error)
	Resize(ctx context.Context, principalID, bookingID string, serviceIDs []string) (*model.Booking, error)
	Cancel(ctx context.Context, principalID, bookingID string) error
	Confirm(ctx context.Context, principalID, bookingID string) error
	Complete(ctx context.Context, principalID, bookingID string) error
	GetByID(ctx context.Context, principalID, bookingID string) (*model.Booking, error)
	ListForCustomer(ctx context.Context, customerID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	ListForBusiness(ctx context.Context, principalID, businessID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error)
}

type bookingService struct {
	bookings  repository.BookingRepository
	slots     repository.SlotReservationRepository
	shifts    repository.ShiftReadRepository
	locks     repository.AllocationLockRepository
	catalog   CatalogReader
	directory OwnershipChecker
	validator *validator.BookingValidator
	publisher events.Publisher
	cfg       *config.Config
}

func NewBookingService(
	bookings repository.BookingRepository,
	slots repository.SlotReservationRepository,
	shifts repository.ShiftReadRepository,
	locks repository.AllocationLockRepository,
	catalog CatalogReader,
	directory OwnershipChecker,
	v *validator.BookingValidator,
	publisher events.Publisher,
	cfg *config.Config,
) BookingService {
	return &bookingService{
		bookings:  bookings,
		slots:     slots,
		shifts:    shifts,
		locks:     locks,
		catalog:   catalog,
		directory: directory,
		validator: v,
		publisher: publisher,
		cfg:       cfg,
	}
}

func (s *bookingService) Allocate(ctx context.Context, req *model.AllocationRequest) (*model.Booking, error) {
	req.Notes = sanitizer.SanitizeNotes(req.Notes)
	req.ServiceIDs = sanitizer.SanitizeIDSlice(req.ServiceIDs)

	if err := s.validator.ValidateAllocation(req); err != nil {
		s.cfg.Log.Warn("Allocation validation failed",
			"employee_id", req.EmployeeID,
			"customer_id", req.CustomerID,
			"error", err,
		)
		return nil, apperrors.Validation("Booking validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	services, err := s.catalog.GetServices(ctx, req.BusinessID, req.ServiceIDs)
	if err != nil {
		return nil, err
	}

	booked := make([]model.BookedService, 0, len(services))
	totalMin := 0
	for _, svc := range services {
		booked = append(booked, model.BookedService{
			ServiceID:   svc.ID,
			Name:        svc.Name,
			DurationMin: svc.DurationMin,
			Price:       svc.Price,
		})
		totalMin += svc.DurationMin
	}

	requiredSlots, err := slotclock.RequiredSlots(totalMin, s.cfg.SlotDurationMin)
	if err != nil {
		return nil, apperrors.InvalidInput("Service durations do not form a bookable interval")
	}

	shift, err := s.resolveShift(ctx, req.EmployeeID, req.Date, req.StartTime)
	if err != nil {
		return nil, err
	}
	if shift.BusinessID != req.BusinessID {
		return nil, apperrors.Wrap(bookingserrors.ErrNoShiftFound,
			apperrors.CodeNotFound, "No shift covers the requested time", http.StatusNotFound)
	}

	lockKey := repository.LockKey(req.EmployeeID, req.Date, shift.ID)
	if err := s.locks.Acquire(ctx, lockKey, allocationLockTTL); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			metrics.IncAllocationConflicts()
			return nil, apperrors.Conflict("Another booking for this time window is in progress")
		}
		s.cfg.Log.Error("Failed to acquire allocation lock", "key", lockKey, "error", err)
		return nil, apperrors.Internal("Failed to acquire allocation lock", err)
	}
	defer func() {
		if err := s.locks.Release(ctx, lockKey); err != nil {
			s.cfg.Log.Error("Failed to release allocation lock", "key", lockKey, "error", err)
		}
	}()

	booking := &model.Booking{
		BusinessID:       req.BusinessID,
		CustomerID:       req.CustomerID,
		EmployeeID:       req.EmployeeID,
		ShiftID:          shift.ID,
		Date:             req.Date,
		StartTime:        req.StartTime,
		Services:         booked,
		TotalDurationMin: totalMin,
		Status:           model.BookingPending,
		Notes:            req.Notes,
	}

	attempt := func(txCtx context.Context) error {
		run, available, err := s.contiguousRun(txCtx, shift.ID, req.Date, req.StartTime, requiredSlots)
		if err != nil {
			return err
		}
		if len(run) < requiredSlots {
			return apperrors.InsufficientAvailability(requiredSlots, available)
		}

		booking.ID = ""
		booking.EndTime = run[len(run)-1].EndTime
		booking.SlotIDs = slotIDs(run)
		if err := s.bookings.Create(txCtx, booking); err != nil {
			return apperrors.Internal("Failed to create booking", err)
		}

		modified, err := s.slots.Reserve(txCtx, booking.SlotIDs, booking.ID)
		if err != nil {
			return apperrors.Internal("Failed to reserve slots", err)
		}
		if modified != int64(requiredSlots) {
			return errReservationRace
		}
		return nil
	}

	err = s.bookings.ExecuteTransaction(ctx, attempt)
	if errors.Is(err, errReservationRace) || (err != nil && !apperrors.IsAppError(err)) {
		metrics.IncAllocationConflicts()
		s.cfg.Log.Warn("Allocation attempt aborted, retrying",
			"employee_id", req.EmployeeID, "date", req.Date, "error", err)
		err = s.bookings.ExecuteTransaction(ctx, attempt)
	}
	if err != nil {
		if errors.Is(err, errReservationRace) {
			_, available, availErr := s.contiguousRun(ctx, shift.ID, req.Date, req.StartTime, requiredSlots)
			if availErr != nil {
				available = 0
			}
			return nil, apperrors.InsufficientAvailability(requiredSlots, available)
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		s.cfg.Log.Error("Allocation failed",
			"employee_id", req.EmployeeID, "date", req.Date, "error", err)
		return nil, apperrors.Internal("Failed to allocate booking", err)
	}

	metrics.IncBookingsCreated()
	s.publishBookingEvent(ctx, events.TypeBookingCreated, booking)

	s.cfg.Log.Info("Booking allocated",
		"id", booking.ID,
		"employee_id", booking.EmployeeID,
		"date", booking.Date,
		"start_time", booking.StartTime,
		"slots", len(booking.SlotIDs),
	)
	return booking, nil
}

// resolveShift finds the active shift of the employee that covers the
// requested date with StartTime inside [shift.Start, shift.End).
func (s *bookingService) resolveShift(ctx context.Context, employeeID, date, startTime string) (*model.Shift, error) {
	day, err := slotclock.ParseDate(date)
	if err != nil {
		return nil, apperrors.InvalidInput("Date must be a YYYY-MM-DD date")
	}
	startMin, err := slotclock.ParseClock(startTime)
	if err != nil {
		return nil, apperrors.InvalidInput("Start time must be a valid HH:MM time")
	}

	shifts, err := s.shifts.FindActiveByEmployee(ctx, employeeID)
	if err != nil {
		s.cfg.Log.Error("Failed to load employee shifts", "employee_id", employeeID, "error", err)
		return nil, apperrors.Internal("Failed to load employee shifts", err)
	}

	weekday := slotclock.Weekday(day)
	for _, shift := range shifts {
		if !shift.CoversDate(date, weekday) {
			continue
		}
		shiftStart, err1 := slotclock.ParseClock(shift.StartTime)
		shiftEnd, err2 := slotclock.ParseClock(shift.EndTime)
		if err1 != nil || err2 != nil {
			continue
		}
		if startMin >= shiftStart && startMin < shiftEnd {
			return shift, nil
		}
	}

	return nil, apperrors.Wrap(bookingserrors.ErrNoShiftFound,
		apperrors.CodeNotFound, "No shift covers the requested time", http.StatusNotFound).WithDetails(map[string]any{
		"employee_id": employeeID,
		"date":        date,
		"start_time":  startTime,
	})
}

// contiguousRun returns up to requiredSlots contiguous available slots
// starting exactly at startTime, plus the count actually usable from that
// point (0 when the starting slot itself is missing or taken).
func (s *bookingService) contiguousRun(ctx context.Context, shiftID, date, startTime string, requiredSlots int) ([]*model.TimeSlot, int, error) {
	slots, err := s.slots.FindAvailableFrom(ctx, shiftID, date, startTime, requiredSlots)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to query available slots", err)
	}

	if len(slots) == 0 || slots[0].StartTime != startTime {
		return nil, 0, nil
	}

	run := slots[:1]
	for i := 1; i < len(slots); i++ {
		if slots[i-1].EndTime != slots[i].StartTime {
			break
		}
		run = slots[:i+1]
	}

	if len(run) < requiredSlots {
		return nil, len(run), nil
	}
	return run[:requiredSlots], requiredSlots, nil
}

func slotIDs(slots []*model.TimeSlot) []string {
	ids := make([]string, 0, len(slots))
	for _, slot := range slots {
		ids = append(ids, slot.ID)
	}
	return ids
}

func (s *bookingService) Resize(ctx context.Context, principalID, bookingID string, serviceIDs []string) (*model.Booking, error) {
	serviceIDs = sanitizer.SanitizeIDSlice(serviceIDs)
	if len(serviceIDs) == 0 {
		return nil, apperrors.InvalidInput("At least one service ID is required")
	}

	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, principalID, booking); err != nil {
		return nil, err
	}
	if booking.Status != model.BookingPending {
		return nil, apperrors.Conflict("Only pending bookings can change services")
	}

	services, err := s.catalog.GetServices(ctx, booking.BusinessID, serviceIDs)
	if err != nil {
		return nil, err
	}

	booked := make([]model.BookedService, 0, len(services))
	totalMin := 0
	for _, svc := range services {
		booked = append(booked, model.BookedService{
			ServiceID:   svc.ID,
			Name:        svc.Name,
			DurationMin: svc.DurationMin,
			Price:       svc.Price,
		})
		totalMin += svc.DurationMin
	}

	requiredSlots, err := slotclock.RequiredSlots(totalMin, s.cfg.SlotDurationMin)
	if err != nil {
		return nil, apperrors.InvalidInput("Service durations do not form a bookable interval")
	}

	lockKey := repository.LockKey(booking.EmployeeID, booking.Date, booking.ShiftID)
	if err := s.locks.Acquire(ctx, lockKey, allocationLockTTL); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, apperrors.Conflict("Another booking for this time window is in progress")
		}
		return nil, apperrors.Internal("Failed to acquire allocation lock", err)
	}
	defer func() {
		if err := s.locks.Release(ctx, lockKey); err != nil {
			s.cfg.Log.Error("Failed to release allocation lock", "key", lockKey, "error", err)
		}
	}()

	attempt := func(txCtx context.Context) error {
		// The new reservation is seeded at the first slot the booking
		// currently holds.
		held, err := s.slots.FindByBooking(txCtx, booking.ID)
		if err != nil {
			return apperrors.Internal("Failed to load held slots", err)
		}
		seed := booking.StartTime
		if len(held) > 0 {
			seed = held[0].StartTime
		}

		// Freed slots become part of the candidate run; the transaction
		// rolls the release back if re-reservation fails.
		if _, err := s.slots.Release(txCtx, booking.ID); err != nil {
			return apperrors.Internal("Failed to release held slots", err)
		}

		run, available, err := s.contiguousRun(txCtx, booking.ShiftID, booking.Date, seed, requiredSlots)
		if err != nil {
			return err
		}
		if len(run) < requiredSlots {
			return apperrors.InsufficientAvailability(requiredSlots, available)
		}

		modified, err := s.slots.Reserve(txCtx, slotIDs(run), booking.ID)
		if err != nil {
			return apperrors.Internal("Failed to reserve slots", err)
		}
		if modified != int64(requiredSlots) {
			return errReservationRace
		}

		booking.Services = booked
		booking.TotalDurationMin = totalMin
		booking.SlotIDs = slotIDs(run)
		booking.StartTime = run[0].StartTime
		booking.EndTime = run[len(run)-1].EndTime
		return s.bookings.UpdateReservation(txCtx, booking.ID, booking)
	}

	err = s.bookings.ExecuteTransaction(ctx, attempt)
	if errors.Is(err, errReservationRace) || (err != nil && !apperrors.IsAppError(err)) {
		err = s.bookings.ExecuteTransaction(ctx, attempt)
	}
	if err != nil {
		if errors.Is(err, errReservationRace) {
			return nil, apperrors.InsufficientAvailability(requiredSlots, 0)
		}
		if apperrors.IsAppError(err) {
			return nil, err
		}
		return nil, apperrors.Internal("Failed to resize booking", err)
	}

	s.cfg.Log.Info("Booking resized", "id", booking.ID, "slots", len(booking.SlotIDs))
	return booking, nil
}

func (s *bookingService) loadBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	if bookingID == "" {
		return nil, apperrors.InvalidInput("Booking ID cannot be empty")
	}

	booking, err := s.bookings.FindByID(ctx, bookingID)
	if err != nil {
		if errors.Is(err, bookingserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Booking", bookingID)
		}
		if errors.Is(err, bookingserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid booking ID format")
		}
		s.cfg.Log.Error("Failed to load booking", "id", bookingID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve booking", err)
	}
	return booking, nil
}

// requireParticipant allows the customer who made the booking or the owner
// of the business it belongs to.
func (s *bookingService) requireParticipant(ctx context.Context, principalID string, booking *model.Booking) error {
	if principalID == booking.CustomerID {
		return nil
	}
	ok, err := s.directory.IsOwner(ctx, principalID, booking.BusinessID)
	if err != nil {
		s.cfg.Log.Error("Ownership check failed",
			"principal_id", principalID,
			"business_id", booking.BusinessID,
			"error", err,
		)
		return apperrors.Internal("Failed to verify business ownership", err)
	}
	if !ok {
		return apperrors.Forbidden("Not allowed to access this booking")
	}
	return nil
}

func (s *bookingService) Cancel(ctx context.Context, principalID, bookingID string) error {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, principalID, booking); err != nil {
		return err
	}

	switch booking.Status {
	case model.BookingCancelled:
		return apperrors.Wrap(bookingserrors.ErrAlreadyCancelled,
			apperrors.CodeConflict, "Booking is already cancelled", http.StatusConflict)
	case model.BookingCompleted:
		return apperrors.Wrap(bookingserrors.ErrAlreadyCompleted,
			apperrors.CodeConflict, "Completed bookings cannot be cancelled", http.StatusConflict)
	}

	now := time.Now().UTC().Truncate(time.Millisecond)
	err = s.bookings.ExecuteTransaction(ctx, func(txCtx context.Context) error {
		modified, err := s.bookings.UpdateStatus(txCtx, booking.ID, booking.Status, model.BookingCancelled, &now)
		if err != nil {
			return apperrors.Internal("Failed to cancel booking", err)
		}
		if modified == 0 {
			return apperrors.Conflict("Booking changed concurrently; re-read and retry")
		}

		released, err := s.slots.Release(txCtx, booking.ID)
		if err != nil {
			return apperrors.Internal("Failed to release booking slots", err)
		}
		if released != int64(len(booking.SlotIDs)) {
			s.cfg.Log.Warn("Released slot count differs from held slots",
				"booking_id", booking.ID,
				"held", len(booking.SlotIDs),
				"released", released,
			)
		}
		return nil
	})
	if err != nil {
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.Internal("Failed to cancel booking", err)
	}

	booking.Status = model.BookingCancelled
	metrics.IncBookingsCancelled()
	s.publishBookingEvent(ctx, events.TypeBookingCancelled, booking)

	s.cfg.Log.Info("Booking cancelled", "id", booking.ID, "slots_released", len(booking.SlotIDs))
	return nil
}

func (s *bookingService) Confirm(ctx context.Context, principalID, bookingID string) error {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, principalID, booking); err != nil {
		return err
	}

	switch booking.Status {
	case model.BookingCancelled:
		return apperrors.Wrap(bookingserrors.ErrAlreadyCancelled,
			apperrors.CodeConflict, "Cancelled bookings cannot be confirmed", http.StatusConflict)
	case model.BookingCompleted:
		return apperrors.Wrap(bookingserrors.ErrAlreadyCompleted,
			apperrors.CodeConflict, "Completed bookings cannot be confirmed", http.StatusConflict)
	case model.BookingConfirmed:
		return apperrors.Conflict("Booking is already confirmed")
	}

	modified, err := s.bookings.UpdateStatus(ctx, booking.ID, model.BookingPending, model.BookingConfirmed, nil)
	if err != nil {
		return apperrors.Internal("Failed to confirm booking", err)
	}
	if modified == 0 {
		return apperrors.Conflict("Booking changed concurrently; re-read and retry")
	}

	booking.Status = model.BookingConfirmed
	s.publishBookingEvent(ctx, events.TypeBookingConfirmed, booking)

	s.cfg.Log.Info("Booking confirmed", "id", booking.ID)
	return nil
}

func (s *bookingService) Complete(ctx context.Context, principalID, bookingID string) error {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := s.requireParticipant(ctx, principalID, booking); err != nil {
		return err
	}

	switch booking.Status {
	case model.BookingCancelled:
		return apperrors.Wrap(bookingserrors.ErrAlreadyCancelled,
			apperrors.CodeConflict, "Cancelled bookings cannot be completed", http.StatusConflict)
	case model.BookingCompleted:
		return apperrors.Wrap(bookingserrors.ErrAlreadyCompleted,
			apperrors.CodeConflict, "Booking is already completed", http.StatusConflict)
	case model.BookingPending:
		return apperrors.Conflict("Booking must be confirmed before completion")
	}

	modified, err := s.bookings.UpdateStatus(ctx, booking.ID, model.BookingConfirmed, model.BookingCompleted, nil)
	if err != nil {
		return apperrors.Internal("Failed to complete booking", err)
	}
	if modified == 0 {
		return apperrors.Conflict("Booking changed concurrently; re-read and retry")
	}

	booking.Status = model.BookingCompleted
	s.publishBookingEvent(ctx, events.TypeBookingCompleted, booking)

	s.cfg.Log.Info("Booking completed", "id", booking.ID)
	return nil
}

func (s *bookingService) GetByID(ctx context.Context, principalID, bookingID string) (*model.Booking, error) {
	booking, err := s.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if err := s.requireParticipant(ctx, principalID, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *bookingService) ListForCustomer(ctx context.Context, customerID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	if customerID == "" {
		return nil, apperrors.InvalidInput("Customer ID cannot be empty")
	}

	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.bookings.FindByCustomer(ctx, customerID, filter, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list customer bookings", "customer_id", customerID, "error", err)
		return nil, apperrors.Internal("Failed to retrieve bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) ListForBusiness(ctx context.Context, principalID, businessID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, int64, error) {
	if businessID == "" {
		return nil, 0, apperrors.InvalidInput("Business ID cannot be empty")
	}

	ok, err := s.directory.IsOwner(ctx, principalID, businessID)
	if err != nil {
		return nil, 0, apperrors.Internal("Failed to verify business ownership", err)
	}
	if !ok {
		return nil, 0, apperrors.Forbidden("Only the business owner can list its bookings")
	}

	filter.CustomerSearch = sanitizer.SanitizeSearch(filter.CustomerSearch)
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	bookings, err := s.bookings.FindByBusiness(ctx, businessID, filter, limit, offset)
	if err != nil {
		s.cfg.Log.Error("Failed to list business bookings", "business_id", businessID, "error", err)
		return nil, 0, apperrors.Internal("Failed to retrieve bookings", err)
	}

	count, err := s.bookings.CountByBusiness(ctx, businessID, filter)
	if err != nil {
		s.cfg.Log.Error("Failed to count business bookings", "business_id", businessID, "error", err)
		return nil, 0, apperrors.Internal("Failed to count bookings", err)
	}

	return bookings, count, nil
}

func (s *bookingService) publishBookingEvent(ctx context.Context, eventType string, booking *model.Booking) {
	err := s.publisher.Publish(ctx, s.cfg.KafkaBookingTopic, booking.ID, eventType, events.BookingChanged{
		BookingID:  booking.ID,
		BusinessID: booking.BusinessID,
		EmployeeID: booking.EmployeeID,
		CustomerID: booking.CustomerID,
		Date:       booking.Date,
		StartTime:  booking.StartTime,
		EndTime:    booking.EndTime,
		Status:     booking.Status,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to publish booking event",
			"booking_id", booking.ID,
			"event_type", eventType,
			"error", err,
		)
	}
}
