package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	bookingserrors "trimly/internal/bookings/errors"
	"trimly/internal/bookings/validator"
	"trimly/pkg/client"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/events"
	"trimly/pkg/logger"
	"trimly/pkg/model"
)

type mockBookingRepo struct {
	createFn            func(ctx context.Context, booking *model.Booking) error
	findByIDFn          func(ctx context.Context, id string) (*model.Booking, error)
	findByCustomerFn    func(ctx context.Context, customerID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	findByBusinessFn    func(ctx context.Context, businessID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error)
	countByBusinessFn   func(ctx context.Context, businessID string, filter model.BookingFilter) (int64, error)
	updateStatusFn      func(ctx context.Context, id, fromStatus, toStatus string, cancelledAt *time.Time) (int64, error)
	updateReservationFn func(ctx context.Context, id string, booking *model.Booking) error
	executeTxFn         func(ctx context.Context, fn mongotx.TransactionFunc) error
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *model.Booking) error {
	if m.createFn != nil {
		return m.createFn(ctx, booking)
	}
	booking.ID = "665544332211009988776655"
	return nil
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*model.Booking, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockBookingRepo) FindByCustomer(ctx context.Context, customerID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	return m.findByCustomerFn(ctx, customerID, filter, limit, offset)
}

func (m *mockBookingRepo) FindByBusiness(ctx context.Context, businessID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
	return m.findByBusinessFn(ctx, businessID, filter, limit, offset)
}

func (m *mockBookingRepo) CountByBusiness(ctx context.Context, businessID string, filter model.BookingFilter) (int64, error) {
	return m.countByBusinessFn(ctx, businessID, filter)
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, id, fromStatus, toStatus string, cancelledAt *time.Time) (int64, error) {
	if m.updateStatusFn != nil {
		return m.updateStatusFn(ctx, id, fromStatus, toStatus, cancelledAt)
	}
	return 1, nil
}

func (m *mockBookingRepo) UpdateReservation(ctx context.Context, id string, booking *model.Booking) error {
	if m.updateReservationFn != nil {
		return m.updateReservationFn(ctx, id, booking)
	}
	return nil
}

func (m *mockBookingRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	if m.executeTxFn != nil {
		return m.executeTxFn(ctx, fn)
	}
	return fn(ctx)
}

type mockReservationRepo struct {
	findAvailableFromFn func(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error)
	findByBookingFn     func(ctx context.Context, bookingID string) ([]*model.TimeSlot, error)
	reserveFn           func(ctx context.Context, slotIDs []string, bookingID string) (int64, error)
	releaseFn           func(ctx context.Context, bookingID string) (int64, error)
}

func (m *mockReservationRepo) FindAvailableFrom(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error) {
	return m.findAvailableFromFn(ctx, shiftID, date, startTime, limit)
}

func (m *mockReservationRepo) FindByBooking(ctx context.Context, bookingID string) ([]*model.TimeSlot, error) {
	if m.findByBookingFn != nil {
		return m.findByBookingFn(ctx, bookingID)
	}
	return nil, nil
}

func (m *mockReservationRepo) Reserve(ctx context.Context, slotIDs []string, bookingID string) (int64, error) {
	if m.reserveFn != nil {
		return m.reserveFn(ctx, slotIDs, bookingID)
	}
	return int64(len(slotIDs)), nil
}

func (m *mockReservationRepo) Release(ctx context.Context, bookingID string) (int64, error) {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, bookingID)
	}
	return 0, nil
}

type mockShiftReadRepo struct {
	findActiveByEmployeeFn func(ctx context.Context, employeeID string) ([]*model.Shift, error)
}

func (m *mockShiftReadRepo) FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error) {
	return m.findActiveByEmployeeFn(ctx, employeeID)
}

type mockLockRepo struct {
	acquireFn func(ctx context.Context, key string, ttl time.Duration) error
	releaseFn func(ctx context.Context, key string) error
}

func (m *mockLockRepo) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	if m.acquireFn != nil {
		return m.acquireFn(ctx, key, ttl)
	}
	return nil
}

func (m *mockLockRepo) Release(ctx context.Context, key string) error {
	if m.releaseFn != nil {
		return m.releaseFn(ctx, key)
	}
	return nil
}

type mockCatalog struct {
	getServicesFn func(ctx context.Context, businessID string, serviceIDs []string) ([]*client.CatalogService, error)
}

func (m *mockCatalog) GetServices(ctx context.Context, businessID string, serviceIDs []string) ([]*client.CatalogService, error) {
	return m.getServicesFn(ctx, businessID, serviceIDs)
}

type mockDirectory struct {
	isOwnerFn func(ctx context.Context, principalID, businessID string) (bool, error)
}

func (m *mockDirectory) IsOwner(ctx context.Context, principalID, businessID string) (bool, error) {
	if m.isOwnerFn != nil {
		return m.isOwnerFn(ctx, principalID, businessID)
	}
	return false, nil
}

const (
	testBusinessID = "507f1f77bcf86cd799439001"
	testEmployeeID = "507f1f77bcf86cd799439002"
	testCustomerID = "507f1f77bcf86cd799439003"
	testShiftID    = "507f1f77bcf86cd799439011"
	testOwnerID    = "507f1f77bcf86cd799439004"

	// 2026-03-02 is a Monday.
	testDate = "2026-03-02"
)

func testConfig() *config.Config {
	return &config.Config{
		SlotDurationMin:   30,
		KafkaBookingTopic: "trimly.bookings",
		Log:               logger.Discard(),
	}
}

func intPtr(n int) *int { return &n }

func activeMondayShift() *model.Shift {
	return &model.Shift{
		ID:         testShiftID,
		BusinessID: testBusinessID,
		EmployeeID: testEmployeeID,
		ShiftType:  model.ShiftTypeRecurring,
		DayOfWeek:  intPtr(0),
		StartTime:  "09:00",
		EndTime:    "17:00",
		Active:     true,
	}
}

// daySlots builds contiguous 30-minute slots of the shift starting at 09:00,
// all available.
func daySlots(times ...[2]string) []*model.TimeSlot {
	slots := make([]*model.TimeSlot, 0, len(times))
	for i, t := range times {
		slots = append(slots, &model.TimeSlot{
			ID:        fmt.Sprintf("5f1f77bcf86cd7994390%04d", i),
			ShiftID:   testShiftID,
			Date:      testDate,
			StartTime: t[0],
			EndTime:   t[1],
			Available: true,
		})
	}
	return slots
}

func twoServices() []*client.CatalogService {
	return []*client.CatalogService{
		{ID: "6612ab34cd56ef7890123456", BusinessID: testBusinessID, Name: "Cut", DurationMin: 25, Price: 30, Active: true},
		{ID: "6612ab34cd56ef7890123457", BusinessID: testBusinessID, Name: "Beard trim", DurationMin: 20, Price: 15, Active: true},
	}
}

func allocationRequest() *model.AllocationRequest {
	return &model.AllocationRequest{
		BusinessID: testBusinessID,
		CustomerID: testCustomerID,
		EmployeeID: testEmployeeID,
		Date:       testDate,
		StartTime:  "10:00",
		ServiceIDs: []string{"6612ab34cd56ef7890123456", "6612ab34cd56ef7890123457"},
	}
}

type fixture struct {
	bookings *mockBookingRepo
	slots    *mockReservationRepo
	shifts   *mockShiftReadRepo
	locks    *mockLockRepo
	catalog  *mockCatalog
	dir      *mockDirectory
	svc      BookingService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		bookings: &mockBookingRepo{},
		slots: &mockReservationRepo{
			findAvailableFromFn: func(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error) {
				return daySlots([2]string{"10:00", "10:30"}, [2]string{"10:30", "11:00"}), nil
			},
		},
		shifts: &mockShiftReadRepo{
			findActiveByEmployeeFn: func(ctx context.Context, employeeID string) ([]*model.Shift, error) {
				return []*model.Shift{activeMondayShift()}, nil
			},
		},
		locks: &mockLockRepo{},
		catalog: &mockCatalog{
			getServicesFn: func(ctx context.Context, businessID string, serviceIDs []string) ([]*client.CatalogService, error) {
				return twoServices(), nil
			},
		},
		dir: &mockDirectory{},
	}
	f.svc = NewBookingService(
		f.bookings, f.slots, f.shifts, f.locks,
		f.catalog, f.dir,
		validator.NewBookingValidator(logger.Discard()),
		events.NoopPublisher{},
		testConfig(),
	)
	return f
}

func TestAllocateReservesContiguousRun(t *testing.T) {
	f := newFixture(t)

	var reservedIDs []string
	var reservedBooking string
	f.slots.reserveFn = func(ctx context.Context, slotIDs []string, bookingID string) (int64, error) {
		reservedIDs = slotIDs
		reservedBooking = bookingID
		return int64(len(slotIDs)), nil
	}

	booking, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.NoError(t, err)

	// 25 + 20 = 45 minutes rounds up to two 30-minute slots.
	assert.Equal(t, model.BookingPending, booking.Status)
	assert.Equal(t, "10:00", booking.StartTime)
	assert.Equal(t, "11:00", booking.EndTime)
	assert.Equal(t, 45, booking.TotalDurationMin)
	assert.Len(t, booking.SlotIDs, 2)
	assert.Equal(t, booking.SlotIDs, reservedIDs)
	assert.Equal(t, booking.ID, reservedBooking)
	assert.Equal(t, testShiftID, booking.ShiftID)
}

func TestAllocateStartSlotTaken(t *testing.T) {
	f := newFixture(t)
	f.slots.findAvailableFromFn = func(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error) {
		// 10:00 is gone; the next available slot starts at 10:30.
		return daySlots([2]string{"10:30", "11:00"}), nil
	}

	_, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInsufficientAvailability, appErr.Code)
	assert.Equal(t, 0, appErr.Details["available_slots"])
}

func TestAllocateGapBreaksRun(t *testing.T) {
	f := newFixture(t)
	f.slots.findAvailableFromFn = func(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error) {
		// 10:30 is gone, so only one usable slot from 10:00.
		return daySlots([2]string{"10:00", "10:30"}, [2]string{"11:00", "11:30"}), nil
	}

	_, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInsufficientAvailability, appErr.Code)
	assert.Equal(t, 2, appErr.Details["required_slots"])
	assert.Equal(t, 1, appErr.Details["available_slots"])
}

func TestAllocateNoShiftCoversTime(t *testing.T) {
	f := newFixture(t)

	req := allocationRequest()
	req.StartTime = "18:00"

	_, err := f.svc.Allocate(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, bookingserrors.ErrNoShiftFound)
}

func TestAllocateShiftOfAnotherBusiness(t *testing.T) {
	f := newFixture(t)
	f.shifts.findActiveByEmployeeFn = func(ctx context.Context, employeeID string) ([]*model.Shift, error) {
		shift := activeMondayShift()
		shift.BusinessID = "507f1f77bcf86cd799439099"
		return []*model.Shift{shift}, nil
	}

	_, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, bookingserrors.ErrNoShiftFound)
}

func TestAllocateLockHeld(t *testing.T) {
	f := newFixture(t)
	f.locks.acquireFn = func(ctx context.Context, key string, ttl time.Duration) error {
		return mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
	}

	_, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestAllocateReleasesLock(t *testing.T) {
	f := newFixture(t)

	released := false
	f.locks.releaseFn = func(ctx context.Context, key string) error {
		released = true
		return nil
	}

	_, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.NoError(t, err)
	assert.True(t, released)
}

func TestAllocateReservationRaceRetriesOnce(t *testing.T) {
	f := newFixture(t)

	reserveCalls := 0
	f.slots.reserveFn = func(ctx context.Context, slotIDs []string, bookingID string) (int64, error) {
		reserveCalls++
		return 1, nil // always one short
	}

	_, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.Error(t, err)
	assert.Equal(t, 2, reserveCalls)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeInsufficientAvailability, appErr.Code)
}

func TestAllocateRetriesTransientFailure(t *testing.T) {
	f := newFixture(t)

	attempts := 0
	f.bookings.executeTxFn = func(ctx context.Context, fn mongotx.TransactionFunc) error {
		attempts++
		if attempts == 1 {
			return errors.New("connection reset")
		}
		return fn(ctx)
	}

	booking, err := f.svc.Allocate(context.Background(), allocationRequest())
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Len(t, booking.SlotIDs, 2)
}

func TestAllocateRejectsInvalidRequest(t *testing.T) {
	f := newFixture(t)

	req := allocationRequest()
	req.StartTime = "25:00"

	_, err := f.svc.Allocate(context.Background(), req)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeValidation, appErr.Code)
}

func pendingBooking() *model.Booking {
	return &model.Booking{
		ID:               "665544332211009988776655",
		BusinessID:       testBusinessID,
		CustomerID:       testCustomerID,
		EmployeeID:       testEmployeeID,
		ShiftID:          testShiftID,
		Date:             testDate,
		StartTime:        "10:00",
		EndTime:          "11:00",
		TotalDurationMin: 45,
		SlotIDs:          []string{"5f1f77bcf86cd79943900000", "5f1f77bcf86cd79943900001"},
		Status:           model.BookingPending,
	}
}

func TestCancelReleasesSlots(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}

	var statusFrom, statusTo string
	f.bookings.updateStatusFn = func(ctx context.Context, id, fromStatus, toStatus string, cancelledAt *time.Time) (int64, error) {
		statusFrom, statusTo = fromStatus, toStatus
		require.NotNil(t, cancelledAt)
		return 1, nil
	}

	releasedBooking := ""
	f.slots.releaseFn = func(ctx context.Context, bookingID string) (int64, error) {
		releasedBooking = bookingID
		return 2, nil
	}

	err := f.svc.Cancel(context.Background(), testCustomerID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingPending, statusFrom)
	assert.Equal(t, model.BookingCancelled, statusTo)
	assert.Equal(t, booking.ID, releasedBooking)
}

func TestCancelAlreadyCancelled(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	booking.Status = model.BookingCancelled
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}

	err := f.svc.Cancel(context.Background(), testCustomerID, booking.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, bookingserrors.ErrAlreadyCancelled)
}

func TestCancelCompletedBooking(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	booking.Status = model.BookingCompleted
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}

	err := f.svc.Cancel(context.Background(), testCustomerID, booking.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, bookingserrors.ErrAlreadyCompleted)
}

func TestCancelByBusinessOwner(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}
	f.dir.isOwnerFn = func(ctx context.Context, principalID, businessID string) (bool, error) {
		return principalID == testOwnerID && businessID == testBusinessID, nil
	}

	err := f.svc.Cancel(context.Background(), testOwnerID, booking.ID)
	require.NoError(t, err)
}

func TestCancelByStrangerForbidden(t *testing.T) {
	f := newFixture(t)

	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return pendingBooking(), nil
	}

	err := f.svc.Cancel(context.Background(), "507f1f77bcf86cd799439055", pendingBooking().ID)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeForbidden, appErr.Code)
}

func TestConfirmPendingBooking(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}

	err := f.svc.Confirm(context.Background(), testCustomerID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingConfirmed, booking.Status)
}

func TestCompleteRequiresConfirmed(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}

	err := f.svc.Complete(context.Background(), testCustomerID, booking.ID)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)

	booking.Status = model.BookingConfirmed
	err = f.svc.Complete(context.Background(), testCustomerID, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCompleted, booking.Status)
}

func TestCompleteLeavesSlotsReserved(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	booking.Status = model.BookingConfirmed
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}
	f.slots.releaseFn = func(ctx context.Context, bookingID string) (int64, error) {
		t.Fatal("completion must not touch slots")
		return 0, nil
	}

	err := f.svc.Complete(context.Background(), testCustomerID, booking.ID)
	require.NoError(t, err)
}

func TestResizePendingOnly(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	booking.Status = model.BookingConfirmed
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}

	_, err := f.svc.Resize(context.Background(), testCustomerID, booking.ID, []string{"6612ab34cd56ef7890123456"})
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestResizeShrinksReservation(t *testing.T) {
	f := newFixture(t)

	booking := pendingBooking()
	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return booking, nil
	}
	f.catalog.getServicesFn = func(ctx context.Context, businessID string, serviceIDs []string) ([]*client.CatalogService, error) {
		return twoServices()[:1], nil // 25 min, one slot
	}

	released := false
	f.slots.releaseFn = func(ctx context.Context, bookingID string) (int64, error) {
		released = true
		return 2, nil
	}
	f.slots.findAvailableFromFn = func(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error) {
		require.True(t, released, "old slots must be freed before re-querying")
		return daySlots([2]string{"10:00", "10:30"}, [2]string{"10:30", "11:00"}), nil
	}

	updated, err := f.svc.Resize(context.Background(), testCustomerID, booking.ID, []string{"6612ab34cd56ef7890123456"})
	require.NoError(t, err)
	assert.Len(t, updated.SlotIDs, 1)
	assert.Equal(t, "10:30", updated.EndTime)
	assert.Equal(t, 25, updated.TotalDurationMin)
}

func TestGetByIDNotFound(t *testing.T) {
	f := newFixture(t)

	f.bookings.findByIDFn = func(ctx context.Context, id string) (*model.Booking, error) {
		return nil, fmt.Errorf("%w: %s", bookingserrors.ErrNotFound, id)
	}

	_, err := f.svc.GetByID(context.Background(), testCustomerID, "665544332211009988776600")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestListForBusinessOwnerOnly(t *testing.T) {
	f := newFixture(t)

	_, _, err := f.svc.ListForBusiness(context.Background(), testCustomerID, testBusinessID, model.BookingFilter{}, 20, 0)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeForbidden, appErr.Code)
}

func TestListForBusinessReturnsCount(t *testing.T) {
	f := newFixture(t)

	f.dir.isOwnerFn = func(ctx context.Context, principalID, businessID string) (bool, error) {
		return true, nil
	}
	f.bookings.findByBusinessFn = func(ctx context.Context, businessID string, filter model.BookingFilter, limit int, offset int64) ([]*model.Booking, error) {
		assert.Equal(t, model.BookingConfirmed, filter.Status)
		return []*model.Booking{pendingBooking()}, nil
	}
	f.bookings.countByBusinessFn = func(ctx context.Context, businessID string, filter model.BookingFilter) (int64, error) {
		return 7, nil
	}

	bookings, count, err := f.svc.ListForBusiness(context.Background(), testOwnerID, testBusinessID,
		model.BookingFilter{Status: model.BookingConfirmed}, 20, 0)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
	assert.Equal(t, int64(7), count)
}
