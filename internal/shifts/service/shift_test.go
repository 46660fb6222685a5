package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shifterrors "trimly/internal/shifts/errors"
	"trimly/internal/shifts/validator"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	apperrors "trimly/pkg/errors"
	"trimly/pkg/logger"
	"trimly/pkg/model"
)

type mockShiftRepo struct {
	createFn               func(ctx context.Context, shift *model.Shift) error
	findByIDFn             func(ctx context.Context, id string) (*model.Shift, error)
	findByBusinessFn       func(ctx context.Context, businessID string, limit int, offset int64) ([]*model.Shift, error)
	findActiveByBusinessFn func(ctx context.Context, businessID string) ([]*model.Shift, error)
	findActiveByEmployeeFn func(ctx context.Context, employeeID string) ([]*model.Shift, error)
	distinctEmployeeIDsFn  func(ctx context.Context, businessID string) ([]string, error)
	updateFn               func(ctx context.Context, id string, shift *model.Shift) error
	deleteFn               func(ctx context.Context, id string) error
	countByBusinessFn      func(ctx context.Context, businessID string) (int64, error)
}

func (m *mockShiftRepo) Create(ctx context.Context, shift *model.Shift) error {
	if m.createFn != nil {
		return m.createFn(ctx, shift)
	}
	shift.ID = "507f1f77bcf86cd799439011"
	return nil
}

func (m *mockShiftRepo) FindByID(ctx context.Context, id string) (*model.Shift, error) {
	return m.findByIDFn(ctx, id)
}

func (m *mockShiftRepo) FindByBusiness(ctx context.Context, businessID string, limit int, offset int64) ([]*model.Shift, error) {
	return m.findByBusinessFn(ctx, businessID, limit, offset)
}

func (m *mockShiftRepo) FindActiveByBusiness(ctx context.Context, businessID string) ([]*model.Shift, error) {
	return m.findActiveByBusinessFn(ctx, businessID)
}

func (m *mockShiftRepo) FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error) {
	if m.findActiveByEmployeeFn != nil {
		return m.findActiveByEmployeeFn(ctx, employeeID)
	}
	return nil, nil
}

func (m *mockShiftRepo) DistinctEmployeeIDs(ctx context.Context, businessID string) ([]string, error) {
	return m.distinctEmployeeIDsFn(ctx, businessID)
}

func (m *mockShiftRepo) Update(ctx context.Context, id string, shift *model.Shift) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, id, shift)
	}
	return nil
}

func (m *mockShiftRepo) Delete(ctx context.Context, id string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

func (m *mockShiftRepo) CountByBusiness(ctx context.Context, businessID string) (int64, error) {
	return m.countByBusinessFn(ctx, businessID)
}

func (m *mockShiftRepo) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return fn(ctx)
}

type mockSlotStore struct {
	hasReservedFn        func(ctx context.Context, shiftID string) (bool, error)
	deleteByShiftFn      func(ctx context.Context, shiftID string) (int64, error)
	deleteAvailByShiftFn func(ctx context.Context, shiftID string) (int64, error)
}

func (m *mockSlotStore) HasReservedSlots(ctx context.Context, shiftID string) (bool, error) {
	if m.hasReservedFn != nil {
		return m.hasReservedFn(ctx, shiftID)
	}
	return false, nil
}

func (m *mockSlotStore) DeleteByShift(ctx context.Context, shiftID string) (int64, error) {
	if m.deleteByShiftFn != nil {
		return m.deleteByShiftFn(ctx, shiftID)
	}
	return 0, nil
}

func (m *mockSlotStore) DeleteAvailableByShift(ctx context.Context, shiftID string) (int64, error) {
	if m.deleteAvailByShiftFn != nil {
		return m.deleteAvailByShiftFn(ctx, shiftID)
	}
	return 0, nil
}

type mockOwnership struct {
	isOwnerFn func(ctx context.Context, principalID, businessID string) (bool, error)
}

func (m *mockOwnership) IsOwner(ctx context.Context, principalID, businessID string) (bool, error) {
	if m.isOwnerFn != nil {
		return m.isOwnerFn(ctx, principalID, businessID)
	}
	return true, nil
}

func intPtr(n int) *int       { return &n }
func strPtr(s string) *string { return &s }

const (
	ownerID    = "507f1f77bcf86cd799439004"
	businessID = "507f1f77bcf86cd799439001"
	employeeID = "507f1f77bcf86cd799439002"
)

func newShiftFixture() (*mockShiftRepo, *mockSlotStore, *mockOwnership, ShiftService) {
	repo := &mockShiftRepo{}
	slots := &mockSlotStore{}
	dir := &mockOwnership{}
	cfg := &config.Config{SlotDurationMin: 30, Log: logger.Discard()}
	svc := NewShiftService(repo, slots, dir, validator.NewShiftValidator(logger.Discard()), cfg)
	return repo, slots, dir, svc
}

func recurringShift(day int, start, end string) *model.Shift {
	return &model.Shift{
		BusinessID: businessID,
		EmployeeID: employeeID,
		ShiftType:  model.ShiftTypeRecurring,
		DayOfWeek:  intPtr(day),
		StartTime:  start,
		EndTime:    end,
		Active:     true,
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	repo, _, _, svc := newShiftFixture()

	existing := recurringShift(0, "09:00", "17:00")
	existing.ID = "507f1f77bcf86cd799439020"
	repo.findActiveByEmployeeFn = func(ctx context.Context, id string) ([]*model.Shift, error) {
		return []*model.Shift{existing}, nil
	}

	err := svc.Create(context.Background(), ownerID, recurringShift(0, "16:00", "20:00"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestCreateAllowsDifferentWeekday(t *testing.T) {
	repo, _, _, svc := newShiftFixture()

	existing := recurringShift(0, "09:00", "17:00")
	existing.ID = "507f1f77bcf86cd799439020"
	repo.findActiveByEmployeeFn = func(ctx context.Context, id string) ([]*model.Shift, error) {
		return []*model.Shift{existing}, nil
	}

	err := svc.Create(context.Background(), ownerID, recurringShift(1, "09:00", "17:00"))
	require.NoError(t, err)
}

func TestCreateRecurringCoversOneTime(t *testing.T) {
	repo, _, _, svc := newShiftFixture()

	// 2026-03-02 is a Monday, weekday 0.
	existing := recurringShift(0, "09:00", "17:00")
	existing.ID = "507f1f77bcf86cd799439020"
	repo.findActiveByEmployeeFn = func(ctx context.Context, id string) ([]*model.Shift, error) {
		return []*model.Shift{existing}, nil
	}

	oneTime := &model.Shift{
		BusinessID:   businessID,
		EmployeeID:   employeeID,
		ShiftType:    model.ShiftTypeOneTime,
		SpecificDate: strPtr("2026-03-02"),
		StartTime:    "12:00",
		EndTime:      "14:00",
	}

	err := svc.Create(context.Background(), ownerID, oneTime)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestCreateRequiresOwner(t *testing.T) {
	_, _, dir, svc := newShiftFixture()
	dir.isOwnerFn = func(ctx context.Context, principalID, bID string) (bool, error) {
		return false, nil
	}

	err := svc.Create(context.Background(), "507f1f77bcf86cd799439055", recurringShift(0, "09:00", "17:00"))
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeForbidden, appErr.Code)
}

func TestDeleteRefusesBookedShift(t *testing.T) {
	repo, slots, _, svc := newShiftFixture()

	shift := recurringShift(0, "09:00", "17:00")
	shift.ID = "507f1f77bcf86cd799439011"
	repo.findByIDFn = func(ctx context.Context, id string) (*model.Shift, error) {
		return shift, nil
	}
	slots.hasReservedFn = func(ctx context.Context, shiftID string) (bool, error) {
		return true, nil
	}

	err := svc.Delete(context.Background(), ownerID, shift.ID)
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
}

func TestDeleteRemovesSlots(t *testing.T) {
	repo, slots, _, svc := newShiftFixture()

	shift := recurringShift(0, "09:00", "17:00")
	shift.ID = "507f1f77bcf86cd799439011"
	repo.findByIDFn = func(ctx context.Context, id string) (*model.Shift, error) {
		return shift, nil
	}

	deletedShift := ""
	slots.deleteByShiftFn = func(ctx context.Context, shiftID string) (int64, error) {
		deletedShift = shiftID
		return 16, nil
	}

	err := svc.Delete(context.Background(), ownerID, shift.ID)
	require.NoError(t, err)
	assert.Equal(t, shift.ID, deletedShift)
}

func TestUpdateWindowChangeDropsOpenSlots(t *testing.T) {
	repo, slots, _, svc := newShiftFixture()

	shift := recurringShift(0, "09:00", "17:00")
	shift.ID = "507f1f77bcf86cd799439011"
	repo.findByIDFn = func(ctx context.Context, id string) (*model.Shift, error) {
		return shift, nil
	}

	dropped := false
	slots.deleteAvailByShiftFn = func(ctx context.Context, shiftID string) (int64, error) {
		dropped = true
		return 10, nil
	}

	err := svc.Update(context.Background(), ownerID, shift.ID, &model.ShiftUpdate{EndTime: "18:00"})
	require.NoError(t, err)
	assert.True(t, dropped)
}

func TestUpdateActiveToggleKeepsSlots(t *testing.T) {
	repo, slots, _, svc := newShiftFixture()

	shift := recurringShift(0, "09:00", "17:00")
	shift.ID = "507f1f77bcf86cd799439011"
	repo.findByIDFn = func(ctx context.Context, id string) (*model.Shift, error) {
		return shift, nil
	}
	slots.deleteAvailByShiftFn = func(ctx context.Context, shiftID string) (int64, error) {
		t.Fatal("deactivation must not drop slots")
		return 0, nil
	}

	inactive := false
	err := svc.Update(context.Background(), ownerID, shift.ID, &model.ShiftUpdate{Active: &inactive})
	require.NoError(t, err)
}

func TestGetByIDNotFound(t *testing.T) {
	repo, _, _, svc := newShiftFixture()
	repo.findByIDFn = func(ctx context.Context, id string) (*model.Shift, error) {
		return nil, fmt.Errorf("%w: %s", shifterrors.ErrNotFound, id)
	}

	_, err := svc.GetByID(context.Background(), "507f1f77bcf86cd799439099")
	require.Error(t, err)

	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
}

func TestEmployeeSummaryComputesSlotCounts(t *testing.T) {
	repo, _, _, svc := newShiftFixture()

	shift := recurringShift(0, "09:00", "17:00")
	shift.ID = "507f1f77bcf86cd799439011"
	repo.findActiveByEmployeeFn = func(ctx context.Context, id string) ([]*model.Shift, error) {
		return []*model.Shift{shift}, nil
	}

	summaries, err := svc.EmployeeSummary(context.Background(), employeeID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, 16, summaries[0].SlotsPerDay)
	assert.Equal(t, 480, summaries[0].WindowMinutes)
}
