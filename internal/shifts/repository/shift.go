package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	shifterrors "trimly/internal/shifts/errors"
	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	"trimly/pkg/model"
)

const (
	CollectionName = "Shifts"
)

type ShiftRepository interface {
	Create(ctx context.Context, shift *model.Shift) error
	FindByID(ctx context.Context, id string) (*model.Shift, error)
	FindByBusiness(ctx context.Context, businessID string, limit int, offset int64) ([]*model.Shift, error)
	FindActiveByBusiness(ctx context.Context, businessID string) ([]*model.Shift, error)
	FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error)
	DistinctEmployeeIDs(ctx context.Context, businessID string) ([]string, error)
	Update(ctx context.Context, id string, shift *model.Shift) error
	Delete(ctx context.Context, id string) error
	CountByBusiness(ctx context.Context, businessID string) (int64, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoShiftRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoShiftRepository(cfg *config.Config) ShiftRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoShiftRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout wraps the context with a timeout unless already inside a
// transaction, where wrapping the SessionContext would break its semantics.
func (r *mongoShiftRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoShiftRepository) Create(ctx context.Context, shift *model.Shift) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	shift.CreatedAt = now
	shift.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, shift)
	if err != nil {
		return fmt.Errorf("failed to create shift: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		shift.ID = oid.Hex()
	}
	return nil
}

func (r *mongoShiftRepository) FindByID(ctx context.Context, id string) (*model.Shift, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", shifterrors.ErrInvalidID, id)
	}

	var shift model.Shift
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&shift)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", shifterrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find shift: %w", err)
	}

	return &shift, nil
}

func (r *mongoShiftRepository) FindByBusiness(ctx context.Context, businessID string, limit int, offset int64) ([]*model.Shift, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(limit)).
		SetSkip(offset).
		SetSort(bson.D{{Key: "employee_id", Value: 1}, {Key: "day_of_week", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{"business_id": businessID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer cursor.Close(ctx)

	var shifts []*model.Shift
	if err = cursor.All(ctx, &shifts); err != nil {
		return nil, fmt.Errorf("failed to decode shifts: %w", err)
	}
	return shifts, nil
}

func (r *mongoShiftRepository) FindActiveByBusiness(ctx context.Context, businessID string) ([]*model.Shift, error) {
	return r.findActive(ctx, bson.M{"business_id": businessID, "active": true})
}

func (r *mongoShiftRepository) FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error) {
	return r.findActive(ctx, bson.M{"employee_id": employeeID, "active": true})
}

func (r *mongoShiftRepository) findActive(ctx context.Context, filter bson.M) ([]*model.Shift, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetSort(bson.D{{Key: "employee_id", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query active shifts: %w", err)
	}
	defer cursor.Close(ctx)

	var shifts []*model.Shift
	if err = cursor.All(ctx, &shifts); err != nil {
		return nil, fmt.Errorf("failed to decode active shifts: %w", err)
	}
	return shifts, nil
}

func (r *mongoShiftRepository) DistinctEmployeeIDs(ctx context.Context, businessID string) ([]string, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	values, err := r.collection.Distinct(ctx, "employee_id", bson.M{
		"business_id": businessID,
		"active":      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list employee IDs: %w", err)
	}

	ids := make([]string, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *mongoShiftRepository) Update(ctx context.Context, id string, shift *model.Shift) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", shifterrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"shift_type":    shift.ShiftType,
			"day_of_week":   shift.DayOfWeek,
			"specific_date": shift.SpecificDate,
			"start_time":    shift.StartTime,
			"end_time":      shift.EndTime,
			"active":        shift.Active,
			"updated_at":    time.Now().UTC().Truncate(time.Millisecond),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return fmt.Errorf("failed to update shift: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", shifterrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoShiftRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", shifterrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return fmt.Errorf("failed to delete shift: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", shifterrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoShiftRepository) CountByBusiness(ctx context.Context, businessID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{"business_id": businessID})
	if err != nil {
		return 0, fmt.Errorf("failed to count shifts: %w", err)
	}
	return count, nil
}

func (r *mongoShiftRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
