package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trimly/pkg/config"
	mongotx "trimly/pkg/db/mongo"
	"trimly/pkg/model"
)

const (
	CollectionName = "TimeSlots"
)

type TimeSlotRepository interface {
	InsertMany(ctx context.Context, slots []*model.TimeSlot) error
	FindByShiftDate(ctx context.Context, shiftID, date string) ([]*model.TimeSlot, error)
	HasReservedForShiftDate(ctx context.Context, shiftID, date string) (bool, error)
	DeleteAvailableByShiftDate(ctx context.Context, shiftID, date string) (int64, error)
	HasReservedSlots(ctx context.Context, shiftID string) (bool, error)
	DeleteByShift(ctx context.Context, shiftID string) (int64, error)
	DeleteAvailableByShift(ctx context.Context, shiftID string) (int64, error)
	Query(ctx context.Context, q model.SlotQuery) ([]*model.TimeSlot, error)
	ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error
}

type mongoTimeSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoTimeSlotRepository(cfg *config.Config) TimeSlotRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoTimeSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

func (r *mongoTimeSlotRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoTimeSlotRepository) InsertMany(ctx context.Context, slots []*model.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	docs := make([]any, 0, len(slots))
	for _, slot := range slots {
		slot.CreatedAt = now
		docs = append(docs, slot)
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		return fmt.Errorf("failed to insert time slots: %w", err)
	}

	for i, insertedID := range result.InsertedIDs {
		if oid, ok := insertedID.(primitive.ObjectID); ok && i < len(slots) {
			slots[i].ID = oid.Hex()
		}
	}
	return nil
}

func (r *mongoTimeSlotRepository) FindByShiftDate(ctx context.Context, shiftID, date string) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"shift_id": shiftID, "date": date}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoTimeSlotRepository) HasReservedForShiftDate(ctx context.Context, shiftID, date string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"shift_id":  shiftID,
		"date":      date,
		"available": false,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check reserved slots: %w", err)
	}
	return count > 0, nil
}

func (r *mongoTimeSlotRepository) DeleteAvailableByShiftDate(ctx context.Context, shiftID, date string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{
		"shift_id":  shiftID,
		"date":      date,
		"available": true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete open slots: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoTimeSlotRepository) HasReservedSlots(ctx context.Context, shiftID string) (bool, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, bson.M{
		"shift_id":  shiftID,
		"available": false,
	}, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check reserved slots: %w", err)
	}
	return count > 0, nil
}

func (r *mongoTimeSlotRepository) DeleteByShift(ctx context.Context, shiftID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{"shift_id": shiftID})
	if err != nil {
		return 0, fmt.Errorf("failed to delete shift slots: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoTimeSlotRepository) DeleteAvailableByShift(ctx context.Context, shiftID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.DeleteMany(ctx, bson.M{
		"shift_id":  shiftID,
		"available": true,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete open slots: %w", err)
	}
	return result.DeletedCount, nil
}

func (r *mongoTimeSlotRepository) Query(ctx context.Context, q model.SlotQuery) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if q.BusinessID != "" {
		filter["business_id"] = q.BusinessID
	}
	if q.EmployeeID != "" {
		filter["employee_id"] = q.EmployeeID
	}
	dateRange := bson.M{}
	if q.DateFrom != "" {
		dateRange["$gte"] = q.DateFrom
	}
	if q.DateTo != "" {
		dateRange["$lte"] = q.DateTo
	}
	if len(dateRange) > 0 {
		filter["date"] = dateRange
	}
	if q.AvailableOnly != nil {
		filter["available"] = *q.AvailableOnly
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "date", Value: 1}, {Key: "start_time", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode slots: %w", err)
	}
	return slots, nil
}

func (r *mongoTimeSlotRepository) ExecuteTransaction(ctx context.Context, fn mongotx.TransactionFunc) error {
	return r.txManager.ExecuteTransaction(ctx, fn)
}
