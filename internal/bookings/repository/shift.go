package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"trimly/pkg/config"
	"trimly/pkg/model"
)

const (
	shiftCollectionName = "Shifts"
)

// ShiftReadRepository is the booking service's read-only view of shifts,
// used to resolve which shift covers a requested appointment time.
type ShiftReadRepository interface {
	FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error)
}

type mongoShiftReadRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoShiftReadRepository(cfg *config.Config) ShiftReadRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoShiftReadRepository{
		cfg:        cfg,
		collection: db.Collection(shiftCollectionName),
	}
}

func (r *mongoShiftReadRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoShiftReadRepository) FindActiveByEmployee(ctx context.Context, employeeID string) ([]*model.Shift, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"employee_id": employeeID, "active": true}, opts)
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
