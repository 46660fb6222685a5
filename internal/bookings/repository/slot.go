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
	"trimly/pkg/model"
)

const (
	slotCollectionName = "TimeSlots"
)

// SlotReservationRepository is the booking side's view of the slot
// collection: run lookup and the conditional flips that enforce
// single-winner reservation.
type SlotReservationRepository interface {
	FindAvailableFrom(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error)
	FindByBooking(ctx context.Context, bookingID string) ([]*model.TimeSlot, error)
	Reserve(ctx context.Context, slotIDs []string, bookingID string) (int64, error)
	Release(ctx context.Context, bookingID string) (int64, error)
}

type mongoSlotReservationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotReservationRepository(cfg *config.Config) SlotReservationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotReservationRepository{
		cfg:        cfg,
		collection: db.Collection(slotCollectionName),
	}
}

func (r *mongoSlotReservationRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

// FindAvailableFrom returns available slots of the shift/date whose start is
// at or after startTime, ascending, capped at limit. The caller checks that
// the first slot starts exactly at startTime and that the chain is
// contiguous.
func (r *mongoSlotReservationRepository) FindAvailableFrom(ctx context.Context, shiftID, date, startTime string, limit int) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"shift_id":   shiftID,
		"date":       date,
		"available":  true,
		"start_time": bson.M{"$gte": startTime},
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "start_time", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query available slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode available slots: %w", err)
	}
	return slots, nil
}

func (r *mongoSlotReservationRepository) FindByBooking(ctx context.Context, bookingID string) ([]*model.TimeSlot, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"booking_id": bookingID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query booking slots: %w", err)
	}
	defer cursor.Close(ctx)

	var slots []*model.TimeSlot
	if err = cursor.All(ctx, &slots); err != nil {
		return nil, fmt.Errorf("failed to decode booking slots: %w", err)
	}
	return slots, nil
}

// Reserve conditionally flips the given slots to unavailable. The modified
// count tells the caller whether it won all slots; anything short of
// len(slotIDs) means a concurrent allocation got there first and the
// surrounding transaction must abort.
func (r *mongoSlotReservationRepository) Reserve(ctx context.Context, slotIDs []string, bookingID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx,
		bson.M{
			"_id":       bson.M{"$in": slotObjectIDs(slotIDs)},
			"available": true,
		},
		bson.M{"$set": bson.M{
			"available":  false,
			"booking_id": bookingID,
		}},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve slots: %w", err)
	}
	return result.ModifiedCount, nil
}

// Release frees every slot held by the booking.
func (r *mongoSlotReservationRepository) Release(ctx context.Context, bookingID string) (int64, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.UpdateMany(ctx,
		bson.M{"booking_id": bookingID},
		bson.M{
			"$set":   bson.M{"available": true},
			"$unset": bson.M{"booking_id": ""},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("failed to release slots: %w", err)
	}
	return result.ModifiedCount, nil
}

func slotObjectIDs(ids []string) []any {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		if oid, err := primitive.ObjectIDFromHex(id); err == nil {
			out = append(out, oid)
		}
	}
	return out
}
