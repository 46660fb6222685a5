package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"trimly/pkg/config"
	"trimly/pkg/model"
)

const (
	lockCollectionName = "Allocation_locks"
)

// AllocationLockRepository manages the advisory lock serializing allocations
// per (employee, date, shift). A duplicate key on insert means another
// allocation holds the lock; the TTL index on expires_at reaps abandoned
// locks.
type AllocationLockRepository interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type mongoAllocationLockRepository struct {
	collection *mongo.Collection
}

func NewMongoAllocationLockRepository(cfg *config.Config) AllocationLockRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAllocationLockRepository{
		collection: db.Collection(lockCollectionName),
	}
}

// LockKey builds the canonical advisory lock key.
func LockKey(employeeID, date, shiftID string) string {
	return fmt.Sprintf("alloc:%s:%s:%s", employeeID, date, shiftID)
}

func (r *mongoAllocationLockRepository) Acquire(ctx context.Context, key string, ttl time.Duration) error {
	now := time.Now().UTC()
	lock := &model.AllocationLock{
		ID:        key,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := r.collection.InsertOne(ctx, lock)
	return err
}

func (r *mongoAllocationLockRepository) Release(ctx context.Context, key string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"_id": key})
	return err
}
