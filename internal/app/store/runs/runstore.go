// internal/app/store/runs/runstore.go
package runstore

import (
	"context"
	"time"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit caps ListByUnit when no limit is given.
const DefaultLimit = 50

// Store manages allocation run history records.
type Store struct {
	c *mongo.Collection
}

// New creates a new run Store.
func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("allocation_runs")}
}

// Record inserts a finished run.
func (s *Store) Record(ctx context.Context, run models.AllocationRun) error {
	if run.ID.IsZero() {
		run.ID = primitive.NewObjectID()
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	_, err := s.c.InsertOne(ctx, run)
	return err
}

// ListByUnit returns the unit's runs, most recent first.
func (s *Store) ListByUnit(ctx context.Context, unitID primitive.ObjectID, limit int64) ([]models.AllocationRun, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "finished_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(limit)

	cur, err := s.c.Find(ctx, bson.M{"unit_id": unitID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.AllocationRun
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) DeleteByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"unit_id": unitID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
