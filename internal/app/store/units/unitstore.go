// internal/app/store/units/unitstore.go
package unitstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound             = errors.New("unit not found")
	ErrDuplicateCode        = errors.New("a unit with this code already exists")
	ErrAllocationInProgress = errors.New("an allocation is already running for this unit")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("units")}
}

func (s *Store) Create(ctx context.Context, u models.Unit) (models.Unit, error) {
	now := time.Now().UTC()
	u.ID = primitive.NewObjectID()
	u.NameCI = text.Fold(u.Name)
	u.Allocating = false
	u.AllocationStatus = ""
	u.LastRunStatus = ""
	u.LastRunAt = nil
	u.CreatedAt = now
	u.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, u); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Unit{}, ErrDuplicateCode
		}
		return models.Unit{}, err
	}
	return u, nil
}

func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Unit, error) {
	var u models.Unit
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Unit{}, ErrNotFound
		}
		return models.Unit{}, err
	}
	return u, nil
}

// Find returns the units matching filter. When opts is nil they are
// ordered newest year first, then by name.
func (s *Store) Find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]models.Unit, error) {
	if filter == nil {
		filter = bson.M{}
	}
	if opts == nil {
		opts = options.Find().SetSort(bson.D{{Key: "year", Value: -1}, {Key: "name_ci", Value: 1}, {Key: "_id", Value: 1}})
	}
	cur, err := s.c.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Unit
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of units matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	return s.c.CountDocuments(ctx, filter)
}

// TryBeginAllocation sets the unit's allocating flag if it is clear.
// It returns ErrAllocationInProgress when the flag is already set and
// ErrNotFound when the unit does not exist.
func (s *Store) TryBeginAllocation(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id, "allocating": bson.M{"$ne": true}},
		bson.M{"$set": bson.M{"allocating": true, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return err
	}
	return ErrAllocationInProgress
}

// FinishAllocation clears the allocating flag and records status as the
// outcome of the latest run. A failed run does not overwrite a successful
// AllocationStatus, since the committed allocation is still in place.
func (s *Store) FinishAllocation(ctx context.Context, id primitive.ObjectID, status string, at time.Time) error {
	allocationStatus := interface{}(status)
	if !models.IsSuccessfulStatus(status) {
		allocationStatus = bson.M{"$cond": bson.A{
			bson.M{"$in": bson.A{
				bson.M{"$ifNull": bson.A{"$allocation_status", ""}},
				bson.A{models.StatusOptimal, models.StatusFeasible},
			}},
			"$allocation_status",
			status,
		}}
	}
	pipeline := mongo.Pipeline{{{Key: "$set", Value: bson.M{
		"allocating":        false,
		"allocation_status": allocationStatus,
		"last_run_status":   status,
		"last_run_at":       at,
		"updated_at":        at,
	}}}}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseAllocation clears the allocating flag without recording a run,
// for a run that was accepted but never started.
func (s *Store) ReleaseAllocation(ctx context.Context, id primitive.ObjectID) error {
	_, err := s.c.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"allocating": false, "updated_at": time.Now().UTC()}},
	)
	return err
}

// CountAllocating returns the number of units with a run in flight.
func (s *Store) CountAllocating(ctx context.Context) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"allocating": true})
}

// ClearStaleAllocating resets flags left set by a process that stopped
// mid-run. Call it at startup before any run is dispatched.
func (s *Store) ClearStaleAllocating(ctx context.Context) (int64, error) {
	res, err := s.c.UpdateMany(ctx,
		bson.M{"allocating": true},
		bson.M{"$set": bson.M{"allocating": false, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// Delete removes a unit by ID. Returns the number of documents deleted (0 or 1).
// Callers remove the unit's projects, students, preferences and allocation
// in the same transaction.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
