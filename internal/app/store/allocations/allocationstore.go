// internal/app/store/allocations/allocationstore.go
package allocationstore

import (
	"context"
	"errors"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("unit has no committed allocation")

// Store keeps one allocation document per unit, keyed by the unit id.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("allocations")}
}

// ReplaceAllocation commits a as the unit's allocation, replacing any
// previous one. The single-document replace is atomic.
func (s *Store) ReplaceAllocation(ctx context.Context, a models.Allocation) error {
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": a.UnitID}, a, options.Replace().SetUpsert(true))
	return err
}

func (s *Store) GetByUnit(ctx context.Context, unitID primitive.ObjectID) (models.Allocation, error) {
	var a models.Allocation
	if err := s.c.FindOne(ctx, bson.M{"_id": unitID}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Allocation{}, ErrNotFound
		}
		return models.Allocation{}, err
	}
	return a, nil
}

func (s *Store) DeleteByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": unitID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
