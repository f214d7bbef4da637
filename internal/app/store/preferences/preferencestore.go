// internal/app/store/preferences/preferencestore.go
package preferencestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDuplicatePreference = errors.New("a student ranked the same project or used the same rank twice")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("preferences")}
}

// ListByUnit returns a unit's preferences ordered by student then rank.
func (s *Store) ListByUnit(ctx context.Context, unitID primitive.ObjectID) ([]models.Preference, error) {
	opts := options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}, {Key: "rank", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"unit_id": unitID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Preference
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"unit_id": unitID})
}

// ReplaceForUnit stores prefs as the unit's preferences. With override every
// existing preference of the unit is removed first; otherwise only those of
// the students that appear in prefs are. Run it inside txn.Run.
func (s *Store) ReplaceForUnit(ctx context.Context, unitID primitive.ObjectID, prefs []models.Preference, override bool) (int, error) {
	filter := bson.M{"unit_id": unitID}
	if !override {
		seen := make(map[primitive.ObjectID]bool)
		var students []primitive.ObjectID
		for _, p := range prefs {
			if !seen[p.StudentID] {
				seen[p.StudentID] = true
				students = append(students, p.StudentID)
			}
		}
		if len(students) == 0 {
			return 0, nil
		}
		filter["student_id"] = bson.M{"$in": students}
	}
	if _, err := s.c.DeleteMany(ctx, filter); err != nil {
		return 0, err
	}
	if len(prefs) == 0 {
		return 0, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, 0, len(prefs))
	for _, p := range prefs {
		p.ID = primitive.NewObjectID()
		p.UnitID = unitID
		p.CreatedAt = now
		docs = append(docs, p)
	}
	if _, err := s.c.InsertMany(ctx, docs); err != nil {
		if wafflemongo.IsDup(err) {
			return 0, ErrDuplicatePreference
		}
		return 0, err
	}
	return len(docs), nil
}

func (s *Store) DeleteByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	return s.deleteMany(ctx, bson.M{"unit_id": unitID})
}

// DeleteByStudents removes the preferences of the given students.
func (s *Store) DeleteByStudents(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.deleteMany(ctx, bson.M{"student_id": bson.M{"$in": ids}})
}

// DeleteByProjects removes every preference for the given projects.
func (s *Store) DeleteByProjects(ctx context.Context, ids []primitive.ObjectID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.deleteMany(ctx, bson.M{"project_id": bson.M{"$in": ids}})
}

func (s *Store) deleteMany(ctx context.Context, filter bson.M) (int64, error) {
	res, err := s.c.DeleteMany(ctx, filter)
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
