// internal/app/store/students/studentstore.go
package studentstore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrDuplicateStudentID = errors.New("a student with this id already exists in the unit")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("students")}
}

func (s *Store) Create(ctx context.Context, st models.Student) (models.Student, error) {
	now := time.Now().UTC()
	st.ID = primitive.NewObjectID()
	st.CreatedAt = now
	st.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, st); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Student{}, ErrDuplicateStudentID
		}
		return models.Student{}, err
	}
	return st, nil
}

// ListByUnit returns a unit's students ordered by student id.
func (s *Store) ListByUnit(ctx context.Context, unitID primitive.ObjectID) ([]models.Student, error) {
	opts := options.Find().SetSort(bson.D{{Key: "student_id", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"unit_id": unitID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Student
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"unit_id": unitID})
}

func (s *Store) DeleteByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"unit_id": unitID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Input is one imported student row.
type Input struct {
	StudentID string
	Name      string
}

type Update struct {
	ID    primitive.ObjectID
	Input Input
}

// Plan is the set of writes that brings a unit's students in line with an
// imported file.
type Plan struct {
	Create    []Input
	Update    []Update
	Delete    []models.Student
	Unchanged int
}

func (p Plan) DeletedIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(p.Delete))
	for _, d := range p.Delete {
		ids = append(ids, d.ID)
	}
	return ids
}

// Diff matches rows to existing students by student id. A row with an
// empty name keeps the stored name. Students missing from rows are deleted
// only when override is set.
func Diff(existing []models.Student, rows []Input, override bool) Plan {
	byID := make(map[string]models.Student, len(existing))
	for _, st := range existing {
		byID[st.StudentID] = st
	}
	latest := make(map[string]Input, len(rows))
	var order []string
	for _, r := range rows {
		if _, seen := latest[r.StudentID]; !seen {
			order = append(order, r.StudentID)
		}
		latest[r.StudentID] = r
	}

	var plan Plan
	for _, sid := range order {
		r := latest[sid]
		cur, ok := byID[sid]
		switch {
		case !ok:
			plan.Create = append(plan.Create, r)
		case r.Name != "" && r.Name != cur.Name:
			plan.Update = append(plan.Update, Update{ID: cur.ID, Input: r})
		default:
			plan.Unchanged++
		}
	}
	if override {
		for _, st := range existing {
			if _, ok := latest[st.StudentID]; !ok {
				plan.Delete = append(plan.Delete, st)
			}
		}
		sort.Slice(plan.Delete, func(i, j int) bool { return plan.Delete[i].StudentID < plan.Delete[j].StudentID })
	}
	return plan
}

// Apply executes plan against unitID.
func (s *Store) Apply(ctx context.Context, unitID primitive.ObjectID, plan Plan) error {
	now := time.Now().UTC()
	if len(plan.Delete) > 0 {
		if _, err := s.c.DeleteMany(ctx, bson.M{"unit_id": unitID, "_id": bson.M{"$in": plan.DeletedIDs()}}); err != nil {
			return err
		}
	}
	for _, u := range plan.Update {
		_, err := s.c.UpdateOne(ctx, bson.M{"_id": u.ID, "unit_id": unitID}, bson.M{"$set": bson.M{
			"name":       u.Input.Name,
			"updated_at": now,
		}})
		if err != nil {
			return err
		}
	}
	if len(plan.Create) > 0 {
		docs := make([]interface{}, 0, len(plan.Create))
		for _, r := range plan.Create {
			docs = append(docs, models.Student{
				ID:        primitive.NewObjectID(),
				UnitID:    unitID,
				StudentID: r.StudentID,
				Name:      r.Name,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		if _, err := s.c.InsertMany(ctx, docs); err != nil {
			if wafflemongo.IsDup(err) {
				return ErrDuplicateStudentID
			}
			return err
		}
	}
	return nil
}

func (s *Store) Reconcile(ctx context.Context, unitID primitive.ObjectID, rows []Input, override bool) (Plan, error) {
	existing, err := s.ListByUnit(ctx, unitID)
	if err != nil {
		return Plan{}, err
	}
	plan := Diff(existing, rows, override)
	if err := s.Apply(ctx, unitID, plan); err != nil {
		return Plan{}, err
	}
	return plan, nil
}
