// internal/app/store/projects/projectstore.go
package projectstore

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

var ErrDuplicateIdentifier = errors.New("a project with this identifier already exists in the unit")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Project{}, ErrDuplicateIdentifier
		}
		return models.Project{}, err
	}
	return p, nil
}

// ListByUnit returns a unit's projects ordered by identifier.
func (s *Store) ListByUnit(ctx context.Context, unitID primitive.ObjectID) ([]models.Project, error) {
	opts := options.Find().SetSort(bson.D{{Key: "identifier", Value: 1}})
	cur, err := s.c.Find(ctx, bson.M{"unit_id": unitID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CountByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	return s.c.CountDocuments(ctx, bson.M{"unit_id": unitID})
}

// DeleteByUnit removes all projects of a unit.
func (s *Store) DeleteByUnit(ctx context.Context, unitID primitive.ObjectID) (int64, error) {
	res, err := s.c.DeleteMany(ctx, bson.M{"unit_id": unitID})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}

// Input is one imported project row.
type Input struct {
	Identifier  string
	Name        string
	Description string
	MinStudents int
	MaxStudents int
}

// Update pairs an existing project with its new values.
type Update struct {
	ID    primitive.ObjectID
	Input Input
}

// Plan is the set of writes that brings a unit's projects in line with an
// imported file.
type Plan struct {
	Create    []Input
	Update    []Update
	Delete    []models.Project
	Unchanged int
}

// DeletedIDs returns the ids of the projects the plan removes.
func (p Plan) DeletedIDs() []primitive.ObjectID {
	ids := make([]primitive.ObjectID, 0, len(p.Delete))
	for _, d := range p.Delete {
		ids = append(ids, d.ID)
	}
	return ids
}

// Diff matches rows to existing projects by identifier. Projects missing
// from rows are deleted only when override is set. When rows repeat an
// identifier the last one wins.
func Diff(existing []models.Project, rows []Input, override bool) Plan {
	byIdent := make(map[string]models.Project, len(existing))
	for _, p := range existing {
		byIdent[p.Identifier] = p
	}
	latest := make(map[string]Input, len(rows))
	var order []string
	for _, r := range rows {
		if _, seen := latest[r.Identifier]; !seen {
			order = append(order, r.Identifier)
		}
		latest[r.Identifier] = r
	}

	var plan Plan
	for _, ident := range order {
		r := latest[ident]
		cur, ok := byIdent[ident]
		switch {
		case !ok:
			plan.Create = append(plan.Create, r)
		case cur.Name != r.Name || cur.Description != r.Description ||
			cur.MinStudents != r.MinStudents || cur.MaxStudents != r.MaxStudents:
			plan.Update = append(plan.Update, Update{ID: cur.ID, Input: r})
		default:
			plan.Unchanged++
		}
	}
	if override {
		for _, p := range existing {
			if _, ok := latest[p.Identifier]; !ok {
				plan.Delete = append(plan.Delete, p)
			}
		}
		sort.Slice(plan.Delete, func(i, j int) bool { return plan.Delete[i].Identifier < plan.Delete[j].Identifier })
	}
	return plan
}

// Apply executes plan against unitID. Run it inside txn.Run together with
// the matching preference cleanup.
func (s *Store) Apply(ctx context.Context, unitID primitive.ObjectID, plan Plan) error {
	now := time.Now().UTC()
	if len(plan.Delete) > 0 {
		if _, err := s.c.DeleteMany(ctx, bson.M{"unit_id": unitID, "_id": bson.M{"$in": plan.DeletedIDs()}}); err != nil {
			return err
		}
	}
	for _, u := range plan.Update {
		_, err := s.c.UpdateOne(ctx, bson.M{"_id": u.ID, "unit_id": unitID}, bson.M{"$set": bson.M{
			"name":         u.Input.Name,
			"description":  u.Input.Description,
			"min_students": u.Input.MinStudents,
			"max_students": u.Input.MaxStudents,
			"updated_at":   now,
		}})
		if err != nil {
			return err
		}
	}
	if len(plan.Create) > 0 {
		docs := make([]interface{}, 0, len(plan.Create))
		for _, r := range plan.Create {
			docs = append(docs, models.Project{
				ID:          primitive.NewObjectID(),
				UnitID:      unitID,
				Identifier:  r.Identifier,
				Name:        r.Name,
				Description: r.Description,
				MinStudents: r.MinStudents,
				MaxStudents: r.MaxStudents,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
		if _, err := s.c.InsertMany(ctx, docs); err != nil {
			if wafflemongo.IsDup(err) {
				return ErrDuplicateIdentifier
			}
			return err
		}
	}
	return nil
}

// Reconcile lists the unit's projects, diffs them against rows and applies
// the result.
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
