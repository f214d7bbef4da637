package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures inserts test data directly, bypassing the stores.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func (f *Fixtures) insert(ctx context.Context, coll string, doc interface{}) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("failed to insert test %s: %v", coll, err)
	}
}

// CreateUnit creates a unit with the given code and name.
func (f *Fixtures) CreateUnit(ctx context.Context, code, name string) models.Unit {
	f.t.Helper()

	now := time.Now().UTC()
	u := models.Unit{
		ID:           primitive.NewObjectID(),
		Code:         code,
		Name:         name,
		NameCI:       text.Fold(name),
		Year:         "2026",
		Semester:     "1",
		ManagerEmail: "manager@test.com",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	f.insert(ctx, "units", u)
	return u
}

// CreateProject creates a project in unitID with the given bounds.
func (f *Fixtures) CreateProject(ctx context.Context, unitID primitive.ObjectID, identifier string, min, max int) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Project{
		ID:          primitive.NewObjectID(),
		UnitID:      unitID,
		Identifier:  identifier,
		Name:        "Project " + identifier,
		MinStudents: min,
		MaxStudents: max,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	f.insert(ctx, "projects", p)
	return p
}

// CreateStudent creates a student in unitID.
func (f *Fixtures) CreateStudent(ctx context.Context, unitID primitive.ObjectID, studentID, name string) models.Student {
	f.t.Helper()

	now := time.Now().UTC()
	s := models.Student{
		ID:        primitive.NewObjectID(),
		UnitID:    unitID,
		StudentID: studentID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	f.insert(ctx, "students", s)
	return s
}

// CreatePreference records that student ranked project at rank.
func (f *Fixtures) CreatePreference(ctx context.Context, student models.Student, project models.Project, rank int) models.Preference {
	f.t.Helper()

	p := models.Preference{
		ID:        primitive.NewObjectID(),
		UnitID:    student.UnitID,
		StudentID: student.ID,
		ProjectID: project.ID,
		Rank:      rank,
		CreatedAt: time.Now().UTC(),
	}
	f.insert(ctx, "preferences", p)
	return p
}
