package allocation_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	"github.com/dalemusser/projectalloc/internal/app/solver"
	"github.com/dalemusser/projectalloc/internal/app/solver/pbsolver"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// unitBuilder assembles an in-memory snapshot.
type unitBuilder struct {
	snap     allocation.Snapshot
	projects map[string]models.Project
	students map[string]models.Student
}

func newUnit() *unitBuilder {
	return &unitBuilder{
		snap: allocation.Snapshot{Unit: models.Unit{
			ID:   primitive.NewObjectID(),
			Code: "TEST101",
			Name: "Test Unit",
		}},
		projects: map[string]models.Project{},
		students: map[string]models.Student{},
	}
}

func (b *unitBuilder) project(ident string, min, max int) *unitBuilder {
	p := models.Project{
		ID:          primitive.NewObjectID(),
		UnitID:      b.snap.Unit.ID,
		Identifier:  ident,
		Name:        "Project " + ident,
		MinStudents: min,
		MaxStudents: max,
	}
	b.projects[ident] = p
	b.snap.Projects = append(b.snap.Projects, p)
	return b
}

// student adds a student ranking the given projects 1, 2, 3... in order.
func (b *unitBuilder) student(sid string, ranked ...string) *unitBuilder {
	st := models.Student{
		ID:        primitive.NewObjectID(),
		UnitID:    b.snap.Unit.ID,
		StudentID: sid,
		Name:      "Student " + sid,
	}
	b.students[sid] = st
	b.snap.Students = append(b.snap.Students, st)
	for i, ident := range ranked {
		b.rank(sid, ident, i+1)
	}
	return b
}

func (b *unitBuilder) rank(sid, ident string, rank int) *unitBuilder {
	b.snap.Preferences = append(b.snap.Preferences, models.Preference{
		ID:        primitive.NewObjectID(),
		UnitID:    b.snap.Unit.ID,
		StudentID: b.students[sid].ID,
		ProjectID: b.projects[ident].ID,
		Rank:      rank,
	})
	return b
}

func (b *unitBuilder) loader() *memLoader {
	snap := b.snap
	return &memLoader{units: map[primitive.ObjectID]*allocation.Snapshot{snap.Unit.ID: &snap}}
}

func (b *unitBuilder) unitID() primitive.ObjectID { return b.snap.Unit.ID }

// projectIdent maps an assignment back to its project identifier, "" when unplaced.
func (b *unitBuilder) projectIdent(as models.Assignment) string {
	if as.ProjectID == nil {
		return ""
	}
	for ident, p := range b.projects {
		if p.ID == *as.ProjectID {
			return ident
		}
	}
	return "?"
}

func (b *unitBuilder) placements(as []models.Assignment) map[string]string {
	out := make(map[string]string, len(as))
	for _, a := range as {
		for sid, st := range b.students {
			if st.ID == a.StudentID {
				out[sid] = b.projectIdent(a)
			}
		}
	}
	return out
}

type memLoader struct {
	units map[primitive.ObjectID]*allocation.Snapshot
	err   error
}

func (l *memLoader) LoadSnapshot(_ context.Context, unitID primitive.ObjectID) (*allocation.Snapshot, error) {
	if l.err != nil {
		return nil, l.err
	}
	s, ok := l.units[unitID]
	if !ok {
		return nil, &allocation.NotFoundError{UnitID: unitID}
	}
	cp := *s
	return &cp, nil
}

type memPersister struct {
	mu     sync.Mutex
	writes []models.Allocation
	err    error
}

func (p *memPersister) ReplaceAllocation(_ context.Context, a models.Allocation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.writes = append(p.writes, a)
	return nil
}

func (p *memPersister) last() (models.Allocation, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.writes) == 0 {
		return models.Allocation{}, false
	}
	return p.writes[len(p.writes)-1], true
}

// stubModel records the model and answers Solve with a fixed status.
type stubModel struct {
	vars        int
	constraints int
	status      solver.Status
	err         error
	solved      bool
}

func (m *stubModel) AddBinaryVar(string) solver.Var {
	m.vars++
	return solver.Var(m.vars - 1)
}

func (m *stubModel) AddConstraint(solver.Expr, solver.Relation, int) error {
	m.constraints++
	return nil
}

func (m *stubModel) SetObjective(solver.Expr, solver.Direction) error { return nil }

func (m *stubModel) Solve(context.Context) (solver.Status, error) {
	m.solved = true
	return m.status, m.err
}

func (m *stubModel) Value(solver.Var) float64 { return 0 }

func stubFactory(m *stubModel) solver.Factory {
	return func() solver.Model { return m }
}

// forbiddenFactory fails the test if the engine ever builds a model.
func forbiddenFactory(t *testing.T) solver.Factory {
	return func() solver.Model {
		t.Helper()
		t.Fatal("solver must not be invoked")
		return nil
	}
}

func realFactory() solver.Factory {
	return pbsolver.NewFactory(pbsolver.Options{})
}

func newEngine(l allocation.Loader, p allocation.Persister, f solver.Factory) *allocation.Engine {
	n := 0
	return allocation.New(l, p, f, allocation.Options{
		NewRunID: func() string {
			n++
			return fmt.Sprintf("run-%d", n)
		},
	})
}

var errBoom = errors.New("boom")
