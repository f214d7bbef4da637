package allocation

import (
	"context"
	"fmt"

	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Snapshot is the read-only input of one allocation run: a unit's projects,
// students and preferences as they were when the run started.
// Nothing in this package mutates a Snapshot after it is loaded.
type Snapshot struct {
	Unit        models.Unit
	Projects    []models.Project
	Students    []models.Student
	Preferences []models.Preference
}

// Loader reads a unit's snapshot. Implementations return *NotFoundError
// when the unit does not exist and must not modify anything.
type Loader interface {
	LoadSnapshot(ctx context.Context, unitID primitive.ObjectID) (*Snapshot, error)
}

// Validate checks the data model invariants the engine relies on. It does
// not require ranks to be contiguous, and it does not enforce the unit's
// minimum preference count.
func (s *Snapshot) Validate() error {
	var problems []string

	projects := make(map[primitive.ObjectID]bool, len(s.Projects))
	for _, p := range s.Projects {
		if p.MinStudents < 0 {
			problems = append(problems, fmt.Sprintf("project %s: min_students %d is negative", p.Identifier, p.MinStudents))
		}
		if p.MaxStudents < p.MinStudents {
			problems = append(problems, fmt.Sprintf("project %s: max_students %d is less than min_students %d", p.Identifier, p.MaxStudents, p.MinStudents))
		}
		projects[p.ID] = true
	}
	students := make(map[primitive.ObjectID]string, len(s.Students))
	for _, st := range s.Students {
		students[st.ID] = st.StudentID
	}

	type rankKey struct {
		student primitive.ObjectID
		rank    int
	}
	type projectKey struct {
		student, project primitive.ObjectID
	}
	seenRank := make(map[rankKey]bool, len(s.Preferences))
	seenProject := make(map[projectKey]bool, len(s.Preferences))
	for _, pref := range s.Preferences {
		sid, ok := students[pref.StudentID]
		if !ok {
			problems = append(problems, fmt.Sprintf("preference %s references an unknown student", pref.ID.Hex()))
			continue
		}
		if !projects[pref.ProjectID] {
			problems = append(problems, fmt.Sprintf("student %s: preference references an unknown project", sid))
			continue
		}
		if pref.Rank < 1 {
			problems = append(problems, fmt.Sprintf("student %s: rank %d is not positive", sid, pref.Rank))
		}
		rk := rankKey{pref.StudentID, pref.Rank}
		if seenRank[rk] {
			problems = append(problems, fmt.Sprintf("student %s: rank %d used more than once", sid, pref.Rank))
		}
		seenRank[rk] = true
		pk := projectKey{pref.StudentID, pref.ProjectID}
		if seenProject[pk] {
			problems = append(problems, fmt.Sprintf("student %s: project ranked more than once", sid))
		}
		seenProject[pk] = true
	}

	if len(problems) > 0 {
		return &InvalidSnapshotError{Problems: problems}
	}
	return nil
}

// ranksByStudent indexes preferences as student → project → rank.
func (s *Snapshot) ranksByStudent() map[primitive.ObjectID]map[primitive.ObjectID]int {
	out := make(map[primitive.ObjectID]map[primitive.ObjectID]int, len(s.Students))
	for _, pref := range s.Preferences {
		m, ok := out[pref.StudentID]
		if !ok {
			m = make(map[primitive.ObjectID]int)
			out[pref.StudentID] = m
		}
		m[pref.ProjectID] = pref.Rank
	}
	return out
}
