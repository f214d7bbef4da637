package allocation

import (
	"fmt"

	"github.com/dalemusser/projectalloc/internal/app/solver"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IndifferentCost is the uniform cost of every project for a student who
// ranked nothing: one more than the worst rank any student could give when
// ranking every project. It is finite so indifferent students can be placed
// anywhere, and uniform so where they go does not change the objective.
func IndifferentCost(projects int) int {
	return projects + 1
}

// CostOf returns the cost of placing a student in a project and whether the
// pairing is allowed at all.
//
//   - ranked project: cost is the rank
//   - student ranked nothing: IndifferentCost for every project
//   - student ranked other projects only: undefined (ok == false)
func CostOf(ranks map[primitive.ObjectID]int, projectID primitive.ObjectID, projects int) (cost int, ok bool) {
	if len(ranks) == 0 {
		return IndifferentCost(projects), true
	}
	r, ok := ranks[projectID]
	return r, ok
}

// Problem is a built optimisation model together with the variable layout
// needed to read a solution back.
type Problem struct {
	Snapshot *Snapshot

	// X[s][p] is 1 when student s is placed in project p.
	X [][]solver.Var
	// Y[p] is 1 when project p receives any student.
	Y []solver.Var
	// Cost[s][p] is the objective weight of X[s][p]; 0 when undefined.
	Cost [][]int
}

// Build adds the variables, constraints and objective for snap to m.
//
// Per student s:
//
//	C1  Σp x[s,p] = 1
//	C2  Σp cost(s,p)·x[s,p] ≥ 1   over the pairs where cost is defined
//
// Per project p, three separate constraints:
//
//	C3a Σs x[s,p] ≤ max(p)
//	C3b Σs x[s,p] ≤ S·y[p]
//	C3c Σs x[s,p] ≥ min(p)·y[p]
//
// Objective: minimise Σ cost(s,p)·x[s,p] over defined pairs. y[p] is left
// free so a project nobody should join can stay empty.
func Build(snap *Snapshot, m solver.Model) (*Problem, error) {
	nS, nP := len(snap.Students), len(snap.Projects)
	ranks := snap.ranksByStudent()

	pb := &Problem{
		Snapshot: snap,
		X:        make([][]solver.Var, nS),
		Y:        make([]solver.Var, nP),
		Cost:     make([][]int, nS),
	}

	for j, p := range snap.Projects {
		pb.Y[j] = m.AddBinaryVar(fmt.Sprintf("y[%s]", p.Identifier))
	}
	for i, st := range snap.Students {
		pb.X[i] = make([]solver.Var, nP)
		pb.Cost[i] = make([]int, nP)
		for j, p := range snap.Projects {
			pb.X[i][j] = m.AddBinaryVar(fmt.Sprintf("x[%s,%s]", st.StudentID, p.Identifier))
			if c, ok := CostOf(ranks[st.ID], p.ID, nP); ok {
				pb.Cost[i][j] = c
			}
		}
	}

	var objective solver.Expr
	for i, st := range snap.Students {
		var assigned, ranked solver.Expr
		for j := range snap.Projects {
			assigned = assigned.Add(pb.X[i][j], 1)
			if c := pb.Cost[i][j]; c > 0 {
				ranked = ranked.Add(pb.X[i][j], c)
				objective = objective.Add(pb.X[i][j], c)
			}
		}
		if err := m.AddConstraint(assigned, solver.Equal, 1); err != nil {
			return nil, fmt.Errorf("student %s: total assignment: %w", st.StudentID, err)
		}
		if err := m.AddConstraint(ranked, solver.GreaterEq, 1); err != nil {
			return nil, fmt.Errorf("student %s: preference restriction: %w", st.StudentID, err)
		}
	}

	for j, p := range snap.Projects {
		var members solver.Expr
		for i := range snap.Students {
			members = members.Add(pb.X[i][j], 1)
		}
		if err := m.AddConstraint(members, solver.LessEq, p.MaxStudents); err != nil {
			return nil, fmt.Errorf("project %s: ceiling: %w", p.Identifier, err)
		}
		gate := append(solver.Expr{}, members...).Add(pb.Y[j], -nS)
		if err := m.AddConstraint(gate, solver.LessEq, 0); err != nil {
			return nil, fmt.Errorf("project %s: activation: %w", p.Identifier, err)
		}
		floor := append(solver.Expr{}, members...).Add(pb.Y[j], -p.MinStudents)
		if err := m.AddConstraint(floor, solver.GreaterEq, 0); err != nil {
			return nil, fmt.Errorf("project %s: floor: %w", p.Identifier, err)
		}
	}

	if err := m.SetObjective(objective, solver.Minimize); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	return pb, nil
}
