package allocation

import (
	"fmt"

	"github.com/dalemusser/projectalloc/internal/app/solver"
	"github.com/dalemusser/projectalloc/internal/domain/models"
)

// Extract reads the placement of every student from a solved model.
//
// A student with no x[s,p] above 0.5 gets an Assignment without a project.
// More than one is a broken solution and fails the whole extraction.
// The returned objective is the total cost actually received.
func Extract(pb *Problem, m solver.Model) ([]models.Assignment, int, error) {
	snap := pb.Snapshot
	ranks := snap.ranksByStudent()
	out := make([]models.Assignment, 0, len(snap.Students))
	objective := 0

	for i, st := range snap.Students {
		as := models.Assignment{StudentID: st.ID}
		chosen := -1
		for j := range snap.Projects {
			if m.Value(pb.X[i][j]) <= 0.5 {
				continue
			}
			if chosen >= 0 {
				return nil, 0, fmt.Errorf("student %s placed in %s and %s: %w",
					st.StudentID, snap.Projects[chosen].Identifier, snap.Projects[j].Identifier, ErrNoSolution)
			}
			chosen = j
		}
		if chosen >= 0 {
			p := snap.Projects[chosen]
			pid := p.ID
			as.ProjectID = &pid
			if r, ok := ranks[st.ID][p.ID]; ok {
				rank := r
				as.Rank = &rank
			}
			objective += pb.Cost[i][chosen]
		}
		out = append(out, as)
	}
	return out, objective, nil
}
