// internal/domain/models/allocation.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Allocation statuses recorded on a unit and on the committed allocation.
// The solver statuses mirror the terminal states of the optimiser;
// StatusCapacityInfeasible is the pre-check rejection.
const (
	StatusOptimal            = "optimal"
	StatusFeasible           = "feasible"
	StatusInfeasible         = "infeasible"
	StatusUnbounded          = "unbounded"
	StatusError              = "error"
	StatusCapacityInfeasible = "capacity_infeasible"
)

var statusDescriptions = map[string]string{
	StatusOptimal:            "Successful (Optimal)",
	StatusFeasible:           "Successful (Feasible)",
	StatusInfeasible:         "Failed (Proven Infeasible)",
	StatusUnbounded:          "Failed (Proven Unbounded)",
	StatusError:              "Failed (Solver Error)",
	StatusCapacityInfeasible: "Failed (Project Capacity)",
}

// DescribeStatus returns a human-readable label for an allocation status.
func DescribeStatus(status string) string {
	if d, ok := statusDescriptions[status]; ok {
		return d
	}
	return "Not Allocated"
}

// IsSuccessfulStatus reports whether status denotes a committed allocation.
func IsSuccessfulStatus(status string) bool {
	return status == StatusOptimal || status == StatusFeasible
}

// Assignment places one student. ProjectID is nil when the student could not
// be placed; Rank is nil when the student had not ranked the project.
type Assignment struct {
	StudentID primitive.ObjectID  `bson:"student_id" json:"student_id"`
	ProjectID *primitive.ObjectID `bson:"project_id,omitempty" json:"project_id,omitempty"`
	Rank      *int                `bson:"rank,omitempty" json:"rank,omitempty"`
}

// Allocation is the committed Assignment set of a unit. There is exactly one
// document per unit (_id is the unit id) and it is replaced wholesale by each
// successful run, so readers never see a mix of old and new rows.
type Allocation struct {
	UnitID      primitive.ObjectID `bson:"_id" json:"unit_id"`
	RunID       string             `bson:"run_id" json:"run_id"`
	Status      string             `bson:"status" json:"status"`
	Objective   int                `bson:"objective" json:"objective"`
	Assignments []Assignment       `bson:"assignments" json:"assignments"`
	AllocatedAt time.Time          `bson:"allocated_at" json:"allocated_at"`
}

// ProjectOf returns the project assigned to studentID, if any.
func (a *Allocation) ProjectOf(studentID primitive.ObjectID) (primitive.ObjectID, bool) {
	for _, as := range a.Assignments {
		if as.StudentID == studentID && as.ProjectID != nil {
			return *as.ProjectID, true
		}
	}
	return primitive.NilObjectID, false
}
