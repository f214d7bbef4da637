package allocation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/projectalloc/internal/app/solver"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrNoSolution is wrapped when a successful solve cannot be turned into
// an Assignment set.
var ErrNoSolution = errors.New("solution does not describe a valid assignment")

// NotFoundError reports that the unit to allocate does not exist.
type NotFoundError struct {
	UnitID primitive.ObjectID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unit %s not found", e.UnitID.Hex())
}

// InvalidSnapshotError reports preference or capacity records that break the
// data model invariants (non-positive ranks, repeated ranks or projects for
// one student, min > max).
type InvalidSnapshotError struct {
	Problems []string
}

func (e *InvalidSnapshotError) Error() string {
	return "invalid allocation input: " + strings.Join(e.Problems, "; ")
}

// InfeasibleCapacityError is the pre-check rejection. The solver is never
// invoked when this is returned.
type InfeasibleCapacityError struct {
	Mode     CapacityMode
	MinTotal int // Σ min_students, or the smallest min_students in CapacitySmallest mode
	MaxTotal int // Σ max_students
	Students int
}

func (e *InfeasibleCapacityError) Error() string {
	if e.Students > e.MaxTotal {
		return fmt.Sprintf("too many students: %d students but only %d project places", e.Students, e.MaxTotal)
	}
	return fmt.Sprintf("too few students: %d students but projects require at least %d", e.Students, e.MinTotal)
}

// AllocationFailedError carries a non-success solver status verbatim.
type AllocationFailedError struct {
	Status solver.Status
}

func (e *AllocationFailedError) Error() string {
	return "allocation failed: solver status " + e.Status.String()
}
