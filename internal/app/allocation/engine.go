// Package allocation assigns a unit's students to its projects.
//
// A run loads a Snapshot, rejects impossible capacity with a cheap
// pre-check, builds a 0/1 optimisation model through the solver.Model
// boundary, solves it, and commits the resulting Assignment set in one
// atomic replace. Any failure leaves the previously committed allocation
// untouched. The Engine keeps no state between runs; the caller ensures at
// most one run per unit is in flight.
package allocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/solver"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Outcome is the terminal result class of a run.
type Outcome string

const (
	OutcomeSuccess            Outcome = "success"
	OutcomeCapacityInfeasible Outcome = "capacity_infeasible"
	OutcomeSolverInfeasible   Outcome = "solver_infeasible"
	OutcomeSolverError        Outcome = "solver_error"
)

// Persister commits an Assignment set, replacing the unit's previous one
// in a single atomic write.
type Persister interface {
	ReplaceAllocation(ctx context.Context, a models.Allocation) error
}

// Options configures an Engine.
type Options struct {
	CapacityCheck CapacityMode
	Logger        *zap.Logger
	// Now and NewRunID are overridable for tests.
	Now      func() time.Time
	NewRunID func() string
}

// Engine runs allocations.
type Engine struct {
	loader    Loader
	persister Persister
	newModel  solver.Factory
	opts      Options
}

// Result describes a finished run. On failure Assignments is empty and
// nothing was written.
type Result struct {
	RunID        string
	UnitID       primitive.ObjectID
	Outcome      Outcome
	SolverStatus solver.Status
	Objective    int
	Capacity     CapacityReport
	Assignments  []models.Assignment
}

// UnitStatus maps the result to the status recorded on the unit.
func (r Result) UnitStatus() string {
	switch r.Outcome {
	case OutcomeSuccess:
		if r.SolverStatus == solver.Feasible {
			return models.StatusFeasible
		}
		return models.StatusOptimal
	case OutcomeCapacityInfeasible:
		return models.StatusCapacityInfeasible
	case OutcomeSolverInfeasible:
		return models.StatusInfeasible
	}
	if r.SolverStatus == solver.Unbounded {
		return models.StatusUnbounded
	}
	return models.StatusError
}

// New returns an Engine.
func New(loader Loader, persister Persister, newModel solver.Factory, opts Options) *Engine {
	if opts.CapacityCheck == "" {
		opts.CapacityCheck = CapacityAggregate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}
	return &Engine{loader: loader, persister: persister, newModel: newModel, opts: opts}
}

// Run allocates the unit's students.
//
// Errors:
//   - *NotFoundError: the unit does not exist
//   - *InvalidSnapshotError: the input breaks the data model invariants
//   - *InfeasibleCapacityError: pre-check rejection (Outcome CapacityInfeasible)
//   - *AllocationFailedError: solver did not succeed (Outcome SolverInfeasible or SolverError)
//   - anything else: adapter, extraction or persistence failure, returned as is
func (e *Engine) Run(ctx context.Context, unitID primitive.ObjectID) (Result, error) {
	res := Result{RunID: e.opts.NewRunID(), UnitID: unitID}
	log := e.opts.Logger.With(zap.String("unit_id", unitID.Hex()), zap.String("run_id", res.RunID))

	snap, err := e.loader.LoadSnapshot(ctx, unitID)
	if err != nil {
		return res, err
	}
	if err := snap.Validate(); err != nil {
		return res, err
	}
	res.Capacity = Capacity(snap)
	log.Info("allocation started",
		zap.Int("students", res.Capacity.Students),
		zap.Int("projects", res.Capacity.Projects),
		zap.Int("preferences", len(snap.Preferences)))

	if err := CheckCapacity(snap, e.opts.CapacityCheck); err != nil {
		res.Outcome = OutcomeCapacityInfeasible
		log.Warn("allocation rejected by capacity check", zap.Error(err))
		return res, err
	}

	var assignments []models.Assignment
	var objective int
	res.SolverStatus = solver.Optimal
	if len(snap.Students) > 0 {
		assignments, objective, err = e.solve(ctx, snap, &res, log)
		if err != nil {
			return res, err
		}
	}

	alloc := models.Allocation{
		UnitID:      unitID,
		RunID:       res.RunID,
		Objective:   objective,
		Assignments: assignments,
		AllocatedAt: e.opts.Now(),
	}
	res.Outcome = OutcomeSuccess
	alloc.Status = res.UnitStatus()
	if alloc.Assignments == nil {
		alloc.Assignments = []models.Assignment{}
	}
	if err := e.persister.ReplaceAllocation(ctx, alloc); err != nil {
		res.Outcome = ""
		return res, fmt.Errorf("persist allocation: %w", err)
	}

	res.Objective = objective
	res.Assignments = alloc.Assignments
	log.Info("allocation committed",
		zap.String("status", alloc.Status),
		zap.Int("objective", objective),
		zap.Int("assigned", countPlaced(assignments)))
	return res, nil
}

func (e *Engine) solve(ctx context.Context, snap *Snapshot, res *Result, log *zap.Logger) ([]models.Assignment, int, error) {
	m := e.newModel()
	pb, err := Build(snap, m)
	if err != nil {
		return nil, 0, fmt.Errorf("build model: %w", err)
	}

	start := time.Now()
	status, err := m.Solve(ctx)
	res.SolverStatus = status
	log.Info("solver finished", zap.String("status", status.String()), zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		res.Outcome = OutcomeSolverError
		return nil, 0, fmt.Errorf("solve: %w", err)
	}
	if !status.Success() {
		res.Outcome = OutcomeSolverError
		if status == solver.Infeasible {
			res.Outcome = OutcomeSolverInfeasible
		}
		return nil, 0, &AllocationFailedError{Status: status}
	}

	assignments, objective, err := Extract(pb, m)
	if err != nil {
		res.Outcome = OutcomeSolverError
		return nil, 0, fmt.Errorf("extract solution: %w", err)
	}
	return assignments, objective, nil
}

// OutcomeOf classifies an error returned by Run for callers that only kept
// the error.
func OutcomeOf(err error) Outcome {
	var capErr *InfeasibleCapacityError
	var failed *AllocationFailedError
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.As(err, &capErr):
		return OutcomeCapacityInfeasible
	case errors.As(err, &failed) && failed.Status == solver.Infeasible:
		return OutcomeSolverInfeasible
	}
	return OutcomeSolverError
}

func countPlaced(as []models.Assignment) int {
	n := 0
	for _, a := range as {
		if a.ProjectID != nil {
			n++
		}
	}
	return n
}
