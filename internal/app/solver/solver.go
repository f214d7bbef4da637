// Package solver defines the narrow boundary between the allocation engine
// and a concrete optimisation library.
//
// A Model holds binary decision variables, linear constraints with integer
// coefficients, and a linear objective. Implementations translate these into
// their own representation and must not expose library types to callers.
package solver

import (
	"context"
	"fmt"
)

// Var is an opaque handle to a binary decision variable.
type Var int

// Term is one coefficient·variable product of a linear expression.
type Term struct {
	Var  Var
	Coef int
}

// Expr is a linear expression: the sum of its terms.
type Expr []Term

// Add appends coef·v to the expression and returns it.
func (e Expr) Add(v Var, coef int) Expr {
	return append(e, Term{Var: v, Coef: coef})
}

// Relation is the comparison used by a linear constraint.
type Relation int

const (
	LessEq Relation = iota
	GreaterEq
	Equal
)

func (r Relation) String() string {
	switch r {
	case LessEq:
		return "<="
	case GreaterEq:
		return ">="
	case Equal:
		return "=="
	}
	return fmt.Sprintf("Relation(%d)", int(r))
}

// Direction is the optimisation sense of the objective.
type Direction int

const (
	Minimize Direction = iota
	Maximize
)

// Status is the terminal outcome of Solve.
type Status int

const (
	NotSolved Status = iota
	Optimal
	Feasible
	Infeasible
	Unbounded
	Error
)

func (s Status) String() string {
	switch s {
	case NotSolved:
		return "NOT_SOLVED"
	case Optimal:
		return "OPTIMAL"
	case Feasible:
		return "FEASIBLE"
	case Infeasible:
		return "INFEASIBLE"
	case Unbounded:
		return "UNBOUNDED"
	case Error:
		return "ERROR"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Success reports whether a solution is available to read.
func (s Status) Success() bool {
	return s == Optimal || s == Feasible
}

// Model is the adapter contract.
//
// Value is only meaningful after Solve returned a successful status.
// Solve returns a non-nil error only for failures of the adapter itself;
// solver verdicts (including Error on timeout) are reported through Status.
type Model interface {
	AddBinaryVar(name string) Var
	AddConstraint(expr Expr, rel Relation, bound int) error
	SetObjective(expr Expr, dir Direction) error
	Solve(ctx context.Context) (Status, error)
	Value(v Var) float64
}

// Factory creates an empty Model. The engine asks for a fresh model per run.
type Factory func() Model
