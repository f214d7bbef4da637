// Package pbsolver implements solver.Model on top of gophersat, a pure Go
// pseudo-boolean optimiser.
//
// Every linear constraint is rewritten as Σ wᵢ·litᵢ ≥ k with positive
// weights: a term with a negative coefficient c·x becomes |c|·¬x and moves
// |c| to the right-hand side. The objective is rewritten the same way into a
// positive-weight cost function plus a constant offset.
package pbsolver

import (
	"context"
	"fmt"
	"sync"
	"time"

	sat "github.com/crillab/gophersat/solver"
	"github.com/dalemusser/projectalloc/internal/app/solver"
	"go.uber.org/zap"
)

// DefaultTimeout bounds a single Solve call when no timeout is configured.
const DefaultTimeout = 2 * time.Minute

// Options configures a Model.
type Options struct {
	// Timeout bounds Solve. When it expires the best model found so far is
	// reported as Feasible, or Error if there is none.
	Timeout time.Duration
	Logger  *zap.Logger
}

// Model is a gophersat-backed solver.Model. It is not safe for concurrent use.
type Model struct {
	opts Options

	names   []string
	used    []bool
	constrs []sat.PBConstr

	// trivially violated constraint seen while building
	infeasible bool

	objective   solver.Expr
	maximize    bool
	costLits    []int
	costWeights []int

	status solver.Status
	values []bool
}

// New returns an empty Model.
func New(opts Options) *Model {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Model{opts: opts}
}

// NewFactory returns a solver.Factory producing Models with opts.
func NewFactory(opts Options) solver.Factory {
	return func() solver.Model { return New(opts) }
}

// AddBinaryVar declares a new 0/1 variable.
func (m *Model) AddBinaryVar(name string) solver.Var {
	m.names = append(m.names, name)
	m.used = append(m.used, false)
	return solver.Var(len(m.names) - 1)
}

// AddConstraint registers Σ expr rel bound.
func (m *Model) AddConstraint(expr solver.Expr, rel solver.Relation, bound int) error {
	terms, err := m.merge(expr)
	if err != nil {
		return err
	}
	switch rel {
	case solver.GreaterEq:
		m.addAtLeast(terms, bound)
	case solver.LessEq:
		m.addAtLeast(negate(terms), -bound)
	case solver.Equal:
		m.addAtLeast(terms, bound)
		m.addAtLeast(negate(terms), -bound)
	default:
		return fmt.Errorf("pbsolver: unsupported relation %v", rel)
	}
	return nil
}

// SetObjective replaces the objective.
func (m *Model) SetObjective(expr solver.Expr, dir solver.Direction) error {
	terms, err := m.merge(expr)
	if err != nil {
		return err
	}
	if dir != solver.Minimize && dir != solver.Maximize {
		return fmt.Errorf("pbsolver: unsupported direction %d", int(dir))
	}
	m.objective = terms
	m.maximize = dir == solver.Maximize
	m.costLits = m.costLits[:0]
	m.costWeights = m.costWeights[:0]

	// gophersat only minimises; maximising e is minimising -e.
	if m.maximize {
		terms = negate(terms)
	}
	for _, t := range terms {
		lit, w := literal(t)
		if w == 0 {
			continue
		}
		m.costLits = append(m.costLits, lit)
		m.costWeights = append(m.costWeights, w)
	}
	return nil
}

// Solve runs the optimiser. Every improving model the search reports is
// kept; when the timeout expires or ctx is done the search is told to stop
// and the latest kept model is reported as Feasible, or Error when there is
// none. Solve does not wait for the search to wind down.
func (m *Model) Solve(ctx context.Context) (solver.Status, error) {
	m.values = nil
	switch {
	case m.infeasible:
		m.status = solver.Infeasible
		return m.status, nil
	case len(m.names) == 0:
		m.status = solver.Optimal
		return m.status, nil
	}
	if err := ctx.Err(); err != nil {
		m.opts.Logger.Debug("solve skipped; context already done", zap.Error(err))
		m.status = solver.Error
		return m.status, nil
	}

	pb := sat.ParsePBConstrs(m.buildConstrs())
	if len(m.costLits) > 0 {
		lits := make([]sat.Lit, len(m.costLits))
		for i, l := range m.costLits {
			lits[i] = sat.IntToLit(int32(l))
		}
		pb.SetCostFunc(lits, m.costWeights)
	}
	s := sat.New(pb)

	inc := &incumbent{}
	results := make(chan sat.Result)
	stop := make(chan struct{})
	done := make(chan searchOutcome, 1)
	finished := make(chan struct{})
	start := time.Now()

	// Optimal closes results before it returns; finished covers a panic.
	go func() {
		for {
			select {
			case r, ok := <-results:
				if !ok {
					return
				}
				inc.offer(r)
			case <-finished:
				return
			}
		}
	}()

	go func() {
		var out searchOutcome
		defer func() {
			if r := recover(); r != nil {
				out = searchOutcome{err: fmt.Errorf("pbsolver: solver panic: %v", r)}
			}
			close(finished)
			done <- out
		}()
		res := s.Optimal(results, stop)
		out.status = res.Status
		if res.Status == sat.Sat {
			out.model = append([]bool(nil), s.Model()...)
		}
	}()

	timer := time.NewTimer(m.opts.Timeout)
	defer timer.Stop()

	select {
	case out := <-done:
		return m.finish(out, start)
	case <-timer.C:
	case <-ctx.Done():
	}
	close(stop)

	// The search may have completed while we were being woken.
	select {
	case out := <-done:
		return m.finish(out, start)
	default:
	}

	if model := inc.latest(); model != nil {
		m.values = model
		m.status = solver.Feasible
	} else {
		m.status = solver.Error
	}
	m.opts.Logger.Info("solve interrupted",
		zap.String("status", m.status.String()),
		zap.Int("vars", len(m.names)),
		zap.Bool("context_done", ctx.Err() != nil),
		zap.Duration("elapsed", time.Since(start)))
	return m.status, nil
}

type searchOutcome struct {
	status sat.Status
	model  []bool
	err    error
}

func (m *Model) finish(out searchOutcome, start time.Time) (solver.Status, error) {
	if out.err != nil {
		m.status = solver.Error
		return m.status, out.err
	}
	switch out.status {
	case sat.Sat:
		m.values = out.model
		m.status = solver.Optimal
	case sat.Unsat:
		m.status = solver.Infeasible
	default:
		m.status = solver.Error
	}
	m.opts.Logger.Debug("solve finished",
		zap.String("status", m.status.String()),
		zap.Int("vars", len(m.names)),
		zap.Int("constraints", len(m.constrs)),
		zap.Duration("elapsed", time.Since(start)))
	return m.status, nil
}

// incumbent holds the best model reported so far by a running search.
type incumbent struct {
	mu    sync.Mutex
	model []bool
}

func (i *incumbent) offer(r sat.Result) {
	if r.Status != sat.Sat || r.Model == nil {
		return
	}
	model := append([]bool(nil), r.Model...)
	i.mu.Lock()
	i.model = model
	i.mu.Unlock()
}

func (i *incumbent) latest() []bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.model
}

// Value returns 1 or 0 for v in the last solution, and 0 when there is none.
func (m *Model) Value(v solver.Var) float64 {
	i := int(v)
	if !m.status.Success() || i < 0 || i >= len(m.values) {
		return 0
	}
	if m.values[i] {
		return 1
	}
	return 0
}

// ObjectiveValue evaluates the objective in its original sense against the
// last solution.
func (m *Model) ObjectiveValue() int {
	total := 0
	for _, t := range m.objective {
		if m.Value(t.Var) > 0.5 {
			total += t.Coef
		}
	}
	return total
}

// Name returns the name given to v.
func (m *Model) Name(v solver.Var) string {
	if int(v) < 0 || int(v) >= len(m.names) {
		return ""
	}
	return m.names[v]
}

// merge validates handles and folds repeated variables into one term,
// preserving first-seen order.
func (m *Model) merge(expr solver.Expr) (solver.Expr, error) {
	index := make(map[solver.Var]int, len(expr))
	out := make(solver.Expr, 0, len(expr))
	for _, t := range expr {
		if int(t.Var) < 0 || int(t.Var) >= len(m.names) {
			return nil, fmt.Errorf("pbsolver: unknown variable %d", int(t.Var))
		}
		if i, ok := index[t.Var]; ok {
			out[i].Coef += t.Coef
			continue
		}
		index[t.Var] = len(out)
		out = append(out, t)
	}
	return out, nil
}

// addAtLeast records Σ terms ≥ k in positive-weight form.
func (m *Model) addAtLeast(terms solver.Expr, k int) {
	lits := make([]int, 0, len(terms))
	weights := make([]int, 0, len(terms))
	sum := 0
	for _, t := range terms {
		if t.Coef < 0 {
			// c·x = c + |c|·¬x
			k -= t.Coef
		}
		lit, w := literal(t)
		if w == 0 {
			continue
		}
		lits = append(lits, lit)
		weights = append(weights, w)
		sum += w
	}
	if k <= 0 {
		return
	}
	if sum < k {
		m.infeasible = true
		return
	}
	for _, l := range lits {
		m.used[varIndex(l)] = true
	}
	m.constrs = append(m.constrs, sat.PBConstr{Lits: lits, Weights: weights, AtLeast: k})
}

// buildConstrs returns the recorded constraints plus a tautology for every
// variable no constraint mentions, so the solver knows about all of them.
func (m *Model) buildConstrs() []sat.PBConstr {
	out := make([]sat.PBConstr, 0, len(m.constrs))
	out = append(out, m.constrs...)
	for i, u := range m.used {
		if u {
			continue
		}
		v := i + 1
		out = append(out, sat.PBConstr{Lits: []int{v, -v}, Weights: []int{1, 1}, AtLeast: 1})
	}
	return out
}

func negate(terms solver.Expr) solver.Expr {
	out := make(solver.Expr, len(terms))
	for i, t := range terms {
		out[i] = solver.Term{Var: t.Var, Coef: -t.Coef}
	}
	return out
}

// literal maps a term to a gophersat literal (1-based, negative for ¬x)
// and a non-negative weight.
func literal(t solver.Term) (int, int) {
	v := int(t.Var) + 1
	if t.Coef < 0 {
		return -v, -t.Coef
	}
	return v, t.Coef
}

func varIndex(lit int) int {
	if lit < 0 {
		lit = -lit
	}
	return lit - 1
}
