// internal/app/system/workers/allocation.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	"github.com/dalemusser/projectalloc/internal/app/solver"
	"github.com/dalemusser/projectalloc/internal/app/system/mailer"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	ErrDispatcherStopped = errors.New("allocation dispatcher is stopped")
	ErrQueueFull         = errors.New("allocation queue is full")
)

// UnitFlags is the part of the unit store the dispatcher uses to hold and
// release the per-unit "allocation in progress" flag.
type UnitFlags interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Unit, error)
	TryBeginAllocation(ctx context.Context, id primitive.ObjectID) error
	FinishAllocation(ctx context.Context, id primitive.ObjectID, status string, at time.Time) error
	ReleaseAllocation(ctx context.Context, id primitive.ObjectID) error
}

// Runner runs one allocation.
type Runner interface {
	Run(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error)
}

// Exporter renders a unit's committed allocation as CSV.
type Exporter interface {
	ExportCSV(ctx context.Context, unitID primitive.ObjectID) (string, []byte, error)
}

// Sender delivers email.
type Sender interface {
	Send(e mailer.Email) error
}

// RunLog records the history of finished runs.
type RunLog interface {
	Record(ctx context.Context, run models.AllocationRun) error
}

// DispatcherConfig configures an AllocationDispatcher.
type DispatcherConfig struct {
	Workers   int    // concurrent runs (default 2)
	QueueSize int    // accepted runs waiting for a worker (default 64)
	SiteName  string // used in notification subjects
	BaseURL   string // used to build the results link
}

// AllocationDispatcher runs allocations in the background on a bounded pool.
// Submit holds the unit's allocating flag for the life of the run, so at
// most one run per unit is ever in flight.
type AllocationDispatcher struct {
	units    UnitFlags
	engine   Runner
	exporter Exporter // optional
	mail     Sender   // optional
	runs     RunLog   // optional
	cfg      DispatcherConfig
	log      *zap.Logger
	now      func() time.Time

	mu      sync.Mutex
	stopped bool
	jobs    chan allocationJob
	wg      sync.WaitGroup
}

type allocationJob struct {
	unitID    primitive.ObjectID
	requester string
}

// NewAllocationDispatcher creates a dispatcher. exporter and mail may be nil,
// in which case no results are emailed.
func NewAllocationDispatcher(units UnitFlags, engine Runner, exporter Exporter, mail Sender, cfg DispatcherConfig, logger *zap.Logger) *AllocationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AllocationDispatcher{
		units:    units,
		engine:   engine,
		exporter: exporter,
		mail:     mail,
		cfg:      cfg,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
		jobs:     make(chan allocationJob, cfg.QueueSize),
	}
}

// SetRunLog makes the dispatcher record every finished run. Call before Start.
func (d *AllocationDispatcher) SetRunLog(runs RunLog) {
	d.runs = runs
}

// Start launches the worker pool.
func (d *AllocationDispatcher) Start() {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	d.log.Info("allocation dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize))
}

// Stop refuses new runs, lets queued and in-flight runs finish, and waits
// for the workers to exit.
func (d *AllocationDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("allocation dispatcher stopped")
}

// Submit accepts a run for unitID. requester is the email address notified
// when the run ends; when empty the unit's manager is notified instead.
//
// Errors:
//   - unitstore.ErrAllocationInProgress: a run for the unit is already in flight
//   - unitstore.ErrNotFound: the unit does not exist
//   - ErrQueueFull, ErrDispatcherStopped
func (d *AllocationDispatcher) Submit(ctx context.Context, unitID primitive.ObjectID, requester string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return ErrDispatcherStopped
	}

	if err := d.units.TryBeginAllocation(ctx, unitID); err != nil {
		return err
	}

	select {
	case d.jobs <- allocationJob{unitID: unitID, requester: strings.TrimSpace(requester)}:
		d.log.Info("allocation queued", zap.String("unit_id", unitID.Hex()))
		return nil
	default:
		if err := d.units.ReleaseAllocation(ctx, unitID); err != nil {
			d.log.Error("failed to release allocating flag", zap.String("unit_id", unitID.Hex()), zap.Error(err))
		}
		return ErrQueueFull
	}
}

func (d *AllocationDispatcher) run() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.process(j)
	}
}

func (d *AllocationDispatcher) process(j allocationJob) {
	log := d.log.With(zap.String("unit_id", j.unitID.Hex()))

	started := d.now()
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Solve())
	res, err := d.runSafely(ctx, j.unitID)
	cancel()
	finished := d.now()

	status := res.UnitStatus()
	if err != nil {
		log.Warn("allocation failed",
			zap.String("outcome", string(allocation.OutcomeOf(err))),
			zap.String("status", status),
			zap.Error(err))
	}

	fctx, fcancel := timeouts.WithTimeout(context.Background(), timeouts.Short(), log, "finish allocation")
	defer fcancel()
	if ferr := d.units.FinishAllocation(fctx, j.unitID, status, d.now()); ferr != nil {
		log.Error("failed to record allocation status", zap.String("status", status), zap.Error(ferr))
	}
	d.record(fctx, j, res, err, status, started, finished, log)

	d.notify(j, status, log)
}

func (d *AllocationDispatcher) record(ctx context.Context, j allocationJob, res allocation.Result, runErr error, status string, started, finished time.Time, log *zap.Logger) {
	if d.runs == nil {
		return
	}
	run := models.AllocationRun{
		UnitID:     j.unitID,
		RunID:      res.RunID,
		Outcome:    string(allocation.OutcomeOf(runErr)),
		Status:     status,
		Objective:  res.Objective,
		Students:   res.Capacity.Students,
		Projects:   res.Capacity.Projects,
		Requester:  j.requester,
		StartedAt:  started,
		FinishedAt: finished,
	}
	for _, a := range res.Assignments {
		if a.ProjectID != nil {
			run.Placed++
		}
	}
	if runErr != nil {
		run.Error = runErr.Error()
	}
	if err := d.runs.Record(ctx, run); err != nil {
		log.Error("failed to record allocation run", zap.String("run_id", res.RunID), zap.Error(err))
	}
}

// runSafely converts a panic inside the engine into a solver error so the
// unit's flag is always released.
func (d *AllocationDispatcher) runSafely(ctx context.Context, unitID primitive.ObjectID) (res allocation.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = allocation.Result{UnitID: unitID, Outcome: allocation.OutcomeSolverError, SolverStatus: solver.Error}
			err = fmt.Errorf("allocation panic: %v", r)
		}
	}()
	return d.engine.Run(ctx, unitID)
}

func (d *AllocationDispatcher) notify(j allocationJob, status string, log *zap.Logger) {
	if d.mail == nil {
		return
	}
	ctx, cancel := timeouts.WithTimeout(context.Background(), timeouts.Medium(), log, "allocation notification")
	defer cancel()

	unit, err := d.units.GetByID(ctx, j.unitID)
	if err != nil {
		log.Warn("cannot load unit for notification", zap.Error(err))
		return
	}
	to := j.requester
	if to == "" {
		to = unit.ManagerEmail
	}
	if to == "" {
		return
	}

	succeeded := models.IsSuccessfulStatus(status)
	finished := mailer.BuildAllocationFinishedEmail(mailer.AllocationFinishedData{
		SiteName:    d.cfg.SiteName,
		UnitName:    unit.Name,
		Succeeded:   succeeded,
		Status:      models.DescribeStatus(status),
		ResultsLink: d.resultsLink(j.unitID),
	})
	finished.To = to
	if err := d.mail.Send(finished); err != nil {
		log.Warn("allocation notification not sent", zap.Error(err))
		return
	}

	if !succeeded || d.exporter == nil {
		return
	}
	name, data, err := d.exporter.ExportCSV(ctx, j.unitID)
	if err != nil {
		log.Warn("cannot export allocation for email", zap.Error(err))
		return
	}
	results := mailer.BuildAllocationResultsEmail(mailer.AllocationResultsData{
		SiteName: d.cfg.SiteName,
		UnitName: unit.Name,
		FileName: name,
		CSV:      data,
	})
	results.To = to
	if err := d.mail.Send(results); err != nil {
		log.Warn("allocation results not sent", zap.Error(err))
	}
}

func (d *AllocationDispatcher) resultsLink(unitID primitive.ObjectID) string {
	if d.cfg.BaseURL == "" {
		return ""
	}
	return strings.TrimRight(d.cfg.BaseURL, "/") + "/units/" + unitID.Hex() + "/allocation/export.csv"
}
