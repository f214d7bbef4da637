package workers_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	"github.com/dalemusser/projectalloc/internal/app/solver"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/mailer"
	"github.com/dalemusser/projectalloc/internal/app/system/workers"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fakeUnits struct {
	mu       sync.Mutex
	units    map[primitive.ObjectID]*models.Unit
	released int
}

func newFakeUnits(us ...models.Unit) *fakeUnits {
	f := &fakeUnits{units: map[primitive.ObjectID]*models.Unit{}}
	for i := range us {
		u := us[i]
		f.units[u.ID] = &u
	}
	return f
}

func (f *fakeUnits) GetByID(_ context.Context, id primitive.ObjectID) (models.Unit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return models.Unit{}, unitstore.ErrNotFound
	}
	return *u, nil
}

func (f *fakeUnits) TryBeginAllocation(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return unitstore.ErrNotFound
	}
	if u.Allocating {
		return unitstore.ErrAllocationInProgress
	}
	u.Allocating = true
	return nil
}

func (f *fakeUnits) FinishAllocation(_ context.Context, id primitive.ObjectID, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.units[id]
	if !ok {
		return unitstore.ErrNotFound
	}
	u.Allocating = false
	u.LastRunStatus = status
	u.LastRunAt = &at
	if models.IsSuccessfulStatus(status) || !models.IsSuccessfulStatus(u.AllocationStatus) {
		u.AllocationStatus = status
	}
	return nil
}

func (f *fakeUnits) ReleaseAllocation(_ context.Context, id primitive.ObjectID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.units[id]; ok {
		u.Allocating = false
	}
	f.released++
	return nil
}

func (f *fakeUnits) get(id primitive.ObjectID) models.Unit {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.units[id]
}

type runFunc func(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error)

func (f runFunc) Run(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error) {
	return f(ctx, unitID)
}

func succeed(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error) {
	return allocation.Result{UnitID: unitID, Outcome: allocation.OutcomeSuccess, SolverStatus: solver.Optimal}, nil
}

type fakeExporter struct{}

func (fakeExporter) ExportCSV(context.Context, primitive.ObjectID) (string, []byte, error) {
	return "U1-project-allocation.csv", []byte("student_id\n"), nil
}

type fakeMail struct {
	mu   sync.Mutex
	sent []mailer.Email
}

func (m *fakeMail) Send(e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, e)
	return nil
}

func (m *fakeMail) emails() []mailer.Email {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mailer.Email(nil), m.sent...)
}

func testUnit(manager string) models.Unit {
	return models.Unit{ID: primitive.NewObjectID(), Code: "U1", Name: "Unit One", ManagerEmail: manager}
}

func newDispatcher(units *fakeUnits, run runFunc, mail *fakeMail, cfg workers.DispatcherConfig) *workers.AllocationDispatcher {
	var sender workers.Sender
	if mail != nil {
		sender = mail
	}
	return workers.NewAllocationDispatcher(units, run, fakeExporter{}, sender, cfg, zap.NewNop())
}

func TestDispatcher_SuccessRecordsStatusAndNotifies(t *testing.T) {
	u := testUnit("manager@example.com")
	units := newFakeUnits(u)
	mail := &fakeMail{}
	d := newDispatcher(units, succeed, mail, workers.DispatcherConfig{SiteName: "Allocator", BaseURL: "http://localhost:3000/"})
	d.Start()

	if err := d.Submit(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	d.Stop()

	got := units.get(u.ID)
	if got.Allocating {
		t.Error("allocating flag should be cleared")
	}
	if got.LastRunStatus != models.StatusOptimal || got.AllocationStatus != models.StatusOptimal {
		t.Errorf("status = %q/%q, want optimal", got.LastRunStatus, got.AllocationStatus)
	}

	sent := mail.emails()
	if len(sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(sent))
	}
	if sent[0].To != "manager@example.com" {
		t.Errorf("To = %q", sent[0].To)
	}
	wantLink := "http://localhost:3000/units/" + u.ID.Hex() + "/allocation/export.csv"
	if !strings.Contains(sent[0].TextBody, wantLink) {
		t.Errorf("finished email missing link %q: %q", wantLink, sent[0].TextBody)
	}
	if len(sent[1].Attachments) != 1 || sent[1].Attachments[0].Filename != "U1-project-allocation.csv" {
		t.Errorf("results email attachments = %+v", sent[1].Attachments)
	}
}

func TestDispatcher_SingleFlightPerUnit(t *testing.T) {
	u := testUnit("")
	units := newFakeUnits(u)
	release := make(chan struct{})
	started := make(chan struct{})
	run := func(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error) {
		close(started)
		<-release
		return succeed(ctx, unitID)
	}
	d := newDispatcher(units, run, nil, workers.DispatcherConfig{Workers: 2})
	d.Start()

	if err := d.Submit(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	<-started
	if err := d.Submit(context.Background(), u.ID, ""); !errors.Is(err, unitstore.ErrAllocationInProgress) {
		t.Errorf("second Submit: expected ErrAllocationInProgress, got %v", err)
	}
	close(release)
	d.Stop()

	if units.get(u.ID).Allocating {
		t.Error("allocating flag should be cleared after the run")
	}
}

func TestDispatcher_FailureKeepsPreviousSuccess(t *testing.T) {
	u := testUnit("manager@example.com")
	u.AllocationStatus = models.StatusOptimal
	units := newFakeUnits(u)
	mail := &fakeMail{}
	run := func(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error) {
		return allocation.Result{UnitID: unitID, Outcome: allocation.OutcomeCapacityInfeasible},
			&allocation.InfeasibleCapacityError{MinTotal: 10, MaxTotal: 20, Students: 5}
	}
	d := newDispatcher(units, run, mail, workers.DispatcherConfig{})
	d.Start()
	if err := d.Submit(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	d.Stop()

	got := units.get(u.ID)
	if got.LastRunStatus != models.StatusCapacityInfeasible {
		t.Errorf("LastRunStatus = %q, want capacity_infeasible", got.LastRunStatus)
	}
	if got.AllocationStatus != models.StatusOptimal {
		t.Errorf("AllocationStatus = %q, want previous optimal kept", got.AllocationStatus)
	}
	sent := mail.emails()
	if len(sent) != 1 {
		t.Fatalf("sent %d emails, want 1 (no results on failure)", len(sent))
	}
	if !strings.Contains(sent[0].TextBody, "failed") {
		t.Errorf("body = %q", sent[0].TextBody)
	}
}

func TestDispatcher_PanicRecordedAsError(t *testing.T) {
	u := testUnit("")
	units := newFakeUnits(u)
	run := func(context.Context, primitive.ObjectID) (allocation.Result, error) {
		panic("boom")
	}
	d := newDispatcher(units, run, nil, workers.DispatcherConfig{})
	d.Start()
	if err := d.Submit(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	d.Stop()

	got := units.get(u.ID)
	if got.Allocating {
		t.Error("flag must be cleared after a panic")
	}
	if got.LastRunStatus != models.StatusError {
		t.Errorf("LastRunStatus = %q, want error", got.LastRunStatus)
	}
}

func TestDispatcher_RequesterOverridesManager(t *testing.T) {
	u := testUnit("manager@example.com")
	units := newFakeUnits(u)
	mail := &fakeMail{}
	d := newDispatcher(units, succeed, mail, workers.DispatcherConfig{})
	d.Start()
	if err := d.Submit(context.Background(), u.ID, " staff@example.com "); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	d.Stop()

	for _, e := range mail.emails() {
		if e.To != "staff@example.com" {
			t.Errorf("To = %q, want staff@example.com", e.To)
		}
	}
}

func TestDispatcher_NoRecipientSendsNothing(t *testing.T) {
	u := testUnit("")
	units := newFakeUnits(u)
	mail := &fakeMail{}
	d := newDispatcher(units, succeed, mail, workers.DispatcherConfig{})
	d.Start()
	if err := d.Submit(context.Background(), u.ID, ""); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	d.Stop()

	if n := len(mail.emails()); n != 0 {
		t.Errorf("sent %d emails, want 0", n)
	}
}

func TestDispatcher_QueueFullReleasesFlag(t *testing.T) {
	a, b := testUnit(""), testUnit("")
	units := newFakeUnits(a, b)
	d := newDispatcher(units, succeed, nil, workers.DispatcherConfig{Workers: 1, QueueSize: 1})

	if err := d.Submit(context.Background(), a.ID, ""); err != nil {
		t.Fatalf("Submit a failed: %v", err)
	}
	if err := d.Submit(context.Background(), b.ID, ""); !errors.Is(err, workers.ErrQueueFull) {
		t.Fatalf("Submit b: expected ErrQueueFull, got %v", err)
	}
	if units.get(b.ID).Allocating {
		t.Error("rejected unit must not stay flagged")
	}

	d.Start()
	d.Stop()
	if got := units.get(a.ID); got.Allocating || got.LastRunStatus != models.StatusOptimal {
		t.Errorf("queued run not processed: %+v", got)
	}
}

func TestDispatcher_UnknownUnit(t *testing.T) {
	d := newDispatcher(newFakeUnits(), succeed, nil, workers.DispatcherConfig{})
	d.Start()
	defer d.Stop()

	if err := d.Submit(context.Background(), primitive.NewObjectID(), ""); !errors.Is(err, unitstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDispatcher_SubmitAfterStop(t *testing.T) {
	u := testUnit("")
	units := newFakeUnits(u)
	d := newDispatcher(units, succeed, nil, workers.DispatcherConfig{})
	d.Start()
	d.Stop()
	d.Stop()

	if err := d.Submit(context.Background(), u.ID, ""); !errors.Is(err, workers.ErrDispatcherStopped) {
		t.Errorf("expected ErrDispatcherStopped, got %v", err)
	}
	if units.get(u.ID).Allocating {
		t.Error("stopped dispatcher must not flag the unit")
	}
}

type fakeRunLog struct {
	mu   sync.Mutex
	runs []models.AllocationRun
}

func (f *fakeRunLog) Record(_ context.Context, run models.AllocationRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

func TestDispatcher_RecordsRunHistory(t *testing.T) {
	u := testUnit("")
	units := newFakeUnits(u)
	project := primitive.NewObjectID()
	rank := 1
	calls := 0
	run := func(ctx context.Context, unitID primitive.ObjectID) (allocation.Result, error) {
		calls++
		if calls == 1 {
			return allocation.Result{
				RunID:        "run-1",
				UnitID:       unitID,
				Outcome:      allocation.OutcomeSuccess,
				SolverStatus: solver.Optimal,
				Objective:    1,
				Capacity:     allocation.CapacityReport{Students: 2, Projects: 1},
				Assignments: []models.Assignment{
					{StudentID: primitive.NewObjectID(), ProjectID: &project, Rank: &rank},
					{StudentID: primitive.NewObjectID()},
				},
			}, nil
		}
		return allocation.Result{RunID: "run-2", UnitID: unitID, Outcome: allocation.OutcomeCapacityInfeasible},
			&allocation.InfeasibleCapacityError{MinTotal: 5, MaxTotal: 9, Students: 2}
	}
	history := &fakeRunLog{}
	d := newDispatcher(units, run, nil, workers.DispatcherConfig{Workers: 1})
	d.SetRunLog(history)
	d.Start()

	for i := 0; i < 2; i++ {
		if err := d.Submit(context.Background(), u.ID, "staff@example.com"); err != nil {
			t.Fatalf("Submit %d failed: %v", i, err)
		}
		// wait for the flag to clear before the next submit
		deadline := time.Now().Add(5 * time.Second)
		for units.get(u.ID).Allocating && time.Now().Before(deadline) {
			time.Sleep(5 * time.Millisecond)
		}
	}
	d.Stop()

	if len(history.runs) != 2 {
		t.Fatalf("recorded %d runs, want 2", len(history.runs))
	}
	ok := history.runs[0]
	if ok.RunID != "run-1" || ok.Status != models.StatusOptimal || ok.Outcome != string(allocation.OutcomeSuccess) {
		t.Errorf("first run = %+v", ok)
	}
	if ok.Students != 2 || ok.Projects != 1 || ok.Placed != 1 || ok.Objective != 1 {
		t.Errorf("first run counts = %+v", ok)
	}
	if ok.Requester != "staff@example.com" || ok.Error != "" {
		t.Errorf("first run requester/error = %q/%q", ok.Requester, ok.Error)
	}
	if ok.FinishedAt.Before(ok.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}

	bad := history.runs[1]
	if bad.Status != models.StatusCapacityInfeasible || bad.Outcome != string(allocation.OutcomeCapacityInfeasible) {
		t.Errorf("second run = %+v", bad)
	}
	if bad.Error == "" {
		t.Error("failed run should carry its error")
	}
}
