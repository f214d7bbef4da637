package allocation

import (
	"bytes"
	"context"
	"errors"

	allocationstore "github.com/dalemusser/projectalloc/internal/app/store/allocations"
	preferencestore "github.com/dalemusser/projectalloc/internal/app/store/preferences"
	projectstore "github.com/dalemusser/projectalloc/internal/app/store/projects"
	studentstore "github.com/dalemusser/projectalloc/internal/app/store/students"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/solver"
	"github.com/dalemusser/projectalloc/internal/app/system/txn"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// StoreLoader reads snapshots from MongoDB. All four reads share one
// snapshot-isolated transaction when the deployment supports it.
type StoreLoader struct {
	db          *mongo.Database
	log         *zap.Logger
	units       *unitstore.Store
	projects    *projectstore.Store
	students    *studentstore.Store
	preferences *preferencestore.Store
	allocations *allocationstore.Store
}

func NewStoreLoader(db *mongo.Database, log *zap.Logger) *StoreLoader {
	return &StoreLoader{
		db:          db,
		log:         log,
		units:       unitstore.New(db),
		projects:    projectstore.New(db),
		students:    studentstore.New(db),
		preferences: preferencestore.New(db),
		allocations: allocationstore.New(db),
	}
}

func (l *StoreLoader) LoadSnapshot(ctx context.Context, unitID primitive.ObjectID) (*Snapshot, error) {
	var snap Snapshot
	err := txn.RunSnapshot(ctx, l.db, l.log, func(ctx context.Context) error {
		var err error
		if snap.Unit, err = l.units.GetByID(ctx, unitID); err != nil {
			return err
		}
		if snap.Projects, err = l.projects.ListByUnit(ctx, unitID); err != nil {
			return err
		}
		if snap.Students, err = l.students.ListByUnit(ctx, unitID); err != nil {
			return err
		}
		snap.Preferences, err = l.preferences.ListByUnit(ctx, unitID)
		return err
	})
	if errors.Is(err, unitstore.ErrNotFound) {
		return nil, &NotFoundError{UnitID: unitID}
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ExportCSV renders the unit's committed allocation with WriteCSV and
// returns the download name alongside the bytes. It returns
// allocationstore.ErrNotFound when the unit has never been allocated.
func (l *StoreLoader) ExportCSV(ctx context.Context, unitID primitive.ObjectID) (string, []byte, error) {
	snap, err := l.LoadSnapshot(ctx, unitID)
	if err != nil {
		return "", nil, err
	}
	alloc, err := l.allocations.GetByUnit(ctx, unitID)
	if err != nil {
		return "", nil, err
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, snap.Projects, snap.Students, &alloc); err != nil {
		return "", nil, err
	}
	return FileName(snap.Unit), buf.Bytes(), nil
}

// NewMongoEngine wires an Engine to the MongoDB stores.
func NewMongoEngine(db *mongo.Database, factory solver.Factory, opts Options) *Engine {
	return New(NewStoreLoader(db, opts.Logger), allocationstore.New(db), factory, opts)
}
