package allocationstore_test

import (
	"errors"
	"testing"
	"time"

	allocationstore "github.com/dalemusser/projectalloc/internal/app/store/allocations"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/dalemusser/projectalloc/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestStore_ReplaceAllocation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := allocationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unitID := primitive.NewObjectID()
	s1, s2 := primitive.NewObjectID(), primitive.NewObjectID()
	p1 := primitive.NewObjectID()
	rank := 1

	first := models.Allocation{
		UnitID:    unitID,
		RunID:     "run-1",
		Status:    models.StatusOptimal,
		Objective: 1,
		Assignments: []models.Assignment{
			{StudentID: s1, ProjectID: &p1, Rank: &rank},
			{StudentID: s2},
		},
		AllocatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	if err := store.ReplaceAllocation(ctx, first); err != nil {
		t.Fatalf("ReplaceAllocation failed: %v", err)
	}

	got, err := store.GetByUnit(ctx, unitID)
	if err != nil {
		t.Fatalf("GetByUnit failed: %v", err)
	}
	if got.RunID != "run-1" || len(got.Assignments) != 2 {
		t.Fatalf("got %+v", got)
	}
	if pid, ok := got.ProjectOf(s1); !ok || pid != p1 {
		t.Errorf("ProjectOf(s1) = %v, %v", pid, ok)
	}
	if _, ok := got.ProjectOf(s2); ok {
		t.Error("s2 should be unplaced")
	}
	if got.Assignments[0].Rank == nil || *got.Assignments[0].Rank != 1 {
		t.Errorf("rank = %v, want 1", got.Assignments[0].Rank)
	}

	// a second run replaces the whole set
	second := first
	second.RunID = "run-2"
	second.Assignments = []models.Assignment{{StudentID: s2, ProjectID: &p1}}
	if err := store.ReplaceAllocation(ctx, second); err != nil {
		t.Fatalf("second ReplaceAllocation failed: %v", err)
	}
	got, err = store.GetByUnit(ctx, unitID)
	if err != nil {
		t.Fatalf("GetByUnit failed: %v", err)
	}
	if got.RunID != "run-2" || len(got.Assignments) != 1 {
		t.Errorf("got %+v, want run-2 with one assignment", got)
	}
	n, err := db.Collection("allocations").CountDocuments(ctx, map[string]interface{}{})
	if err != nil {
		t.Fatalf("CountDocuments failed: %v", err)
	}
	if n != 1 {
		t.Errorf("allocations documents = %d, want 1", n)
	}
}

func TestStore_GetByUnit_NotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := allocationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	_, err := store.GetByUnit(ctx, primitive.NewObjectID())
	if !errors.Is(err, allocationstore.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_DeleteByUnit(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := allocationstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unitID := primitive.NewObjectID()
	if err := store.ReplaceAllocation(ctx, models.Allocation{UnitID: unitID, Assignments: []models.Assignment{}}); err != nil {
		t.Fatalf("ReplaceAllocation failed: %v", err)
	}
	n, err := store.DeleteByUnit(ctx, unitID)
	if err != nil {
		t.Fatalf("DeleteByUnit failed: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
}
