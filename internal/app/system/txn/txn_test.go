package txn_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dalemusser/projectalloc/internal/app/system/txn"
	"github.com/dalemusser/projectalloc/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestIsNotSupported(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unrelated", errors.New("connection reset"), false},
		{"code 20", mongo.CommandError{Code: 20, Message: "Transaction numbers are only allowed on a replica set member"}, true},
		{"code 51", mongo.CommandError{Code: 51}, true},
		{"code 263", mongo.CommandError{Code: 263}, true},
		{"other code", mongo.CommandError{Code: 11000, Message: "E11000 duplicate key"}, false},
		{"replica set message", errors.New("Transaction requires a REPLICA SET"), true},
		{"sessions unsupported", errors.New("sessions are not supported by this deployment"), true},
		{"transaction alone", errors.New("transaction aborted"), false},
		{"wrapped", errors.Join(errors.New("import projects"), mongo.CommandError{Code: 20}), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := txn.IsNotSupported(tc.err); got != tc.want {
				t.Errorf("IsNotSupported(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

func TestRun_CommitsAllWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	err := txn.Run(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		if _, err := db.Collection("projects").InsertOne(ctx, bson.M{"identifier": "P1"}); err != nil {
			return err
		}
		_, err := db.Collection("students").InsertOne(ctx, bson.M{"student_id": "s1"})
		return err
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, coll := range []string{"projects", "students"} {
		n, err := db.Collection(coll).CountDocuments(ctx, bson.M{})
		if err != nil {
			t.Fatalf("count %s: %v", coll, err)
		}
		if n != 1 {
			t.Errorf("%s has %d documents, want 1", coll, n)
		}
	}
}

func TestRun_ReturnsCallbackError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	boom := errors.New("boom")
	err := txn.Run(ctx, db, nil, func(context.Context) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error, got %v", err)
	}
}

func TestRunSnapshot_Reads(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if _, err := db.Collection("units").InsertOne(ctx, bson.M{"code": "U1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var n int64
	err := txn.RunSnapshot(ctx, db, zap.NewNop(), func(ctx context.Context) error {
		var err error
		n, err = db.Collection("units").CountDocuments(ctx, bson.M{})
		return err
	})
	if err != nil {
		t.Fatalf("RunSnapshot failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}
