package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func testAppConfig() AppConfig {
	return AppConfig{
		MongoURI:          "mongodb://localhost:27017",
		SiteName:          "Project Allocation",
		BaseURL:           "http://localhost:3000",
		SolverTimeout:     10 * time.Second,
		CapacityCheck:     allocation.CapacityAggregate,
		AllocationWorkers: 1,
		AllocationQueue:   4,
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*AppConfig)
		wantErr string
	}{
		{"valid", func(*AppConfig) {}, ""},
		{"smallest capacity check", func(c *AppConfig) { c.CapacityCheck = allocation.CapacitySmallest }, ""},
		{"bad uri", func(c *AppConfig) { c.MongoURI = "postgres://localhost:5432" }, "invalid MongoDB URI"},
		{"bad capacity check", func(c *AppConfig) { c.CapacityCheck = "strict" }, "capacity_check"},
		{"zero solver timeout", func(c *AppConfig) { c.SolverTimeout = 0 }, "solver_timeout"},
		{"negative workers", func(c *AppConfig) { c.AllocationWorkers = -1 }, "allocation_workers"},
		{"negative rate limit", func(c *AppConfig) { c.RateLimitPerMinute = -5 }, "rate_limit_per_minute"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testAppConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(nil, cfg, testLogger())
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func startTestApp(t *testing.T) DBDeps {
	t.Helper()
	timeouts.Reset()
	t.Cleanup(timeouts.Reset)

	db := testutil.SetupTestDB(t)
	deps := DBDeps{MongoDatabase: db, MongoClient: db.Client(), Services: &Services{}}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := EnsureSchema(ctx, nil, testAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return deps
}

func TestStartup_ClearsStaleFlagsAndStartsDispatcher(t *testing.T) {
	deps := startTestApp(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	unit := testutil.NewFixtures(t, deps.MongoDatabase).CreateUnit(ctx, "U1", "Unit One")
	if _, err := deps.MongoDatabase.Collection("units").UpdateByID(ctx, unit.ID, bson.M{"$set": bson.M{"allocating": true}}); err != nil {
		t.Fatalf("flag unit: %v", err)
	}

	if err := Startup(ctx, nil, testAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	defer deps.Services.Dispatcher.Stop()

	if deps.Services.Dispatcher == nil {
		t.Fatal("dispatcher not built")
	}
	var got struct {
		Allocating bool `bson:"allocating"`
	}
	if err := deps.MongoDatabase.Collection("units").FindOne(ctx, bson.M{"_id": unit.ID}).Decode(&got); err != nil {
		t.Fatalf("load unit: %v", err)
	}
	if got.Allocating {
		t.Error("stale allocating flag should be cleared")
	}
	if timeouts.Solve() < 10*time.Second+solveOverhead {
		t.Errorf("Solve timeout %s does not cover the solver timeout", timeouts.Solve())
	}
}

func TestBuildHandler_RequiresDispatcher(t *testing.T) {
	if _, err := BuildHandler(nil, testAppConfig(), DBDeps{Services: &Services{}}, testLogger()); err == nil {
		t.Fatal("expected an error without a dispatcher")
	}
}

func TestBuildHandler_EndToEnd(t *testing.T) {
	deps := startTestApp(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	if err := Startup(ctx, nil, testAppConfig(), deps, testLogger()); err != nil {
		t.Fatalf("Startup failed: %v", err)
	}
	stopped := false
	defer func() {
		if !stopped {
			deps.Services.Dispatcher.Stop()
		}
	}()

	h, err := BuildHandler(nil, testAppConfig(), deps, testLogger())
	if err != nil {
		t.Fatalf("BuildHandler failed: %v", err)
	}
	srv := httptest.NewServer(h)
	defer srv.Close()

	do := func(method, path, contentType, body string) *http.Response {
		t.Helper()
		req, err := http.NewRequestWithContext(context.Background(), method, srv.URL+path, strings.NewReader(body))
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := srv.Client().Do(req)
		if err != nil {
			t.Fatalf("%s %s: %v", method, path, err)
		}
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}
	expect := func(resp *http.Response, status int) {
		t.Helper()
		if resp.StatusCode != status {
			t.Fatalf("%s %s: status %d, want %d", resp.Request.Method, resp.Request.URL.Path, resp.StatusCode, status)
		}
	}

	expect(do(http.MethodGet, "/health", "", ""), http.StatusOK)

	resp := do(http.MethodPost, "/units", "application/json", `{"code": "COMP3000", "name": "Software Projects"}`)
	expect(resp, http.StatusCreated)
	var unit struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&unit); err != nil {
		t.Fatalf("decode unit: %v", err)
	}
	base := "/units/" + unit.ID

	expect(do(http.MethodPost, base+"/import/projects", "text/csv", "P1,Robots,1,2\nP2,Compilers,1,2\n"), http.StatusOK)
	expect(do(http.MethodPost, base+"/import/students", "text/csv", "s1,Sam\ns2,Alex\ns3,Kim\n"), http.StatusOK)
	expect(do(http.MethodPost, base+"/import/preferences", "text/csv", "s1,P1,1\ns2,P1,1\ns3,P2,1\ns3,P1,2\n"), http.StatusOK)
	expect(do(http.MethodGet, base, "", ""), http.StatusOK)
	expect(do(http.MethodGet, base+"/allocation/export.csv", "", ""), http.StatusNotFound)

	expect(do(http.MethodPost, base+"/allocation", "", ""), http.StatusAccepted)
	deps.Services.Dispatcher.Stop()
	stopped = true

	resp = do(http.MethodGet, base+"/allocation", "", "")
	expect(resp, http.StatusOK)
	var status struct {
		Allocating       bool   `json:"allocating"`
		AllocationStatus string `json:"allocation_status"`
		Allocation       *struct {
			Objective int `json:"objective"`
		} `json:"allocation"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if status.Allocating || status.AllocationStatus != "optimal" || status.Allocation == nil {
		t.Fatalf("status = %+v", status)
	}
	if status.Allocation.Objective != 3 {
		t.Errorf("objective = %d, want 3", status.Allocation.Objective)
	}

	expect(do(http.MethodGet, base+"/allocation/export.csv", "", ""), http.StatusOK)

	resp = do(http.MethodGet, base+"/allocation/runs", "", "")
	expect(resp, http.StatusOK)
	var history struct {
		Runs []struct {
			Status   string `json:"status"`
			Students int    `json:"students"`
			Placed   int    `json:"placed"`
		} `json:"runs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(history.Runs) != 1 || history.Runs[0].Status != "optimal" || history.Runs[0].Placed != 3 {
		t.Errorf("runs = %+v", history.Runs)
	}

	expect(do(http.MethodGet, "/nowhere", "", ""), http.StatusNotFound)
}
