package errors_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRenderBadRequest_WithDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	apierrors.RenderBadRequest(rec, "invalid CSV", []string{"line 2: missing name"})

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body struct {
		Error   string   `json:"error"`
		Details []string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "invalid CSV" || len(body.Details) != 1 {
		t.Errorf("body = %+v", body)
	}
}

func TestRenderNotFound_OmitsDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	apierrors.RenderNotFound(rec, "unit not found")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "details") {
		t.Errorf("unexpected details in %q", rec.Body.String())
	}
}

func TestLogServerError_HidesInternalError(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	el := apierrors.NewErrorLogger(zap.New(core))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/units", nil)
	el.LogServerError(rec, req, "list units failed", errors.New("connection reset"), "A database error occurred.")

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "connection reset") {
		t.Error("internal error leaked to client")
	}
	if logs.Len() != 1 || logs.All()[0].Message != "list units failed" {
		t.Errorf("expected one logged error, got %d", logs.Len())
	}
}
