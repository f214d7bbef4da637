// internal/app/features/allocations/runs.go
package allocations

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	runstore "github.com/dalemusser/projectalloc/internal/app/store/runs"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
)

const maxRunsLimit = 200

type runView struct {
	RunID       string    `json:"run_id"`
	Outcome     string    `json:"outcome"`
	Status      string    `json:"status"`
	StatusLabel string    `json:"status_label"`
	Objective   int       `json:"objective"`
	Students    int       `json:"students"`
	Projects    int       `json:"projects"`
	Placed      int       `json:"placed"`
	Requester   string    `json:"requester,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	DurationMS  int64     `json:"duration_ms"`
}

type runsResponse struct {
	UnitID string    `json:"unit_id"`
	Runs   []runView `json:"runs"`
}

// ServeRuns lists the unit's run history, most recent first. ?limit caps
// the number of runs returned.
//
// Route: GET /units/{unitID}/allocation/runs
func (h *Handler) ServeRuns(w http.ResponseWriter, r *http.Request) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return
	}

	limit := int64(runstore.DefaultLimit)
	if v := strings.TrimSpace(query.Get(r, "limit")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n < 1 {
			apierrors.RenderBadRequest(w, "limit must be a positive integer.", nil)
			return
		}
		limit = min(n, maxRunsLimit)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "allocation runs")
	defer cancel()

	if _, err := unitstore.New(h.DB).GetByID(ctx, unitID); err != nil {
		if errors.Is(err, unitstore.ErrNotFound) {
			apierrors.RenderNotFound(w, "Unit not found.")
			return
		}
		h.ErrLog.LogServerError(w, r, "load unit failed", err, "A database error occurred.")
		return
	}

	runs, err := runstore.New(h.DB).ListByUnit(ctx, unitID, limit)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list allocation runs failed", err, "A database error occurred.")
		return
	}

	resp := runsResponse{UnitID: unitID.Hex(), Runs: make([]runView, 0, len(runs))}
	for _, run := range runs {
		resp.Runs = append(resp.Runs, runView{
			RunID:       run.RunID,
			Outcome:     run.Outcome,
			Status:      run.Status,
			StatusLabel: models.DescribeStatus(run.Status),
			Objective:   run.Objective,
			Students:    run.Students,
			Projects:    run.Projects,
			Placed:      run.Placed,
			Requester:   run.Requester,
			Error:       run.Error,
			StartedAt:   run.StartedAt,
			FinishedAt:  run.FinishedAt,
			DurationMS:  run.Duration().Milliseconds(),
		})
	}
	apierrors.WriteJSON(w, http.StatusOK, resp)
}
