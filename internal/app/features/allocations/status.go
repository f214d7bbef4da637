// internal/app/features/allocations/status.go
package allocations

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	allocationstore "github.com/dalemusser/projectalloc/internal/app/store/allocations"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type statusResponse struct {
	UnitID           string                    `json:"unit_id"`
	Code             string                    `json:"code"`
	Name             string                    `json:"name"`
	Allocating       bool                      `json:"allocating"`
	AllocationStatus string                    `json:"allocation_status,omitempty"`
	StatusLabel      string                    `json:"status_label"`
	LastRunStatus    string                    `json:"last_run_status,omitempty"`
	LastRunAt        *time.Time                `json:"last_run_at,omitempty"`
	Capacity         allocation.CapacityReport `json:"capacity"`
	Allocation       *allocationView           `json:"allocation"`
}

type allocationView struct {
	RunID       string        `json:"run_id"`
	Status      string        `json:"status"`
	Objective   int           `json:"objective"`
	AllocatedAt time.Time     `json:"allocated_at"`
	Unplaced    int           `json:"unplaced"`
	Assignments []placementRow `json:"assignments"`
}

type placementRow struct {
	StudentID         string `json:"student_id"`
	StudentName       string `json:"student_name"`
	ProjectIdentifier string `json:"project_identifier,omitempty"`
	ProjectName       string `json:"project_name,omitempty"`
	Rank              *int   `json:"rank,omitempty"`
}

// ServeStatus reports the unit's run state, its capacity against the
// current population and the committed allocation, if any.
//
// Route: GET /units/{unitID}/allocation
func (h *Handler) ServeStatus(w http.ResponseWriter, r *http.Request) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "allocation status")
	defer cancel()

	snap, err := h.Loader.LoadSnapshot(ctx, unitID)
	var nf *allocation.NotFoundError
	if errors.As(err, &nf) {
		apierrors.RenderNotFound(w, "Unit not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load unit snapshot failed", err, "A database error occurred.")
		return
	}

	resp := statusResponse{
		UnitID:           unitID.Hex(),
		Code:             snap.Unit.Code,
		Name:             snap.Unit.Name,
		Allocating:       snap.Unit.Allocating,
		AllocationStatus: snap.Unit.AllocationStatus,
		StatusLabel:      models.DescribeStatus(snap.Unit.AllocationStatus),
		LastRunStatus:    snap.Unit.LastRunStatus,
		LastRunAt:        snap.Unit.LastRunAt,
		Capacity:         allocation.Capacity(snap),
	}

	alloc, err := allocationstore.New(h.DB).GetByUnit(ctx, unitID)
	switch {
	case err == nil:
		resp.Allocation = viewOf(snap, &alloc)
	case errors.Is(err, allocationstore.ErrNotFound):
	default:
		h.ErrLog.LogServerError(w, r, "load allocation failed", err, "A database error occurred.")
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, resp)
}

// viewOf resolves assignment ids against the snapshot. Students deleted
// since the run are omitted.
func viewOf(snap *allocation.Snapshot, a *models.Allocation) *allocationView {
	projects := make(map[primitive.ObjectID]models.Project, len(snap.Projects))
	for _, p := range snap.Projects {
		projects[p.ID] = p
	}
	students := make(map[primitive.ObjectID]models.Student, len(snap.Students))
	for _, s := range snap.Students {
		students[s.ID] = s
	}

	v := &allocationView{
		RunID:       a.RunID,
		Status:      a.Status,
		Objective:   a.Objective,
		AllocatedAt: a.AllocatedAt,
		Assignments: make([]placementRow, 0, len(a.Assignments)),
	}
	for _, as := range a.Assignments {
		st, ok := students[as.StudentID]
		if !ok {
			continue
		}
		row := placementRow{StudentID: st.StudentID, StudentName: st.Name, Rank: as.Rank}
		if as.ProjectID != nil {
			if p, ok := projects[*as.ProjectID]; ok {
				row.ProjectIdentifier, row.ProjectName = p.Identifier, p.Name
			}
		}
		if row.ProjectIdentifier == "" {
			v.Unplaced++
		}
		v.Assignments = append(v.Assignments, row)
	}
	sort.Slice(v.Assignments, func(i, j int) bool {
		return v.Assignments[i].StudentID < v.Assignments[j].StudentID
	})
	return v
}
