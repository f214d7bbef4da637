// internal/app/features/allocations/start.go
package allocations

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/workers"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type startRequest struct {
	// Requester receives the notifications instead of the unit manager.
	Requester string `json:"requester"`
}

type startResponse struct {
	UnitID string `json:"unit_id"`
	Status string `json:"status"`
}

// HandleStart queues an allocation run for the unit. At most one run per
// unit is in flight; a second request while one runs gets 409.
//
// Route: POST /units/{unitID}/allocation
func (h *Handler) HandleStart(w http.ResponseWriter, r *http.Request) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return
	}

	var req startRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4<<10)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		apierrors.RenderBadRequest(w, "Request body must be empty or a JSON object.", nil)
		return
	}
	req.Requester = strings.ToLower(strings.TrimSpace(req.Requester))
	if req.Requester != "" && !inputval.IsValidEmail(req.Requester) {
		apierrors.RenderBadRequest(w, "requester is not a valid email address.", nil)
		return
	}

	err := h.Dispatch.Submit(r.Context(), unitID, req.Requester)
	switch {
	case err == nil:
	case errors.Is(err, unitstore.ErrNotFound):
		apierrors.RenderNotFound(w, "Unit not found.")
		return
	case errors.Is(err, unitstore.ErrAllocationInProgress):
		apierrors.RenderConflict(w, "An allocation is already running for this unit.")
		return
	case errors.Is(err, workers.ErrQueueFull), errors.Is(err, workers.ErrDispatcherStopped):
		apierrors.RenderError(w, http.StatusServiceUnavailable, "The allocation service is busy. Try again shortly.")
		return
	default:
		h.ErrLog.LogServerError(w, r, "submit allocation failed", err, "Unable to start the allocation.")
		return
	}

	h.Log.Info("allocation queued", zap.String("unit_id", unitID.Hex()), zap.String("requester", req.Requester))
	apierrors.WriteJSON(w, http.StatusAccepted, startResponse{UnitID: unitID.Hex(), Status: "queued"})
}
