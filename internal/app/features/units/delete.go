// internal/app/features/units/delete.go
package units

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	allocationstore "github.com/dalemusser/projectalloc/internal/app/store/allocations"
	preferencestore "github.com/dalemusser/projectalloc/internal/app/store/preferences"
	projectstore "github.com/dalemusser/projectalloc/internal/app/store/projects"
	runstore "github.com/dalemusser/projectalloc/internal/app/store/runs"
	studentstore "github.com/dalemusser/projectalloc/internal/app/store/students"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/app/system/txn"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// HandleDelete deletes a unit with its projects, students, preferences and
// committed allocation and run history. A unit with a run in flight cannot be deleted.
//
// Route: DELETE /units/{unitID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete unit")
	defer cancel()

	units := unitstore.New(h.DB)
	unit, err := units.GetByID(ctx, unitID)
	if errors.Is(err, unitstore.ErrNotFound) {
		apierrors.RenderNotFound(w, "Unit not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load unit failed", err, "A database error occurred.")
		return
	}
	if unit.Allocating {
		apierrors.RenderConflict(w, "An allocation is running for this unit.")
		return
	}

	if err := txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		if _, err := preferencestore.New(h.DB).DeleteByUnit(ctx, unitID); err != nil {
			return err
		}
		if _, err := studentstore.New(h.DB).DeleteByUnit(ctx, unitID); err != nil {
			return err
		}
		if _, err := projectstore.New(h.DB).DeleteByUnit(ctx, unitID); err != nil {
			return err
		}
		if _, err := allocationstore.New(h.DB).DeleteByUnit(ctx, unitID); err != nil {
			return err
		}
		if _, err := runstore.New(h.DB).DeleteByUnit(ctx, unitID); err != nil {
			return err
		}
		_, err := units.Delete(ctx, unitID)
		return err
	}); err != nil {
		h.ErrLog.LogServerError(w, r, "delete unit failed", err, "Unable to delete unit.")
		return
	}

	h.Log.Info("unit deleted", zap.String("unit_id", unitID.Hex()), zap.String("code", unit.Code))
	w.WriteHeader(http.StatusNoContent)
}
