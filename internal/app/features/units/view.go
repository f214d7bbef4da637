// internal/app/features/units/view.go
package units

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	preferencestore "github.com/dalemusser/projectalloc/internal/app/store/preferences"
	projectstore "github.com/dalemusser/projectalloc/internal/app/store/projects"
	studentstore "github.com/dalemusser/projectalloc/internal/app/store/students"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// ServeView returns a unit with its population counts.
//
// Route: GET /units/{unitID}
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	unit, err := unitstore.New(h.DB).GetByID(ctx, unitID)
	if errors.Is(err, unitstore.ErrNotFound) {
		apierrors.RenderNotFound(w, "Unit not found.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load unit failed", err, "A database error occurred.")
		return
	}

	view := unitView{Unit: unit, StatusLabel: models.DescribeStatus(unit.AllocationStatus)}
	if view.Projects, err = projectstore.New(h.DB).CountByUnit(ctx, unitID); err == nil {
		if view.Students, err = studentstore.New(h.DB).CountByUnit(ctx, unitID); err == nil {
			view.Preferences, err = preferencestore.New(h.DB).CountByUnit(ctx, unitID)
		}
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count unit population failed", err, "A database error occurred.")
		return
	}

	apierrors.WriteJSON(w, http.StatusOK, view)
}
