// internal/app/features/allocations/export.go
package allocations

import (
	"errors"
	"mime"
	"net/http"
	"strconv"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	allocationstore "github.com/dalemusser/projectalloc/internal/app/store/allocations"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/go-chi/chi/v5"
)

// ServeExport downloads the committed allocation as CSV.
//
// Route: GET /units/{unitID}/allocation/export.csv
func (h *Handler) ServeExport(w http.ResponseWriter, r *http.Request) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "allocation export")
	defer cancel()

	name, data, err := h.Loader.ExportCSV(ctx, unitID)
	var nf *allocation.NotFoundError
	switch {
	case errors.As(err, &nf):
		apierrors.RenderNotFound(w, "Unit not found.")
		return
	case errors.Is(err, allocationstore.ErrNotFound):
		apierrors.RenderNotFound(w, "This unit has not been allocated yet.")
		return
	case err != nil:
		h.ErrLog.LogServerError(w, r, "export allocation failed", err, "Unable to export the allocation.")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
