// internal/app/features/uploadcsv/upload.go
package uploadcsv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/csvutil"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
)

var errNoFile = errors.New("csv file is required")

// loadUnit resolves {unitID} and refuses units with a run in flight. It
// writes the error response and returns false when the request must stop.
func (h *Handler) loadUnit(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.Unit, bool) {
	unitID, ok := inputval.ParseObjectID(chi.URLParam(r, "unitID"))
	if !ok {
		apierrors.RenderBadRequest(w, "Invalid unit ID.", nil)
		return models.Unit{}, false
	}
	unit, err := unitstore.New(h.DB).GetByID(ctx, unitID)
	if errors.Is(err, unitstore.ErrNotFound) {
		apierrors.RenderNotFound(w, "Unit not found.")
		return models.Unit{}, false
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "load unit failed", err, "A database error occurred.")
		return models.Unit{}, false
	}
	if unit.Allocating {
		apierrors.RenderConflict(w, "An allocation is running for this unit. Try again when it finishes.")
		return models.Unit{}, false
	}
	return unit, true
}

// openCSV returns the uploaded document: the "csv" form file of a
// multipart request, or the raw body otherwise. The body is capped at
// csvutil.MaxUploadSize.
func openCSV(w http.ResponseWriter, r *http.Request) (io.ReadCloser, error) {
	r.Body = http.MaxBytesReader(w, r.Body, csvutil.MaxUploadSize)

	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt != "multipart/form-data" {
		return r.Body, nil
	}
	file, _, err := r.FormFile("csv")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, errNoFile
	}
	if err != nil {
		return nil, err
	}
	return file, nil
}

// renderReadError answers a failed read or parse of a kind import with a 400.
func renderReadError(w http.ResponseWriter, kind csvutil.Kind, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		apierrors.RenderBadRequest(w, fmt.Sprintf("CSV file is too large. Maximum size is %d MB.", csvutil.MaxUploadSize>>20), nil)
	case errors.Is(err, errNoFile):
		apierrors.RenderBadRequest(w, "CSV file is required.", nil)
	case errors.Is(err, csvutil.ErrTooManyRows):
		apierrors.RenderBadRequest(w, fmt.Sprintf("CSV file has too many rows. Maximum is %d.", csvutil.MaxRows(kind)), nil)
	default:
		apierrors.RenderBadRequest(w, "CSV file could not be parsed: "+err.Error(), nil)
	}
}

// renderRowErrors rejects a file with invalid rows. Nothing is imported.
func renderRowErrors(w http.ResponseWriter, rows []csvutil.RowError) {
	apierrors.RenderBadRequest(w, fmt.Sprintf("%d row(s) are invalid; nothing was imported.", len(rows)), rows)
}

// overrideFlag reads the "override" query parameter; def applies when it
// is absent or unparsable.
func overrideFlag(r *http.Request, def bool) bool {
	v := strings.TrimSpace(query.Get(r, "override"))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
