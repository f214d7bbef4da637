// internal/app/features/uploadcsv/students.go
package uploadcsv

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	preferencestore "github.com/dalemusser/projectalloc/internal/app/store/preferences"
	studentstore "github.com/dalemusser/projectalloc/internal/app/store/students"
	"github.com/dalemusser/projectalloc/internal/app/system/csvutil"
	"github.com/dalemusser/projectalloc/internal/app/system/htmlsanitize"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/app/system/txn"
	"go.uber.org/zap"
)

// HandleStudents imports a student list, matched by student id. With
// ?override=true students missing from the file are deleted along with
// their preferences.
//
// Route: POST /units/{unitID}/import/students
func (h *Handler) HandleStudents(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "student import")
	defer cancel()

	unit, ok := h.loadUnit(ctx, w, r)
	if !ok {
		return
	}

	body, err := openCSV(w, r)
	if err != nil {
		renderReadError(w, csvutil.KindStudents, err)
		return
	}
	defer body.Close()

	parsed, err := csvutil.ParseStudents(body, csvutil.OptionsFor(csvutil.KindStudents))
	if err != nil {
		renderReadError(w, csvutil.KindStudents, err)
		return
	}
	if parsed.HasErrors() {
		renderRowErrors(w, parsed.Errors)
		return
	}
	if len(parsed.Rows) == 0 {
		apierrors.RenderBadRequest(w, "CSV file contains no students.", nil)
		return
	}

	rows := make([]studentstore.Input, 0, len(parsed.Rows))
	for _, s := range parsed.Rows {
		rows = append(rows, studentstore.Input{
			StudentID: s.StudentID,
			Name:      htmlsanitize.PlainText(s.Name),
		})
	}
	override := overrideFlag(r, false)

	var plan studentstore.Plan
	var prefsRemoved int64
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if plan, err = studentstore.New(h.DB).Reconcile(ctx, unit.ID, rows, override); err != nil {
			return err
		}
		prefsRemoved, err = preferencestore.New(h.DB).DeleteByStudents(ctx, plan.DeletedIDs())
		return err
	})
	if errors.Is(err, studentstore.ErrDuplicateStudentID) {
		apierrors.RenderConflict(w, "A student id in the file already exists in this unit.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "student import failed", err, "Unable to import students.")
		return
	}

	h.Log.Info("students imported",
		zap.String("unit_id", unit.ID.Hex()),
		zap.Int("rows", len(rows)),
		zap.Int("created", len(plan.Create)),
		zap.Int("updated", len(plan.Update)),
		zap.Int("deleted", len(plan.Delete)),
		zap.Bool("override", override))

	apierrors.WriteJSON(w, http.StatusOK, ImportSummary{
		Rows:               len(rows),
		Created:            len(plan.Create),
		Updated:            len(plan.Update),
		Deleted:            len(plan.Delete),
		Unchanged:          plan.Unchanged,
		PreferencesRemoved: prefsRemoved,
	})
}
