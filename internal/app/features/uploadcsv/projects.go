// internal/app/features/uploadcsv/projects.go
package uploadcsv

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	preferencestore "github.com/dalemusser/projectalloc/internal/app/store/preferences"
	projectstore "github.com/dalemusser/projectalloc/internal/app/store/projects"
	"github.com/dalemusser/projectalloc/internal/app/system/csvutil"
	"github.com/dalemusser/projectalloc/internal/app/system/htmlsanitize"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/app/system/txn"
	"go.uber.org/zap"
)

// HandleProjects imports a project list. Projects are matched by
// identifier; with ?override=true projects missing from the file are
// deleted together with the preferences that name them.
//
// Route: POST /units/{unitID}/import/projects
func (h *Handler) HandleProjects(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "project import")
	defer cancel()

	unit, ok := h.loadUnit(ctx, w, r)
	if !ok {
		return
	}

	body, err := openCSV(w, r)
	if err != nil {
		renderReadError(w, csvutil.KindProjects, err)
		return
	}
	defer body.Close()

	parsed, err := csvutil.ParseProjects(body, csvutil.OptionsFor(csvutil.KindProjects))
	if err != nil {
		renderReadError(w, csvutil.KindProjects, err)
		return
	}
	if parsed.HasErrors() {
		renderRowErrors(w, parsed.Errors)
		return
	}
	if len(parsed.Rows) == 0 {
		apierrors.RenderBadRequest(w, "CSV file contains no projects.", nil)
		return
	}

	rows := make([]projectstore.Input, 0, len(parsed.Rows))
	for _, p := range parsed.Rows {
		rows = append(rows, projectstore.Input{
			Identifier:  p.Identifier,
			Name:        htmlsanitize.PlainText(p.Name),
			Description: htmlsanitize.Description(p.Description),
			MinStudents: p.MinStudents,
			MaxStudents: p.MaxStudents,
		})
	}
	override := overrideFlag(r, false)

	var plan projectstore.Plan
	var prefsRemoved int64
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		if plan, err = projectstore.New(h.DB).Reconcile(ctx, unit.ID, rows, override); err != nil {
			return err
		}
		prefsRemoved, err = preferencestore.New(h.DB).DeleteByProjects(ctx, plan.DeletedIDs())
		return err
	})
	if errors.Is(err, projectstore.ErrDuplicateIdentifier) {
		apierrors.RenderConflict(w, "A project identifier in the file already exists in this unit.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "project import failed", err, "Unable to import projects.")
		return
	}

	h.Log.Info("projects imported",
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
