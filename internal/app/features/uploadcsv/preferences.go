// internal/app/features/uploadcsv/preferences.go
package uploadcsv

import (
	"context"
	"errors"
	"net/http"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	preferencestore "github.com/dalemusser/projectalloc/internal/app/store/preferences"
	projectstore "github.com/dalemusser/projectalloc/internal/app/store/projects"
	studentstore "github.com/dalemusser/projectalloc/internal/app/store/students"
	"github.com/dalemusser/projectalloc/internal/app/system/csvutil"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/app/system/txn"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// HandlePreferences imports student_id,project_identifier,rank rows.
// Rows naming an unknown student or project are skipped and reported.
// By default the file replaces every preference of the unit; with
// ?override=false only the preferences of students in the file are
// replaced.
//
// Route: POST /units/{unitID}/import/preferences
func (h *Handler) HandlePreferences(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Batch(), h.Log, "preference import")
	defer cancel()

	unit, ok := h.loadUnit(ctx, w, r)
	if !ok {
		return
	}

	body, err := openCSV(w, r)
	if err != nil {
		renderReadError(w, csvutil.KindPreferences, err)
		return
	}
	defer body.Close()

	parsed, err := csvutil.ParsePreferences(body, csvutil.OptionsFor(csvutil.KindPreferences))
	if err != nil {
		renderReadError(w, csvutil.KindPreferences, err)
		return
	}
	if parsed.HasErrors() {
		renderRowErrors(w, parsed.Errors)
		return
	}

	projects, err := projectstore.New(h.DB).ListByUnit(ctx, unit.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list projects failed", err, "A database error occurred.")
		return
	}
	students, err := studentstore.New(h.DB).ListByUnit(ctx, unit.ID)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list students failed", err, "A database error occurred.")
		return
	}

	prefs, skipped := resolvePreferences(parsed.Rows, projects, students)
	override := overrideFlag(r, true)

	var imported int
	err = txn.Run(ctx, h.DB, h.Log, func(ctx context.Context) error {
		var err error
		imported, err = preferencestore.New(h.DB).ReplaceForUnit(ctx, unit.ID, prefs, override)
		return err
	})
	if errors.Is(err, preferencestore.ErrDuplicatePreference) {
		apierrors.RenderConflict(w, "A student ranked the same project or used the same rank twice.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "preference import failed", err, "Unable to import preferences.")
		return
	}

	h.Log.Info("preferences imported",
		zap.String("unit_id", unit.ID.Hex()),
		zap.Int("rows", len(parsed.Rows)),
		zap.Int("imported", imported),
		zap.Int("skipped", len(skipped)),
		zap.Bool("override", override))

	apierrors.WriteJSON(w, http.StatusOK, PreferenceSummary{
		Rows:     len(parsed.Rows),
		Imported: imported,
		Skipped:  skipped,
	})
}

// resolvePreferences maps file identifiers to stored ids.
func resolvePreferences(rows []csvutil.PreferenceRow, projects []models.Project, students []models.Student) ([]models.Preference, []csvutil.RowError) {
	projectIDs := make(map[string]primitive.ObjectID, len(projects))
	for _, p := range projects {
		projectIDs[p.Identifier] = p.ID
	}
	studentIDs := make(map[string]primitive.ObjectID, len(students))
	for _, s := range students {
		studentIDs[s.StudentID] = s.ID
	}

	prefs := make([]models.Preference, 0, len(rows))
	var skipped []csvutil.RowError
	for _, row := range rows {
		sid, ok := studentIDs[row.StudentID]
		if !ok {
			skipped = append(skipped, csvutil.RowError{Line: row.Line, Reason: "unknown student " + row.StudentID})
			continue
		}
		pid, ok := projectIDs[row.ProjectIdentifier]
		if !ok {
			skipped = append(skipped, csvutil.RowError{Line: row.Line, Reason: "unknown project " + row.ProjectIdentifier})
			continue
		}
		prefs = append(prefs, models.Preference{StudentID: sid, ProjectID: pid, Rank: row.Rank})
	}
	return prefs, skipped
}
