// internal/app/features/units/create.go
package units

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/htmlsanitize"
	"github.com/dalemusser/projectalloc/internal/app/system/inputval"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"go.uber.org/zap"
)

// HandleCreate creates a unit.
//
// Route: POST /units
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		apierrors.RenderBadRequest(w, "Request body must be a JSON object.", nil)
		return
	}

	unit, problems := req.toUnit()
	if len(problems) > 0 {
		apierrors.RenderBadRequest(w, "Invalid unit.", problems)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	created, err := unitstore.New(h.DB).Create(ctx, unit)
	if errors.Is(err, unitstore.ErrDuplicateCode) {
		apierrors.RenderConflict(w, "A unit with this code already exists.")
		return
	}
	if err != nil {
		h.ErrLog.LogServerError(w, r, "create unit failed", err, "A database error occurred.")
		return
	}

	h.Log.Info("unit created", zap.String("unit_id", created.ID.Hex()), zap.String("code", created.Code))
	apierrors.WriteJSON(w, http.StatusCreated, created)
}

// toUnit normalises and validates the request.
func (req createRequest) toUnit() (models.Unit, []string) {
	u := models.Unit{
		Code:           strings.TrimSpace(htmlsanitize.PlainText(req.Code)),
		Name:           htmlsanitize.PlainText(req.Name),
		Year:           strings.TrimSpace(req.Year),
		Semester:       strings.TrimSpace(req.Semester),
		MinPreferences: req.MinPreferences,
		MaxPreferences: req.MaxPreferences,
		ManagerEmail:   strings.ToLower(strings.TrimSpace(req.ManagerEmail)),
	}

	var problems []string
	if u.Code == "" {
		problems = append(problems, "code is required")
	}
	if u.Name == "" {
		problems = append(problems, "name is required")
	}
	if u.MinPreferences != nil && *u.MinPreferences < 0 {
		problems = append(problems, "min_preferences must not be negative")
	}
	if u.MaxPreferences != nil && *u.MaxPreferences < 0 {
		problems = append(problems, "max_preferences must not be negative")
	}
	if u.MinPreferences != nil && u.MaxPreferences != nil && *u.MaxPreferences < *u.MinPreferences {
		problems = append(problems, "max_preferences must be at least min_preferences")
	}
	if u.ManagerEmail != "" && !inputval.IsValidEmail(u.ManagerEmail) {
		problems = append(problems, "manager_email is not a valid email address")
	}
	return u, problems
}
