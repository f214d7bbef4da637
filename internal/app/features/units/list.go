// internal/app/features/units/list.go
package units

import (
	"maps"
	"net/http"
	"strings"

	apierrors "github.com/dalemusser/projectalloc/internal/app/features/errors"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/paging"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeList returns one page of units ordered by name. ?year filters by
// academic year; ?after and ?before carry the cursors of the neighbouring
// pages.
//
// Route: GET /units
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list units")
	defer cancel()

	base := bson.M{}
	if year := strings.TrimSpace(query.Get(r, "year")); year != "" {
		base["year"] = year
	}

	store := unitstore.New(h.DB)
	total, err := store.Count(ctx, base)
	if err != nil {
		h.ErrLog.LogServerError(w, r, "count units failed", err, "A database error occurred.")
		return
	}

	params := paging.ParseParams(r)
	ks := params.Keyset()
	filter := maps.Clone(base)
	if win := ks.Window("name_ci"); win != nil {
		maps.Copy(filter, win)
	}

	list, err := store.Find(ctx, filter, ks.FindOptions("name_ci"))
	if err != nil {
		h.ErrLog.LogServerError(w, r, "list units failed", err, "A database error occurred.")
		return
	}
	page := paging.Trim(&list, params,
		func(u models.Unit) string { return u.NameCI },
		func(u models.Unit) primitive.ObjectID { return u.ID })

	if list == nil {
		list = []models.Unit{}
	}
	apierrors.WriteJSON(w, http.StatusOK, listResponse{Units: list, Total: total, Page: page})
}
