// internal/app/features/allocations/routes.go
package allocations

import "github.com/go-chi/chi/v5"

// Routes mounts under "/units/{unitID}/allocation".
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.HandleStart)
	r.Get("/", h.ServeStatus)
	r.Get("/export.csv", h.ServeExport)
	r.Get("/runs", h.ServeRuns)

	return r
}
