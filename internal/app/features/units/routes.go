// internal/app/features/units/routes.go
package units

import "github.com/go-chi/chi/v5"

// Routes mounts the unit routes under the base path (typically "/units").
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/{unitID}", h.ServeView)
	r.Delete("/{unitID}", h.HandleDelete)

	return r
}
