// internal/app/features/uploadcsv/routes.go
package uploadcsv

import "github.com/go-chi/chi/v5"

// Routes mounts the CSV import routes.
// Typically: r.Mount("/units/{unitID}/import", uploadcsv.Routes(handler))
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/projects", h.HandleProjects)
	r.Post("/students", h.HandleStudents)
	r.Post("/preferences", h.HandlePreferences)

	return r
}
