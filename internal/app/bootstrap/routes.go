// internal/app/bootstrap/routes.go
package bootstrap

import (
	"errors"
	"net/http"

	allocationsfeature "github.com/dalemusser/projectalloc/internal/app/features/allocations"
	errorsfeature "github.com/dalemusser/projectalloc/internal/app/features/errors"
	healthfeature "github.com/dalemusser/projectalloc/internal/app/features/health"
	unitsfeature "github.com/dalemusser/projectalloc/internal/app/features/units"
	uploadcsvfeature "github.com/dalemusser/projectalloc/internal/app/features/uploadcsv"
	"github.com/dalemusser/projectalloc/internal/app/system/ratelimit"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup and
// Startup have completed, so the allocation dispatcher is already running.
//
// Routes:
//
//	GET    /health
//	GET    /units                                  list units
//	POST   /units                                  create a unit
//	GET    /units/{unitID}                         unit with population counts
//	DELETE /units/{unitID}                         delete a unit and its data
//	POST   /units/{unitID}/allocation              queue an allocation run
//	GET    /units/{unitID}/allocation              run state, capacity and result
//	GET    /units/{unitID}/allocation/export.csv   committed allocation as CSV
//	GET    /units/{unitID}/allocation/runs         run history
//	POST   /units/{unitID}/import/projects         project list CSV
//	POST   /units/{unitID}/import/students         student list CSV
//	POST   /units/{unitID}/import/preferences      preference list CSV
//
// Write requests under /units are rate limited per client.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	if deps.Services == nil || deps.Services.Dispatcher == nil {
		return nil, errors.New("build handler: allocation dispatcher not started")
	}

	// Create error logger for handlers.
	errLog := errorsfeature.NewErrorLogger(logger)

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, deps.MongoDatabase, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	limiter := ratelimit.New(appCfg.RateLimitPerMinute, appCfg.RateLimitBurst)
	r.Group(func(r chi.Router) {
		r.Use(limiter.Middleware(logger))

		// Units
		unitsHandler := unitsfeature.NewHandler(deps.MongoDatabase, errLog, logger)
		r.Mount("/units", unitsfeature.Routes(unitsHandler))

		// Allocation runs and results
		allocHandler := allocationsfeature.NewHandler(deps.MongoDatabase, deps.Services.Dispatcher, errLog, logger)
		r.Mount("/units/{unitID}/allocation", allocationsfeature.Routes(allocHandler))

		// CSV imports
		uploadHandler := uploadcsvfeature.NewHandler(deps.MongoDatabase, errLog, logger)
		r.Mount("/units/{unitID}/import", uploadcsvfeature.Routes(uploadHandler))
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		errorsfeature.RenderNotFound(w, "Not found.")
	})

	return r, nil
}
