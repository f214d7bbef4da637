// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	"github.com/dalemusser/projectalloc/internal/app/solver/pbsolver"
	runstore "github.com/dalemusser/projectalloc/internal/app/store/runs"
	unitstore "github.com/dalemusser/projectalloc/internal/app/store/units"
	"github.com/dalemusser/projectalloc/internal/app/system/mailer"
	"github.com/dalemusser/projectalloc/internal/app/system/timeouts"
	"github.com/dalemusser/projectalloc/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// solveOverhead is the time a run needs beyond the solver search for loading
// the snapshot and committing the result.
const solveOverhead = time.Minute

// Startup runs after the DB is ready and before the handler is built. It
// clears allocation flags left by a previous process, then builds the
// engine, mailer and dispatcher and starts the dispatcher's workers.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Services == nil {
		return errors.New("startup: DBDeps.Services is nil")
	}

	if n := timeouts.ConfigureFromEnv(); n > 0 {
		logger.Info("timeouts configured from environment", zap.Int("count", n))
	}
	if timeouts.Solve() < appCfg.SolverTimeout+solveOverhead {
		timeouts.Configure(timeouts.Config{Solve: appCfg.SolverTimeout + solveOverhead})
	}

	units := unitstore.New(deps.MongoDatabase)
	cctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), logger, "clear stale allocation flags")
	n, err := units.ClearStaleAllocating(cctx)
	cancel()
	if err != nil {
		logger.Error("clear stale allocation flags failed", zap.Error(err))
		return err
	}
	if n > 0 {
		logger.Warn("cleared allocation flags left by a previous process", zap.Int64("units", n))
	}

	deps.Services.Dispatcher = newDispatcher(appCfg, deps, logger)
	deps.Services.Dispatcher.Start()
	return nil
}

func newDispatcher(appCfg AppConfig, deps DBDeps, logger *zap.Logger) *workers.AllocationDispatcher {
	factory := pbsolver.NewFactory(pbsolver.Options{
		Timeout: appCfg.SolverTimeout,
		Logger:  logger.Named("solver"),
	})
	engine := allocation.NewMongoEngine(deps.MongoDatabase, factory, allocation.Options{
		CapacityCheck: appCfg.CapacityCheck,
		Logger:        logger.Named("allocation"),
	})
	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		User:     appCfg.MailSMTPUser,
		Pass:     appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
		FromName: appCfg.MailFromName,
	}, logger.Named("mailer"))

	d := workers.NewAllocationDispatcher(
		unitstore.New(deps.MongoDatabase),
		engine,
		allocation.NewStoreLoader(deps.MongoDatabase, logger),
		mail,
		workers.DispatcherConfig{
			Workers:   appCfg.AllocationWorkers,
			QueueSize: appCfg.AllocationQueue,
			SiteName:  appCfg.SiteName,
			BaseURL:   appCfg.BaseURL,
		},
		logger.Named("dispatcher"),
	)
	d.SetRunLog(runstore.New(deps.MongoDatabase))
	return d
}
