// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the allocation service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, solver_timeout, etc.
//   - Environment variables: PROJECTALLOC_MONGO_URI, PROJECTALLOC_SOLVER_TIMEOUT, etc.
//   - Command-line flags: --mongo_uri, --solver_timeout, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "project_alloc", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@localhost", Desc: "From email address"},
	{Name: "mail_from_name", Default: "Project Allocation", Desc: "From display name"},

	// Links and naming in notifications
	{Name: "base_url", Default: "http://localhost:3000", Desc: "Base URL for email links"},
	{Name: "site_name", Default: "Project Allocation", Desc: "Name used in email subjects"},

	// Allocation engine
	{Name: "solver_timeout", Default: "2m", Desc: "Time limit for one solver search (e.g., 90s, 2m)"},
	{Name: "capacity_check", Default: "aggregate", Desc: "Capacity pre-check: 'aggregate' (sum of minimums) or 'smallest' (smallest minimum)"},
	{Name: "allocation_workers", Default: 2, Desc: "Allocation runs executed concurrently"},
	{Name: "allocation_queue", Default: 64, Desc: "Allocation runs that may wait for a worker"},

	// Write request limits
	{Name: "rate_limit_per_minute", Default: 60, Desc: "Write requests per client per minute (0 disables)"},
	{Name: "rate_limit_burst", Default: 10, Desc: "Write requests a client may send in a burst"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig merges .env files, config files,
// PROJECTALLOC_* environment variables and flags with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "PROJECTALLOC", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		// Email/SMTP
		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		MailFromName: appValues.String("mail_from_name"),

		BaseURL:  appValues.String("base_url"),
		SiteName: appValues.String("site_name"),

		// Allocation engine
		SolverTimeout:     appValues.Duration("solver_timeout", 2*time.Minute),
		CapacityCheck:     allocation.CapacityMode(appValues.String("capacity_check")),
		AllocationWorkers: appValues.Int("allocation_workers"),
		AllocationQueue:   appValues.Int("allocation_queue"),

		RateLimitPerMinute: appValues.Int("rate_limit_per_minute"),
		RateLimitBurst:     appValues.Int("rate_limit_burst"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// The MongoDB URI is checked before connecting; the engine settings are
// checked here so a typo fails startup instead of the first run.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if _, err := allocation.ParseCapacityMode(string(appCfg.CapacityCheck)); err != nil {
		return fmt.Errorf("capacity_check: %w", err)
	}
	if appCfg.SolverTimeout <= 0 {
		return fmt.Errorf("solver_timeout must be positive, got %s", appCfg.SolverTimeout)
	}
	if appCfg.AllocationWorkers < 0 || appCfg.AllocationQueue < 0 {
		return fmt.Errorf("allocation_workers and allocation_queue must not be negative")
	}
	if appCfg.RateLimitPerMinute < 0 || appCfg.RateLimitBurst < 0 {
		return fmt.Errorf("rate_limit_per_minute and rate_limit_burst must not be negative")
	}
	return nil
}
