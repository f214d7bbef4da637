// internal/app/bootstrap/appconfig.go
package bootstrap

import (
	"time"

	"github.com/dalemusser/projectalloc/internal/app/allocation"
)

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS, body limits).
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Email/SMTP configuration for run notifications
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty disables AUTH)
	MailSMTPPass string
	MailFrom     string
	MailFromName string

	// Base URL for links in notification emails
	BaseURL  string // e.g., "http://localhost:3000"
	SiteName string // shown in email subjects

	// Allocation engine
	SolverTimeout     time.Duration           // bound on one gophersat search
	CapacityCheck     allocation.CapacityMode // pre-check condition
	AllocationWorkers int                     // concurrent runs across units
	AllocationQueue   int                     // queued runs before 503

	// Write requests per client (0 disables)
	RateLimitPerMinute int
	RateLimitBurst     int
}
