package http

import (
	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/metrics"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core services
	Catalog     CatalogService
	Cards       CardService
	Circulation CirculationService
	Database    *database.Database

	// Audit log and import report archive (optional)
	AuditService *audit.Service
	Auditor      ReportArchiver

	// Authentication. SessionManager and AuthController are required when
	// AuthConfig.Mode is local.
	AuthConfig     config.Auth
	SessionManager *auth.SessionManager
	AuthController *auth.AuthController
	CSRFSecret     []byte

	// Task queue client (optional)
	TaskQueue TaskQueue

	// Prometheus collectors (optional)
	Metrics *metrics.Metrics

	// Application info
	Version string
}
