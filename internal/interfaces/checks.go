package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/cards"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/database/settings"
	"github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// =============================================================================
// HTTP controllers
// =============================================================================

var _ http.CatalogService = (*catalog.Service)(nil)
var _ http.CardService = (*cards.Service)(nil)
var _ http.CirculationService = (*circulation.Service)(nil)
var _ http.TaskQueue = (*tasks.Client)(nil)
var _ http.ReportArchiver = (*audit.Auditor)(nil)

// =============================================================================
// Background tasks
// =============================================================================

var _ tasks.OverdueScanner = (*circulation.Service)(nil)
var _ tasks.SettingsWriter = (*settings.Repository)(nil)
var _ tasks.BookImporter = (*catalog.Service)(nil)
var _ tasks.ReportArchiver = (*audit.Auditor)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
