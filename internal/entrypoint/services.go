package entrypoint

import (
	"fmt"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/cards"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/database/settings"
	"github.com/mrlokans/librarian/internal/metrics"
)

// Services bundles the store and the domain services built on it. The
// server and the CLI commands share this wiring.
type Services struct {
	DB       *database.Database
	Gateway  *database.Gateway
	Settings *settings.Repository

	Audit   *audit.Service
	Auditor *audit.Auditor
	Metrics *metrics.Metrics

	Catalog     *catalog.Service
	Cards       *cards.Service
	Circulation *circulation.Service
}

// NewServices opens the configured database, migrates it and builds the
// domain services. m may be nil.
func NewServices(cfg *config.Config, m *metrics.Metrics) (*Services, error) {
	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	gateway, err := database.NewGateway(db)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize gateway: %w", err)
	}

	auditService := audit.NewService(auditrepo.NewRepository(db.DB))
	loanPeriod := cfg.Circulation.LoanPeriod()

	return &Services{
		DB:       db,
		Gateway:  gateway,
		Settings: settings.NewRepository(db.DB),
		Audit:    auditService,
		Auditor:  audit.NewAuditor(cfg.Audit.Dir),
		Metrics:  m,
		Catalog: catalog.NewService(db.DB, gateway, catalog.Options{
			SearchLimit:  cfg.Circulation.SearchLimit,
			ErrorSamples: cfg.Circulation.ImportErrorSamples,
		}).WithAudit(auditService).WithMetrics(m),
		Cards: cards.NewService(db.DB, gateway, loanPeriod).WithAudit(auditService),
		Circulation: circulation.NewService(db, gateway, circulation.Options{
			LoanPeriod:          loanPeriod,
			RecommendationLimit: cfg.Circulation.RecommendationLimit,
			RankingLimit:        cfg.Circulation.RankingLimit,
		}).WithAudit(auditService).WithMetrics(m),
	}, nil
}

// Close waits for pending audit writes and closes the database.
func (s *Services) Close() error {
	s.Audit.Flush()
	return s.DB.Close()
}
