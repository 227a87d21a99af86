// Package circulation implements lending: borrow and return transactions and
// the read-side insights built on loan history (habit, recommendations,
// overdue loans, popularity ranking).
//
// Borrow and return each run in a single database transaction. The book row is
// locked for the duration where the engine supports row locks, and every stock
// change is a conditional update, so concurrent desks cannot oversell a title
// or push storage above total.
package circulation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/cards"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/metrics"
)

var (
	ErrCardRequired = errors.New("card number is required")
	ErrBookRequired = errors.New("book number is required")
	ErrCardNotFound = cards.ErrCardNotFound
	ErrBookNotFound = catalog.ErrBookNotFound

	ErrOutOfStock      = errors.New("no copies available")
	ErrAlreadyBorrowed = errors.New("card already holds an open loan for this book")
	ErrNoOpenLoan      = errors.New("record not found")
	ErrStockInvariant  = errors.New("storage would exceed total copies")
	ErrNoHistory       = errors.New("card has no categorised loan history")
)

// Session identifies who is acting. An empty OperatorID records the loan
// without an operator, as for self-service or unauthenticated desks.
type Session struct {
	OperatorID string
}

func (s Session) operator() *string {
	if s.OperatorID == "" {
		return nil
	}
	id := s.OperatorID
	return &id
}

// ReturnRequest identifies the loan to close. RecordID is optional; when set
// it must match the open record found in the store.
type ReturnRequest struct {
	CardNo   string `json:"card_no"`
	BookNo   string `json:"book_no"`
	RecordID uint   `json:"record_id"`
}

// Options holds the lending policy.
type Options struct {
	LoanPeriod          time.Duration
	RecommendationLimit int
	RankingLimit        int
}

type Service struct {
	db      *gorm.DB
	dbType  config.DatabaseType
	gateway *database.Gateway
	opts    Options
	now     func() time.Time
	audit   *audit.Service
	metrics *metrics.Metrics
}

// NewService creates a circulation service. Zero options fall back to defaults.
func NewService(db *database.Database, gateway *database.Gateway, opts Options) *Service {
	if opts.LoanPeriod <= 0 {
		opts.LoanPeriod = config.DefaultLoanPeriodDays * 24 * time.Hour
	}
	if opts.RecommendationLimit <= 0 {
		opts.RecommendationLimit = config.DefaultRecommendationLimit
	}
	if opts.RankingLimit <= 0 {
		opts.RankingLimit = config.DefaultRankingLimit
	}
	return &Service{
		db:      db.DB,
		dbType:  db.Type,
		gateway: gateway,
		opts:    opts,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithAudit enables audit events for every borrow and return attempt.
func (s *Service) WithAudit(a *audit.Service) *Service {
	s.audit = a
	return s
}

// WithMetrics enables circulation counters.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// WithClock overrides the time source. The clock must return UTC.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// LoanPeriod returns the configured overdue threshold.
func (s *Service) LoanPeriod() time.Duration {
	return s.opts.LoanPeriod
}

// Borrow lends one copy of bookNo to cardNo. Preconditions are checked in
// order: card given and registered, book cataloged, a copy on the shelf, and
// no open loan of the same title on the card. The stock decrement and the new
// record commit together or not at all.
func (s *Service) Borrow(ctx context.Context, sess Session, cardNo, bookNo string) (*entities.LoanRecord, error) {
	cardNo = strings.TrimSpace(cardNo)
	bookNo = strings.TrimSpace(bookNo)

	var record *entities.LoanRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCard(tx, cardNo); err != nil {
			return err
		}
		if bookNo == "" {
			return ErrBookRequired
		}

		var book entities.Book
		err := s.lockRow(tx).Where("book_no = ?", bookNo).Take(&book).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookNotFound
		}
		if err != nil {
			return fmt.Errorf("load book %s: %w", bookNo, err)
		}
		if book.Storage <= 0 {
			return ErrOutOfStock
		}

		// A locking read sees loans committed after this transaction's snapshot.
		var open []uint
		err = s.lockRow(tx).Model(&entities.LoanRecord{}).
			Where("card_no = ? AND book_no = ? AND returned_at IS NULL", cardNo, bookNo).
			Limit(1).
			Pluck("id", &open).Error
		if err != nil {
			return fmt.Errorf("check open loans: %w", err)
		}
		if len(open) > 0 {
			return ErrAlreadyBorrowed
		}

		now := s.now()
		res := tx.Model(&entities.Book{}).
			Where("book_no = ? AND storage > 0", bookNo).
			UpdateColumns(map[string]any{
				"storage":    gorm.Expr("storage - 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("decrement storage: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrOutOfStock
		}

		record = &entities.LoanRecord{
			CardNo:     cardNo,
			BookNo:     bookNo,
			LentAt:     now,
			OperatorID: sess.operator(),
		}
		if err := tx.Omit(clause.Associations).Create(record).Error; err != nil {
			return fmt.Errorf("create loan record: %w", err)
		}
		return nil
	})

	var recordID uint
	if record != nil && err == nil {
		recordID = record.ID
	}
	s.observe("borrow", err)
	s.audit.LogCirculation(sess.OperatorID, entities.AuditEventBorrow, cardNo, bookNo, recordID, err)
	if err != nil {
		return nil, err
	}
	log.Printf("[CIRCULATION] %s borrowed %s (record %d)", cardNo, bookNo, record.ID)
	return record, nil
}

// Return closes the open loan of bookNo on cardNo and puts the copy back on
// the shelf. The open record is looked up in the store, never trusted from a
// client; a client-supplied RecordID that no longer names the open loan is
// rejected with ErrNoOpenLoan.
func (s *Service) Return(ctx context.Context, sess Session, req ReturnRequest) (*entities.LoanRecord, error) {
	cardNo := strings.TrimSpace(req.CardNo)
	bookNo := strings.TrimSpace(req.BookNo)

	var record entities.LoanRecord
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireCard(tx, cardNo); err != nil {
			return err
		}
		if bookNo == "" {
			return ErrBookRequired
		}

		err := s.lockRow(tx).
			Where("card_no = ? AND book_no = ? AND returned_at IS NULL", cardNo, bookNo).
			Order("lent_at ASC").
			Take(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNoOpenLoan
		}
		if err != nil {
			return fmt.Errorf("load open loan: %w", err)
		}
		if req.RecordID != 0 && req.RecordID != record.ID {
			return ErrNoOpenLoan
		}

		now := s.now()
		res := tx.Model(&entities.LoanRecord{}).
			Where("id = ? AND returned_at IS NULL", record.ID).
			UpdateColumn("returned_at", now)
		if res.Error != nil {
			return fmt.Errorf("close loan record: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNoOpenLoan
		}
		record.ReturnedAt = &now

		res = tx.Model(&entities.Book{}).
			Where("book_no = ? AND storage < total", bookNo).
			UpdateColumns(map[string]any{
				"storage":    gorm.Expr("storage + 1"),
				"updated_at": now,
			})
		if res.Error != nil {
			return fmt.Errorf("increment storage: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrStockInvariant
		}
		return nil
	})

	var recordID uint
	if err == nil {
		recordID = record.ID
	}
	s.observe("return", err)
	s.audit.LogCirculation(sess.OperatorID, entities.AuditEventReturn, cardNo, bookNo, recordID, err)
	if err != nil {
		if errors.Is(err, ErrStockInvariant) {
			log.Printf("[CIRCULATION] stock invariant violated returning %s for %s; transaction rolled back", bookNo, cardNo)
		}
		return nil, err
	}
	log.Printf("[CIRCULATION] %s returned %s (record %d)", cardNo, bookNo, record.ID)
	return &record, nil
}

func requireCard(tx *gorm.DB, cardNo string) error {
	if cardNo == "" {
		return ErrCardRequired
	}
	var count int64
	if err := tx.Model(&entities.Card{}).Where("card_no = ?", cardNo).Count(&count).Error; err != nil {
		return fmt.Errorf("check card %s: %w", cardNo, err)
	}
	if count == 0 {
		return ErrCardNotFound
	}
	return nil
}

// lockRow adds SELECT ... FOR UPDATE where the dialect has it. SQLite
// serialises writers itself and SQL Server has no FOR UPDATE clause; both
// still rely on the conditional updates.
func (s *Service) lockRow(tx *gorm.DB) *gorm.DB {
	switch s.dbType {
	case config.DatabaseMySQL, config.DatabasePostgres:
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	default:
		return tx
	}
}

func (s *Service) observe(operation string, err error) {
	s.metrics.ObserveCirculation(operation, Outcome(err))
}

// Outcome maps a circulation error to a short metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrOutOfStock):
		return "out_of_stock"
	case errors.Is(err, ErrAlreadyBorrowed):
		return "already_borrowed"
	case errors.Is(err, ErrNoOpenLoan):
		return "no_open_loan"
	case errors.Is(err, ErrCardNotFound), errors.Is(err, ErrBookNotFound):
		return "not_found"
	case errors.Is(err, ErrCardRequired), errors.Is(err, ErrBookRequired):
		return "invalid"
	case errors.Is(err, ErrStockInvariant):
		return "stock_invariant"
	default:
		return metrics.OutcomeError
	}
}
