// Package cards manages library cards and per-patron loan statistics.
package cards

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	cardsRepo "github.com/mrlokans/librarian/internal/database/cards"
	"github.com/mrlokans/librarian/internal/entities"
)

var (
	ErrCardExists      = errors.New("card already exists")
	ErrCardNotFound    = errors.New("card not found")
	ErrCardNoRequired  = errors.New("card number is required")
	ErrNameRequired    = errors.New("holder name is required")
	ErrInvalidCardType = errors.New("card type must be one of student, teacher, staff, other")
)

// CardInput describes a new library card. An empty type means student.
type CardInput struct {
	CardNo     string            `json:"card_no"`
	Name       string            `json:"name"`
	Department string            `json:"department"`
	CardType   entities.CardType `json:"card_type"`
}

// Stats summarises a patron's borrowing.
type Stats struct {
	CardNo       string `json:"card_no"`
	TotalLoans   int64  `json:"total_loans"`
	OpenLoans    int64  `json:"open_loans"`
	OverdueLoans int64  `json:"overdue_loans"`
	HasOverdue   bool   `json:"has_overdue"`
}

type Service struct {
	cards      *cardsRepo.Repository
	gateway    *database.Gateway
	audit      *audit.Service
	loanPeriod time.Duration
	now        func() time.Time
}

// NewService creates a card service. A zero loan period uses the default.
func NewService(db *gorm.DB, gateway *database.Gateway, loanPeriod time.Duration) *Service {
	if loanPeriod <= 0 {
		loanPeriod = config.DefaultLoanPeriodDays * 24 * time.Hour
	}
	return &Service{
		cards:      cardsRepo.NewRepository(db),
		gateway:    gateway,
		loanPeriod: loanPeriod,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithAudit enables audit events for card changes.
func (s *Service) WithAudit(a *audit.Service) *Service {
	s.audit = a
	return s
}

// WithClock overrides the time source used for overdue statistics.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// AddCard registers a patron. The number is pre-checked so a duplicate is
// reported as ErrCardExists rather than a constraint error.
func (s *Service) AddCard(ctx context.Context, actor string, in CardInput) (*entities.Card, error) {
	in.CardNo = strings.TrimSpace(in.CardNo)
	in.Name = strings.TrimSpace(in.Name)
	in.Department = strings.TrimSpace(in.Department)
	if in.CardType == "" {
		in.CardType = entities.CardTypeStudent
	}

	switch {
	case in.CardNo == "":
		return nil, ErrCardNoRequired
	case in.Name == "":
		return nil, ErrNameRequired
	case !in.CardType.Valid():
		return nil, ErrInvalidCardType
	}

	exists, err := s.cards.Exists(ctx, in.CardNo)
	if err != nil {
		return nil, fmt.Errorf("check card %s: %w", in.CardNo, err)
	}
	if exists {
		return nil, ErrCardExists
	}

	card := &entities.Card{
		CardNo:     in.CardNo,
		Name:       in.Name,
		Department: in.Department,
		CardType:   in.CardType,
	}
	if err := s.cards.Create(ctx, card); err != nil {
		if database.IsDuplicate(err) {
			return nil, ErrCardExists
		}
		return nil, fmt.Errorf("create card %s: %w", in.CardNo, err)
	}

	s.audit.LogCard(actor, "card_add", card.CardNo, fmt.Sprintf("Issued %s card to %s", card.CardType, card.Name), nil)
	return card, nil
}

// GetCard returns one card.
func (s *Service) GetCard(ctx context.Context, cardNo string) (*entities.Card, error) {
	card, err := s.cards.GetByNo(ctx, strings.TrimSpace(cardNo))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCardNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get card: %w", err)
	}
	return card, nil
}

// ListCards returns every card, most recently updated first.
func (s *Service) ListCards(ctx context.Context) ([]entities.Card, error) {
	cards, err := s.cards.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	return cards, nil
}

// DeleteCard removes a card. Its loan records are removed by the store's cascade.
func (s *Service) DeleteCard(ctx context.Context, actor, cardNo string) error {
	cardNo = strings.TrimSpace(cardNo)
	stmt, args, err := s.gateway.Builder().
		Delete("library_cards").
		Where(goqu.C("card_no").Eq(cardNo)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := s.gateway.Modify(ctx, stmt, args...)
	if err != nil {
		s.audit.LogCard(actor, "card_delete", cardNo, "Delete failed", err)
		return fmt.Errorf("delete card %s: %w", cardNo, err)
	}
	if res.RowsAffected == 0 {
		return ErrCardNotFound
	}

	s.audit.LogCard(actor, "card_delete", cardNo, "Deleted card "+cardNo, nil)
	return nil
}

// Stats counts a card's loans. Open loans older than the loan period are overdue.
func (s *Service) Stats(ctx context.Context, cardNo string) (*Stats, error) {
	card, err := s.GetCard(ctx, cardNo)
	if err != nil {
		return nil, err
	}

	counts, err := s.cards.CountLoans(ctx, card.CardNo, s.now().Add(-s.loanPeriod))
	if err != nil {
		return nil, fmt.Errorf("count loans for %s: %w", card.CardNo, err)
	}

	return &Stats{
		CardNo:       card.CardNo,
		TotalLoans:   counts.Total,
		OpenLoans:    counts.Open,
		OverdueLoans: counts.Overdue,
		HasOverdue:   counts.Overdue > 0,
	}, nil
}
