// Package cards provides database operations for library cards.
//
// # Usage
//
//	repo := cards.NewRepository(db)
//	card, err := repo.GetByNo(ctx, "C1")
package cards

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// LoanCounts summarises a card's loan history.
type LoanCounts struct {
	Total   int64
	Open    int64
	Overdue int64
}

// Repository handles all library card database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new cards repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new card.
func (r *Repository) Create(ctx context.Context, card *entities.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// GetByNo retrieves a card by its number.
func (r *Repository) GetByNo(ctx context.Context, cardNo string) (*entities.Card, error) {
	var card entities.Card
	err := r.db.WithContext(ctx).Where("card_no = ?", cardNo).First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// Exists reports whether the card is registered.
func (r *Repository) Exists(ctx context.Context, cardNo string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Card{}).Where("card_no = ?", cardNo).Count(&count).Error
	return count > 0, err
}

// List returns all cards, most recently updated first.
func (r *Repository) List(ctx context.Context) ([]entities.Card, error) {
	var cards []entities.Card
	err := r.db.WithContext(ctx).Order("updated_at DESC").Order("card_no ASC").Find(&cards).Error
	return cards, err
}

// CountLoans counts all, open, and overdue loans for a card.
// Open loans lent before overdueBefore are overdue.
func (r *Repository) CountLoans(ctx context.Context, cardNo string, overdueBefore time.Time) (LoanCounts, error) {
	var counts LoanCounts
	base := func() *gorm.DB {
		return r.db.WithContext(ctx).Model(&entities.LoanRecord{}).Where("card_no = ?", cardNo)
	}

	if err := base().Count(&counts.Total).Error; err != nil {
		return counts, err
	}
	if err := base().Where("returned_at IS NULL").Count(&counts.Open).Error; err != nil {
		return counts, err
	}
	err := base().Where("returned_at IS NULL AND lent_at < ?", overdueBefore).Count(&counts.Overdue).Error
	return counts, err
}
