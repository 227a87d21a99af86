// Package books provides database operations for the library catalog.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetByNo(ctx, "B1")
package books

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/entities"
)

// Criteria filters a catalog search. Empty fields are ignored; the rest are
// combined with AND and matched as substrings.
type Criteria struct {
	Title     string
	Author    string
	Publisher string
	Category  string
}

// IsEmpty reports whether no filter is set.
func (c Criteria) IsEmpty() bool {
	return strings.TrimSpace(c.Title) == "" &&
		strings.TrimSpace(c.Author) == "" &&
		strings.TrimSpace(c.Publisher) == "" &&
		strings.TrimSpace(c.Category) == ""
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new book.
func (r *Repository) Create(ctx context.Context, book *entities.Book) error {
	return r.db.WithContext(ctx).Create(book).Error
}

// GetByNo retrieves a book by its catalog number.
func (r *Repository) GetByNo(ctx context.Context, bookNo string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.WithContext(ctx).Where("book_no = ?", bookNo).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// Exists reports whether a book with the given number is cataloged.
func (r *Repository) Exists(ctx context.Context, bookNo string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Book{}).Where("book_no = ?", bookNo).Count(&count).Error
	return count > 0, err
}

// Search returns books matching the criteria, most recently updated first.
func (r *Repository) Search(ctx context.Context, criteria Criteria, limit int) ([]entities.Book, error) {
	query := r.db.WithContext(ctx).Model(&entities.Book{})
	for column, value := range map[string]string{
		"title":     criteria.Title,
		"author":    criteria.Author,
		"publisher": criteria.Publisher,
		"category":  criteria.Category,
	} {
		if v := strings.TrimSpace(value); v != "" {
			query = query.Where(column+" LIKE ?", "%"+v+"%")
		}
	}
	if limit > 0 {
		query = query.Limit(limit)
	}

	var books []entities.Book
	err := query.Order("updated_at DESC").Order("book_no ASC").Find(&books).Error
	return books, err
}

// Recent returns the most recently updated books.
func (r *Repository) Recent(ctx context.Context, limit int) ([]entities.Book, error) {
	return r.Search(ctx, Criteria{}, limit)
}

// Count returns the number of cataloged titles.
func (r *Repository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entities.Book{}).Count(&count).Error
	return count, err
}
