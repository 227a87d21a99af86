// Package catalog manages the book catalog: single additions, lookups,
// searches, deletions, and bulk import/export in the delimited text format.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/metrics"
)

var (
	ErrBookExists      = errors.New("book already exists")
	ErrBookNotFound    = errors.New("book not found")
	ErrBookNoRequired  = errors.New("book number is required")
	ErrTitleRequired   = errors.New("title is required")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
	ErrInvalidYear     = errors.New("year must be a non-negative integer")
	ErrInvalidPrice    = errors.New("price must be a non-negative number")
)

// BookInput describes a new catalog entry. Quantity populates both the total
// and the available copies.
type BookInput struct {
	BookNo    string           `json:"book_no"`
	Category  string           `json:"category"`
	Title     string           `json:"title"`
	Publisher string           `json:"publisher"`
	Year      *int             `json:"year"`
	Author    string           `json:"author"`
	Price     *decimal.Decimal `json:"price"`
	Quantity  int              `json:"quantity"`
}

// Normalize trims every text field.
func (in *BookInput) Normalize() {
	in.BookNo = strings.TrimSpace(in.BookNo)
	in.Category = strings.TrimSpace(in.Category)
	in.Title = strings.TrimSpace(in.Title)
	in.Publisher = strings.TrimSpace(in.Publisher)
	in.Author = strings.TrimSpace(in.Author)
}

// Validate checks required fields and numeric ranges.
func (in BookInput) Validate() error {
	switch {
	case in.BookNo == "":
		return ErrBookNoRequired
	case in.Title == "":
		return ErrTitleRequired
	case in.Quantity <= 0:
		return ErrInvalidQuantity
	case in.Year != nil && *in.Year < 0:
		return ErrInvalidYear
	case in.Price != nil && in.Price.IsNegative():
		return ErrInvalidPrice
	}
	return nil
}

func (in BookInput) toEntity() *entities.Book {
	book := &entities.Book{
		BookNo:    in.BookNo,
		Category:  in.Category,
		Title:     in.Title,
		Publisher: in.Publisher,
		Year:      in.Year,
		Author:    in.Author,
		Total:     in.Quantity,
		Storage:   in.Quantity,
	}
	if in.Price != nil {
		book.Price = decimal.NewNullDecimal(*in.Price)
	}
	return book
}

// Options tunes listing caps and import reporting.
type Options struct {
	SearchLimit  int
	ErrorSamples int
}

// Service implements catalog operations.
type Service struct {
	books   *books.Repository
	gateway *database.Gateway
	audit   *audit.Service
	metrics *metrics.Metrics
	opts    Options
}

// NewService creates a catalog service. Zero options fall back to defaults.
func NewService(db *gorm.DB, gateway *database.Gateway, opts Options) *Service {
	if opts.SearchLimit <= 0 {
		opts.SearchLimit = config.DefaultSearchLimit
	}
	if opts.ErrorSamples <= 0 {
		opts.ErrorSamples = config.DefaultImportErrorSamples
	}
	return &Service{
		books:   books.NewRepository(db),
		gateway: gateway,
		opts:    opts,
	}
}

// WithAudit enables audit events for catalog changes.
func (s *Service) WithAudit(a *audit.Service) *Service {
	s.audit = a
	return s
}

// WithMetrics enables import row counters.
func (s *Service) WithMetrics(m *metrics.Metrics) *Service {
	s.metrics = m
	return s
}

// AddBook validates and stores a new title. An existing book number is
// reported as ErrBookExists, whether caught by the pre-check or by the store.
func (s *Service) AddBook(ctx context.Context, actor string, in BookInput) (*entities.Book, error) {
	book, err := s.addBook(ctx, in)
	if err == nil {
		s.audit.LogCatalog(actor, "book_add", book.BookNo, fmt.Sprintf("Added %q (%d copies)", book.Title, book.Total), nil)
	}
	return book, err
}

func (s *Service) addBook(ctx context.Context, in BookInput) (*entities.Book, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.books.Exists(ctx, in.BookNo)
	if err != nil {
		return nil, fmt.Errorf("check book %s: %w", in.BookNo, err)
	}
	if exists {
		return nil, ErrBookExists
	}

	book := in.toEntity()
	if err := s.books.Create(ctx, book); err != nil {
		if database.IsDuplicate(err) {
			return nil, ErrBookExists
		}
		return nil, fmt.Errorf("create book %s: %w", in.BookNo, err)
	}
	return book, nil
}

// GetBook returns one catalog entry.
func (s *Service) GetBook(ctx context.Context, bookNo string) (*entities.Book, error) {
	book, err := s.books.GetByNo(ctx, strings.TrimSpace(bookNo))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrBookNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// SearchBooks matches every non-empty criterion as a substring, newest first.
func (s *Service) SearchBooks(ctx context.Context, criteria books.Criteria) ([]entities.Book, error) {
	found, err := s.books.Search(ctx, criteria, s.opts.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return found, nil
}

// RecentBooks lists the most recently updated titles.
func (s *Service) RecentBooks(ctx context.Context, limit int) ([]entities.Book, error) {
	if limit <= 0 {
		limit = config.DefaultRecentBooksLimit
	}
	found, err := s.books.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("recent books: %w", err)
	}
	return found, nil
}

// DeleteBook removes a title. Its loan records go with it.
func (s *Service) DeleteBook(ctx context.Context, actor, bookNo string) error {
	stmt, args, err := s.gateway.Builder().
		Delete("books").
		Where(goqu.C("book_no").Eq(strings.TrimSpace(bookNo))).
		Prepared(true).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete: %w", err)
	}

	res, err := s.gateway.Modify(ctx, stmt, args...)
	if err != nil {
		s.audit.LogCatalog(actor, "book_delete", bookNo, "Delete failed", err)
		return fmt.Errorf("delete book %s: %w", bookNo, err)
	}
	if res.RowsAffected == 0 {
		return ErrBookNotFound
	}

	s.audit.LogCatalog(actor, "book_delete", bookNo, "Deleted book "+bookNo, nil)
	return nil
}

// CountBooks returns the number of cataloged titles.
func (s *Service) CountBooks(ctx context.Context) (int64, error) {
	return s.books.Count(ctx)
}
