package http

import (
	"context"
	"io"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/librarian/internal/cards"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/database/books"
	"github.com/mrlokans/librarian/internal/entities"
)

// Each controller depends on the narrow set of service methods it calls.
// The concrete services are checked against these in internal/interfaces.

// CatalogService backs the /api/books endpoints.
type CatalogService interface {
	AddBook(ctx context.Context, actor string, in catalog.BookInput) (*entities.Book, error)
	GetBook(ctx context.Context, bookNo string) (*entities.Book, error)
	SearchBooks(ctx context.Context, criteria books.Criteria) ([]entities.Book, error)
	RecentBooks(ctx context.Context, limit int) ([]entities.Book, error)
	DeleteBook(ctx context.Context, actor, bookNo string) error
	ImportBooks(ctx context.Context, actor string, r io.Reader) (*catalog.ImportReport, error)
	ValidateImport(ctx context.Context, r io.Reader) (*catalog.ImportReport, error)
	ExportBooks(ctx context.Context, w io.Writer) (int, error)
}

// CardService backs the /api/cards endpoints.
type CardService interface {
	AddCard(ctx context.Context, actor string, in cards.CardInput) (*entities.Card, error)
	GetCard(ctx context.Context, cardNo string) (*entities.Card, error)
	ListCards(ctx context.Context) ([]entities.Card, error)
	DeleteCard(ctx context.Context, actor, cardNo string) error
	Stats(ctx context.Context, cardNo string) (*cards.Stats, error)
}

// CirculationService backs lending and the loan insights.
type CirculationService interface {
	Borrow(ctx context.Context, sess circulation.Session, cardNo, bookNo string) (*entities.LoanRecord, error)
	Return(ctx context.Context, sess circulation.Session, req circulation.ReturnRequest) (*entities.LoanRecord, error)
	OpenLoans(ctx context.Context, cardNo string) ([]circulation.Loan, error)
	Habit(ctx context.Context, cardNo string) (*circulation.Habit, error)
	Recommend(ctx context.Context, cardNo, category string, limit int) ([]circulation.BookSummary, error)
	RecommendForCard(ctx context.Context, cardNo string, limit int) (*circulation.Recommendation, error)
	Overdue(ctx context.Context) ([]circulation.OverdueLoan, error)
	Ranking(ctx context.Context, limit int) ([]circulation.RankedBook, error)
}

// TaskQueue enqueues background work and reports its status.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// ReportArchiver keeps a copy of each import report.
type ReportArchiver interface {
	SaveNamedJSON(name string, data any) (string, error)
}
