package circulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
)

// Loan is an open loan with its book details.
type Loan struct {
	RecordID uint      `db:"id" json:"record_id"`
	CardNo   string    `db:"card_no" json:"card_no"`
	BookNo   string    `db:"book_no" json:"book_no"`
	Title    string    `db:"title" json:"title"`
	Author   string    `db:"author" json:"author"`
	LentAt   time.Time `db:"lent_at" json:"lent_at"`
	DueAt    time.Time `db:"-" json:"due_at"`
	Overdue  bool      `db:"-" json:"overdue"`
}

// Habit is a card's most borrowed category.
type Habit struct {
	Category string `db:"category" json:"category"`
	Loans    int64  `db:"loans" json:"loans"`
}

// BookSummary is the subset of a catalog entry shown in recommendations.
type BookSummary struct {
	BookNo    string `db:"book_no" json:"book_no"`
	Title     string `db:"title" json:"title"`
	Author    string `db:"author" json:"author"`
	Publisher string `db:"publisher" json:"publisher"`
	Category  string `db:"category" json:"category"`
	Year      *int   `db:"year" json:"year,omitempty"`
	Storage   int    `db:"storage" json:"storage"`
}

// Recommendation pairs a card's habit with matching available titles.
type Recommendation struct {
	Habit Habit         `json:"habit"`
	Books []BookSummary `json:"books"`
}

// OverdueLoan is an open loan past the loan period.
type OverdueLoan struct {
	RecordID    uint      `db:"id" json:"record_id"`
	CardNo      string    `db:"card_no" json:"card_no"`
	CardName    string    `db:"card_name" json:"card_name"`
	Department  string    `db:"department" json:"department"`
	BookNo      string    `db:"book_no" json:"book_no"`
	Title       string    `db:"title" json:"title"`
	LentAt      time.Time `db:"lent_at" json:"lent_at"`
	DaysElapsed int       `db:"-" json:"days_elapsed"`
}

// RankedBook is one row of the borrow-count ranking.
type RankedBook struct {
	BookNo string `db:"book_no" json:"book_no"`
	Title  string `db:"title" json:"title"`
	Author string `db:"author" json:"author"`
	Loans  int64  `db:"loans" json:"loans"`
}

func (s *Service) loansWithBooks() *goqu.SelectDataset {
	return s.gateway.Builder().
		From(goqu.T("library_records").As("r")).
		Join(goqu.T("books").As("b"), goqu.On(goqu.I("b.book_no").Eq(goqu.I("r.book_no"))))
}

// OpenLoans lists a card's outstanding loans, oldest first.
func (s *Service) OpenLoans(ctx context.Context, cardNo string) ([]Loan, error) {
	stmt, args, err := s.loansWithBooks().
		Select(goqu.I("r.id"), goqu.I("r.card_no"), goqu.I("r.book_no"), goqu.I("b.title"), goqu.I("b.author"), goqu.I("r.lent_at")).
		Where(
			goqu.I("r.card_no").Eq(strings.TrimSpace(cardNo)),
			goqu.I("r.returned_at").IsNull(),
		).
		Order(goqu.I("r.lent_at").Asc(), goqu.I("r.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build open loans query: %w", err)
	}

	loans := []Loan{}
	if err := s.gateway.Select(ctx, &loans, stmt, args...); err != nil {
		return nil, fmt.Errorf("open loans: %w", err)
	}

	now := s.now()
	for i := range loans {
		loans[i].DueAt = loans[i].LentAt.Add(s.opts.LoanPeriod)
		loans[i].Overdue = now.After(loans[i].DueAt)
	}
	return loans, nil
}

// Habit returns the category a card borrows most. Uncategorised books are
// ignored and ties go to the alphabetically first category.
func (s *Service) Habit(ctx context.Context, cardNo string) (*Habit, error) {
	stmt, args, err := s.loansWithBooks().
		Select(goqu.I("b.category"), goqu.COUNT(goqu.Star()).As("loans")).
		Where(
			goqu.I("r.card_no").Eq(strings.TrimSpace(cardNo)),
			goqu.I("b.category").IsNotNull(),
			goqu.I("b.category").Neq(""),
		).
		GroupBy(goqu.I("b.category")).
		Order(goqu.COUNT(goqu.Star()).Desc(), goqu.I("b.category").Asc()).
		Limit(1).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build habit query: %w", err)
	}

	var habits []Habit
	if err := s.gateway.Select(ctx, &habits, stmt, args...); err != nil {
		return nil, fmt.Errorf("habit: %w", err)
	}
	if len(habits) == 0 {
		return nil, ErrNoHistory
	}
	return &habits[0], nil
}

// Recommend lists available books in category that the card has never
// borrowed, newest publication year first. Books without a year sort last.
func (s *Service) Recommend(ctx context.Context, cardNo, category string, limit int) ([]BookSummary, error) {
	if limit <= 0 {
		limit = s.opts.RecommendationLimit
	}
	builder := s.gateway.Builder()
	borrowed := builder.From("library_records").
		Select("book_no").
		Where(goqu.C("card_no").Eq(strings.TrimSpace(cardNo)))

	stmt, args, err := builder.From("books").
		Select("book_no", "title", "author", "publisher", "category", "year", "storage").
		Where(
			goqu.C("category").Eq(category),
			goqu.C("storage").Gt(0),
			goqu.C("book_no").NotIn(borrowed),
		).
		Order(
			goqu.L("CASE WHEN year IS NULL THEN 1 ELSE 0 END").Asc(),
			goqu.C("year").Desc(),
			goqu.C("book_no").Asc(),
		).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build recommendation query: %w", err)
	}

	books := []BookSummary{}
	if err := s.gateway.Select(ctx, &books, stmt, args...); err != nil {
		return nil, fmt.Errorf("recommend: %w", err)
	}
	return books, nil
}

// RecommendForCard infers the card's habit and recommends from that category.
func (s *Service) RecommendForCard(ctx context.Context, cardNo string, limit int) (*Recommendation, error) {
	habit, err := s.Habit(ctx, cardNo)
	if err != nil {
		return nil, err
	}
	books, err := s.Recommend(ctx, cardNo, habit.Category, limit)
	if err != nil {
		return nil, err
	}
	return &Recommendation{Habit: *habit, Books: books}, nil
}

// Overdue lists open loans older than the loan period, longest outstanding
// first. Days elapsed are whole days since the loan.
func (s *Service) Overdue(ctx context.Context) ([]OverdueLoan, error) {
	now := s.now()
	cutoff := now.Add(-s.opts.LoanPeriod)

	stmt, args, err := s.loansWithBooks().
		Join(goqu.T("library_cards").As("c"), goqu.On(goqu.I("c.card_no").Eq(goqu.I("r.card_no")))).
		Select(
			goqu.I("r.id"),
			goqu.I("r.card_no"),
			goqu.I("c.name").As("card_name"),
			goqu.I("c.department"),
			goqu.I("r.book_no"),
			goqu.I("b.title"),
			goqu.I("r.lent_at"),
		).
		Where(
			goqu.I("r.returned_at").IsNull(),
			goqu.I("r.lent_at").Lt(cutoff),
		).
		// Earlier loans have more days elapsed, so this is days desc then lent asc.
		Order(goqu.I("r.lent_at").Asc(), goqu.I("r.id").Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build overdue query: %w", err)
	}

	loans := []OverdueLoan{}
	if err := s.gateway.Select(ctx, &loans, stmt, args...); err != nil {
		return nil, fmt.Errorf("overdue: %w", err)
	}
	for i := range loans {
		loans[i].DaysElapsed = int(now.Sub(loans[i].LentAt) / (24 * time.Hour))
	}
	return loans, nil
}

// Ranking lists the most borrowed books across all cards. Ties break on book number.
func (s *Service) Ranking(ctx context.Context, limit int) ([]RankedBook, error) {
	if limit <= 0 {
		limit = s.opts.RankingLimit
	}

	stmt, args, err := s.loansWithBooks().
		Select(goqu.I("r.book_no"), goqu.I("b.title"), goqu.I("b.author"), goqu.COUNT(goqu.I("r.id")).As("loans")).
		GroupBy(goqu.I("r.book_no"), goqu.I("b.title"), goqu.I("b.author")).
		Order(goqu.COUNT(goqu.I("r.id")).Desc(), goqu.I("r.book_no").Asc()).
		Limit(uint(limit)).
		Prepared(true).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build ranking query: %w", err)
	}

	ranking := []RankedBook{}
	if err := s.gateway.Select(ctx, &ranking, stmt, args...); err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	return ranking, nil
}
