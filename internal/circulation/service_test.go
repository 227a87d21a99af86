package circulation

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/database"
	auditrepo "github.com/mrlokans/librarian/internal/database/audit"
	"github.com/mrlokans/librarian/internal/entities"
	"github.com/mrlokans/librarian/internal/metrics"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc *Service
	db  *database.Database
}

func setupTestService(t *testing.T) *fixture {
	t.Helper()
	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "circulation.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gw, err := database.NewGateway(db)
	require.NoError(t, err)

	svc := NewService(db, gw, Options{LoanPeriod: 30 * 24 * time.Hour}).
		WithClock(func() time.Time { return fixedNow })
	return &fixture{svc: svc, db: db}
}

func (f *fixture) book(t *testing.T, book entities.Book) {
	t.Helper()
	require.NoError(t, f.db.DB.Create(&book).Error)
}

func (f *fixture) card(t *testing.T, cardNo string) {
	t.Helper()
	require.NoError(t, f.db.DB.Create(&entities.Card{CardNo: cardNo, Name: "Holder " + cardNo, CardType: entities.CardTypeStudent}).Error)
}

func (f *fixture) storage(t *testing.T, bookNo string) int {
	t.Helper()
	var book entities.Book
	require.NoError(t, f.db.DB.Where("book_no = ?", bookNo).Take(&book).Error)
	return book.Storage
}

func (f *fixture) openLoans(t *testing.T, cardNo, bookNo string) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.DB.Model(&entities.LoanRecord{}).
		Where("card_no = ? AND book_no = ? AND returned_at IS NULL", cardNo, bookNo).
		Count(&count).Error)
	return count
}

func TestBorrowReturnScenario(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	sess := Session{}

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 5, Storage: 5})
	f.card(t, "C1")

	record, err := f.svc.Borrow(ctx, sess, "C1", "B1")
	require.NoError(t, err)
	assert.NotZero(t, record.ID)
	assert.True(t, fixedNow.Equal(record.LentAt))
	assert.Nil(t, record.OperatorID)
	assert.Equal(t, 4, f.storage(t, "B1"))
	assert.Equal(t, int64(1), f.openLoans(t, "C1", "B1"))

	_, err = f.svc.Borrow(ctx, sess, "C1", "B1")
	assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	assert.Equal(t, 4, f.storage(t, "B1"))

	returned, err := f.svc.Return(ctx, sess, ReturnRequest{CardNo: "C1", BookNo: "B1"})
	require.NoError(t, err)
	assert.Equal(t, record.ID, returned.ID)
	require.NotNil(t, returned.ReturnedAt)
	assert.Equal(t, 5, f.storage(t, "B1"))
	assert.Zero(t, f.openLoans(t, "C1", "B1"))

	_, err = f.svc.Return(ctx, sess, ReturnRequest{CardNo: "C1", BookNo: "B1"})
	assert.ErrorIs(t, err, ErrNoOpenLoan)
	assert.Equal(t, 5, f.storage(t, "B1"))
}

func TestBorrow_Preconditions(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.book(t, entities.Book{BookNo: "EMPTY", Title: "Gone", Total: 2, Storage: 0})
	f.card(t, "C1")

	tests := []struct {
		name   string
		cardNo string
		bookNo string
		want   error
	}{
		{"empty card", " ", "B1", ErrCardRequired},
		{"unknown card", "C9", "B1", ErrCardNotFound},
		{"unknown card is checked before unknown book", "C9", "B9", ErrCardNotFound},
		{"empty book", "C1", "", ErrBookRequired},
		{"unknown book", "C1", "B9", ErrBookNotFound},
		{"no stock", "C1", "EMPTY", ErrOutOfStock},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Borrow(ctx, Session{}, tc.cardNo, tc.bookNo)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Equal(t, 0, f.storage(t, "EMPTY"), "a rejected borrow leaves storage untouched")
	var records int64
	require.NoError(t, f.db.DB.Model(&entities.LoanRecord{}).Count(&records).Error)
	assert.Zero(t, records, "a rejected borrow creates no record")
}

func TestBorrow_RecordsOperator(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.card(t, "C1")
	require.NoError(t, f.db.DB.Create(&entities.User{UserID: "desk", PasswordHash: "x"}).Error)

	record, err := f.svc.Borrow(ctx, Session{OperatorID: "desk"}, "C1", "B1")
	require.NoError(t, err)
	require.NotNil(t, record.OperatorID)
	assert.Equal(t, "desk", *record.OperatorID)
}

func TestBorrow_FailedInsertRollsBackStock(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 2, Storage: 2})
	f.card(t, "C1")

	// An operator id with no user row violates the foreign key on insert.
	_, err := f.svc.Borrow(ctx, Session{OperatorID: "ghost"}, "C1", "B1")
	require.Error(t, err)

	assert.Equal(t, 2, f.storage(t, "B1"), "the decrement is rolled back with the failed insert")
	assert.Zero(t, f.openLoans(t, "C1", "B1"))
}

func TestReturn_Preconditions(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.card(t, "C1")
	f.card(t, "C2")

	_, err := f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "", BookNo: "B1"})
	assert.ErrorIs(t, err, ErrCardRequired)

	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C9", BookNo: "B1"})
	assert.ErrorIs(t, err, ErrCardNotFound)

	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C1", BookNo: " "})
	assert.ErrorIs(t, err, ErrBookRequired)

	_, err = f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C2", BookNo: "B1"})
	assert.ErrorIs(t, err, ErrNoOpenLoan, "another card cannot return this loan")
	assert.Equal(t, 0, f.storage(t, "B1"))
}

func TestReturn_StaleRecordID(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.card(t, "C1")

	first, err := f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.NoError(t, err)

	// Another desk returns it and the patron borrows it again.
	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C1", BookNo: "B1"})
	require.NoError(t, err)
	second, err := f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C1", BookNo: "B1", RecordID: first.ID})
	assert.ErrorIs(t, err, ErrNoOpenLoan)
	assert.Equal(t, 0, f.storage(t, "B1"))

	returned, err := f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C1", BookNo: "B1", RecordID: second.ID})
	require.NoError(t, err)
	assert.Equal(t, second.ID, returned.ID)
}

func TestReturn_StockInvariant(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.card(t, "C1")
	_, err := f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.NoError(t, err)

	// Someone restocks the shelf by hand while the copy is still out.
	require.NoError(t, f.db.DB.Model(&entities.Book{}).Where("book_no = ?", "B1").Update("storage", 1).Error)

	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C1", BookNo: "B1"})
	assert.ErrorIs(t, err, ErrStockInvariant)
	assert.Equal(t, 1, f.storage(t, "B1"))
	assert.Equal(t, int64(1), f.openLoans(t, "C1", "B1"), "closing the record is rolled back")
}

func TestReturn_FailedReturnAuditsNoRecord(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	auditService := audit.NewService(auditrepo.NewRepository(f.db.DB))
	f.svc.WithAudit(auditService)

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.card(t, "C1")
	_, err := f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.NoError(t, err)
	require.NoError(t, f.db.DB.Model(&entities.Book{}).Where("book_no = ?", "B1").Update("storage", 1).Error)

	_, err = f.svc.Return(ctx, Session{}, ReturnRequest{CardNo: "C1", BookNo: "B1"})
	require.ErrorIs(t, err, ErrStockInvariant)
	auditService.Flush()

	events, total, err := auditService.GetEventsByType(entities.AuditEventReturn, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Equal(t, entities.AuditStatusFailed, events[0].Status)

	var metadata map[string]any
	require.NoError(t, json.Unmarshal(events[0].Metadata, &metadata))
	assert.Equal(t, float64(0), metadata["record_id"], "the rolled back record must not be reported")
}

func TestBorrow_ConcurrentSameCard(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	const copies, attempts = 5, 8
	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: copies, Storage: copies})
	f.card(t, "C1")

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Borrow(ctx, Session{}, "C1", "B1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded int
	for err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.ErrorIs(t, err, ErrAlreadyBorrowed)
	}

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, copies-1, f.storage(t, "B1"))
	assert.Equal(t, int64(1), f.openLoans(t, "C1", "B1"))
}

func TestBorrow_ConcurrentLastCopies(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	const copies, patrons = 3, 10
	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: copies, Storage: copies})
	for i := 0; i < patrons; i++ {
		f.card(t, fmt.Sprintf("C%d", i))
	}

	var wg sync.WaitGroup
	results := make(chan error, patrons)
	for i := 0; i < patrons; i++ {
		wg.Add(1)
		go func(cardNo string) {
			defer wg.Done()
			_, err := f.svc.Borrow(ctx, Session{}, cardNo, "B1")
			results <- err
		}(fmt.Sprintf("C%d", i))
	}
	wg.Wait()
	close(results)

	var succeeded, outOfStock int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case assert.ErrorIs(t, err, ErrOutOfStock):
			outOfStock++
		}
	}

	assert.Equal(t, copies, succeeded)
	assert.Equal(t, patrons-copies, outOfStock)
	assert.Equal(t, 0, f.storage(t, "B1"))
}

func TestCirculationMetrics(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	m := metrics.New("test")
	f.svc.WithMetrics(m)

	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})
	f.card(t, "C1")

	_, err := f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.NoError(t, err)
	_, err = f.svc.Borrow(ctx, Session{}, "C1", "B1")
	require.Error(t, err)

	expected := `
# HELP test_circulation_operations_total Borrow and return attempts by outcome.
# TYPE test_circulation_operations_total counter
test_circulation_operations_total{operation="borrow",outcome="out_of_stock"} 1
test_circulation_operations_total{operation="borrow",outcome="success"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "test_circulation_operations_total"))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, "success", Outcome(nil))
	assert.Equal(t, "already_borrowed", Outcome(ErrAlreadyBorrowed))
	assert.Equal(t, "not_found", Outcome(fmt.Errorf("wrapped: %w", ErrBookNotFound)))
	assert.Equal(t, "error", Outcome(assert.AnError))
}
