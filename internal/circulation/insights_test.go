package circulation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/entities"
)

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func year(y int) *int {
	return &y
}

func (f *fixture) loan(t *testing.T, cardNo, bookNo string, lentAgo time.Duration, returned bool) entities.LoanRecord {
	t.Helper()
	record := entities.LoanRecord{CardNo: cardNo, BookNo: bookNo, LentAt: fixedNow.Add(-lentAgo)}
	if returned {
		at := record.LentAt.Add(days(1))
		record.ReturnedAt = &at
	}
	require.NoError(t, f.db.DB.Create(&record).Error)
	return record
}

func TestOpenLoans(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	f.card(t, "C1")
	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Author: "Herbert", Total: 1, Storage: 0})
	f.book(t, entities.Book{BookNo: "B2", Title: "Emma", Author: "Austen", Total: 1, Storage: 0})
	f.book(t, entities.Book{BookNo: "B3", Title: "Ulysses", Total: 1, Storage: 1})

	f.loan(t, "C1", "B2", days(3), false)
	f.loan(t, "C1", "B1", days(40), false)
	f.loan(t, "C1", "B3", days(50), true)

	loans, err := f.svc.OpenLoans(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, loans, 2)

	assert.Equal(t, "B1", loans[0].BookNo)
	assert.Equal(t, "Dune", loans[0].Title)
	assert.Equal(t, "Herbert", loans[0].Author)
	assert.True(t, loans[0].Overdue)
	assert.True(t, loans[0].DueAt.Equal(loans[0].LentAt.Add(days(30))))

	assert.Equal(t, "B2", loans[1].BookNo)
	assert.False(t, loans[1].Overdue)

	loans, err = f.svc.OpenLoans(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, loans)
}

func TestHabit(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.card(t, "C1")

	for i := 1; i <= 3; i++ {
		no := fmt.Sprintf("A%d", i)
		f.book(t, entities.Book{BookNo: no, Title: no, Category: "Fiction", Total: 1, Storage: 1})
		f.loan(t, "C1", no, days(10+i), true)
	}
	for i := 1; i <= 2; i++ {
		no := fmt.Sprintf("B%d", i)
		f.book(t, entities.Book{BookNo: no, Title: no, Category: "History", Total: 1, Storage: 1})
		f.loan(t, "C1", no, days(20+i), true)
	}

	habit, err := f.svc.Habit(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Fiction", habit.Category)
	assert.Equal(t, int64(3), habit.Loans)
}

func TestHabit_TieBreaksAlphabetically(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.card(t, "C1")

	f.book(t, entities.Book{BookNo: "Z1", Title: "Zoology", Category: "Science", Total: 1, Storage: 1})
	f.book(t, entities.Book{BookNo: "A1", Title: "Art", Category: "Arts", Total: 1, Storage: 1})
	f.loan(t, "C1", "Z1", days(1), false)
	f.loan(t, "C1", "A1", days(2), false)

	habit, err := f.svc.Habit(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Arts", habit.Category)
}

func TestHabit_IgnoresUncategorised(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.card(t, "C1")
	f.card(t, "C2")

	for i := 1; i <= 3; i++ {
		no := fmt.Sprintf("U%d", i)
		f.book(t, entities.Book{BookNo: no, Title: no, Total: 1, Storage: 1})
		f.loan(t, "C1", no, days(i), true)
	}
	f.book(t, entities.Book{BookNo: "P1", Title: "Poems", Category: "Poetry", Total: 1, Storage: 1})
	f.loan(t, "C1", "P1", days(9), true)
	f.loan(t, "C2", "U1", days(9), true)

	habit, err := f.svc.Habit(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "Poetry", habit.Category)
	assert.Equal(t, int64(1), habit.Loans)

	_, err = f.svc.Habit(ctx, "C2")
	assert.ErrorIs(t, err, ErrNoHistory, "only uncategorised loans is no history")

	_, err = f.svc.RecommendForCard(ctx, "C2", 0)
	assert.ErrorIs(t, err, ErrNoHistory)
}

func TestRecommend(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.card(t, "C1")

	books := []entities.Book{
		{BookNo: "F1", Title: "Read", Category: "Fiction", Year: year(2023), Total: 1, Storage: 1},
		{BookNo: "F2", Title: "Older", Category: "Fiction", Year: year(2020), Total: 2, Storage: 1},
		{BookNo: "F3", Title: "Undated", Category: "Fiction", Total: 1, Storage: 1},
		{BookNo: "F4", Title: "Out", Category: "Fiction", Year: year(2024), Total: 1, Storage: 0},
		{BookNo: "F5", Title: "Newest", Category: "Fiction", Year: year(2022), Total: 3, Storage: 3},
		{BookNo: "H1", Title: "War", Category: "History", Year: year(2024), Total: 1, Storage: 1},
	}
	for _, b := range books {
		f.book(t, b)
	}
	f.loan(t, "C1", "F1", days(5), true)

	recs, err := f.svc.Recommend(ctx, "C1", "Fiction", 10)
	require.NoError(t, err)

	var got []string
	for _, b := range recs {
		got = append(got, b.BookNo)
	}
	assert.Equal(t, []string{"F5", "F2", "F3"}, got, "year desc with undated last, borrowed and empty titles excluded")

	recs, err = f.svc.Recommend(ctx, "C1", "Fiction", 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	rec, err := f.svc.RecommendForCard(ctx, "C1", 1)
	require.NoError(t, err)
	assert.Equal(t, "Fiction", rec.Habit.Category)
	require.Len(t, rec.Books, 1)
	assert.Equal(t, "F5", rec.Books[0].BookNo)
	require.NotNil(t, rec.Books[0].Year)
	assert.Equal(t, 2022, *rec.Books[0].Year)
}

func TestOverdue(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	require.NoError(t, f.db.DB.Create(&entities.Card{CardNo: "C1", Name: "Ann", Department: "Physics", CardType: entities.CardTypeStudent}).Error)
	f.card(t, "C2")
	for _, no := range []string{"B1", "B2", "B3", "B4"} {
		f.book(t, entities.Book{BookNo: no, Title: "Title " + no, Total: 2, Storage: 1})
	}

	f.loan(t, "C2", "B1", days(31), false)
	f.loan(t, "C1", "B2", days(45)+time.Hour, false)
	f.loan(t, "C1", "B3", days(10), false)
	f.loan(t, "C1", "B4", days(90), true)

	overdue, err := f.svc.Overdue(ctx)
	require.NoError(t, err)
	require.Len(t, overdue, 2)

	assert.Equal(t, "B2", overdue[0].BookNo)
	assert.Equal(t, "Ann", overdue[0].CardName)
	assert.Equal(t, "Physics", overdue[0].Department)
	assert.Equal(t, "Title B2", overdue[0].Title)
	assert.Equal(t, 45, overdue[0].DaysElapsed)

	assert.Equal(t, "B1", overdue[1].BookNo)
	assert.Equal(t, 31, overdue[1].DaysElapsed)
}

func TestOverdue_LoanPeriodBoundary(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()
	f.card(t, "C1")
	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 0})

	f.loan(t, "C1", "B1", days(30), false)

	overdue, err := f.svc.Overdue(ctx)
	require.NoError(t, err)
	assert.Empty(t, overdue, "a loan exactly one period old is not yet overdue")
}

func TestRanking(t *testing.T) {
	f := setupTestService(t)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		f.card(t, fmt.Sprintf("C%d", i))
	}
	for _, no := range []string{"B1", "B2", "B3", "B4"} {
		f.book(t, entities.Book{BookNo: no, Title: "Title " + no, Author: "Author " + no, Total: 5, Storage: 5})
	}

	borrows := map[string]int{"B1": 1, "B2": 3, "B3": 3, "B4": 0}
	for bookNo, n := range borrows {
		for i := 0; i < n; i++ {
			f.loan(t, fmt.Sprintf("C%d", i), bookNo, days(i+1), true)
		}
	}

	ranking, err := f.svc.Ranking(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ranking, 3, "books never borrowed are not ranked")

	assert.Equal(t, "B2", ranking[0].BookNo)
	assert.Equal(t, int64(3), ranking[0].Loans)
	assert.Equal(t, "Author B2", ranking[0].Author)
	assert.Equal(t, "B3", ranking[1].BookNo)
	assert.Equal(t, "B1", ranking[2].BookNo)
	assert.Equal(t, int64(1), ranking[2].Loans)

	ranking, err = f.svc.Ranking(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, "B2", ranking[0].BookNo)
}
