package books

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, err := database.NewSQLiteDatabase(filepath.Join(t.TempDir(), "books.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(db.DB)
}

func seed(t *testing.T, repo *Repository, books ...entities.Book) {
	t.Helper()
	for i := range books {
		require.NoError(t, repo.Create(context.Background(), &books[i]))
	}
}

func TestRepository_GetByNo(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seed(t, repo, entities.Book{BookNo: "B1", Title: "Dune", Author: "Herbert", Total: 3, Storage: 2})

	book, err := repo.GetByNo(ctx, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Dune", book.Title)
	assert.Equal(t, 1, book.OnLoan())

	_, err = repo.GetByNo(ctx, "missing")
	assert.Error(t, err)
}

func TestRepository_Exists(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seed(t, repo, entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 1})

	ok, err := repo.Exists(ctx, "B1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Exists(ctx, "B2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRepository_Search(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	seed(t, repo,
		entities.Book{BookNo: "B1", Category: "SciFi", Title: "Dune", Author: "Frank Herbert", Publisher: "Chilton", Total: 1, Storage: 1},
		entities.Book{BookNo: "B2", Category: "SciFi", Title: "Dune Messiah", Author: "Frank Herbert", Publisher: "Putnam", Total: 1, Storage: 1},
		entities.Book{BookNo: "B3", Category: "Classic", Title: "Emma", Author: "Jane Austen", Publisher: "Murray", Total: 1, Storage: 1},
	)

	t.Run("substring match on title", func(t *testing.T) {
		found, err := repo.Search(ctx, Criteria{Title: "Dune"}, 0)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("filters are combined", func(t *testing.T) {
		found, err := repo.Search(ctx, Criteria{Title: "Dune", Publisher: "Putnam"}, 0)
		require.NoError(t, err)
		require.Len(t, found, 1)
		assert.Equal(t, "B2", found[0].BookNo)
	})

	t.Run("no criteria lists everything up to the limit", func(t *testing.T) {
		found, err := repo.Search(ctx, Criteria{}, 2)
		require.NoError(t, err)
		assert.Len(t, found, 2)
	})

	t.Run("no match", func(t *testing.T) {
		found, err := repo.Search(ctx, Criteria{Author: "Tolkien"}, 0)
		require.NoError(t, err)
		assert.Empty(t, found)
	})
}

func TestRepository_Recent(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	now := time.Now().UTC()
	seed(t, repo,
		entities.Book{BookNo: "OLD", Title: "Old", Total: 1, Storage: 1, UpdatedAt: now.Add(-2 * time.Hour)},
		entities.Book{BookNo: "NEW", Title: "New", Total: 1, Storage: 1, UpdatedAt: now},
	)

	found, err := repo.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "NEW", found[0].BookNo)
}

func TestRepository_Count(t *testing.T) {
	repo := setupTestRepo(t)
	seed(t, repo,
		entities.Book{BookNo: "B1", Title: "A", Total: 1, Storage: 1},
		entities.Book{BookNo: "B2", Title: "B", Total: 1, Storage: 1},
	)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestCriteria_IsEmpty(t *testing.T) {
	assert.True(t, Criteria{}.IsEmpty())
	assert.True(t, Criteria{Title: "   "}.IsEmpty())
	assert.False(t, Criteria{Category: "SciFi"}.IsEmpty())
}
