//go:build integration

package circulation

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

// startMySQL runs a throwaway MySQL server and returns a migrated database.
func startMySQL(t *testing.T) *database.Database {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mysql:8.0",
			ExposedPorts: []string{"3306/tcp"},
			Env: map[string]string{
				"MYSQL_ROOT_PASSWORD": "rootpass",
				"MYSQL_DATABASE":      "library",
				"MYSQL_USER":          "librarian",
				"MYSQL_PASSWORD":      "librarian",
			},
			WaitingFor: wait.ForAll(
				wait.ForLog("port: 3306  MySQL Community Server"),
				wait.ForListeningPort("3306/tcp"),
			).WithDeadline(2 * time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("Failed to terminate MySQL: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	db, err := database.NewDatabase(config.Database{
		Type:         config.DatabaseMySQL,
		Host:         host,
		Port:         port.Int(),
		User:         "librarian",
		Password:     "librarian",
		Name:         "library",
		MaxOpenConns: 10,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newMySQLFixture(t *testing.T) *fixture {
	t.Helper()
	db := startMySQL(t)
	gw, err := database.NewGateway(db)
	require.NoError(t, err)
	return &fixture{svc: NewService(db, gw, Options{LoanPeriod: 30 * 24 * time.Hour}), db: db}
}

func TestMySQL_ConcurrentBorrowAndReturn(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	f := newMySQLFixture(t)
	svc := f.svc
	ctx := context.Background()

	const copies, patrons = 2, 8
	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Category: "Fiction", Total: copies, Storage: copies})
	for i := 0; i < patrons; i++ {
		f.card(t, fmt.Sprintf("C%d", i))
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var borrowed []string
	for i := 0; i < patrons; i++ {
		wg.Add(1)
		go func(cardNo string) {
			defer wg.Done()
			_, err := svc.Borrow(ctx, Session{}, cardNo, "B1")
			if err == nil {
				mu.Lock()
				borrowed = append(borrowed, cardNo)
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, ErrOutOfStock)
		}(fmt.Sprintf("C%d", i))
	}
	wg.Wait()

	require.Len(t, borrowed, copies)
	assert.Equal(t, 0, f.storage(t, "B1"))

	for _, cardNo := range borrowed {
		_, err := svc.Return(ctx, Session{}, ReturnRequest{CardNo: cardNo, BookNo: "B1"})
		require.NoError(t, err)
	}
	assert.Equal(t, copies, f.storage(t, "B1"))

	ranking, err := svc.Ranking(ctx, 5)
	require.NoError(t, err)
	require.Len(t, ranking, 1)
	assert.Equal(t, int64(copies), ranking[0].Loans)
}

// Under REPEATABLE READ a plain read of open loans would miss a loan committed
// by a concurrent borrow for the same card.
func TestMySQL_ConcurrentBorrowSameCard(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	f := newMySQLFixture(t)
	ctx := context.Background()

	const copies, attempts = 5, 8
	f.book(t, entities.Book{BookNo: "B1", Title: "Dune", Category: "Fiction", Total: copies, Storage: copies})
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
