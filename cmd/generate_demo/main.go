// Command generate_demo creates a demo database with a small catalog, a few
// library cards and a loan history that exercises overdue scans, habits and
// recommendations.
// Usage: go run ./cmd/generate_demo [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mrlokans/librarian/internal/cards"
	"github.com/mrlokans/librarian/internal/catalog"
	"github.com/mrlokans/librarian/internal/circulation"
	"github.com/mrlokans/librarian/internal/database"
	"github.com/mrlokans/librarian/internal/entities"
)

const defaultDemoDatabasePath = "./demo/demo.db"

type demoLoan struct {
	CardNo   string
	BookNo   string
	DaysAgo  int
	Returned bool
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	flag.Parse()

	log.Printf("Generating demo database at %s...", *dbPath)

	// Delete existing demo database to start fresh
	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing demo database: %v", err)
	}

	db, err := database.NewSQLiteDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	gw, err := database.NewGateway(db)
	if err != nil {
		log.Fatalf("Failed to create gateway: %v", err)
	}

	ctx := context.Background()
	loanPeriod := 30 * 24 * time.Hour
	catalogSvc := catalog.NewService(db.DB, gw, catalog.Options{})
	cardSvc := cards.NewService(db.DB, gw, loanPeriod)

	for _, in := range demoBooks() {
		if _, err := catalogSvc.AddBook(ctx, "demo", in); err != nil {
			log.Printf("Failed to add book %s: %v", in.BookNo, err)
			continue
		}
		log.Printf("Added: %s by %s (%d copies)", in.Title, in.Author, in.Quantity)
	}

	for _, in := range demoCards() {
		if _, err := cardSvc.AddCard(ctx, "demo", in); err != nil {
			log.Printf("Failed to add card %s: %v", in.CardNo, err)
		}
	}

	now := time.Now().UTC()
	for _, l := range demoLoans() {
		lentAt := now.AddDate(0, 0, -l.DaysAgo)
		svc := circulation.NewService(db, gw, circulation.Options{LoanPeriod: loanPeriod}).
			WithClock(func() time.Time { return lentAt })

		if _, err := svc.Borrow(ctx, circulation.Session{}, l.CardNo, l.BookNo); err != nil {
			log.Printf("Failed to lend %s to %s: %v", l.BookNo, l.CardNo, err)
			continue
		}
		if l.Returned {
			returnedAt := lentAt.AddDate(0, 0, 7)
			svc.WithClock(func() time.Time { return returnedAt })
			if _, err := svc.Return(ctx, circulation.Session{}, circulation.ReturnRequest{CardNo: l.CardNo, BookNo: l.BookNo}); err != nil {
				log.Printf("Failed to return %s from %s: %v", l.BookNo, l.CardNo, err)
			}
		}
	}

	log.Printf("Demo database generated successfully")
}

func year(y int) *int { return &y }

func price(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func demoBooks() []catalog.BookInput {
	return []catalog.BookInput{
		{BookNo: "F-001", Category: "Fiction", Title: "Pride and Prejudice", Publisher: "T. Egerton", Year: year(1813), Author: "Jane Austen", Price: price("12.50"), Quantity: 3},
		{BookNo: "F-002", Category: "Fiction", Title: "Moby Dick", Publisher: "Harper & Brothers", Year: year(1851), Author: "Herman Melville", Price: price("15.00"), Quantity: 2},
		{BookNo: "F-003", Category: "Fiction", Title: "Middlemarch", Publisher: "Blackwood", Year: year(1871), Author: "George Eliot", Price: price("14.25"), Quantity: 2},
		{BookNo: "F-004", Category: "Fiction", Title: "The Time Machine", Publisher: "Heinemann", Year: year(1895), Author: "H. G. Wells", Price: price("8.99"), Quantity: 4},
		{BookNo: "F-005", Category: "Fiction", Title: "Dracula", Publisher: "Archibald Constable", Year: year(1897), Author: "Bram Stoker", Quantity: 1},
		{BookNo: "S-001", Category: "Science", Title: "On the Origin of Species", Publisher: "John Murray", Year: year(1859), Author: "Charles Darwin", Price: price("22.00"), Quantity: 2},
		{BookNo: "S-002", Category: "Science", Title: "Relativity", Publisher: "Methuen", Year: year(1920), Author: "Albert Einstein", Price: price("18.75"), Quantity: 1},
		{BookNo: "S-003", Category: "Science", Title: "The Principles of Psychology", Publisher: "Henry Holt", Year: year(1890), Author: "William James", Quantity: 1},
		{BookNo: "H-001", Category: "History", Title: "The Decline and Fall of the Roman Empire", Publisher: "Strahan & Cadell", Year: year(1776), Author: "Edward Gibbon", Price: price("30.00"), Quantity: 1},
		{BookNo: "H-002", Category: "History", Title: "The History of the Peloponnesian War", Author: "Thucydides", Quantity: 2},
	}
}

func demoCards() []cards.CardInput {
	return []cards.CardInput{
		{CardNo: "C-1001", Name: "Ada Lovelace", Department: "Mathematics", CardType: entities.CardTypeStudent},
		{CardNo: "C-1002", Name: "Charles Babbage", Department: "Engineering", CardType: entities.CardTypeTeacher},
		{CardNo: "C-1003", Name: "Mary Shelley", Department: "Literature", CardType: entities.CardTypeStudent},
		{CardNo: "C-1004", Name: "Front Office", Department: "Administration", CardType: entities.CardTypeStaff},
	}
}

func demoLoans() []demoLoan {
	return []demoLoan{
		{CardNo: "C-1001", BookNo: "S-001", DaysAgo: 120, Returned: true},
		{CardNo: "C-1001", BookNo: "S-002", DaysAgo: 60, Returned: true},
		{CardNo: "C-1001", BookNo: "F-004", DaysAgo: 10},
		{CardNo: "C-1002", BookNo: "H-001", DaysAgo: 45},
		{CardNo: "C-1002", BookNo: "S-001", DaysAgo: 90, Returned: true},
		{CardNo: "C-1003", BookNo: "F-001", DaysAgo: 200, Returned: true},
		{CardNo: "C-1003", BookNo: "F-005", DaysAgo: 100, Returned: true},
		{CardNo: "C-1003", BookNo: "F-002", DaysAgo: 35},
		{CardNo: "C-1004", BookNo: "F-001", DaysAgo: 3},
	}
}
