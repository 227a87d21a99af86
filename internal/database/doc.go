// Package database provides the data access layer for the library service.
//
// # Architecture
//
// The database layer is organized into domain-specific sub-packages:
//
//	database/
//	├── database.go      # Dialect selection, connection pool, migrations
//	├── gateway.go       # Persistence gateway: single-statement query/modify over sqlx
//	├── books/           # Catalog rows
//	├── cards/           # Library cards
//	├── users/           # Administrator accounts
//	├── audit/           # Audit events
//	└── settings/        # Key/value settings
//
// Circulation transactions (borrow and return) run directly on the gorm
// handle in the circulation package because they span several tables.
//
// # Dialects
//
// DATABASE_TYPE selects sqlite (default), mysql, postgres or sqlserver.
// SQLite connections enable foreign keys so that deleting a card or a book
// cascades to its loan records.
//
// # Using Sub-packages
//
//	db, err := database.NewDatabase(cfg.Database)
//	gateway, err := database.NewGateway(db)
//
//	booksRepo := books.NewRepository(db.DB)
//	book, err := booksRepo.GetByNo(ctx, "B1")
//
//	rows, err := gateway.Query(ctx, "SELECT book_no, title FROM books")
//
// # Adding a New Domain
//
//  1. Create a new sub-package: internal/database/<domain>/
//  2. Define a Repository struct with a *gorm.DB field
//  3. Add NewRepository(db *gorm.DB) constructor
//  4. Add the entity to Database.Migrate
package database
