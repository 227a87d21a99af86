package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// setupTestDB creates a fresh SQLite database in a temp directory
func setupTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewSQLiteDatabase(filepath.Join(t.TempDir(), "library.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDialector(t *testing.T) {
	t.Run("sqlite enables foreign keys", func(t *testing.T) {
		d, err := Dialector(config.Database{Type: config.DatabaseSQLite, Path: "./x.db"})
		require.NoError(t, err)
		assert.Equal(t, "sqlite", d.Name())
	})

	t.Run("mysql", func(t *testing.T) {
		d, err := Dialector(config.Database{Type: config.DatabaseMySQL, Host: "db", User: "u", Password: "p", Name: "library"})
		require.NoError(t, err)
		assert.Equal(t, "mysql", d.Name())
	})

	t.Run("postgres", func(t *testing.T) {
		d, err := Dialector(config.Database{Type: config.DatabasePostgres, Host: "db", User: "u", Name: "library"})
		require.NoError(t, err)
		assert.Equal(t, "postgres", d.Name())
	})

	t.Run("sqlserver", func(t *testing.T) {
		d, err := Dialector(config.Database{Type: config.DatabaseSQLServer, Host: "db", User: "u", Name: "library"})
		require.NoError(t, err)
		assert.Equal(t, "sqlserver", d.Name())
	})

	t.Run("unknown type", func(t *testing.T) {
		_, err := Dialector(config.Database{Type: "oracle"})
		assert.Error(t, err)
	})
}

func TestMySQLDSN(t *testing.T) {
	dsn := MySQLDSN(config.Database{Host: "db.local", User: "library", Password: "secret", Name: "library"})

	assert.Contains(t, dsn, "library:secret@tcp(db.local:3306)/library")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}

func TestNewDatabase_MigratesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"books", "library_cards", "library_records", "users", "audit_events", "settings"} {
		assert.True(t, db.DB.Migrator().HasTable(table), "table %s should exist", table)
	}
	assert.NoError(t, db.Ping(context.Background()))
}

func TestForeignKeys(t *testing.T) {
	db := setupTestDB(t)

	book := entities.Book{BookNo: "B1", Title: "Dune", Total: 1, Storage: 0}
	card := entities.Card{CardNo: "C1", Name: "Ann", CardType: entities.CardTypeStudent}
	admin := entities.User{UserID: "desk", PasswordHash: "x"}
	require.NoError(t, db.DB.Create(&book).Error)
	require.NoError(t, db.DB.Create(&card).Error)
	require.NoError(t, db.DB.Create(&admin).Error)

	operator := "desk"
	loan := entities.LoanRecord{CardNo: "C1", BookNo: "B1", LentAt: time.Now(), OperatorID: &operator}
	require.NoError(t, db.DB.Create(&loan).Error)

	t.Run("deleting the operator nulls the reference", func(t *testing.T) {
		require.NoError(t, db.DB.Delete(&entities.User{}, "user_id = ?", "desk").Error)

		var reloaded entities.LoanRecord
		require.NoError(t, db.DB.First(&reloaded, loan.ID).Error)
		assert.Nil(t, reloaded.OperatorID)
	})

	t.Run("deleting the card cascades to loans", func(t *testing.T) {
		require.NoError(t, db.DB.Delete(&entities.Card{}, "card_no = ?", "C1").Error)

		var count int64
		require.NoError(t, db.DB.Model(&entities.LoanRecord{}).Count(&count).Error)
		assert.Zero(t, count)
	})

	t.Run("loan for unknown card is rejected", func(t *testing.T) {
		orphan := entities.LoanRecord{CardNo: "missing", BookNo: "B1", LentAt: time.Now()}
		assert.Error(t, db.DB.Create(&orphan).Error)
	})

	t.Run("deleting the book cascades to loans", func(t *testing.T) {
		require.NoError(t, db.DB.Create(&entities.Card{CardNo: "C2", Name: "Bob", CardType: entities.CardTypeTeacher}).Error)
		require.NoError(t, db.DB.Create(&entities.LoanRecord{CardNo: "C2", BookNo: "B1", LentAt: time.Now()}).Error)

		require.NoError(t, db.DB.Delete(&entities.Book{}, "book_no = ?", "B1").Error)

		var count int64
		require.NoError(t, db.DB.Model(&entities.LoanRecord{}).Count(&count).Error)
		assert.Zero(t, count)

		var cards int64
		require.NoError(t, db.DB.Model(&entities.Card{}).Where("card_no = ?", "C2").Count(&cards).Error)
		assert.Equal(t, int64(1), cards, "the card outlives its loans")
	})
}

type foreignKey struct {
	Table    string
	From     string
	To       string
	OnDelete string
}

func foreignKeys(t *testing.T, db *Database, table string) []foreignKey {
	t.Helper()
	var keys []foreignKey
	require.NoError(t, db.DB.Raw(
		`SELECT "table", "from", "to", on_delete FROM pragma_foreign_key_list(?) ORDER BY "table"`,
		table,
	).Scan(&keys).Error)
	return keys
}

func TestForeignKeyDirection(t *testing.T) {
	db := setupTestDB(t)

	assert.ElementsMatch(t, []foreignKey{
		{Table: "books", From: "book_no", To: "book_no", OnDelete: "CASCADE"},
		{Table: "library_cards", From: "card_no", To: "card_no", OnDelete: "CASCADE"},
		{Table: "users", From: "operator_id", To: "user_id", OnDelete: "SET NULL"},
	}, foreignKeys(t, db, "library_records"))

	// Parents never reference their loans.
	assert.Empty(t, foreignKeys(t, db, "library_cards"))
	assert.Empty(t, foreignKeys(t, db, "books"))
}

func TestIsDuplicate(t *testing.T) {
	db := setupTestDB(t)

	require.NoError(t, db.DB.Create(&entities.Card{CardNo: "C1", Name: "Ann", CardType: entities.CardTypeStudent}).Error)
	err := db.DB.Create(&entities.Card{CardNo: "C1", Name: "Bob", CardType: entities.CardTypeStaff}).Error

	require.Error(t, err)
	assert.True(t, IsDuplicate(err))
	assert.False(t, IsDuplicate(nil))
	assert.False(t, IsDuplicate(assert.AnError))
}
