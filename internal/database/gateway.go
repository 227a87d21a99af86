package database

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/mysql"     // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"  // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"   // dialect registration
	_ "github.com/doug-martin/goqu/v9/dialect/sqlserver" // dialect registration
	"github.com/jmoiron/sqlx"

	"github.com/mrlokans/librarian/internal/config"
)

// Row is one result row keyed by column name.
type Row map[string]any

// Result describes the outcome of a write statement.
type Result struct {
	LastInsertID int64
	RowsAffected int64
}

// Gateway runs single statements against the shared connection pool.
// Every call borrows a connection, runs in autocommit mode and releases it;
// nothing is held open between calls.
type Gateway struct {
	db      *sqlx.DB
	dialect string
}

// NewGateway wraps the pool behind an existing gorm connection.
func NewGateway(d *Database) (*Gateway, error) {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	driver, dialect := driverNames(d.Type)
	return &Gateway{
		db:      sqlx.NewDb(sqlDB, driver),
		dialect: dialect,
	}, nil
}

// Builder returns a goqu statement builder for the connected dialect.
func (g *Gateway) Builder() goqu.DialectWrapper {
	return goqu.Dialect(g.dialect)
}

// Query runs a read statement and returns every row as a column map.
// Driver byte slices are converted to strings.
func (g *Gateway) Query(ctx context.Context, stmt string, args ...any) ([]Row, error) {
	rows, err := g.db.QueryxContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row := make(map[string]any)
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		result = append(result, Row(row))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}

// Select runs a read statement and scans the rows into dest (a pointer to a slice of structs).
func (g *Gateway) Select(ctx context.Context, dest any, stmt string, args ...any) error {
	if err := g.db.SelectContext(ctx, dest, stmt, args...); err != nil {
		return fmt.Errorf("select: %w", err)
	}
	return nil
}

// Modify runs a write statement. LastInsertID is zero when the driver cannot report it.
func (g *Gateway) Modify(ctx context.Context, stmt string, args ...any) (Result, error) {
	res, err := g.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return Result{}, fmt.Errorf("modify: %w", err)
	}
	var out Result
	if id, err := res.LastInsertId(); err == nil {
		out.LastInsertID = id
	}
	if n, err := res.RowsAffected(); err == nil {
		out.RowsAffected = n
	}
	return out, nil
}

// driverNames maps the configured database to the sqlx bind driver and goqu dialect.
func driverNames(t config.DatabaseType) (driver, dialect string) {
	switch t {
	case config.DatabaseMySQL:
		return "mysql", "mysql"
	case config.DatabasePostgres:
		return "pgx", "postgres"
	case config.DatabaseSQLServer:
		return "sqlserver", "sqlserver"
	default:
		return "sqlite3", "sqlite3"
	}
}
