package database

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/driver/sqlserver"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/entities"
)

// sqliteParams enables foreign keys (cascading deletes depend on them) on every pooled connection.
const sqliteParams = "_foreign_keys=on&_busy_timeout=5000"

type Database struct {
	DB   *gorm.DB
	Type config.DatabaseType
	name string
}

// NewDatabase connects using the configured dialect and migrates the schema.
func NewDatabase(cfg config.Database) (*Database, error) {
	if cfg.Type == "" {
		cfg.Type = config.DatabaseSQLite
	}
	dialector, err := Dialector(cfg)
	if err != nil {
		return nil, err
	}

	logLevel := logger.Warn
	if cfg.LogQueries {
		logLevel = logger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logLevel),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	if cfg.Type == config.DatabaseSQLite {
		// A single writer avoids SQLITE_BUSY on lock upgrades inside circulation transactions.
		sqlDB.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(max(cfg.MaxOpenConns/2, 1))
	}

	database := &Database{DB: db, Type: cfg.Type, name: displayName(cfg)}
	if err := database.Migrate(); err != nil {
		_ = database.Close()
		return nil, err
	}

	log.Printf("Database initialized successfully (%s at %s)", cfg.Type, database.name)

	return database, nil
}

// NewSQLiteDatabase is a shortcut for a file-backed SQLite database.
func NewSQLiteDatabase(path string) (*Database, error) {
	return NewDatabase(config.Database{Type: config.DatabaseSQLite, Path: path})
}

// Dialector builds the gorm dialector for the configured database type.
func Dialector(cfg config.Database) (gorm.Dialector, error) {
	switch cfg.Type {
	case config.DatabaseSQLite:
		path := cfg.Path
		if path == "" {
			path = config.DefaultDatabasePath
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		return sqlite.Open(path + sep + sqliteParams), nil

	case config.DatabaseMySQL:
		return mysql.Open(MySQLDSN(cfg)), nil

	case config.DatabasePostgres:
		port := cfg.Port
		if port == 0 {
			port = 5432
		}
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable TimeZone=UTC",
			cfg.Host, cfg.User, cfg.Password, cfg.Name, port)
		return postgres.Open(dsn), nil

	case config.DatabaseSQLServer:
		port := cfg.Port
		if port == 0 {
			port = 1433
		}
		u := &url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
			RawQuery: url.Values{"database": {cfg.Name}}.Encode(),
		}
		return sqlserver.Open(u.String()), nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// MySQLDSN renders the MySQL connection string. Times are parsed and stored in UTC.
func MySQLDSN(cfg config.Database) string {
	port := cfg.Port
	if port == 0 {
		port = 3306
	}
	mc := mysqldriver.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	mc.Loc = time.UTC
	mc.Params = map[string]string{"charset": "utf8mb4"}
	return mc.FormatDSN()
}

// Migrate creates or updates every table the service owns.
func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&entities.User{},
		&entities.Book{},
		&entities.Card{},
		&entities.LoanRecord{},
		&entities.AuditEvent{},
		&entities.Setting{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Ping checks that the database is reachable.
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsDuplicate reports whether err is a primary key or unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var mysqlErr *mysqldriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func displayName(cfg config.Database) string {
	if cfg.Type == config.DatabaseSQLite {
		return cfg.Path
	}
	return fmt.Sprintf("%s/%s", cfg.Host, cfg.Name)
}
