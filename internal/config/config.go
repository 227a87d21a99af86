package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required (default)
	AuthModeLocal AuthMode = "local" // Admin users and patron cards with sessions
)

// DatabaseType selects the gorm dialector and the SQL builder dialect.
type DatabaseType string

const (
	DatabaseSQLite    DatabaseType = "sqlite"
	DatabaseMySQL     DatabaseType = "mysql"
	DatabasePostgres  DatabaseType = "postgres"
	DatabaseSQLServer DatabaseType = "sqlserver"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Circulation
		OverdueScan
		Audit
		Tasks
		Auth
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Type         DatabaseType
		Path         string // SQLite file
		Host         string
		Port         int
		User         string
		Password     string
		Name         string
		MaxOpenConns int
		LogQueries   bool
	}
	Circulation struct {
		LoanPeriodDays      int // Loans open longer than this are overdue (default: 30)
		RecommendationLimit int
		RankingLimit        int
		SearchLimit         int
		ImportErrorSamples  int
	}
	OverdueScan struct {
		Enabled  bool
		Schedule string // Cron format: "0 7 * * *" = daily at 07:00
	}
	Audit struct {
		Dir           string
		RetentionDays int
	}
	Tasks struct {
		Enabled         bool
		DatabasePath    string // Defaults to "<database path>-tasks.db"
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		MaxLoginAttempts int
		RateLimitWindow  time.Duration
		LockoutDuration  time.Duration
	}
	Metrics struct {
		Enabled bool
	}
)

// LoanPeriod returns the overdue threshold as a duration.
func (c Circulation) LoanPeriod() time.Duration {
	return time.Duration(c.LoanPeriodDays) * 24 * time.Hour
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8190)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)

	v.SetDefault("database_type", string(DatabaseSQLite))
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_host", "localhost")
	v.SetDefault("database_port", 0) // Dialect default when zero
	v.SetDefault("database_user", "library")
	v.SetDefault("database_password", "")
	v.SetDefault("database_name", "library")
	v.SetDefault("database_max_open_conns", 10)
	v.SetDefault("database_log_queries", false)

	v.SetDefault("loan_period_days", DefaultLoanPeriodDays)
	v.SetDefault("recommendation_limit", DefaultRecommendationLimit)
	v.SetDefault("ranking_limit", DefaultRankingLimit)
	v.SetDefault("search_limit", DefaultSearchLimit)
	v.SetDefault("import_error_samples", DefaultImportErrorSamples)

	v.SetDefault("overdue_scan_enabled", true)
	v.SetDefault("overdue_scan_schedule", "0 7 * * *")

	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 90)

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_session_secret", "") // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "12h")
	v.SetDefault("auth_bcrypt_cost", 12)
	v.SetDefault("auth_secure_cookies", true)
	v.SetDefault("auth_max_login_attempts", 5)
	v.SetDefault("auth_rate_limit_window", "15m")
	v.SetDefault("auth_lockout_duration", "30m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_database_path", "")
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	v.SetDefault("metrics_enabled", true)

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Type:         DatabaseType(v.GetString("DATABASE_TYPE")),
			Path:         v.GetString("DATABASE_PATH"),
			Host:         v.GetString("DATABASE_HOST"),
			Port:         v.GetInt("DATABASE_PORT"),
			User:         v.GetString("DATABASE_USER"),
			Password:     v.GetString("DATABASE_PASSWORD"),
			Name:         v.GetString("DATABASE_NAME"),
			MaxOpenConns: v.GetInt("DATABASE_MAX_OPEN_CONNS"),
			LogQueries:   v.GetBool("DATABASE_LOG_QUERIES"),
		},
		Circulation: Circulation{
			LoanPeriodDays:      v.GetInt("LOAN_PERIOD_DAYS"),
			RecommendationLimit: v.GetInt("RECOMMENDATION_LIMIT"),
			RankingLimit:        v.GetInt("RANKING_LIMIT"),
			SearchLimit:         v.GetInt("SEARCH_LIMIT"),
			ImportErrorSamples:  v.GetInt("IMPORT_ERROR_SAMPLES"),
		},
		OverdueScan: OverdueScan{
			Enabled:  v.GetBool("OVERDUE_SCAN_ENABLED"),
			Schedule: v.GetString("OVERDUE_SCAN_SCHEDULE"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			DatabasePath:    v.GetString("TASKS_DATABASE_PATH"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Auth: Auth{
			Mode:             AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}
