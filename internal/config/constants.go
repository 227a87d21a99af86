package config

// Default paths for databases
const (
	// DefaultDatabasePath is the default path for the main library database
	DefaultDatabasePath = "./library.db"
)

// Circulation defaults
const (
	DefaultLoanPeriodDays      = 30
	DefaultRecommendationLimit = 5
	DefaultRankingLimit        = 10
	DefaultSearchLimit         = 500
	DefaultRecentBooksLimit    = 50
	DefaultImportErrorSamples  = 10
)

// Environment variables that select an env file before NewConfig runs.
const (
	EnvName = "LIBRARY_ENV"
	EnvFile = "LIBRARY_ENV_FILE"
)
