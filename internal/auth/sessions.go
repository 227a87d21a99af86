package auth

import (
	"encoding/gob"
	"fmt"
	"net/http"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"

	"github.com/mrlokans/librarian/internal/config"
	"github.com/mrlokans/librarian/internal/database"
)

// Session data keys
const (
	SessionKeyKind    = "principal_kind"
	SessionKeyID      = "principal_id"
	SessionKeyName    = "principal_name"
	SessionKeyLoginAt = "login_at"
)

func init() {
	// Register types that will be stored in sessions
	gob.Register(PrincipalKind(""))
	gob.Register(time.Time{})
}

// SessionManager wraps scs.SessionManager with principal-aware helpers.
type SessionManager struct {
	*scs.SessionManager
}

// NewSessionManager creates a configured session manager. SQLite deployments
// keep sessions in the main database; other engines use an in-process store.
func NewSessionManager(db *database.Database, cfg config.Auth) (*SessionManager, error) {
	sm := scs.New()

	if db != nil && db.Type == config.DatabaseSQLite {
		sqlDB, err := db.DB.DB()
		if err != nil {
			return nil, err
		}
		_, err = sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
		if err != nil {
			return nil, fmt.Errorf("failed to create sessions table: %w", err)
		}
		sm.Store = sqlite3store.New(sqlDB)
	} else {
		sm.Store = memstore.New()
	}

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 12 * time.Hour
	}
	sm.Lifetime = lifetime
	sm.IdleTimeout = lifetime / 2

	sm.Cookie.Name = "library_session"
	sm.Cookie.HttpOnly = true
	sm.Cookie.Secure = cfg.SecureCookies
	sm.Cookie.SameSite = http.SameSiteStrictMode
	sm.Cookie.Path = "/"

	return &SessionManager{SessionManager: sm}, nil
}

// CreateSession stores the principal after a successful login.
func (sm *SessionManager) CreateSession(r *http.Request, p *Principal) error {
	// Renew token to prevent session fixation
	if err := sm.RenewToken(r.Context()); err != nil {
		return err
	}

	sm.Put(r.Context(), SessionKeyKind, p.Kind)
	sm.Put(r.Context(), SessionKeyID, p.ID)
	sm.Put(r.Context(), SessionKeyName, p.Name)
	sm.Put(r.Context(), SessionKeyLoginAt, time.Now().UTC())

	return nil
}

// DestroySession removes all session data and invalidates the session.
func (sm *SessionManager) DestroySession(r *http.Request) error {
	return sm.Destroy(r.Context())
}

// GetPrincipal returns the logged-in principal, or nil.
func (sm *SessionManager) GetPrincipal(r *http.Request) *Principal {
	kind, _ := sm.Get(r.Context(), SessionKeyKind).(PrincipalKind)
	id := sm.GetString(r.Context(), SessionKeyID)
	if kind == "" || id == "" {
		return nil
	}
	return &Principal{
		Kind: kind,
		ID:   id,
		Name: sm.GetString(r.Context(), SessionKeyName),
	}
}

// LoginTime returns when the current session logged in.
func (sm *SessionManager) LoginTime(r *http.Request) time.Time {
	at, _ := sm.Get(r.Context(), SessionKeyLoginAt).(time.Time)
	return at
}

// IsAuthenticated returns true if the request carries a logged-in session.
func (sm *SessionManager) IsAuthenticated(r *http.Request) bool {
	return sm.GetPrincipal(r) != nil
}
