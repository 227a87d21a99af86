// Package auth identifies who is at the circulation desk.
//
// Two kinds of principal exist:
//   - admin: a row in the users table, logged in with id and bcrypt-checked password
//   - patron: a library card, logged in with the card number alone
//
// # Configuration
//
//	AUTH_MODE=none   # Default. Every request acts as an anonymous admin with no operator id.
//	AUTH_MODE=local  # Sessions required; /api/auth/login and /api/auth/patron-login issue them.
//
// For local mode, additional configuration:
//
//	AUTH_SESSION_SECRET=<hex-32-bytes>  # CSRF signing key, generated if empty
//	AUTH_SESSION_LIFETIME=12h
//	AUTH_BCRYPT_COST=12
//	AUTH_SECURE_COOKIES=true
//	AUTH_MAX_LOGIN_ATTEMPTS=5           # per client IP and login id
//
// # Usage
//
//	sessions, _ := auth.NewSessionManager(db, cfg.Auth)
//	mw := auth.NewMiddleware(sessions, cfg.Auth)
//	router.Use(sessions.SessionLoadSave(), mw.Handler())
//	admin := router.Group("/api", mw.RequireAdmin())
//
// Handlers read the principal with GetPrincipal and pass GetOperatorID into
// circulation sessions.
package auth
