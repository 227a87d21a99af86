package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/config"
)

// ContextKeyPrincipal holds the request's *Principal in the gin context.
const ContextKeyPrincipal = "auth_principal"

// Middleware resolves the principal for each request and guards routes.
type Middleware struct {
	sessionManager *SessionManager
	config         config.Auth
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(sessionManager *SessionManager, cfg config.Auth) *Middleware {
	return &Middleware{
		sessionManager: sessionManager,
		config:         cfg,
	}
}

// Handler attaches the principal to the context. It never rejects a request;
// route groups opt in with RequireAuth, RequireAdmin or RequirePatron.
func (m *Middleware) Handler() gin.HandlerFunc {
	if m.config.Mode != config.AuthModeLocal {
		return func(c *gin.Context) {
			c.Set(ContextKeyPrincipal, AnonymousAdmin())
			c.Next()
		}
	}

	return func(c *gin.Context) {
		if m.sessionManager != nil {
			if p := m.sessionManager.GetPrincipal(c.Request); p != nil {
				c.Set(ContextKeyPrincipal, p)
			}
		}
		c.Next()
	}
}

// RequireAuth rejects requests without a principal.
func (m *Middleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetPrincipal(c) == nil {
			abortUnauthorized(c)
			return
		}
		c.Next()
	}
}

// RequireAdmin allows administrators only.
func (m *Middleware) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		switch {
		case p == nil:
			abortUnauthorized(c)
		case !p.IsAdmin():
			abortForbidden(c)
		default:
			c.Next()
		}
	}
}

// RequirePatron allows logged-in patrons only. With authentication disabled
// there are no patron sessions, so these routes always answer 403.
func (m *Middleware) RequirePatron() gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		switch {
		case p == nil:
			abortUnauthorized(c)
		case !p.IsPatron():
			abortForbidden(c)
		default:
			c.Next()
		}
	}
}

// RequireCardAccess allows admins, and the patron who owns the card named by
// the route parameter.
func (m *Middleware) RequireCardAccess(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := GetPrincipal(c)
		switch {
		case p == nil:
			abortUnauthorized(c)
		case !p.CanAccessCard(c.Param(param)):
			abortForbidden(c)
		default:
			c.Next()
		}
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrAuthRequired.Error(), "code": "unauthorized"})
}

func abortForbidden(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": ErrForbidden.Error(), "code": "forbidden"})
}

// GetPrincipal retrieves the request's principal, or nil when nobody is logged in.
func GetPrincipal(c *gin.Context) *Principal {
	if v, exists := c.Get(ContextKeyPrincipal); exists {
		if p, ok := v.(*Principal); ok {
			return p
		}
	}
	return nil
}

// GetOperatorID returns the admin user id to record on loans, or "".
func GetOperatorID(c *gin.Context) string {
	return GetPrincipal(c).OperatorID()
}

// GetActor returns the audit actor for the request.
func GetActor(c *gin.Context) string {
	return GetPrincipal(c).Actor()
}
