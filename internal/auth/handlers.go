package auth

import (
	"errors"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/audit"
	"github.com/mrlokans/librarian/internal/config"
)

// setupMutex serializes first-admin setup so two requests cannot both pass the HasUsers check.
var setupMutex sync.Mutex

type adminLoginRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type patronLoginRequest struct {
	CardNo string `json:"card_no" binding:"required"`
}

type setupRequest struct {
	UserID   string `json:"user_id" binding:"required"`
	Name     string `json:"name"`
	Contact  string `json:"contact"`
	Password string `json:"password" binding:"required"`
}

// AuthController serves the /api/auth endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	audit          *audit.Service
}

// NewAuthController creates a new authentication controller.
func NewAuthController(service *Service, sessionManager *SessionManager, cfg config.Auth) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// WithAudit records login attempts in the audit log.
func (ac *AuthController) WithAudit(a *audit.Service) *AuthController {
	ac.audit = a
	return ac
}

// RegisterRoutes registers authentication routes on the group.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	group.POST("/login", ac.Login)
	group.POST("/patron-login", ac.PatronLogin)
	group.POST("/logout", ac.Logout)
	group.POST("/setup", ac.Setup)
	group.GET("/me", ac.Me)
	group.GET("/csrf", ac.CSRFToken)
}

// Stop releases the rate limiter's cleanup goroutine.
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

// Login authenticates an administrator by id and password.
func (ac *AuthController) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and password are required", "code": "invalid_request"})
		return
	}

	limitKey := "admin:" + req.UserID
	if !ac.allow(c, limitKey) {
		return
	}

	user, err := ac.service.Authenticate(req.UserID, req.Password)
	if err != nil {
		ac.fail(c, req.UserID, limitKey, "admin_login", err)
		return
	}

	name := user.Name
	if name == "" {
		name = user.UserID
	}
	ac.succeed(c, limitKey, "admin_login", &Principal{Kind: PrincipalAdmin, ID: user.UserID, Name: name})
}

// PatronLogin authenticates a patron by card number.
func (ac *AuthController) PatronLogin(c *gin.Context) {
	var req patronLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "card_no is required", "code": "invalid_request"})
		return
	}

	limitKey := "patron:" + req.CardNo
	if !ac.allow(c, limitKey) {
		return
	}

	card, err := ac.service.AuthenticatePatron(c.Request.Context(), req.CardNo)
	if err != nil {
		ac.fail(c, "card:"+req.CardNo, limitKey, "patron_login", err)
		return
	}

	ac.succeed(c, limitKey, "patron_login", &Principal{Kind: PrincipalPatron, ID: card.CardNo, Name: card.Name})
}

// Logout destroys the session.
func (ac *AuthController) Logout(c *gin.Context) {
	actor := GetActor(c)
	if err := ac.sessionManager.DestroySession(c.Request); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to end session", "code": "internal"})
		return
	}
	ac.audit.LogAuth(actor, "logout", c.ClientIP(), c.Request.UserAgent(), true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the current principal.
func (ac *AuthController) Me(c *gin.Context) {
	p := GetPrincipal(c)
	if p == nil {
		abortUnauthorized(c)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CSRFToken returns the token clients must echo on unsafe requests.
func (ac *AuthController) CSRFToken(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"token": GetCSRFToken(c), "header": CSRFTokenHeader})
}

// Setup creates the first administrator and logs them in. It is refused
// once any administrator exists.
func (ac *AuthController) Setup(c *gin.Context) {
	setupMutex.Lock()
	defer setupMutex.Unlock()

	hasUsers, err := ac.service.HasUsers()
	if err != nil {
		log.Printf("Failed to check users during setup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "database error", "code": "internal"})
		return
	}
	if hasUsers {
		c.JSON(http.StatusConflict, gin.H{"error": "setup already completed", "code": "conflict"})
		return
	}

	var req setupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id and password are required", "code": "invalid_request"})
		return
	}

	user, err := ac.service.CreateAdmin(req.UserID, req.Name, req.Contact, req.Password)
	switch {
	case errors.Is(err, ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "code": "conflict"})
		return
	case errors.Is(err, ErrPasswordTooShort), errors.Is(err, ErrPasswordTooLong),
		errors.Is(err, ErrUserIDRequired), errors.Is(err, ErrUserIDInvalid), errors.Is(err, ErrPasswordRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
		return
	case err != nil:
		log.Printf("Failed to create admin during setup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create user", "code": "internal"})
		return
	}

	ac.audit.LogAuth(user.UserID, "setup", c.ClientIP(), c.Request.UserAgent(), true)
	p := &Principal{Kind: PrincipalAdmin, ID: user.UserID, Name: user.Name}
	if err := ac.sessionManager.CreateSession(c.Request, p); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session", "code": "internal"})
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (ac *AuthController) allow(c *gin.Context, limitKey string) bool {
	allowed, retryAfter := ac.rateLimiter.Allow(c.ClientIP(), limitKey)
	if allowed {
		return true
	}
	c.Header("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
	c.JSON(http.StatusTooManyRequests, gin.H{
		"error":       ErrRateLimited.Error(),
		"code":        "rate_limited",
		"retry_after": retryAfter.Round(time.Second).String(),
	})
	return false
}

func (ac *AuthController) fail(c *gin.Context, actor, limitKey, action string, err error) {
	ac.rateLimiter.RecordFailure(c.ClientIP(), limitKey)
	ac.audit.LogAuth(actor, action, c.ClientIP(), c.Request.UserAgent(), false)

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error(), "code": "invalid_credentials"})
	case errors.Is(err, ErrCardNoRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "invalid_request"})
	default:
		log.Printf("Login failed for %s: %v", actor, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed", "code": "internal"})
	}
}

func (ac *AuthController) succeed(c *gin.Context, limitKey, action string, p *Principal) {
	ac.rateLimiter.RecordSuccess(c.ClientIP(), limitKey)
	if err := ac.sessionManager.CreateSession(c.Request, p); err != nil {
		log.Printf("Failed to create session for %s: %v", p.Actor(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session", "code": "internal"})
		return
	}
	ac.audit.LogAuth(p.Actor(), action, c.ClientIP(), c.Request.UserAgent(), true)
	c.JSON(http.StatusOK, p)
}
