package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Uses RouterConfig to receive all dependencies, improving testability
// and reducing parameter count.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	if cfg.Metrics != nil {
		router.Use(cfg.Metrics.Middleware())
	}

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())

	localAuth := cfg.AuthConfig.Mode == config.AuthModeLocal
	if localAuth && cfg.AuthConfig.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF must run before session so that session context is preserved
	if localAuth && len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.AuthConfig.SecureCookies))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if localAuth && cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	authMiddleware := auth.NewMiddleware(cfg.SessionManager, cfg.AuthConfig)
	router.Use(authMiddleware.Handler())

	// Health endpoints
	health := NewHealthController(cfg.Database, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Ping)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}

	api := router.Group("/api")

	if localAuth && cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api.Group("/auth"))
	}

	booksController := NewBooksController(cfg.Catalog, cfg.Circulation, cfg.Auditor)
	cardsController := NewCardsController(cfg.Cards)
	circulationController := NewCirculationController(cfg.Circulation, cfg.Cards)

	// Catalog browsing is open to any principal
	readers := api.Group("", authMiddleware.RequireAuth())
	readers.GET("/books", booksController.ListBooks)
	readers.GET("/books/ranking", booksController.Ranking)
	readers.GET("/books/export", booksController.Export)
	readers.GET("/books/:bookNo", booksController.GetBook)

	admin := api.Group("", authMiddleware.RequireAdmin())
	admin.POST("/books", booksController.AddBook)
	admin.POST("/books/import", booksController.Import)
	admin.DELETE("/books/:bookNo", booksController.DeleteBook)

	admin.GET("/cards", cardsController.ListCards)
	admin.POST("/cards", cardsController.AddCard)
	admin.DELETE("/cards/:cardNo", cardsController.DeleteCard)

	admin.POST("/circulation/borrow", circulationController.Borrow)
	admin.POST("/circulation/return", circulationController.Return)
	admin.GET("/circulation/overdue", circulationController.Overdue)

	// A patron may read their own card; admins may read any
	card := api.Group("/cards/:cardNo", authMiddleware.RequireCardAccess("cardNo"))
	card.GET("", cardsController.GetCard)
	card.GET("/stats", cardsController.Stats)
	card.GET("/loans", circulationController.CardLoans)
	card.GET("/habit", circulationController.CardHabit)
	card.GET("/recommendations", circulationController.CardRecommendations)

	me := api.Group("/me", authMiddleware.RequirePatron())
	me.GET("/loans", circulationController.MyLoans)
	me.GET("/recommendations", circulationController.MyRecommendations)
	me.GET("/stats", circulationController.MyStats)

	if cfg.AuditService != nil {
		auditController := NewAuditController(cfg.AuditService)
		admin.GET("/audit", auditController.GetAuditEvents)
		admin.GET("/audit/types", auditController.GetEventTypes)
	}

	// Task management endpoints
	if cfg.TaskQueue != nil {
		tasksController := NewTasksController(cfg.TaskQueue)
		admin.GET("/tasks/types", tasksController.ListTaskTypes)
		admin.GET("/tasks/:id", tasksController.GetTaskStatus)
		admin.POST("/tasks/:type/run", tasksController.RunTask)
	}

	return router
}
