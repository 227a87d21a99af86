package entrypoint

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/librarian/internal/auth"
	"github.com/mrlokans/librarian/internal/config"
	http_controllers "github.com/mrlokans/librarian/internal/http"
	"github.com/mrlokans/librarian/internal/metrics"
	"github.com/mrlokans/librarian/internal/scheduler"
	"github.com/mrlokans/librarian/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT or SIGTERM, then shuts it down
// within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) error {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Printf("Starting server at %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}
	log.Printf("Shutdown Server, waiting %v before killing", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	// Stop background work after the last request has been answered
	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
	return nil
}

// Run wires every component from cfg and serves until a shutdown signal.
func Run(cfg *config.Config, version string) error {
	log.Printf("Starting Librarian v%s", version)

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New("library")
	}

	svc, err := NewServices(cfg, m)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			log.Printf("Error closing database: %v", err)
		}
	}()

	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	// Initialize task queue if enabled
	var taskClient *tasks.Client
	if cfg.Tasks.Enabled {
		path := cfg.Tasks.DatabasePath
		if path == "" {
			path = tasks.DatabasePathFor(cfg.Database.Path)
		}
		taskClient, err = tasks.NewClient(path, tasks.Config{
			Workers:         cfg.Tasks.Workers,
			ReleaseAfter:    cfg.Tasks.ReleaseAfter,
			CleanupInterval: cfg.Tasks.CleanupInterval,
		})
		if err != nil {
			return fmt.Errorf("initialize task queue: %w", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewOverdueScanQueue(svc.Circulation, svc.Settings, svc.Audit),
			tasks.NewImportBooksQueue(svc.Catalog, svc.Auditor),
			tasks.NewCleanupAuditEventsQueue(svc.Audit, svc.Audit),
		)
		taskClient.Start(bgCtx)
	}

	var overdueScheduler *scheduler.OverdueScanScheduler
	if cfg.OverdueScan.Enabled {
		overdueScheduler = scheduler.NewOverdueScanScheduler(cfg.OverdueScan.Schedule, svc.Circulation, svc.Settings, svc.Audit).
			WithAuditCleanup(cfg.Audit.RetentionDays)
		if taskClient != nil {
			overdueScheduler.WithQueue(taskClient)
		}
		if err := overdueScheduler.Start(bgCtx); err != nil {
			return err
		}
	} else {
		log.Printf("Overdue scan scheduler: disabled")
	}

	routerCfg := http_controllers.RouterConfig{
		Catalog:      svc.Catalog,
		Cards:        svc.Cards,
		Circulation:  svc.Circulation,
		Database:     svc.DB,
		AuditService: svc.Audit,
		Auditor:      svc.Auditor,
		AuthConfig:   cfg.Auth,
		Metrics:      m,
		Version:      version,
	}
	if taskClient != nil {
		routerCfg.TaskQueue = taskClient
	}

	var authController *auth.AuthController
	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")

		authService := auth.NewService(svc.DB.DB, cfg.Auth)
		sessionManager, err := auth.NewSessionManager(svc.DB, cfg.Auth)
		if err != nil {
			return fmt.Errorf("initialize session manager: %w", err)
		}
		authController = auth.NewAuthController(authService, sessionManager, cfg.Auth).WithAudit(svc.Audit)

		csrfSecret, err := csrfSecret(cfg.Auth.SessionSecret)
		if err != nil {
			return err
		}

		routerCfg.SessionManager = sessionManager
		routerCfg.AuthController = authController
		routerCfg.CSRFSecret = csrfSecret

		if hasUsers, _ := authService.HasUsers(); !hasUsers {
			log.Printf("No administrators found. POST /api/auth/setup or run 'librarian admin create' to create one.")
		}
	} else {
		log.Printf("Authentication mode: none (no authentication required)")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if overdueScheduler != nil {
			overdueScheduler.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		if authController != nil {
			authController.Stop()
		}
		bgCancel()
	}

	return Serve(router, cfg, onShutdown)
}

// csrfSecret decodes a hex AUTH_SESSION_SECRET, falls back to its raw bytes,
// or generates a fresh secret when none is configured.
func csrfSecret(configured string) ([]byte, error) {
	if configured != "" {
		if secret, err := hex.DecodeString(configured); err == nil {
			return secret, nil
		}
		return []byte(configured), nil
	}

	secret, err := auth.GenerateSessionSecret()
	if err != nil {
		return nil, fmt.Errorf("generate CSRF secret: %w", err)
	}
	log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	return hex.DecodeString(secret)
}
