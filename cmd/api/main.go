package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/BradenHooton/teacup/internal/auth"
	"github.com/BradenHooton/teacup/internal/config"
	"github.com/BradenHooton/teacup/internal/database"
	"github.com/BradenHooton/teacup/internal/handlers"
	middlewareCustom "github.com/BradenHooton/teacup/internal/middleware"
	"github.com/BradenHooton/teacup/internal/models"
	"github.com/BradenHooton/teacup/internal/repositories"
	"github.com/BradenHooton/teacup/internal/routes"
	"github.com/BradenHooton/teacup/internal/services"
	pkglogger "github.com/BradenHooton/teacup/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.Server.LogLevel)}))
	slog.SetDefault(logger)

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.Migrate(ctx, &cfg.Database, logger); err != nil {
		cancel()
		logger.Error("failed to apply migrations", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := database.NewConnection(ctx, &cfg.Database, logger)
	cancel()
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Repositories
	accountRepo := repositories.NewAccountRepository(db)
	seedRepo := repositories.NewAccountSeedRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	loginAttemptRepo := repositories.NewLoginAttemptRepository(db)

	// Services
	auditLogger := pkglogger.NewAuditLogger(logger)
	timingDelay := auth.NewTimingDelay(auth.TimingConfig{
		BaseDelayMs:    cfg.Auth.TimingDelayBaseMs,
		RandomDelayMs:  cfg.Auth.TimingDelayRandomMs,
		DelayOnSuccess: cfg.Auth.TimingDelayOnSuccess,
	})

	var notifier services.Notifier = services.NoopNotifier{}
	if cfg.Email.Enabled {
		sesNotifier, err := services.NewSESNotifier(context.Background(), cfg.Email.AWSRegion, cfg.Email.FromAddress, cfg.Email.RecoveryURL, logger)
		if err != nil {
			logger.Error("failed to initialize email notifier", slog.Any("error", err))
			os.Exit(1)
		}
		notifier = sesNotifier
	}

	loginAttemptService := services.NewLoginAttemptService(loginAttemptRepo, cfg.Auth.LockoutThreshold, logger)
	accountService := services.NewAccountService(
		accountRepo,
		seedRepo,
		auditRepo,
		loginAttemptService,
		notifier,
		timingDelay,
		logger,
		auditLogger,
	)

	// Bootstrap an admin account if configured
	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	if err := ensureAdminAccount(ctx, accountService, seedRepo, logger); err != nil {
		logger.Error("failed to ensure admin account", slog.Any("error", err))
	}
	cancel()

	// Router
	router := chi.NewRouter()
	router.Use(middlewareCustom.RequestID(logger))
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.CORS(middlewareCustom.DefaultCORSConfig(cfg.Server.AllowedOrigins)))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(cfg.Server.RequestTimeout))

	routes.RegisterRoutes(router,
		handlers.NewAccountHandler(accountService),
		handlers.NewHealthHandler(db),
		middlewareCustom.RateLimitConfig{
			RequestsPerMinute:     cfg.Server.RequestsPerMinute,
			TrustForwardedHeaders: cfg.Server.TrustProxyHeaders,
		},
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ensureAdminAccount signs up ADMIN_EMAIL and grants it the admin role when both
// ADMIN_EMAIL and ADMIN_PASSWORD are set
func ensureAdminAccount(
	ctx context.Context,
	accounts *services.AccountService,
	seeds *repositories.AccountSeedRepository,
	logger *slog.Logger,
) error {
	adminEmail := os.Getenv("ADMIN_EMAIL")
	adminPassword := os.Getenv("ADMIN_PASSWORD")

	if adminEmail == "" || adminPassword == "" {
		logger.Info("no ADMIN_EMAIL or ADMIN_PASSWORD set, skipping admin account creation")
		return nil
	}

	profile, err := accounts.SignUp(ctx, adminEmail, "Admin", "Account", adminPassword)
	if errors.Is(err, models.ErrConflict) {
		logger.Info("admin account already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to create admin account: %w", err)
	}

	if err := seeds.AssignRole(ctx, profile.ID, models.RoleAdmin); err != nil {
		return fmt.Errorf("failed to grant admin role: %w", err)
	}
	if err := seeds.RecordStatus(ctx, profile.ID, models.StatusVerified); err != nil {
		return fmt.Errorf("failed to mark admin verified: %w", err)
	}

	logger.Info("admin account created successfully")
	return nil
}
