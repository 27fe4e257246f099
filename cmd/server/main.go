package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/Samocology/noap-backend/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"github.com/Samocology/noap-backend/internal/auth"
	"github.com/Samocology/noap-backend/internal/cache"
	"github.com/Samocology/noap-backend/internal/config"
	"github.com/Samocology/noap-backend/internal/db"
	"github.com/Samocology/noap-backend/internal/handler"
	"github.com/Samocology/noap-backend/internal/logging"
	"github.com/Samocology/noap-backend/internal/mail"
	"github.com/Samocology/noap-backend/internal/metrics"
	"github.com/Samocology/noap-backend/internal/repository"
	"github.com/Samocology/noap-backend/internal/router"
	"github.com/Samocology/noap-backend/internal/service"
)

// @title NOAP Identity API
// @version 1.0
// @description Registration, email verification, login and password reset for schools, members and administrators.
// @host localhost:8080
// @BasePath /
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gormDB, err := db.NewMySQL(cfg.MySQLDSN)
	if err != nil {
		logger.Error("database init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Migrate(gormDB); err != nil {
		logger.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	if err := cacheClient.Ping(ctx); err != nil {
		logger.Warn("redis unavailable, continuing without cache", slog.String("error", err.Error()))
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.JWTKeyID, cfg.JWTIssuer,
		auth.WithPreviousKeys(cfg.JWTPreviousSecrets))
	if err != nil {
		logger.Error("token service init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	hasher := auth.NewHasher(cfg.BcryptCost, cfg.HashWorkers)
	identities := auth.NewIdentityStore(cacheClient)
	appMetrics := metrics.New()

	// Initialize repositories
	principalRepo := repository.NewPrincipalRepository(gormDB)
	roleRepo := repository.NewRoleRepository(gormDB)

	// Initialize services
	roles := service.NewRoleRegistry(roleRepo)
	credentials := service.NewCredentialStore(principalRepo, roles, hasher, identities, logger)
	otp := service.NewOTPService(principalRepo, identities, logger, service.WithOTPTTL(cfg.OTPTTL))
	sessions := service.NewSessionService(tokens, credentials, cfg.ResetTokenTTL)
	authService := service.NewAuthService(service.AuthDependencies{
		Principals:  principalRepo,
		Roles:       roles,
		Credentials: credentials,
		OTP:         otp,
		Sessions:    sessions,
		Identities:  identities,
		Mailer:      newMailer(cfg, logger),
		Metrics:     appMetrics,
		Logger:      logger,
	}, service.AuthConfig{
		OTPTTL:            cfg.OTPTTL,
		OTPResendCooldown: cfg.OTPResendCooldown,
		ResetURLBase:      cfg.ResetURLBase,
	})

	e := echo.New()
	router.Register(e, router.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Metrics:     appMetrics,
		Sessions:    sessions,
		AuthHandler: handler.NewAuthHandler(authService),
		UserHandler: handler.NewUserHandler(roles),
	})

	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      e,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	go func() {
		logger.Info("api server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server run failed", slog.String("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", slog.String("error", err.Error()))
	}
	if err := cacheClient.Close(); err != nil {
		logger.Error("close redis failed", slog.String("error", err.Error()))
	}
	if sqlDB, err := gormDB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// newMailer picks the dispatcher named by MAIL_DRIVER. "log" writes messages
// to the logger instead of sending them.
func newMailer(cfg *config.Config, logger *slog.Logger) mail.Dispatcher {
	if cfg.MailDriver == "log" {
		logger.Warn("MAIL_DRIVER=log, emails will not be delivered")
		return mail.NewLogDispatcher(logger)
	}
	return mail.NewSMTPDispatcher(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.MailFrom,
	}, logger)
}
