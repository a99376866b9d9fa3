// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/saasbase-io/saasbase/internal/config"
	"github.com/saasbase-io/saasbase/internal/database"
	"github.com/saasbase-io/saasbase/internal/handlers"
	"github.com/saasbase-io/saasbase/internal/i18n"
	appmw "github.com/saasbase-io/saasbase/internal/middleware"
	"github.com/saasbase-io/saasbase/internal/oauth"
	"github.com/saasbase-io/saasbase/internal/repository"
	"github.com/saasbase-io/saasbase/internal/services/auth"
	"github.com/saasbase-io/saasbase/internal/services/chat"
	"github.com/saasbase-io/saasbase/internal/services/email"
	"github.com/saasbase-io/saasbase/internal/services/session"
	"github.com/urfave/cli/v3"
)

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	setupLogger(cfg.Log.Level, cfg.Log.Format)

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"environment", cfg.Server.Environment,
	)

	// Database (migrations run at open)
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	// i18n
	if initErr := i18n.Init(); initErr != nil {
		return fmt.Errorf("failed to init i18n: %w", initErr)
	}

	// Repository
	repo := repository.New(db)

	// Services
	mailer, err := email.NewService(&cfg.SMTP, cfg.Server.BaseURL)
	if err != nil {
		return fmt.Errorf("failed to create email service: %w", err)
	}

	authService := auth.NewService(repo, mailer)

	sessions, err := session.NewManager(&cfg.Session, cfg.SecureCookies())
	if err != nil {
		return fmt.Errorf("failed to create session manager: %w", err)
	}

	google := oauth.NewGoogleProvider(&cfg.Google, cfg.Server.BaseURL)
	states := oauth.NewStateStore(cfg.Session.Secret, cfg.SecureCookies())
	relay := chat.NewService(&cfg.OpenAI)

	// Echo
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	setupMiddleware(e, cfg)
	setupRoutes(e, cfg, repo, authService, sessions, google, states, relay)

	return startWithGracefulShutdown(e, cfg)
}

func setupRoutes(
	e *echo.Echo,
	cfg *config.Config,
	repo *repository.Repository,
	authService *auth.Service,
	sessions *session.Manager,
	google *oauth.GoogleProvider,
	states *oauth.StateStore,
	relay *chat.Service,
) {
	e.Use(appmw.LoadUser(sessions, repo))

	h := handlers.New(repo)
	authHandler := handlers.NewAuth(authService, sessions, google, states, cfg.IsProduction())
	chatHandler := handlers.NewChat(relay, cfg.IsProduction())

	// Public
	e.GET("/health", h.Health)
	e.GET("/", h.Home)
	e.POST("/signup", authHandler.Signup)
	e.GET("/verify-email", authHandler.VerifyEmail)
	e.POST("/resend-verification", authHandler.ResendVerification)
	e.POST("/login", authHandler.Login)
	e.POST("/logout", authHandler.Logout)
	e.GET("/auth/google", authHandler.GoogleLogin)
	e.GET("/auth/google/callback", authHandler.GoogleCallback)
	e.GET("/session", h.Session)

	// Private area
	private := e.Group("", appmw.RequireAuth)
	private.GET("/dashboard", h.Dashboard)
	private.POST("/chat", chatHandler.Chat)
}

func startWithGracefulShutdown(e *echo.Echo, cfg *config.Config) error {
	errChan := make(chan error, 1)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	go func() {
		slog.Info("server running", "url", cfg.Server.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	// Wait for interrupt signal or error
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	slog.Info("server stopped")
	return nil
}
