package main

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/snipd/snipd/internal/auth"
	"github.com/snipd/snipd/internal/db"
	"github.com/snipd/snipd/internal/handler"
	"github.com/snipd/snipd/internal/repo"
	"github.com/snipd/snipd/internal/shortener"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

type Config struct {
	Host      string
	Port      string
	DBPath    string
	UserCreds string
	JWTSecret string
	LogLevel  string
	Debug     bool
}

func newConfigFromEnv() (Config, error) {
	cfg := Config{
		Host:      cmp.Or(os.Getenv("HOST"), "localhost"),
		Port:      cmp.Or(os.Getenv("PORT"), "8080"),
		DBPath:    cmp.Or(os.Getenv("DB_PATH"), "snipd.db"),
		UserCreds: os.Getenv("USER_CREDENTIALS"),
		JWTSecret: os.Getenv("JWT_SECRET"),
		LogLevel:  cmp.Or(os.Getenv("LOG_LEVEL"), "info"),
		Debug:     os.Getenv("DEBUG") == "1",
	}

	if cfg.UserCreds == "" {
		cfg.UserCreds = "admin@localhost:admin"
		log.Warn().Msg("using default credentials - set USER_CREDENTIALS for production")
	}

	if cfg.JWTSecret == "" {
		cfg.JWTSecret = cfg.UserCreds
		log.Warn().Msg("using USER_CREDENTIALS as JWT_SECRET - set JWT_SECRET for production")
	}

	return cfg, nil
}

func main() {
	cfg, err := newConfigFromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to parse configuration from environment")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Str("level", cfg.LogLevel).Msg("failed to parse log level")
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Debug {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("application error")
	}
}

func run(ctx context.Context, cfg Config) error {
	log.Info().
		Str("version", version).
		Str("build_time", buildTime).
		Msg("starting application")

	credentials, err := auth.ParseCredentialList(cfg.UserCreds)
	if err != nil {
		return fmt.Errorf("failed to parse user credentials: %w", err)
	}

	dbInstance, err := db.Init(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer dbInstance.Close()

	e := echo.New()
	defer e.Close()

	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = customErrorHandler

	e.Use(middleware.RequestLogger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	usersRepo := repo.NewUsersRepo(dbInstance)
	linksRepo := repo.NewShortLinksRepo(dbInstance)
	service := shortener.NewService(linksRepo)

	authenticator := auth.NewAuthenticator(credentials, usersRepo, cfg.JWTSecret)
	authHandler := handler.NewAuthHandler(authenticator)
	linkHandler := handler.NewLinkHandler(service)

	e.POST("/login", authHandler.Login)
	e.GET("/logout", authHandler.Logout)

	api := e.Group("/api/links", auth.NewMiddleware(authenticator))
	api.POST("", linkHandler.CreateLink)
	api.GET("", linkHandler.ListLinks)
	api.PATCH("/:id", linkHandler.UpdateLink)
	api.DELETE("/:id", linkHandler.DeleteLink)

	// Public resolution endpoints.
	e.GET("/api/resolve", linkHandler.ResolveLink)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "ok"})
	})

	// Parameterized route (must be last)
	e.GET("/:label", linkHandler.Redirect)

	log.Info().Str("address", cfg.Port).Msg("server starting")

	runServer(ctx, e, cfg.Port)

	return nil
}

func runServer(ctx context.Context, e *echo.Echo, port string) {
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- e.Start(":" + port)
	}()

	<-ctx.Done()

	log.Info().Msg("shutdown signal received, gracefully shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error during graceful shutdown")
	}

	if err := <-serverErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server error")
	}

	log.Info().Msg("server stopped")
}

func customErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	logEvent := log.Error()
	if code < http.StatusInternalServerError {
		logEvent = log.Warn()
	}
	logEvent.
		Int("code", code).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	if strings.HasPrefix(c.Path(), "/api/") || c.Path() == "/login" {
		c.JSON(code, map[string]any{"error": message})
		return
	}

	// Redirect paths render a plain message; the UI lives elsewhere.
	c.String(code, message)
}
