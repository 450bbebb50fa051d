package cli

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/pharrrodev/type2lyfe-sub001/internal/api"
	"github.com/pharrrodev/type2lyfe-sub001/internal/db"
	"github.com/pharrrodev/type2lyfe-sub001/internal/metrics"
)

const (
	minSecretKeyLength = 32
	shutdownTimeout    = 10 * time.Second
)

var insecureSecretKeys = map[string]bool{
	"change_me_in_production":                    true,
	"replace_with_at_least_32_random_characters": true,
}

type ServeCmd struct {
	DBPath    string        `name:"db-path" env:"DB_PATH" default:"data/type2lyfe.db" help:"SQLite database file."`
	Port      string        `env:"PORT" default:"8080" help:"Port to listen on."`
	SecretKey string        `name:"secret-key" env:"SECRET_KEY" help:"HMAC key for bearer tokens (at least 32 characters)."`
	TZ        string        `name:"tz" env:"TZ" default:"UTC" help:"Server time zone."`
	TokenTTL  time.Duration `name:"token-ttl" env:"TOKEN_TTL" default:"720h" help:"Lifetime of issued tokens."`
}

func (cmd *ServeCmd) Run(ctx *Context) error {
	logger := ctx.logger()

	secret, err := validateSecretKey(cmd.SecretKey)
	if err != nil {
		return err
	}
	port, err := validatePort(cmd.Port)
	if err != nil {
		return err
	}
	location := loadLocation(cmd.TZ, logger)
	time.Local = location

	database, err := db.OpenSQLite(cmd.DBPath, logger)
	if err != nil {
		return fmt.Errorf("database init failed: %w", err)
	}

	handler, err := api.NewHandler(database, secret, api.Options{
		TokenTTL: cmd.TokenTTL,
		Metrics:  metrics.New(),
		Logger:   logger,
		Location: location,
	})
	if err != nil {
		return fmt.Errorf("handler init failed: %w", err)
	}
	app := NewServerApp(handler, logger)

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	go func() {
		<-sigCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "err", err)
		}
	}()

	logger.Info("type2lyfe listening", "addr", "http://0.0.0.0:"+port, "db", cmd.DBPath, "tz", location.String())
	if err := app.Listen(":" + port); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	return nil
}

// NewServerApp builds the fiber app with the standard middleware and every
// API route.
func NewServerApp(handler *api.Handler, logger *log.Logger) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "type2lyfe",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	if logger != nil {
		app.Use(fiberlogger.New(fiberlogger.Config{
			Output: logger.StandardLog(log.StandardLogOptions{ForceLevel: log.InfoLevel}).Writer(),
		}))
	}
	app.Use(compress.New())

	api.RegisterRoutes(app, handler)
	return app
}

func validateSecretKey(raw string) (string, error) {
	secret := strings.TrimSpace(raw)
	if secret == "" {
		return "", errors.New("SECRET_KEY is required")
	}
	if insecureSecretKeys[secret] {
		return "", errors.New("SECRET_KEY uses an example placeholder, generate a random value")
	}
	if len(secret) < minSecretKeyLength {
		return "", fmt.Errorf("SECRET_KEY must be at least %d characters", minSecretKeyLength)
	}
	return secret, nil
}

func validatePort(raw string) (string, error) {
	port := strings.TrimSpace(raw)
	if port == "" {
		return "8080", nil
	}
	number, err := strconv.Atoi(port)
	if err != nil || number < 1 || number > 65535 {
		return "", fmt.Errorf("invalid PORT %q", raw)
	}
	return port, nil
}

func loadLocation(name string, logger *log.Logger) *time.Location {
	location, err := time.LoadLocation(strings.TrimSpace(name))
	if err != nil {
		logger.Warn("invalid TZ, falling back to UTC", "tz", name)
		return time.UTC
	}
	return location
}
