// Package api serves the type2lyfe JSON API with Fiber: authentication,
// the medication catalog, log creation, log history and CSV export.
package api

import (
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"gorm.io/gorm"

	"github.com/pharrrodev/type2lyfe-sub001/internal/db"
	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
	"github.com/pharrrodev/type2lyfe-sub001/internal/metrics"
	"github.com/pharrrodev/type2lyfe-sub001/internal/services"
)

const (
	defaultAuthTokenTTL = 30 * 24 * time.Hour
	loginFailureLimit   = 8
	loginFailureWindow  = 15 * time.Minute
	maxRequestBodyBytes = 64 << 10
)

type Options struct {
	TokenTTL time.Duration
	Metrics  *metrics.Collector
	Logger   *log.Logger
	// Location is used for export dates; nil means time.Local.
	Location *time.Location
}

type Handler struct {
	secretKey         []byte
	tokenTTL          time.Duration
	repositories      *db.Repositories
	authService       *services.AuthService
	medicationService *services.MedicationService
	logService        *services.LogService
	exportService     *services.ExportService
	location          *time.Location
	loginLimiter      *attemptLimiter
	metrics           *metrics.Collector
	logger            *log.Logger
	now               func() time.Time
}

func NewHandler(database *gorm.DB, secret string, options Options) (*Handler, error) {
	if database == nil {
		return nil, errors.New("database is required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("secret key is required")
	}
	if options.TokenTTL <= 0 {
		options.TokenTTL = defaultAuthTokenTTL
	}
	if options.Location == nil {
		options.Location = time.Local
	}
	if options.Metrics == nil {
		options.Metrics = metrics.New()
	}

	handler := &Handler{
		secretKey:    []byte(secret),
		tokenTTL:     options.TokenTTL,
		location:     options.Location,
		loginLimiter: newAttemptLimiter(loginFailureLimit, loginFailureWindow),
		metrics:      options.Metrics,
		logger:       logging.OrDiscard(options.Logger),
		now:          time.Now,
	}
	return handler.withDependencies(database), nil
}

func (handler *Handler) withDependencies(database *gorm.DB) *Handler {
	handler.repositories = db.NewRepositories(database)
	handler.authService = services.NewAuthService(handler.repositories.Users)
	handler.medicationService = services.NewMedicationService(handler.repositories.Medications)
	handler.logService = services.NewLogService(handler.repositories.LogEntries, handler.medicationService, handler.metrics)
	handler.exportService = services.NewExportService(handler.repositories.LogEntries)
	return handler
}
