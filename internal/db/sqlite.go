package db

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/pharrrodev/type2lyfe-sub001/internal/logging"
)

// OpenSQLite opens (creating if needed) the database at dbPath and brings
// its schema up to date.
func OpenSQLite(dbPath string, logger *log.Logger) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	logger = logging.OrDiscard(logger)
	dsn := fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", dbPath)
	database, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.New(
			logger.StandardLog(log.StandardLogOptions{ForceLevel: log.WarnLevel}),
			gormlogger.Config{
				SlowThreshold:             time.Second,
				LogLevel:                  gormlogger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	applied, err := migrate(database)
	if err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range applied {
		logger.Info("migration applied", "name", name)
	}
	return database, nil
}
