package db

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pharrrodev/type2lyfe-sub001/internal/models"
)

// LogPosition is a point in the (recorded_at DESC, id DESC) history order.
type LogPosition struct {
	RecordedAt time.Time
	ID         string
}

type LogEntryRepository struct {
	database *gorm.DB
}

func NewLogEntryRepository(database *gorm.DB) *LogEntryRepository {
	return &LogEntryRepository{database: database}
}

func (repo *LogEntryRepository) FindByClientID(userID uint, clientID string) (models.LogEntry, bool, error) {
	var entry models.LogEntry
	err := repo.database.Where("user_id = ? AND client_id = ?", userID, clientID).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.LogEntry{}, false, nil
	}
	if err != nil {
		return models.LogEntry{}, false, err
	}
	return entry, true, nil
}

// CreateOnce inserts entry unless the user already stored one with the same
// client id; in that case the stored row is returned and created is false.
func (repo *LogEntryRepository) CreateOnce(entry *models.LogEntry) (models.LogEntry, bool, error) {
	if existing, found, err := repo.FindByClientID(entry.UserID, entry.ClientID); err != nil || found {
		return existing, false, err
	}

	createErr := repo.database.Create(entry).Error
	if createErr == nil {
		return *entry, true, nil
	}

	// A concurrent request with the same client id won the insert.
	existing, found, err := repo.FindByClientID(entry.UserID, entry.ClientID)
	if err != nil {
		return models.LogEntry{}, false, err
	}
	if found {
		return existing, false, nil
	}
	return models.LogEntry{}, false, createErr
}

// ListPage returns up to limit entries strictly after position, newest
// first. An empty logType matches every type.
func (repo *LogEntryRepository) ListPage(userID uint, logType string, after *LogPosition, limit int) ([]models.LogEntry, error) {
	query := repo.database.Where("user_id = ?", userID)
	if logType != "" {
		query = query.Where("log_type = ?", logType)
	}
	if after != nil {
		query = query.Where("((recorded_at < ?) OR (recorded_at = ? AND id < ?))", after.RecordedAt, after.RecordedAt, after.ID)
	}

	entries := make([]models.LogEntry, 0, limit)
	if err := query.
		Order("recorded_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

func (repo *LogEntryRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	if err := repo.database.Model(&models.LogEntry{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListRange returns the user's entries recorded in [from, until), oldest
// first. A nil bound is open.
func (repo *LogEntryRepository) ListRange(userID uint, from *time.Time, until *time.Time) ([]models.LogEntry, error) {
	query := repo.database.Where("user_id = ?", userID)
	if from != nil {
		query = query.Where("recorded_at >= ?", from.UTC())
	}
	if until != nil {
		query = query.Where("recorded_at < ?", until.UTC())
	}

	entries := make([]models.LogEntry, 0)
	if err := query.Order("recorded_at ASC, id ASC").Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
