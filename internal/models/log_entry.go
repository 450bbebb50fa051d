package models

import "time"

// LogEntry is one stored health record. Payload holds the type specific
// fields as JSON; ClientID is the draft id the client submitted with and is
// unique per user.
type LogEntry struct {
	ID         string    `gorm:"primaryKey"`
	UserID     uint      `gorm:"not null;uniqueIndex:idx_log_entries_user_client"`
	ClientID   string    `gorm:"not null;uniqueIndex:idx_log_entries_user_client"`
	LogType    string    `gorm:"not null"`
	Source     string    `gorm:"not null;default:manual"`
	Payload    string    `gorm:"type:text;not null"`
	RecordedAt time.Time `gorm:"not null;index"`
	CreatedAt  time.Time `gorm:"not null"`
}
