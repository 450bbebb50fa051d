package models

import "time"

type Medication struct {
	ID        string    `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;index"`
	Name      string    `gorm:"not null"`
	Dose      string    `gorm:"not null;default:''"`
	CreatedAt time.Time `gorm:"not null"`
}
