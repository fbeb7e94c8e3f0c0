package models

import "time"

// Application is one flat registration request as submitted through the
// public intake form. Created by the submission workflow, mutated only by
// status updates afterwards, removed only via explicit bulk deletion.
type Application struct {
	ID          uint   `gorm:"primaryKey"`
	FullName    string `gorm:"not null"`
	Email       string `gorm:"not null"`
	Phone       string
	Address     string
	CompanyName string `gorm:"not null;index"`
	Notes       string
	PassportURL string `gorm:"not null"`
	BillURL     string `gorm:"not null"`
	Status      string `gorm:"not null;default:'pending'"` // see internal/status
	CreatedAt   time.Time
}
