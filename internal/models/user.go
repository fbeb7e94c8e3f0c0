package models

import "time"

// Dashboard operators
type User struct {
	ID        uint   `gorm:"primaryKey"`
	Email     string `gorm:"uniqueIndex;not null"`
	Password  string `gorm:"not null"` // bcrypt hash
	CreatedAt time.Time
}

// UserRole maps an operator to a role string. Only RoleAdmin grants access to
// the dashboard API.
type UserRole struct {
	ID        uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;index"`
	Role      string `gorm:"not null"`
	CreatedAt time.Time
}

const RoleAdmin = "admin"
