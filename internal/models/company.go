package models

import "time"

// Company & nested submission entities. Directors and PSCs reference their
// parent company by id only; insert ordering is enforced by the submission
// workflow, not by a database constraint.
type Company struct {
	ID               uint       `gorm:"primaryKey"`
	CompanyName      string     `gorm:"not null;index"`
	OfficeAddress    string     `gorm:"not null"`
	BusinessActivity string     `gorm:"not null"`
	Directors        []Director `gorm:"foreignKey:CompanyID"`
	PSCs             []PSC      `gorm:"foreignKey:CompanyID"`
	CreatedAt        time.Time
}

type Director struct {
	ID          uint   `gorm:"primaryKey"`
	CompanyID   uint   `gorm:"not null;index"`
	HomeAddress string `gorm:"not null"`
	NINumber    string `gorm:"not null"`
	PassportURL string
	BRPURL      string `gorm:"column:brp_url"`
	CreatedAt   time.Time
}

// PSC is a person with significant control over the company, who may not be
// a formal director or shareholder.
type PSC struct {
	ID              uint   `gorm:"primaryKey"`
	CompanyID       uint   `gorm:"not null;index"`
	Name            string `gorm:"not null"`
	Address         string
	NatureOfControl string
	CreatedAt       time.Time
}
