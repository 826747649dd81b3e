package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserProfileModel struct {
	ID        string `gorm:"primaryKey"`
	Email     string `gorm:"not null"`
	Name      string
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time
}

type SchoolModel struct {
	ID         string         `gorm:"primaryKey"`
	OwnerID    string         `gorm:"not null;index"`
	Name       string         `gorm:"not null"`
	ClassNames datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null"`
	UpdatedAt  time.Time      `gorm:"not null"`
}

type StudentModel struct {
	ID            string  `gorm:"primaryKey"`
	OwnerID       string  `gorm:"not null;index"`
	SchoolID      string  `gorm:"not null;index"`
	ClassName     string  `gorm:"not null"`
	Name          string  `gorm:"not null"`
	FatherName    string
	RollNumber    string
	DateOfBirth   string
	Address       string
	ContactNumber string
	PhotoAssetRef *string
	CreatedAt     time.Time `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}
