package models

import (
	"time"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
)

// User is an account that can authenticate against the API. Instructors own
// courses, aprendices are enrolled in them.
type User struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	Name           string     `gorm:"size:255;not null" json:"name"`
	Email          string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash   string     `gorm:"size:255;not null" json:"-"`
	Role           authz.Role `gorm:"size:32;not null;index" json:"role"`
	DocumentType   string     `gorm:"size:16" json:"document_type"`
	DocumentNumber *string    `gorm:"size:32;uniqueIndex" json:"document_number,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// Document types accepted at registration.
const (
	DocumentTypeCC  = "CC"
	DocumentTypeTI  = "TI"
	DocumentTypeCE  = "CE"
	DocumentTypePPT = "PPT"
)
