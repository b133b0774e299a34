package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// Migrate creates or updates every table the API uses.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Course{},
		&models.CourseStudent{},
		&models.Attendance{},
		&models.Evaluation{},
		&models.Grade{},
		&models.ActivityLog{},
	)
}
