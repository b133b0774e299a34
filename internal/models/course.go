package models

import "time"

// Course is owned by exactly one instructor and holds a roster of enrolled
// aprendices.
type Course struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	Name         string          `gorm:"size:255;not null" json:"name"`
	Code         string          `gorm:"size:64;uniqueIndex;not null" json:"code"`
	Description  string          `gorm:"type:text;not null" json:"description"`
	InstructorID uint            `gorm:"not null;index" json:"instructor_id"`
	StartDate    time.Time       `gorm:"not null" json:"start_date"`
	EndDate      time.Time       `gorm:"not null" json:"end_date"`
	Enrollments  []CourseStudent `gorm:"foreignKey:CourseID" json:"-"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// StudentIDs returns the enrolled student identifiers in enrollment order.
func (c Course) StudentIDs() []uint {
	ids := make([]uint, 0, len(c.Enrollments))
	for _, enrollment := range c.Enrollments {
		ids = append(ids, enrollment.StudentID)
	}
	return ids
}

// CourseStudent is one roster entry. The composite key makes enrollment a set.
type CourseStudent struct {
	CourseID  uint      `gorm:"primaryKey;autoIncrement:false" json:"course_id"`
	StudentID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"student_id"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName pins the roster table name.
func (CourseStudent) TableName() string {
	return "course_students"
}
