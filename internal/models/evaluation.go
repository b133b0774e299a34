package models

import "time"

// DefaultMaxScore bounds grades when an evaluation does not set its own scale.
const DefaultMaxScore = 5.0

// Evaluation belongs to a course and carries one grade entry per student.
type Evaluation struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	CourseID    uint       `gorm:"not null;index" json:"course_id"`
	Title       string     `gorm:"size:100;not null" json:"title"`
	Description string     `gorm:"size:500" json:"description"`
	MaxScore    float64    `gorm:"not null;default:5" json:"max_score"`
	DueDate     *time.Time `json:"due_date"`
	CreatedBy   uint       `gorm:"not null" json:"created_by"`
	Grades      []Grade    `gorm:"foreignKey:EvaluationID" json:"grades"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// GradedStudentIDs lists the students holding a grade entry.
func (e Evaluation) GradedStudentIDs() []uint {
	ids := make([]uint, 0, len(e.Grades))
	for _, grade := range e.Grades {
		ids = append(ids, grade.StudentID)
	}
	return ids
}

// Grade is the entry of one student on one evaluation. CourseID is copied from
// the evaluation so per-course and per-student queries need no join.
type Grade struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	EvaluationID uint       `gorm:"not null;uniqueIndex:idx_grade_evaluation_student,priority:1" json:"evaluation_id"`
	StudentID    uint       `gorm:"not null;index;uniqueIndex:idx_grade_evaluation_student,priority:2" json:"student_id"`
	CourseID     uint       `gorm:"not null;index" json:"course_id"`
	Score        *float64   `json:"score"`
	Feedback     string     `gorm:"size:1000" json:"feedback"`
	Evidence     string     `gorm:"type:text" json:"evidence"`
	GradedBy     *uint      `json:"graded_by"`
	GradedAt     *time.Time `json:"graded_at"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsGraded reports whether an instructor has scored the entry.
func (g Grade) IsGraded() bool {
	return g.Score != nil
}
