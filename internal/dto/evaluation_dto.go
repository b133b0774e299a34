package dto

import (
	"time"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// GradeInput is one entry of an initial grade roster.
type GradeInput struct {
	StudentID uint     `json:"student_id" validate:"required"`
	Score     *float64 `json:"score" validate:"required,gte=0"`
	Feedback  string   `json:"feedback" validate:"omitempty,max=1000"`
}

// EvaluationCreateRequest creates an evaluation, optionally grading students
// right away.
type EvaluationCreateRequest struct {
	CourseID    uint         `json:"course_id" validate:"required"`
	Title       string       `json:"title" validate:"required,max=100"`
	Description string       `json:"description" validate:"omitempty,max=500"`
	MaxScore    *float64     `json:"max_score" validate:"omitempty,gt=0,lte=100"`
	DueDate     *time.Time   `json:"due_date"`
	Grades      []GradeInput `json:"grades" validate:"omitempty,dive"`
}

// EvaluationUpdateRequest edits evaluation details.
type EvaluationUpdateRequest struct {
	Title       *string    `json:"title" validate:"omitempty,min=1,max=100"`
	Description *string    `json:"description" validate:"omitempty,max=500"`
	MaxScore    *float64   `json:"max_score" validate:"omitempty,gt=0,lte=100"`
	DueDate     *time.Time `json:"due_date"`
}

// GradeRequest grades one student. StudentID is taken from the path when the
// route names the student.
type GradeRequest struct {
	StudentID uint     `json:"student_id"`
	Score     *float64 `json:"score" validate:"required,gte=0"`
	Feedback  string   `json:"feedback" validate:"omitempty,max=1000"`
}

// EvidenceRequest is the student's own submission for an evaluation.
type EvidenceRequest struct {
	Evidence string `json:"evidence" validate:"required,max=2000"`
}

// EvaluationListRequest filters evaluation listings.
type EvaluationListRequest struct {
	Page     int  `query:"page" validate:"gte=0"`
	PageSize int  `query:"page_size" validate:"gte=0,lte=100"`
	CourseID uint `query:"course_id"`
}

// GradeResponse is the public view of a grade entry.
type GradeResponse struct {
	ID           uint       `json:"id"`
	EvaluationID uint       `json:"evaluation_id"`
	CourseID     uint       `json:"course_id"`
	StudentID    uint       `json:"student_id"`
	Score        *float64   `json:"score"`
	Feedback     string     `json:"feedback"`
	Evidence     string     `json:"evidence"`
	GradedBy     *uint      `json:"graded_by,omitempty"`
	GradedAt     *time.Time `json:"graded_at,omitempty"`
	SubmittedAt  *time.Time `json:"submitted_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NewGradeResponse converts a model into its response.
func NewGradeResponse(grade models.Grade) GradeResponse {
	return GradeResponse{
		ID:           grade.ID,
		EvaluationID: grade.EvaluationID,
		CourseID:     grade.CourseID,
		StudentID:    grade.StudentID,
		Score:        grade.Score,
		Feedback:     grade.Feedback,
		Evidence:     grade.Evidence,
		GradedBy:     grade.GradedBy,
		GradedAt:     grade.GradedAt,
		SubmittedAt:  grade.SubmittedAt,
		UpdatedAt:    grade.UpdatedAt,
	}
}

// NewGradeResponses converts a slice of models.
func NewGradeResponses(grades []models.Grade) []GradeResponse {
	responses := make([]GradeResponse, 0, len(grades))
	for _, grade := range grades {
		responses = append(responses, NewGradeResponse(grade))
	}
	return responses
}

// EvaluationResponse is the public view of an evaluation with its grades.
type EvaluationResponse struct {
	ID          uint            `json:"id"`
	CourseID    uint            `json:"course_id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	MaxScore    float64         `json:"max_score"`
	DueDate     *time.Time      `json:"due_date,omitempty"`
	CreatedBy   uint            `json:"created_by"`
	Grades      []GradeResponse `json:"grades"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// NewEvaluationResponse converts a model into its response.
func NewEvaluationResponse(evaluation models.Evaluation) EvaluationResponse {
	return EvaluationResponse{
		ID:          evaluation.ID,
		CourseID:    evaluation.CourseID,
		Title:       evaluation.Title,
		Description: evaluation.Description,
		MaxScore:    evaluation.MaxScore,
		DueDate:     evaluation.DueDate,
		CreatedBy:   evaluation.CreatedBy,
		Grades:      NewGradeResponses(evaluation.Grades),
		CreatedAt:   evaluation.CreatedAt,
		UpdatedAt:   evaluation.UpdatedAt,
	}
}

// EvaluationListResponse wraps a page of evaluations.
type EvaluationListResponse struct {
	Items      []EvaluationResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}
