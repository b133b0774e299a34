package dto

import (
	"time"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// CourseCreateRequest creates a course. Instructors create their own courses
// and may omit InstructorID; admins must name the owning instructor.
type CourseCreateRequest struct {
	Name         string    `json:"name" validate:"required,max=255"`
	Code         string    `json:"code" validate:"required,max=64"`
	Description  string    `json:"description" validate:"required,max=2000"`
	InstructorID uint      `json:"instructor_id"`
	StartDate    time.Time `json:"start_date" validate:"required"`
	EndDate      time.Time `json:"end_date" validate:"required,gtefield=StartDate"`
	Students     []uint    `json:"students" validate:"omitempty,dive,gt=0"`
}

// CourseUpdateRequest edits course details. The instructor and the roster
// cannot be changed here.
type CourseUpdateRequest struct {
	Name        *string    `json:"name" validate:"omitempty,min=1,max=255"`
	Code        *string    `json:"code" validate:"omitempty,min=1,max=64"`
	Description *string    `json:"description" validate:"omitempty,min=1,max=2000"`
	StartDate   *time.Time `json:"start_date"`
	EndDate     *time.Time `json:"end_date"`
}

// CourseStudentsRequest names students to add to or remove from a roster.
// StudentID is accepted for single-student calls.
type CourseStudentsRequest struct {
	StudentID uint   `json:"student_id"`
	Students  []uint `json:"students" validate:"omitempty,dive,gt=0"`
}

// IDs merges both fields, dropping duplicates while keeping order.
func (r CourseStudentsRequest) IDs() []uint {
	ids := make([]uint, 0, len(r.Students)+1)
	seen := make(map[uint]struct{}, len(r.Students)+1)
	candidates := r.Students
	if r.StudentID > 0 {
		candidates = append([]uint{r.StudentID}, candidates...)
	}
	for _, id := range candidates {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

// CourseListRequest filters course listings.
type CourseListRequest struct {
	Page     int    `query:"page" validate:"gte=0"`
	PageSize int    `query:"page_size" validate:"gte=0,lte=100"`
	Search   string `query:"search" validate:"omitempty,max=255"`
}

// CourseResponse is the public view of a course.
type CourseResponse struct {
	ID           uint      `json:"id"`
	Name         string    `json:"name"`
	Code         string    `json:"code"`
	Description  string    `json:"description"`
	InstructorID uint      `json:"instructor_id"`
	Students     []uint    `json:"students"`
	StartDate    time.Time `json:"start_date"`
	EndDate      time.Time `json:"end_date"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// NewCourseResponse converts a model into its response.
func NewCourseResponse(course models.Course) CourseResponse {
	return CourseResponse{
		ID:           course.ID,
		Name:         course.Name,
		Code:         course.Code,
		Description:  course.Description,
		InstructorID: course.InstructorID,
		Students:     course.StudentIDs(),
		StartDate:    course.StartDate,
		EndDate:      course.EndDate,
		CreatedAt:    course.CreatedAt,
		UpdatedAt:    course.UpdatedAt,
	}
}

// CourseListResponse wraps a page of courses.
type CourseListResponse struct {
	Items      []CourseResponse `json:"items"`
	Pagination PaginationMeta   `json:"pagination"`
}
