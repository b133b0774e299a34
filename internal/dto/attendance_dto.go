package dto

import (
	"time"

	"github.com/noah-isme/sena-attendance-api/internal/models"
)

// AttendanceCreateRequest records one student's status on one day.
type AttendanceCreateRequest struct {
	CourseID  uint   `json:"course_id" validate:"required"`
	StudentID uint   `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required"`
	Status    string `json:"status" validate:"required,attendance_status"`
	Notes     string `json:"notes" validate:"omitempty,max=500"`
}

// AttendanceUpdateRequest edits an attendance record in place.
type AttendanceUpdateRequest struct {
	StudentID *uint   `json:"student_id" validate:"omitempty,gt=0"`
	Date      *string `json:"date" validate:"omitempty,min=1"`
	Status    *string `json:"status" validate:"omitempty,attendance_status"`
	Notes     *string `json:"notes" validate:"omitempty,max=500"`
}

// AttendanceListRequest filters attendance listings. Dates use YYYY-MM-DD.
type AttendanceListRequest struct {
	Page      int    `query:"page" validate:"gte=0"`
	PageSize  int    `query:"page_size" validate:"gte=0,lte=100"`
	CourseID  uint   `query:"course_id"`
	StudentID uint   `query:"student_id"`
	Date      string `query:"date"`
	From      string `query:"from"`
	To        string `query:"to"`
}

// AttendanceResponse is the public view of an attendance record.
type AttendanceResponse struct {
	ID        uint      `json:"id"`
	CourseID  uint      `json:"course_id"`
	StudentID uint      `json:"student_id"`
	Date      string    `json:"date"`
	Status    string    `json:"status"`
	Notes     string    `json:"notes"`
	CreatedBy uint      `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAttendanceResponse converts a model into its response.
func NewAttendanceResponse(record models.Attendance) AttendanceResponse {
	return AttendanceResponse{
		ID:        record.ID,
		CourseID:  record.CourseID,
		StudentID: record.StudentID,
		Date:      record.Date.UTC().Format("2006-01-02"),
		Status:    string(record.Status),
		Notes:     record.Notes,
		CreatedBy: record.CreatedBy,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
}

// AttendanceListResponse wraps a page of attendance records.
type AttendanceListResponse struct {
	Items      []AttendanceResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
}
