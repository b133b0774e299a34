package dto

import "time"

// AttendanceBreakdown counts a student's attendance records by status.
type AttendanceBreakdown struct {
	Present int64 `json:"present"`
	Absent  int64 `json:"absent"`
	Excused int64 `json:"excused"`
	Late    int64 `json:"late"`
	Total   int64 `json:"total"`
}

// StudentSummaryResponse aggregates a student's grades and attendance.
type StudentSummaryResponse struct {
	StudentID            uint                `json:"student_id"`
	AverageGrade         float64             `json:"average_grade"`
	AttendancePercentage float64             `json:"attendance_percentage"`
	CompletedEvaluations int                 `json:"completed_evaluations"`
	PendingEvaluations   int                 `json:"pending_evaluations"`
	Attendance           AttendanceBreakdown `json:"attendance"`
	GeneratedAt          time.Time           `json:"generated_at"`
	CacheHit             bool                `json:"cache_hit"`
}

// GradeUpdateRequest edits a grade entry by its identifier.
type GradeUpdateRequest struct {
	Score    *float64 `json:"score" validate:"required,gte=0"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=1000"`
}
