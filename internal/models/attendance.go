package models

import (
	"strings"
	"time"
)

// AttendanceStatus is the presence state recorded for a student on a day.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceAbsent  AttendanceStatus = "absent"
	AttendanceExcused AttendanceStatus = "excused"
	AttendanceLate    AttendanceStatus = "late"
)

var attendanceAliases = map[string]AttendanceStatus{
	"present":  AttendancePresent,
	"presente": AttendancePresent,
	"absent":   AttendanceAbsent,
	"ausente":  AttendanceAbsent,
	"excused":  AttendanceExcused,
	"excusa":   AttendanceExcused,
	"late":     AttendanceLate,
	"retardo":  AttendanceLate,
}

// ParseAttendanceStatus accepts the English statuses and their Spanish
// equivalents.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	status, ok := attendanceAliases[strings.ToLower(strings.TrimSpace(raw))]
	return status, ok
}

// Attendance records the status of one student in one course on one day.
type Attendance struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CourseID  uint             `gorm:"not null;uniqueIndex:idx_attendance_course_student_date,priority:1" json:"course_id"`
	StudentID uint             `gorm:"not null;index;uniqueIndex:idx_attendance_course_student_date,priority:2" json:"student_id"`
	Date      time.Time        `gorm:"not null;uniqueIndex:idx_attendance_course_student_date,priority:3" json:"date"`
	Status    AttendanceStatus `gorm:"size:16;not null" json:"status"`
	Notes     string           `gorm:"size:500" json:"notes"`
	CreatedBy uint             `gorm:"not null" json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// AttendanceDay truncates t to midnight UTC so that every record for the same
// calendar day compares equal.
func AttendanceDay(t time.Time) time.Time {
	year, month, day := t.UTC().Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
