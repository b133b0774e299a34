// Package authz decides whether an actor may perform an action on the
// courses, attendance records, evaluations and users of the platform.
//
// The engine is pure: callers load the referenced entities from storage,
// describe them as facts in a Request and ask Evaluate for a Decision.
// Nothing in this package performs I/O.
package authz

import (
	"strings"
)

// Role is the closed set of roles an authenticated actor can hold.
type Role string

const (
	// RoleInstructor owns courses and authors attendance and evaluations.
	RoleInstructor Role = "instructor"
	// RoleStudent is an enrolled learner ("aprendiz").
	RoleStudent Role = "aprendiz"
	// RoleAdmin bypasses ownership and membership checks.
	RoleAdmin Role = "admin"
)

// ParseRole normalises a raw role string. "student" is accepted as an alias
// of aprendiz.
func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RoleInstructor):
		return RoleInstructor, true
	case string(RoleStudent), "student":
		return RoleStudent, true
	case string(RoleAdmin):
		return RoleAdmin, true
	default:
		return "", false
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleInstructor, RoleStudent, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// Actor is the identity resolved from a verified token.
type Actor struct {
	ID   uint
	Role Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Privileged reports whether the actor may act on users other than itself.
func (a Actor) Privileged() bool {
	return a.Role == RoleInstructor || a.Role == RoleAdmin
}

// Course describes the parts of a course relevant to authorization.
type Course struct {
	ID           uint
	InstructorID uint
	Students     []uint
}

// HasStudent reports whether id is enrolled in the course.
func (c *Course) HasStudent(id uint) bool {
	if c == nil {
		return false
	}
	for _, student := range c.Students {
		if student == id {
			return true
		}
	}
	return false
}

// OwnedBy reports whether id is the course's instructor.
func (c *Course) OwnedBy(id uint) bool {
	return c != nil && c.InstructorID != 0 && c.InstructorID == id
}

// Attendance describes an attendance record.
type Attendance struct {
	ID        uint
	CourseID  uint
	StudentID uint
}

// Evaluation describes an evaluation together with the students that
// already hold a grade entry on it.
type Evaluation struct {
	ID             uint
	CourseID       uint
	GradedStudents []uint
}

// HasGradeFor reports whether the evaluation carries a grade entry for id.
func (e *Evaluation) HasGradeFor(id uint) bool {
	if e == nil {
		return false
	}
	for _, student := range e.GradedStudents {
		if student == id {
			return true
		}
	}
	return false
}

// Subject describes a user referenced by a request, either as the target of
// a user action or as a student named in a payload.
type Subject struct {
	ID          uint
	Found       bool
	Role        Role
	OwnsCourses bool
	// Enrolled is set when the user appears in at least one course roster.
	Enrolled bool
}

// Request carries everything Evaluate needs. Pointer facts left nil mean the
// referenced entity did not resolve.
type Request struct {
	Actor      Actor
	Action     Action
	Course     *Course
	Attendance *Attendance
	Evaluation *Evaluation
	// User is the target of user actions, or the nominated instructor for
	// CreateCourse.
	User *Subject
	// Students are the students named by the payload (roster changes,
	// attendance, grades).
	Students []Subject
	// RequestedRole is set when an UpdateUser payload changes the role.
	RequestedRole *Role
	// Duplicate is set when the write would violate a uniqueness constraint.
	Duplicate bool
}
