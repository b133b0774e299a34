package authz

import "strconv"

type reference uint8

const (
	refCourse reference = 1 << iota
	refAttendance
	refEvaluation
	refUser
)

type check func(Request) Decision

type rule struct {
	roles []Role
	needs reference
	check check
}

var (
	anyRole   = []Role{RoleInstructor, RoleStudent, RoleAdmin}
	authoring = []Role{RoleInstructor, RoleAdmin}
	learners  = []Role{RoleStudent}
)

var rules = map[Action]rule{
	ActionCreateCourse: {
		roles: authoring,
		check: all(nominatedInstructor, studentsAreLearners, unique("a course with this code already exists")),
	},
	ActionReadCourse: {
		roles: anyRole,
		needs: refCourse,
		check: courseReader,
	},
	ActionUpdateCourse: {
		roles: authoring,
		needs: refCourse,
		check: all(courseOwner("update this course"), unique("a course with this code already exists")),
	},
	ActionDeleteCourse: {
		roles: authoring,
		needs: refCourse,
		check: courseOwner("delete this course"),
	},
	ActionAddStudents: {
		roles: authoring,
		needs: refCourse,
		check: all(courseOwner("modify this course"), studentsAreLearners),
	},
	ActionRemoveStudents: {
		roles: authoring,
		needs: refCourse,
		check: courseOwner("modify this course"),
	},
	ActionCreateAttendance: {
		roles: authoring,
		needs: refCourse,
		check: all(courseOwner("record attendance in this course"), studentsEnrolled, unique("attendance already recorded for this student on this date")),
	},
	ActionReadAttendance: {
		roles: anyRole,
		needs: refAttendance | refCourse,
		check: attendanceReader,
	},
	ActionUpdateAttendance: {
		roles: authoring,
		needs: refAttendance | refCourse,
		check: all(courseOwner("update this attendance record"), studentsEnrolled, unique("attendance already recorded for this student on this date")),
	},
	ActionDeleteAttendance: {
		roles: authoring,
		needs: refAttendance | refCourse,
		check: courseOwner("delete this attendance record"),
	},
	ActionCreateEvaluation: {
		roles: authoring,
		needs: refCourse,
		check: all(courseOwner("create evaluations in this course"), studentsEnrolled),
	},
	ActionReadEvaluation: {
		roles: anyRole,
		needs: refEvaluation | refCourse,
		check: evaluationReader,
	},
	ActionUpdateEvaluation: {
		roles: authoring,
		needs: refEvaluation | refCourse,
		check: courseOwner("update this evaluation"),
	},
	ActionDeleteEvaluation: {
		roles: authoring,
		needs: refEvaluation | refCourse,
		check: courseOwner("delete this evaluation"),
	},
	ActionGradeEvaluation: {
		roles: authoring,
		needs: refEvaluation | refCourse,
		check: all(courseOwner("grade this evaluation"), studentsEnrolled),
	},
	ActionSubmitEvidence: {
		roles: learners,
		needs: refEvaluation | refCourse,
		check: evidenceSubmitter,
	},
	ActionListUsers: {
		roles: authoring,
		check: func(Request) Decision { return allow() },
	},
	ActionReadUser: {
		roles: anyRole,
		needs: refUser,
		check: selfOrPrivileged("view this user"),
	},
	ActionUpdateUser: {
		roles: anyRole,
		needs: refUser,
		check: all(selfOrPrivileged("update this user"), adminTargets, roleChange),
	},
	ActionDeleteUser: {
		roles: anyRole,
		needs: refUser,
		check: all(selfOrPrivileged("delete this user"), adminTargets, notCourseOwner),
	},
}

// Evaluate decides whether the request's actor may perform its action.
//
// Gates run in a fixed order: role, existence of referenced entities,
// ownership or membership, then state and uniqueness preconditions. The
// first gate that fails determines the outcome.
func Evaluate(req Request) Decision {
	r, ok := rules[req.Action]
	if !ok {
		return forbidden("unknown action")
	}

	if req.Actor.ID == 0 || !req.Actor.Role.Valid() {
		return forbidden("unknown actor")
	}

	if !hasRole(r.roles, req.Actor.Role) {
		return forbidden("role " + req.Actor.Role.String() + " may not perform " + req.Action.String())
	}

	if d := resolve(r.needs, req); !d.Allowed() {
		return d
	}

	return r.check(req)
}

func hasRole(roles []Role, role Role) bool {
	for _, candidate := range roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func resolve(needs reference, req Request) Decision {
	if needs&refAttendance != 0 && req.Attendance == nil {
		return notFound("attendance record not found")
	}
	if needs&refEvaluation != 0 && req.Evaluation == nil {
		return notFound("evaluation not found")
	}
	if needs&refCourse != 0 && req.Course == nil {
		return notFound("course not found")
	}
	if needs&refUser != 0 && (req.User == nil || !req.User.Found) {
		return notFound("user not found")
	}
	return allow()
}

func all(checks ...check) check {
	return func(req Request) Decision {
		for _, c := range checks {
			if d := c(req); !d.Allowed() {
				return d
			}
		}
		return allow()
	}
}

func courseOwner(verb string) check {
	return func(req Request) Decision {
		if req.Actor.IsAdmin() || req.Course.OwnedBy(req.Actor.ID) {
			return allow()
		}
		return forbidden("only the course instructor may " + verb)
	}
}

func courseReader(req Request) Decision {
	switch req.Actor.Role {
	case RoleAdmin:
		return allow()
	case RoleInstructor:
		if req.Course.OwnedBy(req.Actor.ID) {
			return allow()
		}
	case RoleStudent:
		if req.Course.HasStudent(req.Actor.ID) {
			return allow()
		}
	}
	return forbidden("not allowed to view this course")
}

func attendanceReader(req Request) Decision {
	switch req.Actor.Role {
	case RoleAdmin:
		return allow()
	case RoleInstructor:
		if req.Course.OwnedBy(req.Actor.ID) {
			return allow()
		}
	case RoleStudent:
		if req.Attendance.StudentID == req.Actor.ID {
			return allow()
		}
	}
	return forbidden("not allowed to view this attendance record")
}

func evaluationReader(req Request) Decision {
	switch req.Actor.Role {
	case RoleAdmin:
		return allow()
	case RoleInstructor:
		if req.Course.OwnedBy(req.Actor.ID) {
			return allow()
		}
	case RoleStudent:
		if req.Course.HasStudent(req.Actor.ID) || req.Evaluation.HasGradeFor(req.Actor.ID) {
			return allow()
		}
	}
	return forbidden("not allowed to view this evaluation")
}

func evidenceSubmitter(req Request) Decision {
	if req.Course.HasStudent(req.Actor.ID) {
		return allow()
	}
	return forbidden("not enrolled in this course")
}

func nominatedInstructor(req Request) Decision {
	if req.User == nil || !req.User.Found {
		return invalidState("instructor does not exist")
	}
	if req.Actor.Role == RoleInstructor && req.User.ID != req.Actor.ID {
		return forbidden("instructors may only create their own courses")
	}
	if req.User.Role != RoleInstructor {
		return invalidState("course instructor must have the instructor role")
	}
	return allow()
}

func studentsAreLearners(req Request) Decision {
	for _, student := range req.Students {
		if !student.Found {
			return invalidState("student " + formatID(student.ID) + " does not exist")
		}
		if student.Role != RoleStudent {
			return invalidState("user " + formatID(student.ID) + " is not an aprendiz")
		}
	}
	return allow()
}

func studentsEnrolled(req Request) Decision {
	for _, student := range req.Students {
		if !req.Course.HasStudent(student.ID) {
			return invalidState("student " + formatID(student.ID) + " is not enrolled in this course")
		}
	}
	return allow()
}

func unique(reason string) check {
	return func(req Request) Decision {
		if req.Duplicate {
			return conflict(reason)
		}
		return allow()
	}
}

func selfOrPrivileged(verb string) check {
	return func(req Request) Decision {
		if req.User.ID == req.Actor.ID || req.Actor.Privileged() {
			return allow()
		}
		return forbidden("not allowed to " + verb)
	}
}

func adminTargets(req Request) Decision {
	if req.User.Role == RoleAdmin && req.User.ID != req.Actor.ID && !req.Actor.IsAdmin() {
		return forbidden("only an admin may manage another admin")
	}
	return allow()
}

func roleChange(req Request) Decision {
	if req.RequestedRole == nil || *req.RequestedRole == req.User.Role {
		return allow()
	}
	if !req.Actor.Privileged() {
		return forbidden("not allowed to change the role")
	}
	if *req.RequestedRole == RoleAdmin && !req.Actor.IsAdmin() {
		return forbidden("only an admin may grant the admin role")
	}
	if !req.RequestedRole.Valid() {
		return invalidState("unknown role")
	}
	if req.User.Role == RoleInstructor && req.User.OwnsCourses {
		return invalidState("user is the instructor of one or more courses")
	}
	// Rosters only hold aprendices.
	if req.User.Role == RoleStudent && req.User.Enrolled {
		return invalidState("user is enrolled in one or more courses")
	}
	return allow()
}

func notCourseOwner(req Request) Decision {
	if req.User.OwnsCourses {
		return invalidState("user is the instructor of one or more courses")
	}
	return allow()
}

func formatID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
