package authz

// Action enumerates every operation guarded by the engine.
type Action int

const (
	ActionCreateCourse Action = iota + 1
	ActionReadCourse
	ActionUpdateCourse
	ActionDeleteCourse
	ActionAddStudents
	ActionRemoveStudents
	ActionCreateAttendance
	ActionReadAttendance
	ActionUpdateAttendance
	ActionDeleteAttendance
	ActionCreateEvaluation
	ActionReadEvaluation
	ActionUpdateEvaluation
	ActionDeleteEvaluation
	ActionSubmitEvidence
	ActionGradeEvaluation
	ActionListUsers
	ActionReadUser
	ActionUpdateUser
	ActionDeleteUser
)

var actionNames = map[Action]string{
	ActionCreateCourse:     "course:create",
	ActionReadCourse:       "course:read",
	ActionUpdateCourse:     "course:update",
	ActionDeleteCourse:     "course:delete",
	ActionAddStudents:      "course:add_students",
	ActionRemoveStudents:   "course:remove_students",
	ActionCreateAttendance: "attendance:create",
	ActionReadAttendance:   "attendance:read",
	ActionUpdateAttendance: "attendance:update",
	ActionDeleteAttendance: "attendance:delete",
	ActionCreateEvaluation: "evaluation:create",
	ActionReadEvaluation:   "evaluation:read",
	ActionUpdateEvaluation: "evaluation:update",
	ActionDeleteEvaluation: "evaluation:delete",
	ActionSubmitEvidence:   "evaluation:submit_evidence",
	ActionGradeEvaluation:  "evaluation:grade",
	ActionListUsers:        "user:list",
	ActionReadUser:         "user:read",
	ActionUpdateUser:       "user:update",
	ActionDeleteUser:       "user:delete",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Actions returns every known action.
func Actions() []Action {
	actions := make([]Action, 0, len(actionNames))
	for action := ActionCreateCourse; action <= ActionDeleteUser; action++ {
		actions = append(actions, action)
	}
	return actions
}
