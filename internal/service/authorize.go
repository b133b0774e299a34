package service

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/observability"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
)

// authorize evaluates the request, counts the decision and converts a denial
// into an error matching the authz sentinels.
func authorize(logger zerolog.Logger, req authz.Request) error {
	decision := authz.Evaluate(req)
	observability.AuthzDecisions().WithLabelValues(req.Action.String(), decision.Outcome.String()).Inc()

	if !decision.Allowed() {
		logger.Debug().
			Uint("actor_id", req.Actor.ID).
			Str("actor_role", req.Actor.Role.String()).
			Str("action", req.Action.String()).
			Str("outcome", decision.Outcome.String()).
			Str("reason", decision.Reason).
			Msg("request denied")
	}
	return decision.Err()
}

func conflictError(reason string) error {
	return &authz.DenyError{Outcome: authz.OutcomeConflict, Reason: reason}
}

func invalidStateError(reason string) error {
	return &authz.DenyError{Outcome: authz.OutcomeInvalidState, Reason: reason}
}

func forbiddenError(reason string) error {
	return &authz.DenyError{Outcome: authz.OutcomeForbidden, Reason: reason}
}

func notFoundError(reason string) error {
	return &authz.DenyError{Outcome: authz.OutcomeNotFound, Reason: reason}
}

func courseFact(course models.Course) *authz.Course {
	return &authz.Course{
		ID:           course.ID,
		InstructorID: course.InstructorID,
		Students:     course.StudentIDs(),
	}
}

func attendanceFact(record models.Attendance) *authz.Attendance {
	return &authz.Attendance{
		ID:        record.ID,
		CourseID:  record.CourseID,
		StudentID: record.StudentID,
	}
}

func evaluationFact(evaluation models.Evaluation) *authz.Evaluation {
	return &authz.Evaluation{
		ID:             evaluation.ID,
		CourseID:       evaluation.CourseID,
		GradedStudents: evaluation.GradedStudentIDs(),
	}
}

func subjectFor(user models.User) *authz.Subject {
	return &authz.Subject{ID: user.ID, Found: true, Role: user.Role}
}

// loadCourse returns a nil fact when the course does not exist.
func loadCourse(ctx context.Context, repo repository.CourseRepository, id uint) (models.Course, *authz.Course, error) {
	course, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Course{}, nil, nil
		}
		return models.Course{}, nil, err
	}
	return course, courseFact(course), nil
}

// loadSubject returns a subject with Found unset when the user does not exist.
func loadSubject(ctx context.Context, repo repository.UserRepository, id uint) (models.User, *authz.Subject, error) {
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.User{}, &authz.Subject{ID: id}, nil
		}
		return models.User{}, nil, err
	}
	return user, subjectFor(user), nil
}

// subjectsFor resolves every id in one query, keeping the input order.
func subjectsFor(ctx context.Context, repo repository.UserRepository, ids []uint) ([]authz.Subject, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	users, err := repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.User, len(users))
	for _, user := range users {
		byID[user.ID] = user
	}

	subjects := make([]authz.Subject, 0, len(ids))
	for _, id := range ids {
		user, ok := byID[id]
		if !ok {
			subjects = append(subjects, authz.Subject{ID: id})
			continue
		}
		subjects = append(subjects, *subjectFor(user))
	}
	return subjects, nil
}

func uniqueIDs(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	result := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
