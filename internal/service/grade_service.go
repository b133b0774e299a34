package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
)

// GradeService exposes grade entries across evaluations and the per-student
// summary.
type GradeService interface {
	ListByStudent(ctx context.Context, actor authz.Actor, studentID uint) ([]dto.GradeResponse, error)
	ListByCourse(ctx context.Context, actor authz.Actor, courseID uint) ([]dto.GradeResponse, error)
	Update(ctx context.Context, actor authz.Actor, gradeID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error)
	Summary(ctx context.Context, actor authz.Actor, studentID uint) (dto.StudentSummaryResponse, error)
}

type gradeService struct {
	grades      repository.GradeRepository
	evaluations repository.EvaluationRepository
	courses     repository.CourseRepository
	attendance  repository.AttendanceRepository
	users       repository.UserRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	summaries   *SummaryCache
	logger      zerolog.Logger
	now         func() time.Time
}

// GradeDependencies groups the repositories the grade service reads from.
type GradeDependencies struct {
	Grades      repository.GradeRepository
	Evaluations repository.EvaluationRepository
	Courses     repository.CourseRepository
	Attendance  repository.AttendanceRepository
	Users       repository.UserRepository
}

// NewGradeService constructs the grade service.
func NewGradeService(deps GradeDependencies, validator *validator.Validate, activity ActivityRecorder, events EventPublisher, summaries *SummaryCache, logger zerolog.Logger) GradeService {
	return &gradeService{
		grades:      deps.Grades,
		evaluations: deps.Evaluations,
		courses:     deps.Courses,
		attendance:  deps.Attendance,
		users:       deps.Users,
		validator:   validator,
		activity:    activity,
		events:      events,
		summaries:   summaries,
		logger:      logger.With().Str("component", "grade_service").Logger(),
		now:         time.Now,
	}
}

// ListByStudent returns a student's grade entries. Instructors only see the
// entries of courses they own.
func (s *gradeService) ListByStudent(ctx context.Context, actor authz.Actor, studentID uint) ([]dto.GradeResponse, error) {
	_, subject, err := loadSubject(ctx, s.users, studentID)
	if err != nil {
		return nil, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadUser, User: subject}); err != nil {
		return nil, err
	}

	filter := repository.GradeFilter{StudentID: &studentID}
	if actor.Role == authz.RoleInstructor && actor.ID != studentID {
		owned, err := s.courses.IDsByInstructor(ctx, actor.ID)
		if err != nil {
			return nil, err
		}
		filter.CourseIDs = &owned
	}

	grades, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewGradeResponses(grades), nil
}

// ListByCourse returns the course's grade entries. Aprendices only see their
// own.
func (s *gradeService) ListByCourse(ctx context.Context, actor authz.Actor, courseID uint) ([]dto.GradeResponse, error) {
	_, fact, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return nil, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadCourse, Course: fact}); err != nil {
		return nil, err
	}

	filter := repository.GradeFilter{CourseID: &courseID}
	if actor.Role == authz.RoleStudent {
		filter.StudentID = &actor.ID
	}

	grades, err := s.grades.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return dto.NewGradeResponses(grades), nil
}

func (s *gradeService) Update(ctx context.Context, actor authz.Actor, gradeID uint, payload dto.GradeUpdateRequest) (dto.GradeResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sena-attendance-api/internal/service/grade")
	ctx, span := tracer.Start(ctx, "grade.update")
	span.SetAttributes(
		attribute.Int64("grade.id", int64(gradeID)),
		attribute.Int64("grade.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionGradeEvaluation}
	grade, err := s.grades.GetByID(ctx, gradeID)
	gradeFound := err == nil
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
	case err != nil:
		span.RecordError(err)
		return dto.GradeResponse{}, err
	default:
		req.Students = enrolmentSubjects([]uint{grade.StudentID})
	}

	var evaluation models.Evaluation
	if gradeFound {
		evaluation, err = s.evaluations.GetByID(ctx, grade.EvaluationID)
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
		case err != nil:
			span.RecordError(err)
			return dto.GradeResponse{}, err
		default:
			req.Evaluation = evaluationFact(evaluation)
			if _, req.Course, err = loadCourse(ctx, s.courses, evaluation.CourseID); err != nil {
				span.RecordError(err)
				return dto.GradeResponse{}, err
			}
		}
	}

	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		if !gradeFound && errors.Is(err, authz.ErrNotFound) {
			return dto.GradeResponse{}, notFoundError("grade not found")
		}
		return dto.GradeResponse{}, err
	}

	if *payload.Score > evaluation.MaxScore+scoreEpsilon {
		return dto.GradeResponse{}, invalidInput("score", fmt.Sprintf("must not exceed %g", evaluation.MaxScore))
	}

	score := *payload.Score
	gradedBy := actor.ID
	gradedAt := s.now().UTC()
	grade.Score = &score
	grade.GradedBy = &gradedBy
	grade.GradedAt = &gradedAt
	grade.CourseID = evaluation.CourseID
	if payload.Feedback != nil {
		grade.Feedback = sanitizeText(*payload.Feedback)
	}

	if err := s.grades.Update(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_update_failed")
		return dto.GradeResponse{}, err
	}

	s.summaries.Invalidate(ctx, grade.StudentID)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "grade.updated",
		EntityType: "grade",
		EntityID:   &grade.ID,
		Metadata: map[string]interface{}{
			"evaluation_id": grade.EvaluationID,
			"student_id":    grade.StudentID,
			"score":         score,
		},
	})
	publishEvent(ctx, s.events, Event{
		Type:     EventGradeUpserted,
		ActorID:  actor.ID,
		EntityID: grade.ID,
		Payload:  map[string]interface{}{"evaluation_id": grade.EvaluationID, "student_id": grade.StudentID, "score": score},
	})

	return dto.NewGradeResponse(grade), nil
}

// Summary aggregates the student's graded scores and attendance. Results are
// cached until a grade or attendance change for the student invalidates them.
func (s *gradeService) Summary(ctx context.Context, actor authz.Actor, studentID uint) (dto.StudentSummaryResponse, error) {
	_, subject, err := loadSubject(ctx, s.users, studentID)
	if err != nil {
		return dto.StudentSummaryResponse{}, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadUser, User: subject}); err != nil {
		return dto.StudentSummaryResponse{}, err
	}

	if cached, ok := s.summaries.Get(ctx, studentID); ok {
		cached.CacheHit = true
		return cached, nil
	}

	grades, err := s.grades.List(ctx, repository.GradeFilter{StudentID: &studentID, GradedOnly: true})
	if err != nil {
		return dto.StudentSummaryResponse{}, err
	}
	_, visible, err := s.evaluations.List(ctx, repository.EvaluationFilter{VisibleTo: &studentID, PageSize: 1})
	if err != nil {
		return dto.StudentSummaryResponse{}, err
	}
	counts, err := s.attendance.CountByStatus(ctx, studentID)
	if err != nil {
		return dto.StudentSummaryResponse{}, err
	}

	summary := dto.StudentSummaryResponse{
		StudentID:            studentID,
		CompletedEvaluations: len(grades),
		Attendance: dto.AttendanceBreakdown{
			Present: counts[models.AttendancePresent],
			Absent:  counts[models.AttendanceAbsent],
			Excused: counts[models.AttendanceExcused],
			Late:    counts[models.AttendanceLate],
		},
		GeneratedAt: s.now().UTC(),
	}
	if pending := int(visible) - len(grades); pending > 0 {
		summary.PendingEvaluations = pending
	}

	if len(grades) > 0 {
		total := 0.0
		for _, grade := range grades {
			total += *grade.Score
		}
		summary.AverageGrade = round2(total / float64(len(grades)))
	}

	breakdown := &summary.Attendance
	breakdown.Total = breakdown.Present + breakdown.Absent + breakdown.Excused + breakdown.Late
	if breakdown.Total > 0 {
		attended := breakdown.Present + breakdown.Late
		summary.AttendancePercentage = round2(float64(attended) / float64(breakdown.Total) * 100)
	}

	s.summaries.Set(ctx, summary)
	return summary, nil
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
