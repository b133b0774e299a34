package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
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

const evaluationTracer = "github.com/noah-isme/sena-attendance-api/internal/service/evaluation"

// scoreEpsilon absorbs float noise when comparing a score with its bound.
const scoreEpsilon = 1e-9

// EvaluationService manages evaluations and the grade entries they carry.
type EvaluationService interface {
	List(ctx context.Context, actor authz.Actor, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error)
	ListByCourse(ctx context.Context, actor authz.Actor, courseID uint, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.EvaluationResponse, error)
	Create(ctx context.Context, actor authz.Actor, payload dto.EvaluationCreateRequest) (dto.EvaluationResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, payload dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
	Grade(ctx context.Context, actor authz.Actor, id uint, payload dto.GradeRequest) (dto.GradeResponse, error)
	SubmitEvidence(ctx context.Context, actor authz.Actor, id uint, payload dto.EvidenceRequest) (dto.GradeResponse, error)
}

type evaluationService struct {
	evaluations repository.EvaluationRepository
	grades      repository.GradeRepository
	courses     repository.CourseRepository
	validator   *validator.Validate
	activity    ActivityRecorder
	events      EventPublisher
	summaries   *SummaryCache
	logger      zerolog.Logger
	now         func() time.Time
}

// NewEvaluationService constructs the evaluation service.
func NewEvaluationService(evaluations repository.EvaluationRepository, grades repository.GradeRepository, courses repository.CourseRepository, validator *validator.Validate, activity ActivityRecorder, events EventPublisher, summaries *SummaryCache, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		evaluations: evaluations,
		grades:      grades,
		courses:     courses,
		validator:   validator,
		activity:    activity,
		events:      events,
		summaries:   summaries,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		now:         time.Now,
	}
}

// List returns the evaluations visible to the actor. Aprendices only see
// their own grade entries.
func (s *evaluationService) List(ctx context.Context, actor authz.Actor, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationListResponse{}, err
	}

	filter := repository.EvaluationFilter{Page: req.Page, PageSize: req.PageSize}
	if req.CourseID > 0 {
		courseID := req.CourseID
		filter.CourseID = &courseID
	}

	switch actor.Role {
	case authz.RoleAdmin:
	case authz.RoleInstructor:
		owned, err := s.courses.IDsByInstructor(ctx, actor.ID)
		if err != nil {
			return dto.EvaluationListResponse{}, err
		}
		filter.CourseIDs = &owned
	case authz.RoleStudent:
		filter.VisibleTo = &actor.ID
	default:
		return dto.EvaluationListResponse{}, forbiddenError("unknown actor")
	}

	return s.list(ctx, actor, filter, req)
}

func (s *evaluationService) ListByCourse(ctx context.Context, actor authz.Actor, courseID uint, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.EvaluationListResponse{}, err
	}

	_, fact, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return dto.EvaluationListResponse{}, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadCourse, Course: fact}); err != nil {
		return dto.EvaluationListResponse{}, err
	}

	filter := repository.EvaluationFilter{CourseID: &courseID, Page: req.Page, PageSize: req.PageSize}
	return s.list(ctx, actor, filter, req)
}

func (s *evaluationService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.EvaluationResponse, error) {
	evaluation, evaluationFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionReadEvaluation, Evaluation: evaluationFact, Course: courseFact}
	if err := authorize(s.logger, req); err != nil {
		return dto.EvaluationResponse{}, err
	}
	return dto.NewEvaluationResponse(visibleTo(actor, evaluation)), nil
}

func (s *evaluationService) Create(ctx context.Context, actor authz.Actor, payload dto.EvaluationCreateRequest) (dto.EvaluationResponse, error) {
	ctx, span := otel.Tracer(evaluationTracer).Start(ctx, "evaluation.create")
	span.SetAttributes(
		attribute.Int64("evaluation.course_id", int64(payload.CourseID)),
		attribute.Int("evaluation.grades", len(payload.Grades)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.EvaluationResponse{}, err
	}

	maxScore := models.DefaultMaxScore
	if payload.MaxScore != nil {
		maxScore = *payload.MaxScore
	}

	studentIDs := make([]uint, 0, len(payload.Grades))
	for i, input := range payload.Grades {
		if *input.Score > maxScore+scoreEpsilon {
			return dto.EvaluationResponse{}, invalidInput(fmt.Sprintf("grades[%d].score", i), fmt.Sprintf("must not exceed %g", maxScore))
		}
		studentIDs = append(studentIDs, input.StudentID)
	}
	studentIDs = uniqueIDs(studentIDs)

	_, fact, err := loadCourse(ctx, s.courses, payload.CourseID)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionCreateEvaluation, Course: fact, Students: enrolmentSubjects(studentIDs)}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.EvaluationResponse{}, err
	}

	gradedAt := s.now().UTC()
	gradedBy := actor.ID
	grades := make([]models.Grade, 0, len(payload.Grades))
	for _, input := range payload.Grades {
		score := *input.Score
		grades = append(grades, models.Grade{
			StudentID: input.StudentID,
			Score:     &score,
			Feedback:  sanitizeText(input.Feedback),
			GradedBy:  &gradedBy,
			GradedAt:  &gradedAt,
		})
	}

	evaluation := models.Evaluation{
		CourseID:    payload.CourseID,
		Title:       sanitizeText(payload.Title),
		Description: sanitizeText(payload.Description),
		MaxScore:    maxScore,
		DueDate:     utcPointer(payload.DueDate),
		CreatedBy:   actor.ID,
		Grades:      grades,
	}
	if err := s.evaluations.Create(ctx, &evaluation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_create_failed")
		return dto.EvaluationResponse{}, err
	}
	span.SetAttributes(attribute.Int64("evaluation.id", int64(evaluation.ID)))

	s.summaries.Invalidate(ctx, studentIDs...)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "evaluation.created",
		EntityType: "evaluation",
		EntityID:   &evaluation.ID,
		Metadata: map[string]interface{}{
			"course_id": evaluation.CourseID,
			"title":     evaluation.Title,
			"grades":    len(evaluation.Grades),
		},
	})
	publishEvent(ctx, s.events, Event{Type: EventEvaluationCreated, ActorID: actor.ID, EntityID: evaluation.ID, Payload: map[string]interface{}{"course_id": evaluation.CourseID}})

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) Update(ctx context.Context, actor authz.Actor, id uint, payload dto.EvaluationUpdateRequest) (dto.EvaluationResponse, error) {
	ctx, span := otel.Tracer(evaluationTracer).Start(ctx, "evaluation.update")
	span.SetAttributes(attribute.Int64("evaluation.id", int64(id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.EvaluationResponse{}, err
	}

	evaluation, evaluationFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionUpdateEvaluation, Evaluation: evaluationFact, Course: courseFact}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.EvaluationResponse{}, err
	}

	changed := make([]string, 0, 4)
	if payload.Title != nil {
		evaluation.Title = sanitizeText(*payload.Title)
		changed = append(changed, "title")
	}
	if payload.Description != nil {
		evaluation.Description = sanitizeText(*payload.Description)
		changed = append(changed, "description")
	}
	if payload.MaxScore != nil {
		for _, grade := range evaluation.Grades {
			if grade.Score != nil && *grade.Score > *payload.MaxScore+scoreEpsilon {
				return dto.EvaluationResponse{}, invalidInput("max_score", "is lower than an existing grade")
			}
		}
		evaluation.MaxScore = *payload.MaxScore
		changed = append(changed, "max_score")
	}
	if payload.DueDate != nil {
		evaluation.DueDate = utcPointer(payload.DueDate)
		changed = append(changed, "due_date")
	}

	if err := s.evaluations.Update(ctx, &evaluation); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_update_failed")
		return dto.EvaluationResponse{}, err
	}

	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "evaluation.updated",
		EntityType: "evaluation",
		EntityID:   &evaluation.ID,
		Metadata:   map[string]interface{}{"fields": changed},
	})
	publishEvent(ctx, s.events, Event{Type: EventEvaluationUpdated, ActorID: actor.ID, EntityID: evaluation.ID, Payload: map[string]interface{}{"fields": changed}})

	return dto.NewEvaluationResponse(evaluation), nil
}

func (s *evaluationService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	ctx, span := otel.Tracer(evaluationTracer).Start(ctx, "evaluation.delete")
	span.SetAttributes(attribute.Int64("evaluation.id", int64(id)))
	defer span.End()

	evaluation, evaluationFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionDeleteEvaluation, Evaluation: evaluationFact, Course: courseFact}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return err
	}

	if err := s.evaluations.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("evaluation not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "evaluation_delete_failed")
		return err
	}

	s.summaries.Invalidate(ctx, evaluation.GradedStudentIDs()...)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "evaluation.deleted",
		EntityType: "evaluation",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"course_id": evaluation.CourseID},
	})
	publishEvent(ctx, s.events, Event{Type: EventEvaluationDeleted, ActorID: actor.ID, EntityID: id})

	return nil
}

// Grade creates or overwrites the score and feedback of one student. Evidence
// already submitted by the student is kept.
func (s *evaluationService) Grade(ctx context.Context, actor authz.Actor, id uint, payload dto.GradeRequest) (dto.GradeResponse, error) {
	ctx, span := otel.Tracer(evaluationTracer).Start(ctx, "evaluation.grade")
	span.SetAttributes(
		attribute.Int64("evaluation.id", int64(id)),
		attribute.Int64("evaluation.student_id", int64(payload.StudentID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}
	if payload.StudentID == 0 {
		return dto.GradeResponse{}, invalidInput("student_id", "is required")
	}

	evaluation, evaluationFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	req := authz.Request{
		Actor:      actor,
		Action:     authz.ActionGradeEvaluation,
		Evaluation: evaluationFact,
		Course:     courseFact,
		Students:   enrolmentSubjects([]uint{payload.StudentID}),
	}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.GradeResponse{}, err
	}

	if *payload.Score > evaluation.MaxScore+scoreEpsilon {
		return dto.GradeResponse{}, invalidInput("score", fmt.Sprintf("must not exceed %g", evaluation.MaxScore))
	}

	score := *payload.Score
	gradedBy := actor.ID
	gradedAt := s.now().UTC()
	grade := models.Grade{
		EvaluationID: evaluation.ID,
		CourseID:     evaluation.CourseID,
		StudentID:    payload.StudentID,
		Score:        &score,
		Feedback:     sanitizeText(payload.Feedback),
		GradedBy:     &gradedBy,
		GradedAt:     &gradedAt,
	}
	if err := s.grades.UpsertScore(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_upsert_failed")
		return dto.GradeResponse{}, err
	}
	span.SetAttributes(attribute.Float64("evaluation.score", score))

	s.summaries.Invalidate(ctx, grade.StudentID)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "grade.upserted",
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
		Payload: map[string]interface{}{
			"evaluation_id": grade.EvaluationID,
			"student_id":    grade.StudentID,
			"score":         score,
		},
	})

	return dto.NewGradeResponse(grade), nil
}

// SubmitEvidence stores the acting aprendiz's evidence. Score and feedback are
// left untouched.
func (s *evaluationService) SubmitEvidence(ctx context.Context, actor authz.Actor, id uint, payload dto.EvidenceRequest) (dto.GradeResponse, error) {
	ctx, span := otel.Tracer(evaluationTracer).Start(ctx, "evaluation.submit_evidence")
	span.SetAttributes(
		attribute.Int64("evaluation.id", int64(id)),
		attribute.Int64("evaluation.student_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.GradeResponse{}, err
	}

	evaluation, evaluationFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.GradeResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionSubmitEvidence, Evaluation: evaluationFact, Course: courseFact}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.GradeResponse{}, err
	}

	evidence := sanitizeText(payload.Evidence)
	if strings.TrimSpace(evidence) == "" {
		return dto.GradeResponse{}, invalidInput("evidence", "must contain text")
	}

	submittedAt := s.now().UTC()
	grade := models.Grade{
		EvaluationID: evaluation.ID,
		CourseID:     evaluation.CourseID,
		StudentID:    actor.ID,
		Evidence:     evidence,
		SubmittedAt:  &submittedAt,
	}
	if err := s.grades.UpsertEvidence(ctx, &grade); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "evidence_upsert_failed")
		return dto.GradeResponse{}, err
	}

	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "grade.evidence_submitted",
		EntityType: "grade",
		EntityID:   &grade.ID,
		Metadata:   map[string]interface{}{"evaluation_id": grade.EvaluationID},
	})
	publishEvent(ctx, s.events, Event{Type: EventEvidenceSubmitted, ActorID: actor.ID, EntityID: grade.ID, Payload: map[string]interface{}{"evaluation_id": grade.EvaluationID}})

	return dto.NewGradeResponse(grade), nil
}

// load resolves the evaluation and its course. Facts are nil for entities
// that do not exist.
func (s *evaluationService) load(ctx context.Context, id uint) (models.Evaluation, *authz.Evaluation, *authz.Course, error) {
	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Evaluation{}, nil, nil, nil
		}
		return models.Evaluation{}, nil, nil, err
	}

	_, course, err := loadCourse(ctx, s.courses, evaluation.CourseID)
	if err != nil {
		return models.Evaluation{}, nil, nil, err
	}
	return evaluation, evaluationFact(evaluation), course, nil
}

func (s *evaluationService) list(ctx context.Context, actor authz.Actor, filter repository.EvaluationFilter, req dto.EvaluationListRequest) (dto.EvaluationListResponse, error) {
	evaluations, total, err := s.evaluations.List(ctx, filter)
	if err != nil {
		return dto.EvaluationListResponse{}, err
	}

	items := make([]dto.EvaluationResponse, 0, len(evaluations))
	for _, evaluation := range evaluations {
		items = append(items, dto.NewEvaluationResponse(visibleTo(actor, evaluation)))
	}
	return dto.EvaluationListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

// visibleTo strips the grade entries of other students when the actor is an
// aprendiz.
func visibleTo(actor authz.Actor, evaluation models.Evaluation) models.Evaluation {
	if actor.Role != authz.RoleStudent {
		return evaluation
	}
	own := make([]models.Grade, 0, 1)
	for _, grade := range evaluation.Grades {
		if grade.StudentID == actor.ID {
			own = append(own, grade)
		}
	}
	evaluation.Grades = own
	return evaluation
}

// enrolmentSubjects names students whose enrollment the engine must check.
func enrolmentSubjects(ids []uint) []authz.Subject {
	subjects := make([]authz.Subject, 0, len(ids))
	for _, id := range ids {
		subjects = append(subjects, authz.Subject{ID: id})
	}
	return subjects
}

func utcPointer(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := t.UTC()
	return &value
}
