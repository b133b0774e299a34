package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
)

const courseTracer = "github.com/noah-isme/sena-attendance-api/internal/service/course"

// CourseService manages courses and their rosters.
type CourseService interface {
	List(ctx context.Context, actor authz.Actor, req dto.CourseListRequest) (dto.CourseListResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.CourseResponse, error)
	Create(ctx context.Context, actor authz.Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
	AddStudents(ctx context.Context, actor authz.Actor, id uint, studentIDs []uint) (dto.CourseResponse, error)
	RemoveStudents(ctx context.Context, actor authz.Actor, id uint, studentIDs []uint) (dto.CourseResponse, error)
}

type courseService struct {
	courses   repository.CourseRepository
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	summaries *SummaryCache
	logger    zerolog.Logger
}

// NewCourseService constructs the course service.
func NewCourseService(courses repository.CourseRepository, users repository.UserRepository, validator *validator.Validate, activity ActivityRecorder, events EventPublisher, summaries *SummaryCache, logger zerolog.Logger) CourseService {
	return &courseService{
		courses:   courses,
		users:     users,
		validator: validator,
		activity:  activity,
		events:    events,
		summaries: summaries,
		logger:    logger.With().Str("component", "course_service").Logger(),
	}
}

// List returns the courses visible to the actor: their own for instructors,
// the enrolled ones for aprendices and every course for admins.
func (s *courseService) List(ctx context.Context, actor authz.Actor, req dto.CourseListRequest) (dto.CourseListResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.CourseListResponse{}, err
	}

	filter := repository.CourseFilter{
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	switch actor.Role {
	case authz.RoleInstructor:
		filter.InstructorID = &actor.ID
	case authz.RoleStudent:
		filter.StudentID = &actor.ID
	case authz.RoleAdmin:
	default:
		return dto.CourseListResponse{}, forbiddenError("unknown actor")
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return dto.CourseListResponse{}, err
	}

	items := make([]dto.CourseResponse, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseResponse(course))
	}
	return dto.CourseListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

func (s *courseService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.CourseResponse, error) {
	course, fact, err := loadCourse(ctx, s.courses, id)
	if err != nil {
		return dto.CourseResponse{}, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadCourse, Course: fact}); err != nil {
		return dto.CourseResponse{}, err
	}
	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Create(ctx context.Context, actor authz.Actor, payload dto.CourseCreateRequest) (dto.CourseResponse, error) {
	ctx, span := otel.Tracer(courseTracer).Start(ctx, "course.create")
	span.SetAttributes(attribute.Int64("course.actor_id", int64(actor.ID)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CourseResponse{}, err
	}

	instructorID := payload.InstructorID
	if instructorID == 0 {
		instructorID = actor.ID
	}
	_, instructor, err := loadSubject(ctx, s.users, instructorID)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "instructor_lookup_failed")
	}

	studentIDs := uniqueIDs(payload.Students)
	students, err := subjectsFor(ctx, s.users, studentIDs)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "student_lookup_failed")
	}

	code := normalizeCode(payload.Code)
	duplicate, err := s.courses.CodeTaken(ctx, code, 0)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "code_lookup_failed")
	}

	req := authz.Request{
		Actor:     actor,
		Action:    authz.ActionCreateCourse,
		User:      instructor,
		Students:  students,
		Duplicate: duplicate,
	}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.CourseResponse{}, err
	}

	course := models.Course{
		Name:         sanitizeText(payload.Name),
		Code:         code,
		Description:  sanitizeText(payload.Description),
		InstructorID: instructorID,
		StartDate:    payload.StartDate.UTC(),
		EndDate:      payload.EndDate.UTC(),
	}
	if err := s.courses.Create(ctx, &course, studentIDs); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.CourseResponse{}, conflictError("a course with this code already exists")
		}
		return dto.CourseResponse{}, s.fail(span, err, "course_create_failed")
	}
	span.SetAttributes(attribute.Int64("course.id", int64(course.ID)))

	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "course.created",
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata: map[string]interface{}{
			"code":          course.Code,
			"instructor_id": course.InstructorID,
			"students":      len(studentIDs),
		},
	})
	publishEvent(ctx, s.events, Event{Type: EventCourseCreated, ActorID: actor.ID, EntityID: course.ID, Payload: map[string]interface{}{"code": course.Code}})

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) Update(ctx context.Context, actor authz.Actor, id uint, payload dto.CourseUpdateRequest) (dto.CourseResponse, error) {
	ctx, span := otel.Tracer(courseTracer).Start(ctx, "course.update")
	span.SetAttributes(attribute.Int64("course.id", int64(id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.CourseResponse{}, err
	}

	course, fact, err := loadCourse(ctx, s.courses, id)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "course_lookup_failed")
	}

	duplicate := false
	if payload.Code != nil && fact != nil {
		code := normalizeCode(*payload.Code)
		if code != course.Code {
			duplicate, err = s.courses.CodeTaken(ctx, code, id)
			if err != nil {
				return dto.CourseResponse{}, s.fail(span, err, "code_lookup_failed")
			}
		}
	}

	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionUpdateCourse, Course: fact, Duplicate: duplicate}); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.CourseResponse{}, err
	}

	changed := make([]string, 0, 5)
	if payload.Name != nil {
		course.Name = sanitizeText(*payload.Name)
		changed = append(changed, "name")
	}
	if payload.Code != nil {
		course.Code = normalizeCode(*payload.Code)
		changed = append(changed, "code")
	}
	if payload.Description != nil {
		course.Description = sanitizeText(*payload.Description)
		changed = append(changed, "description")
	}
	if payload.StartDate != nil {
		course.StartDate = payload.StartDate.UTC()
		changed = append(changed, "start_date")
	}
	if payload.EndDate != nil {
		course.EndDate = payload.EndDate.UTC()
		changed = append(changed, "end_date")
	}
	if course.EndDate.Before(course.StartDate) {
		return dto.CourseResponse{}, invalidInput("end_date", "must not be before start_date")
	}

	if err := s.courses.Update(ctx, &course); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.CourseResponse{}, conflictError("a course with this code already exists")
		}
		return dto.CourseResponse{}, s.fail(span, err, "course_update_failed")
	}

	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "course.updated",
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata:   map[string]interface{}{"fields": changed},
	})
	publishEvent(ctx, s.events, Event{Type: EventCourseUpdated, ActorID: actor.ID, EntityID: course.ID, Payload: map[string]interface{}{"fields": changed}})

	return dto.NewCourseResponse(course), nil
}

// Delete removes the course together with its roster, attendance records,
// evaluations and grade entries.
func (s *courseService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	ctx, span := otel.Tracer(courseTracer).Start(ctx, "course.delete")
	span.SetAttributes(attribute.Int64("course.id", int64(id)))
	defer span.End()

	course, fact, err := loadCourse(ctx, s.courses, id)
	if err != nil {
		return s.fail(span, err, "course_lookup_failed")
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionDeleteCourse, Course: fact}); err != nil {
		span.SetStatus(codes.Error, "denied")
		return err
	}

	if err := s.courses.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("course not found")
		}
		return s.fail(span, err, "course_delete_failed")
	}

	s.summaries.Invalidate(ctx, course.StudentIDs()...)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "course.deleted",
		EntityType: "course",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"code": course.Code},
	})
	publishEvent(ctx, s.events, Event{Type: EventCourseDeleted, ActorID: actor.ID, EntityID: id})

	return nil
}

// AddStudents enrolls every id or none of them. Ids already enrolled are
// ignored.
func (s *courseService) AddStudents(ctx context.Context, actor authz.Actor, id uint, studentIDs []uint) (dto.CourseResponse, error) {
	ctx, span := otel.Tracer(courseTracer).Start(ctx, "course.add_students")
	span.SetAttributes(attribute.Int64("course.id", int64(id)), attribute.Int("course.students", len(studentIDs)))
	defer span.End()

	studentIDs = uniqueIDs(studentIDs)
	if len(studentIDs) == 0 {
		return dto.CourseResponse{}, invalidInput("students", "must name at least one student")
	}

	_, fact, err := loadCourse(ctx, s.courses, id)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "course_lookup_failed")
	}
	students, err := subjectsFor(ctx, s.users, studentIDs)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "student_lookup_failed")
	}

	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionAddStudents, Course: fact, Students: students}); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.CourseResponse{}, err
	}

	if err := s.courses.AddStudents(ctx, id, studentIDs); err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "roster_update_failed")
	}

	return s.rosterChanged(ctx, span, actor, id, "course.students_added", studentIDs)
}

// RemoveStudents drops the ids from the roster. Ids that are not enrolled are
// ignored.
func (s *courseService) RemoveStudents(ctx context.Context, actor authz.Actor, id uint, studentIDs []uint) (dto.CourseResponse, error) {
	ctx, span := otel.Tracer(courseTracer).Start(ctx, "course.remove_students")
	span.SetAttributes(attribute.Int64("course.id", int64(id)), attribute.Int("course.students", len(studentIDs)))
	defer span.End()

	studentIDs = uniqueIDs(studentIDs)
	if len(studentIDs) == 0 {
		return dto.CourseResponse{}, invalidInput("students", "must name at least one student")
	}

	_, fact, err := loadCourse(ctx, s.courses, id)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "course_lookup_failed")
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionRemoveStudents, Course: fact}); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.CourseResponse{}, err
	}

	if err := s.courses.RemoveStudents(ctx, id, studentIDs); err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "roster_update_failed")
	}

	return s.rosterChanged(ctx, span, actor, id, "course.students_removed", studentIDs)
}

func (s *courseService) rosterChanged(ctx context.Context, span trace.Span, actor authz.Actor, id uint, action string, studentIDs []uint) (dto.CourseResponse, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return dto.CourseResponse{}, s.fail(span, err, "course_reload_failed")
	}

	s.summaries.Invalidate(ctx, studentIDs...)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     action,
		EntityType: "course",
		EntityID:   &course.ID,
		Metadata:   map[string]interface{}{"students": studentIDs},
	})
	publishEvent(ctx, s.events, Event{
		Type:     EventCourseRosterChanged,
		ActorID:  actor.ID,
		EntityID: course.ID,
		Payload:  map[string]interface{}{"change": action, "students": studentIDs},
	})

	return dto.NewCourseResponse(course), nil
}

func (s *courseService) fail(span trace.Span, err error, status string) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, status)
	return err
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
