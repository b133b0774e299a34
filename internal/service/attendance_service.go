package service

import (
	"context"
	"errors"
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

const attendanceTracer = "github.com/noah-isme/sena-attendance-api/internal/service/attendance"

const duplicateAttendance = "attendance already recorded for this student on this date"

// AttendanceService records daily attendance per course and student.
type AttendanceService interface {
	List(ctx context.Context, actor authz.Actor, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error)
	ListByCourse(ctx context.Context, actor authz.Actor, courseID uint, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error)
	ListByCourseAndStudent(ctx context.Context, actor authz.Actor, courseID, studentID uint, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.AttendanceResponse, error)
	Create(ctx context.Context, actor authz.Actor, payload dto.AttendanceCreateRequest) (dto.AttendanceResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, payload dto.AttendanceUpdateRequest) (dto.AttendanceResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
}

type attendanceService struct {
	records   repository.AttendanceRepository
	courses   repository.CourseRepository
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	summaries *SummaryCache
	logger    zerolog.Logger
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(records repository.AttendanceRepository, courses repository.CourseRepository, validator *validator.Validate, activity ActivityRecorder, events EventPublisher, summaries *SummaryCache, logger zerolog.Logger) AttendanceService {
	return &attendanceService{
		records:   records,
		courses:   courses,
		validator: validator,
		activity:  activity,
		events:    events,
		summaries: summaries,
		logger:    logger.With().Str("component", "attendance_service").Logger(),
	}
}

// List scopes results to the actor: instructors see their courses, aprendices
// their own records.
func (s *attendanceService) List(ctx context.Context, actor authz.Actor, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error) {
	filter, err := s.filterFor(req)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	switch actor.Role {
	case authz.RoleAdmin:
	case authz.RoleInstructor:
		owned, err := s.courses.IDsByInstructor(ctx, actor.ID)
		if err != nil {
			return dto.AttendanceListResponse{}, err
		}
		filter.CourseIDs = &owned
	case authz.RoleStudent:
		filter.StudentID = &actor.ID
	default:
		return dto.AttendanceListResponse{}, forbiddenError("unknown actor")
	}

	return s.list(ctx, filter, req)
}

func (s *attendanceService) ListByCourse(ctx context.Context, actor authz.Actor, courseID uint, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error) {
	filter, err := s.filterFor(req)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	_, fact, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadCourse, Course: fact}); err != nil {
		return dto.AttendanceListResponse{}, err
	}

	filter.CourseID = &courseID
	if actor.Role == authz.RoleStudent {
		filter.StudentID = &actor.ID
	}
	return s.list(ctx, filter, req)
}

func (s *attendanceService) ListByCourseAndStudent(ctx context.Context, actor authz.Actor, courseID, studentID uint, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error) {
	filter, err := s.filterFor(req)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	_, fact, err := loadCourse(ctx, s.courses, courseID)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadCourse, Course: fact}); err != nil {
		return dto.AttendanceListResponse{}, err
	}
	if actor.Role == authz.RoleStudent && studentID != actor.ID {
		return dto.AttendanceListResponse{}, forbiddenError("not allowed to view another student's attendance")
	}

	filter.CourseID = &courseID
	filter.StudentID = &studentID
	return s.list(ctx, filter, req)
}

func (s *attendanceService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.AttendanceResponse, error) {
	record, recordFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		return dto.AttendanceResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionReadAttendance, Attendance: recordFact, Course: courseFact}
	if err := authorize(s.logger, req); err != nil {
		return dto.AttendanceResponse{}, err
	}
	return dto.NewAttendanceResponse(record), nil
}

func (s *attendanceService) Create(ctx context.Context, actor authz.Actor, payload dto.AttendanceCreateRequest) (dto.AttendanceResponse, error) {
	ctx, span := otel.Tracer(attendanceTracer).Start(ctx, "attendance.create")
	span.SetAttributes(
		attribute.Int64("attendance.course_id", int64(payload.CourseID)),
		attribute.Int64("attendance.student_id", int64(payload.StudentID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AttendanceResponse{}, err
	}

	day, err := dto.ParseDay(payload.Date)
	if err != nil {
		return dto.AttendanceResponse{}, invalidInput("date", "must be a date in YYYY-MM-DD format")
	}
	status, _ := models.ParseAttendanceStatus(payload.Status)

	_, fact, err := loadCourse(ctx, s.courses, payload.CourseID)
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}

	duplicate := false
	if fact != nil {
		duplicate, err = s.records.Exists(ctx, payload.CourseID, payload.StudentID, day, 0)
		if err != nil {
			span.RecordError(err)
			return dto.AttendanceResponse{}, err
		}
	}

	req := authz.Request{
		Actor:     actor,
		Action:    authz.ActionCreateAttendance,
		Course:    fact,
		Students:  enrolmentSubjects([]uint{payload.StudentID}),
		Duplicate: duplicate,
	}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.AttendanceResponse{}, err
	}

	record := models.Attendance{
		CourseID:  payload.CourseID,
		StudentID: payload.StudentID,
		Date:      day,
		Status:    status,
		Notes:     sanitizeText(payload.Notes),
		CreatedBy: actor.ID,
	}
	if err := s.records.Create(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			span.SetStatus(codes.Error, "duplicate")
			return dto.AttendanceResponse{}, conflictError(duplicateAttendance)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "attendance_create_failed")
		return dto.AttendanceResponse{}, err
	}
	span.SetAttributes(attribute.Int64("attendance.id", int64(record.ID)))

	s.summaries.Invalidate(ctx, record.StudentID)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "attendance.recorded",
		EntityType: "attendance",
		EntityID:   &record.ID,
		Metadata: map[string]interface{}{
			"course_id":  record.CourseID,
			"student_id": record.StudentID,
			"status":     string(record.Status),
		},
	})
	publishEvent(ctx, s.events, Event{
		Type:     EventAttendanceRecorded,
		ActorID:  actor.ID,
		EntityID: record.ID,
		Payload: map[string]interface{}{
			"course_id":  record.CourseID,
			"student_id": record.StudentID,
			"date":       record.Date.Format("2006-01-02"),
			"status":     string(record.Status),
		},
	})

	return dto.NewAttendanceResponse(record), nil
}

// Update edits a record in place. Moving it to another student or day re-checks
// enrollment and the one-record-per-day rule.
func (s *attendanceService) Update(ctx context.Context, actor authz.Actor, id uint, payload dto.AttendanceUpdateRequest) (dto.AttendanceResponse, error) {
	ctx, span := otel.Tracer(attendanceTracer).Start(ctx, "attendance.update")
	span.SetAttributes(attribute.Int64("attendance.id", int64(id)))
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AttendanceResponse{}, err
	}

	record, recordFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.AttendanceResponse{}, err
	}
	previousStudent := record.StudentID

	studentID := record.StudentID
	if payload.StudentID != nil {
		studentID = *payload.StudentID
	}
	day := record.Date
	if payload.Date != nil {
		day, err = dto.ParseDay(*payload.Date)
		if err != nil {
			return dto.AttendanceResponse{}, invalidInput("date", "must be a date in YYYY-MM-DD format")
		}
	}

	duplicate := false
	if recordFact != nil && courseFact != nil && (studentID != record.StudentID || !day.Equal(record.Date)) {
		duplicate, err = s.records.Exists(ctx, record.CourseID, studentID, day, record.ID)
		if err != nil {
			span.RecordError(err)
			return dto.AttendanceResponse{}, err
		}
	}

	req := authz.Request{
		Actor:      actor,
		Action:     authz.ActionUpdateAttendance,
		Attendance: recordFact,
		Course:     courseFact,
		Students:   enrolmentSubjects([]uint{studentID}),
		Duplicate:  duplicate,
	}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.AttendanceResponse{}, err
	}

	record.StudentID = studentID
	record.Date = day
	if payload.Status != nil {
		record.Status, _ = models.ParseAttendanceStatus(*payload.Status)
	}
	if payload.Notes != nil {
		record.Notes = sanitizeText(*payload.Notes)
	}

	if err := s.records.Update(ctx, &record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.AttendanceResponse{}, conflictError(duplicateAttendance)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "attendance_update_failed")
		return dto.AttendanceResponse{}, err
	}

	s.summaries.Invalidate(ctx, previousStudent, record.StudentID)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "attendance.updated",
		EntityType: "attendance",
		EntityID:   &record.ID,
		Metadata:   map[string]interface{}{"status": string(record.Status), "student_id": record.StudentID},
	})
	publishEvent(ctx, s.events, Event{Type: EventAttendanceUpdated, ActorID: actor.ID, EntityID: record.ID, Payload: map[string]interface{}{"status": string(record.Status)}})

	return dto.NewAttendanceResponse(record), nil
}

func (s *attendanceService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	ctx, span := otel.Tracer(attendanceTracer).Start(ctx, "attendance.delete")
	span.SetAttributes(attribute.Int64("attendance.id", int64(id)))
	defer span.End()

	record, recordFact, courseFact, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionDeleteAttendance, Attendance: recordFact, Course: courseFact}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return err
	}

	if err := s.records.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("attendance record not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "attendance_delete_failed")
		return err
	}

	s.summaries.Invalidate(ctx, record.StudentID)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "attendance.deleted",
		EntityType: "attendance",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"course_id": record.CourseID, "student_id": record.StudentID},
	})
	publishEvent(ctx, s.events, Event{Type: EventAttendanceDeleted, ActorID: actor.ID, EntityID: id})

	return nil
}

// load resolves the record and its course. Facts are nil for entities that
// do not exist.
func (s *attendanceService) load(ctx context.Context, id uint) (models.Attendance, *authz.Attendance, *authz.Course, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Attendance{}, nil, nil, nil
		}
		return models.Attendance{}, nil, nil, err
	}

	_, course, err := loadCourse(ctx, s.courses, record.CourseID)
	if err != nil {
		return models.Attendance{}, nil, nil, err
	}
	return record, attendanceFact(record), course, nil
}

func (s *attendanceService) filterFor(req dto.AttendanceListRequest) (repository.AttendanceFilter, error) {
	if err := s.validator.Struct(req); err != nil {
		return repository.AttendanceFilter{}, err
	}

	filter := repository.AttendanceFilter{Page: req.Page, PageSize: req.PageSize}
	if req.CourseID > 0 {
		courseID := req.CourseID
		filter.CourseID = &courseID
	}
	if req.StudentID > 0 {
		studentID := req.StudentID
		filter.StudentID = &studentID
	}

	var err error
	if filter.Date, err = optionalDay("date", req.Date); err != nil {
		return repository.AttendanceFilter{}, err
	}
	if filter.From, err = optionalDay("from", req.From); err != nil {
		return repository.AttendanceFilter{}, err
	}
	if filter.To, err = optionalDay("to", req.To); err != nil {
		return repository.AttendanceFilter{}, err
	}
	return filter, nil
}

func (s *attendanceService) list(ctx context.Context, filter repository.AttendanceFilter, req dto.AttendanceListRequest) (dto.AttendanceListResponse, error) {
	records, total, err := s.records.List(ctx, filter)
	if err != nil {
		return dto.AttendanceListResponse{}, err
	}

	items := make([]dto.AttendanceResponse, 0, len(records))
	for _, record := range records {
		items = append(items, dto.NewAttendanceResponse(record))
	}
	return dto.AttendanceListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

func optionalDay(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	day, err := dto.ParseDay(raw)
	if err != nil {
		return nil, invalidInput(field, "must be a date in YYYY-MM-DD format")
	}
	return &day, nil
}
