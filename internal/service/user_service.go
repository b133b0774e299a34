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
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
)

// UserService manages the user directory.
type UserService interface {
	List(ctx context.Context, actor authz.Actor, req dto.UserListRequest) (dto.UserListResponse, error)
	Get(ctx context.Context, actor authz.Actor, id uint) (dto.UserResponse, error)
	Update(ctx context.Context, actor authz.Actor, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, actor authz.Actor, id uint) error
}

type userService struct {
	users     repository.UserRepository
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	summaries *SummaryCache
	logger    zerolog.Logger
}

// NewUserService constructs the user directory service.
func NewUserService(users repository.UserRepository, validator *validator.Validate, activity ActivityRecorder, events EventPublisher, summaries *SummaryCache, logger zerolog.Logger) UserService {
	return &userService{
		users:     users,
		validator: validator,
		activity:  activity,
		events:    events,
		summaries: summaries,
		logger:    logger.With().Str("component", "user_service").Logger(),
	}
}

func (s *userService) List(ctx context.Context, actor authz.Actor, req dto.UserListRequest) (dto.UserListResponse, error) {
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionListUsers}); err != nil {
		return dto.UserListResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserListResponse{}, err
	}

	filter := repository.UserFilter{
		Search:   strings.TrimSpace(req.Search),
		Page:     req.Page,
		PageSize: req.PageSize,
	}
	if req.Role != "" {
		role, _ := authz.ParseRole(req.Role)
		filter.Role = role
	}

	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return dto.UserListResponse{}, err
	}

	items := make([]dto.UserResponse, 0, len(users))
	for _, user := range users {
		items = append(items, dto.NewUserResponse(user))
	}
	return dto.UserListResponse{Items: items, Pagination: dto.NewPaginationMeta(req.Page, req.PageSize, total)}, nil
}

func (s *userService) Get(ctx context.Context, actor authz.Actor, id uint) (dto.UserResponse, error) {
	user, subject, err := loadSubject(ctx, s.users, id)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionReadUser, User: subject}); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Update(ctx context.Context, actor authz.Actor, id uint, payload dto.UserUpdateRequest) (dto.UserResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sena-attendance-api/internal/service/user")
	ctx, span := tracer.Start(ctx, "user.update")
	span.SetAttributes(
		attribute.Int64("user.id", int64(id)),
		attribute.Int64("user.actor_id", int64(actor.ID)),
	)
	defer span.End()

	payload.Email = normalizeEmailPtr(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.UserResponse{}, err
	}

	user, subject, err := loadSubject(ctx, s.users, id)
	if err != nil {
		span.RecordError(err)
		return dto.UserResponse{}, err
	}

	req := authz.Request{Actor: actor, Action: authz.ActionUpdateUser, User: subject}
	if payload.Role != nil {
		role, _ := authz.ParseRole(*payload.Role)
		req.RequestedRole = &role
		if role != user.Role {
			if err := s.loadRosterFacts(ctx, subject); err != nil {
				span.RecordError(err)
				return dto.UserResponse{}, err
			}
		}
	}
	if err := authorize(s.logger, req); err != nil {
		span.SetStatus(codes.Error, "denied")
		return dto.UserResponse{}, err
	}

	changed := make([]string, 0, 5)
	if req.RequestedRole != nil && *req.RequestedRole != user.Role {
		user.Role = *req.RequestedRole
		changed = append(changed, "role")
	}
	if payload.Name != nil {
		user.Name = sanitizeText(*payload.Name)
		changed = append(changed, "name")
	}
	if payload.Email != nil {
		email := normalizeEmail(*payload.Email)
		if email != user.Email {
			taken, err := emailTaken(ctx, s.users, email, user.ID)
			if err != nil {
				span.RecordError(err)
				return dto.UserResponse{}, err
			}
			if taken {
				return dto.UserResponse{}, conflictError("email already registered")
			}
			user.Email = email
			changed = append(changed, "email")
		}
	}
	if payload.DocumentType != nil {
		user.DocumentType = strings.ToUpper(strings.TrimSpace(*payload.DocumentType))
		changed = append(changed, "document_type")
	}
	if payload.DocumentNumber != nil {
		number := strings.TrimSpace(*payload.DocumentNumber)
		user.DocumentNumber = nil
		if number != "" {
			user.DocumentNumber = &number
		}
		changed = append(changed, "document_number")
	}

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.UserResponse{}, conflictError("account already registered")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user_update_failed")
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "user.updated",
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"fields": changed},
	})
	publishEvent(ctx, s.events, Event{Type: EventUserUpdated, ActorID: actor.ID, EntityID: user.ID, Payload: map[string]interface{}{"fields": changed}})

	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, actor authz.Actor, id uint) error {
	tracer := otel.Tracer("github.com/noah-isme/sena-attendance-api/internal/service/user")
	ctx, span := tracer.Start(ctx, "user.delete")
	span.SetAttributes(attribute.Int64("user.id", int64(id)))
	defer span.End()

	user, subject, err := loadSubject(ctx, s.users, id)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if err := s.loadRosterFacts(ctx, subject); err != nil {
		span.RecordError(err)
		return err
	}

	if err := authorize(s.logger, authz.Request{Actor: actor, Action: authz.ActionDeleteUser, User: subject}); err != nil {
		span.SetStatus(codes.Error, "denied")
		return err
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("user not found")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user_delete_failed")
		return err
	}

	s.summaries.Invalidate(ctx, id)
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "user.deleted",
		EntityType: "user",
		EntityID:   &id,
		Metadata:   map[string]interface{}{"role": user.Role.String()},
	})
	publishEvent(ctx, s.events, Event{Type: EventUserDeleted, ActorID: actor.ID, EntityID: id})

	return nil
}

// loadRosterFacts fills the course ownership and enrollment facts of a
// resolved subject.
func (s *userService) loadRosterFacts(ctx context.Context, subject *authz.Subject) error {
	if subject == nil || !subject.Found {
		return nil
	}
	owns, err := s.users.OwnsCourses(ctx, subject.ID)
	if err != nil {
		return err
	}
	enrolled, err := s.users.IsEnrolled(ctx, subject.ID)
	if err != nil {
		return err
	}
	subject.OwnsCourses = owns
	subject.Enrolled = enrolled
	return nil
}
