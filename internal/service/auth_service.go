package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/auth"
	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
)

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	Issue(userID uint, role authz.Role, email string) (string, time.Time, error)
}

// AuthService handles registration, login and the caller's own profile.
type AuthService interface {
	Register(ctx context.Context, payload dto.RegisterRequest) (dto.AuthResponse, error)
	Login(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error)
	Profile(ctx context.Context, actor authz.Actor) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, actor authz.Actor, payload dto.ProfileUpdateRequest) (dto.UserResponse, error)
	ResolveActor(ctx context.Context, userID uint) (authz.Actor, error)
}

type authService struct {
	users     repository.UserRepository
	tokens    TokenIssuer
	hasher    auth.PasswordHasher
	validator *validator.Validate
	activity  ActivityRecorder
	events    EventPublisher
	logger    zerolog.Logger
}

// NewAuthService constructs the authentication service.
func NewAuthService(users repository.UserRepository, tokens TokenIssuer, hasher auth.PasswordHasher, validator *validator.Validate, activity ActivityRecorder, events EventPublisher, logger zerolog.Logger) AuthService {
	return &authService{
		users:     users,
		tokens:    tokens,
		hasher:    hasher,
		validator: validator,
		activity:  activity,
		events:    events,
		logger:    logger.With().Str("component", "auth_service").Logger(),
	}
}

func (s *authService) Register(ctx context.Context, payload dto.RegisterRequest) (dto.AuthResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/sena-attendance-api/internal/service/auth")
	ctx, span := tracer.Start(ctx, "auth.register")
	defer span.End()

	payload.Email = normalizeEmail(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		span.SetStatus(codes.Error, "validation_failed")
		return dto.AuthResponse{}, err
	}

	role := authz.RoleStudent
	if payload.Role != "" {
		parsed, ok := authz.ParseRole(payload.Role)
		if !ok || parsed == authz.RoleAdmin {
			return dto.AuthResponse{}, invalidInput("role", "must be instructor or aprendiz")
		}
		role = parsed
	}

	email := payload.Email
	taken, err := s.emailTaken(ctx, email, 0)
	if err != nil {
		span.RecordError(err)
		return dto.AuthResponse{}, err
	}
	if taken {
		span.SetStatus(codes.Error, "email_taken")
		return dto.AuthResponse{}, conflictError("email already registered")
	}

	hash, err := s.hasher.Hash(payload.Password)
	if err != nil {
		span.RecordError(err)
		return dto.AuthResponse{}, err
	}

	user := models.User{
		Name:         sanitizeText(payload.Name),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		DocumentType: strings.ToUpper(strings.TrimSpace(payload.DocumentType)),
	}
	if number := strings.TrimSpace(payload.DocumentNumber); number != "" {
		user.DocumentNumber = &number
	}

	if err := s.users.Create(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			span.SetStatus(codes.Error, "duplicate_account")
			return dto.AuthResponse{}, conflictError("account already registered")
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "user_create_failed")
		return dto.AuthResponse{}, err
	}
	span.SetAttributes(attribute.Int64("auth.user_id", int64(user.ID)))

	actor := authz.Actor{ID: user.ID, Role: user.Role}
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "user.registered",
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"role": user.Role.String()},
	})
	publishEvent(ctx, s.events, Event{Type: EventUserRegistered, ActorID: user.ID, EntityID: user.ID, Payload: map[string]interface{}{"role": user.Role.String()}})

	return s.issue(user)
}

func (s *authService) Login(ctx context.Context, payload dto.LoginRequest) (dto.AuthResponse, error) {
	payload.Email = normalizeEmail(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		return dto.AuthResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, payload.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, ErrInvalidCredentials
		}
		return dto.AuthResponse{}, err
	}

	if err := s.hasher.Compare(user.PasswordHash, payload.Password); err != nil {
		s.logger.Debug().Uint("user_id", user.ID).Msg("password mismatch")
		return dto.AuthResponse{}, ErrInvalidCredentials
	}

	return s.issue(user)
}

func (s *authService) Profile(ctx context.Context, actor authz.Actor) (dto.UserResponse, error) {
	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, notFoundError("user not found")
		}
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, actor authz.Actor, payload dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	payload.Email = normalizeEmailPtr(payload.Email)
	if err := s.validator.Struct(payload); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.UserResponse{}, notFoundError("user not found")
		}
		return dto.UserResponse{}, err
	}

	changed := make([]string, 0, 4)
	if payload.Name != nil {
		user.Name = sanitizeText(*payload.Name)
		changed = append(changed, "name")
	}
	if payload.Email != nil {
		email := normalizeEmail(*payload.Email)
		if email != user.Email {
			taken, err := s.emailTaken(ctx, email, user.ID)
			if err != nil {
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
	if payload.Password != nil {
		if err := s.hasher.Compare(user.PasswordHash, payload.CurrentPassword); err != nil {
			return dto.UserResponse{}, invalidInput("current_password", "is incorrect")
		}
		hash, err := s.hasher.Hash(*payload.Password)
		if err != nil {
			return dto.UserResponse{}, err
		}
		user.PasswordHash = hash
		changed = append(changed, "password")
	}

	if err := s.users.Update(ctx, &user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return dto.UserResponse{}, conflictError("account already registered")
		}
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      actor,
		Action:     "user.profile_updated",
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"fields": changed},
	})

	return dto.NewUserResponse(user), nil
}

// ResolveActor reloads the identity named by a token.
func (s *authService) ResolveActor(ctx context.Context, userID uint) (authz.Actor, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return authz.Actor{}, err
	}
	return authz.Actor{ID: user.ID, Role: user.Role}, nil
}

func (s *authService) issue(user models.User) (dto.AuthResponse, error) {
	token, expiresAt, err := s.tokens.Issue(user.ID, user.Role, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Uint("user_id", user.ID).Msg("failed to sign token")
		return dto.AuthResponse{}, err
	}
	return dto.AuthResponse{Token: token, ExpiresAt: expiresAt, User: dto.NewUserResponse(user)}, nil
}

func (s *authService) emailTaken(ctx context.Context, email string, excludeID uint) (bool, error) {
	return emailTaken(ctx, s.users, email, excludeID)
}

func emailTaken(ctx context.Context, users repository.UserRepository, email string, excludeID uint) (bool, error) {
	existing, err := users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return existing.ID != excludeID, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func normalizeEmailPtr(email *string) *string {
	if email == nil {
		return nil
	}
	normalized := normalizeEmail(*email)
	return &normalized
}
