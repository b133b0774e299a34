package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/sena-attendance-api/internal/auth"
	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/models"
	"github.com/noah-isme/sena-attendance-api/internal/repository"
)

// ErrSeedDisabled indicates no bootstrap account is configured.
var ErrSeedDisabled = errors.New("admin bootstrap is disabled")

// AdminAccount is the administrator created or promoted at startup.
type AdminAccount struct {
	Name     string `validate:"required,max=255"`
	Email    string `validate:"required,email,max=255"`
	Password string `validate:"omitempty,min=6,max=72"`
}

// SeedService provisions the accounts the platform cannot create through its
// public API.
type SeedService interface {
	EnsureAdmin(ctx context.Context, account AdminAccount) (dto.UserResponse, error)
}

type seedService struct {
	users     repository.UserRepository
	hasher    auth.PasswordHasher
	validator *validator.Validate
	activity  ActivityRecorder
	logger    zerolog.Logger
}

// NewSeedService constructs the bootstrap service.
func NewSeedService(users repository.UserRepository, hasher auth.PasswordHasher, validator *validator.Validate, activity ActivityRecorder, logger zerolog.Logger) SeedService {
	return &seedService{
		users:     users,
		hasher:    hasher,
		validator: validator,
		activity:  activity,
		logger:    logger.With().Str("component", "seed_service").Logger(),
	}
}

// EnsureAdmin creates the account when the email is unknown and promotes it
// otherwise. Running it again is a no-op. An existing password is never
// replaced.
func (s *seedService) EnsureAdmin(ctx context.Context, account AdminAccount) (dto.UserResponse, error) {
	account.Email = normalizeEmail(account.Email)
	if account.Email == "" {
		return dto.UserResponse{}, ErrSeedDisabled
	}
	account.Name = strings.TrimSpace(account.Name)
	if err := s.validator.Struct(account); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByEmail(ctx, account.Email)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.createAdmin(ctx, account)
	case err != nil:
		return dto.UserResponse{}, err
	}

	if user.Role == authz.RoleAdmin {
		s.logger.Debug().Uint("user_id", user.ID).Msg("admin account already provisioned")
		return dto.NewUserResponse(user), nil
	}

	owns, err := s.users.OwnsCourses(ctx, user.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if owns {
		return dto.UserResponse{}, invalidStateError("user is the instructor of one or more courses")
	}
	enrolled, err := s.users.IsEnrolled(ctx, user.ID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if enrolled {
		return dto.UserResponse{}, invalidStateError("user is enrolled in one or more courses")
	}

	previous := user.Role
	user.Role = authz.RoleAdmin
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Str("previous_role", previous.String()).Msg("account promoted to admin")
	s.record(ctx, user, "user.promoted_admin")
	return dto.NewUserResponse(user), nil
}

func (s *seedService) createAdmin(ctx context.Context, account AdminAccount) (dto.UserResponse, error) {
	if account.Password == "" {
		return dto.UserResponse{}, invalidInput("password", "is required to create the admin account")
	}
	hash, err := s.hasher.Hash(account.Password)
	if err != nil {
		return dto.UserResponse{}, err
	}

	user := models.User{
		Name:         sanitizeText(account.Name),
		Email:        account.Email,
		PasswordHash: hash,
		Role:         authz.RoleAdmin,
	}
	if err := s.users.Create(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}

	s.logger.Info().Uint("user_id", user.ID).Msg("admin account created")
	s.record(ctx, user, "user.seeded_admin")
	return dto.NewUserResponse(user), nil
}

func (s *seedService) record(ctx context.Context, user models.User, action string) {
	recordActivity(ctx, s.logger, s.activity, ActivityEntry{
		Actor:      authz.Actor{ID: user.ID, Role: user.Role},
		Action:     action,
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"email": user.Email},
	})
}
