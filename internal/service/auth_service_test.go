package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.auth.Register(ctx, dto.RegisterRequest{
		Name:     "Sara Gomez",
		Email:    " Sara@Sena.edu.co ",
		Password: "aprendiz123",
	})
	require.NoError(t, err)
	require.NotEmpty(t, registered.Token)
	require.Equal(t, "sara@sena.edu.co", registered.User.Email)
	require.Equal(t, authz.RoleStudent.String(), registered.User.Role)

	actor, err := f.tokens.Parse(registered.Token)
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, actor.ID)

	loggedIn, err := f.auth.Login(ctx, dto.LoginRequest{Email: "SARA@sena.edu.co", Password: "aprendiz123"})
	require.NoError(t, err)
	require.Equal(t, registered.User.ID, loggedIn.User.ID)

	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "sara@sena.edu.co", Password: "wrong-password"})
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "nadie@sena.edu.co", Password: "aprendiz123"})
	require.ErrorIs(t, err, ErrInvalidCredentials)
	require.Contains(t, f.events.types(), EventUserRegistered)
}

func TestAuthServiceRegisterRejectsDuplicatesAndAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	payload := dto.RegisterRequest{Name: "Ines", Email: "ines@sena.edu.co", Password: "instructor1", Role: "instructor"}

	_, err := f.auth.Register(ctx, payload)
	require.NoError(t, err)

	_, err = f.auth.Register(ctx, payload)
	require.ErrorIs(t, err, authz.ErrConflict)

	payload.Email = "root@sena.edu.co"
	payload.Role = "admin"
	_, err = f.auth.Register(ctx, payload)
	require.Error(t, err)
	require.True(t, utils.IsValidationError(err))

	_, err = f.auth.Register(ctx, dto.RegisterRequest{Name: "X", Email: "no-es-email", Password: "123"})
	require.True(t, utils.IsValidationError(err))
	require.Len(t, utils.ValidationMessages(err), 2)
}

func TestAuthServiceProfileUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	registered, err := f.auth.Register(ctx, dto.RegisterRequest{Name: "Sara", Email: "sara@sena.edu.co", Password: "aprendiz123"})
	require.NoError(t, err)
	actor := authz.Actor{ID: registered.User.ID, Role: authz.RoleStudent}

	_, err = f.auth.UpdateProfile(ctx, actor, dto.ProfileUpdateRequest{Password: stringPtr("nueva-clave"), CurrentPassword: "equivocada"})
	var inputErr *InputError
	require.True(t, errors.As(err, &inputErr))
	require.Equal(t, "current_password", inputErr.Field)

	updated, err := f.auth.UpdateProfile(ctx, actor, dto.ProfileUpdateRequest{
		Name:            stringPtr("Sara Gomez"),
		Password:        stringPtr("nueva-clave"),
		CurrentPassword: "aprendiz123",
	})
	require.NoError(t, err)
	require.Equal(t, "Sara Gomez", updated.Name)

	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: "sara@sena.edu.co", Password: "nueva-clave"})
	require.NoError(t, err)

	profile, err := f.auth.Profile(ctx, actor)
	require.NoError(t, err)
	require.Equal(t, "Sara Gomez", profile.Name)

	resolved, err := f.auth.ResolveActor(ctx, actor.ID)
	require.NoError(t, err)
	require.Equal(t, actor, resolved)

	_, err = f.auth.ResolveActor(ctx, actor.ID+100)
	require.Error(t, err)

	moved, err := f.auth.UpdateProfile(ctx, actor, dto.ProfileUpdateRequest{Email: stringPtr("  Sara.G@Sena.edu.co ")})
	require.NoError(t, err)
	require.Equal(t, "sara.g@sena.edu.co", moved.Email)

	_, err = f.auth.Login(ctx, dto.LoginRequest{Email: " sara.g@sena.edu.co", Password: "nueva-clave"})
	require.NoError(t, err)
}
