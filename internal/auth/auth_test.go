package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
)

func TestTokenRoundTrip(t *testing.T) {
	manager := NewTokenManager("secret", time.Hour, "sena")

	token, expiresAt, err := manager.Issue(42, authz.RoleInstructor, "ines@sena.test")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	actor, err := manager.Parse(token)
	require.NoError(t, err)
	require.Equal(t, authz.Actor{ID: 42, Role: authz.RoleInstructor}, actor)
}

func TestTokenRejectsWrongSecretAndExpiry(t *testing.T) {
	issuer := NewTokenManager("secret", time.Hour, "sena")
	token, _, err := issuer.Issue(7, authz.RoleStudent, "")
	require.NoError(t, err)

	_, err = NewTokenManager("other", time.Hour, "sena").Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokenManager("secret", time.Hour, "sena")
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(token)
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenRejectsUnknownRole(t *testing.T) {
	claims := Claims{
		Role: "guest",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "3",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewTokenManager("secret", time.Hour, "sena").Parse(signed)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHasher(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("s3cret-pass")
	require.NoError(t, err)
	require.NotEqual(t, "s3cret-pass", hash)

	require.NoError(t, hasher.Compare(hash, "s3cret-pass"))
	require.ErrorIs(t, hasher.Compare(hash, "wrong"), ErrPasswordMismatch)
}
