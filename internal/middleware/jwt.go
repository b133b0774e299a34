package middleware

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

const actorLocalsKey = "actor"

// TokenParser verifies a bearer token and resolves the actor it names.
type TokenParser interface {
	Parse(token string) (authz.Actor, error)
}

// IdentityResolver reloads the actor from the identity store so that deleted
// accounts and role changes take effect before the token expires.
type IdentityResolver func(ctx context.Context, userID uint) (authz.Actor, error)

// JWTProtected rejects requests without a valid bearer token and stores the
// resolved actor in the request locals.
func JWTProtected(tokens TokenParser, resolve IdentityResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
		if authorization == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "authorization header missing")
		}

		const bearer = "bearer "
		if len(authorization) <= len(bearer) || !strings.EqualFold(authorization[:len(bearer)], bearer) {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid authorization header")
		}

		tokenString := strings.TrimSpace(authorization[len(bearer):])
		if tokenString == "" {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		actor, err := tokens.Parse(tokenString)
		if err != nil {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid token")
		}

		if resolve != nil {
			actor, err = resolve(c.UserContext(), actor.ID)
			if err != nil {
				return utils.SendError(c, fiber.StatusUnauthorized, "user no longer exists")
			}
		}

		SetActor(c, actor)
		return c.Next()
	}
}

// SetActor binds the authenticated actor to the request.
func SetActor(c *fiber.Ctx, actor authz.Actor) {
	c.Locals(actorLocalsKey, actor)
	c.Locals("user_id", actor.ID)
	c.Locals("user_role", actor.Role.String())
}

// ActorFromContext returns the actor bound by JWTProtected.
func ActorFromContext(c *fiber.Ctx) (authz.Actor, bool) {
	actor, ok := c.Locals(actorLocalsKey).(authz.Actor)
	if !ok || actor.ID == 0 {
		return authz.Actor{}, false
	}
	return actor, true
}
