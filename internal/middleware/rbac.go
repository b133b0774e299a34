package middleware

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

// RequireRole ensures that the authenticated actor holds one of the allowed
// roles. It must run after JWTProtected.
func RequireRole(roles ...authz.Role) fiber.Handler {
	allowed := make(map[authz.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
		}
		if _, ok := allowed[actor.Role]; !ok {
			return utils.SendError(c, fiber.StatusForbidden, "role "+actor.Role.String()+" is not allowed to access this route")
		}
		return c.Next()
	}
}
