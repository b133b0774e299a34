package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/sena-attendance-api/internal/authz"
	"github.com/noah-isme/sena-attendance-api/internal/config"
	"github.com/noah-isme/sena-attendance-api/internal/handler"
	"github.com/noah-isme/sena-attendance-api/internal/middleware"
	"github.com/noah-isme/sena-attendance-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	UserHandler       *handler.UserHandler
	CourseHandler     *handler.CourseHandler
	AttendanceHandler *handler.AttendanceHandler
	EvaluationHandler *handler.EvaluationHandler
	GradeHandler      *handler.GradeHandler
	ActivityHandler   *handler.ActivityHandler
	JWTMiddleware     fiber.Handler
	// LoginLimiter guards the credential endpoints. Nil disables throttling.
	LoginLimiter fiber.Handler
	HealthProbes map[string]handler.HealthProbe
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})
	api.Get("/health", handler.HealthCheck(cfg, deps.HealthProbes))

	passthrough := func(c *fiber.Ctx) error { return c.Next() }

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = passthrough
	}
	limiter := deps.LoginLimiter
	if limiter == nil {
		limiter = passthrough
	}

	if deps.AuthHandler != nil {
		deps.AuthHandler.Register(api.Group("/auth"), limiter, jwtMiddleware)
	}

	if deps.UserHandler != nil {
		deps.UserHandler.Register(api.Group("/users", jwtMiddleware))
	}

	if deps.CourseHandler != nil {
		deps.CourseHandler.Register(api.Group("/courses", jwtMiddleware))
	}

	if deps.AttendanceHandler != nil {
		deps.AttendanceHandler.Register(api.Group("/attendance", jwtMiddleware))
	}

	if deps.EvaluationHandler != nil {
		deps.EvaluationHandler.Register(api.Group("/evaluations", jwtMiddleware))
	}

	if deps.GradeHandler != nil {
		deps.GradeHandler.Register(api.Group("/grades", jwtMiddleware))
	}

	// Audit trail
	if deps.ActivityHandler != nil {
		deps.ActivityHandler.Register(api.Group("/activity", jwtMiddleware, middleware.RequireRole(authz.RoleAdmin)))
	}
}
