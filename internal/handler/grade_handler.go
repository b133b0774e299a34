package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/service"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

// GradeHandler exposes grade listings, corrections and student summaries.
type GradeHandler struct {
	service service.GradeService
	logger  zerolog.Logger
}

// NewGradeHandler constructs the handler.
func NewGradeHandler(service service.GradeService, logger zerolog.Logger) *GradeHandler {
	return &GradeHandler{
		service: service,
		logger:  logger.With().Str("component", "grade_handler").Logger(),
	}
}

// Register attaches grade routes to the router group.
func (h *GradeHandler) Register(router fiber.Router) {
	router.Get("/student/:studentId", h.listByStudent)
	router.Get("/course/:courseId", h.listByCourse)
	router.Get("/summary/:userId", h.summary)
	router.Put("/:gradeId", h.update)
}

func (h *GradeHandler) listByStudent(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list grades")
	}

	grades, err := h.service.ListByStudent(c.UserContext(), actor, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list grades")
	}

	return utils.SendSuccess(c, "grades retrieved", grades)
}

func (h *GradeHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list grades")
	}

	grades, err := h.service.ListByCourse(c.UserContext(), actor, courseID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list grades")
	}

	return utils.SendSuccess(c, "grades retrieved", grades)
}

func (h *GradeHandler) summary(c *fiber.Ctx) error {
	studentID, err := parseUintParam(c, "userId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to build summary")
	}

	summary, err := h.service.Summary(c.UserContext(), actor, studentID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to build summary")
	}

	return utils.SendSuccess(c, "summary retrieved", summary)
}

func (h *GradeHandler) update(c *fiber.Ctx) error {
	gradeID, err := parseUintParam(c, "gradeId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.GradeUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update grade")
	}

	grade, err := h.service.Update(c.UserContext(), actor, gradeID, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update grade")
	}

	return utils.SendSuccess(c, "grade updated", grade)
}
