package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/sena-attendance-api/internal/dto"
	"github.com/noah-isme/sena-attendance-api/internal/service"
	"github.com/noah-isme/sena-attendance-api/internal/utils"
)

// AttendanceHandler exposes attendance endpoints.
type AttendanceHandler struct {
	service service.AttendanceService
	logger  zerolog.Logger
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(service service.AttendanceService, logger zerolog.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		service: service,
		logger:  logger.With().Str("component", "attendance_handler").Logger(),
	}
}

// Register attaches attendance routes to the router group.
func (h *AttendanceHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/course/:courseId", h.listByCourse)
	router.Get("/course/:courseId/student/:studentId", h.listByCourseAndStudent)
	router.Get("/:id", h.get)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.delete)
}

func (h *AttendanceHandler) list(c *fiber.Ctx) error {
	var req dto.AttendanceListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list attendance")
	}

	result, err := h.service.List(c.UserContext(), actor, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendList(c, "attendance retrieved", result.Items, result.Pagination)
}

func (h *AttendanceHandler) listByCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var req dto.AttendanceListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list attendance")
	}

	result, err := h.service.ListByCourse(c.UserContext(), actor, courseID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendList(c, "attendance retrieved", result.Items, result.Pagination)
}

func (h *AttendanceHandler) listByCourseAndStudent(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "courseId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}
	studentID, err := parseUintParam(c, "studentId")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var req dto.AttendanceListRequest
	if err := c.QueryParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list attendance")
	}

	result, err := h.service.ListByCourseAndStudent(c.UserContext(), actor, courseID, studentID, req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to list attendance")
	}

	return utils.SendList(c, "attendance retrieved", result.Items, result.Pagination)
}

func (h *AttendanceHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load attendance")
	}

	record, err := h.service.Get(c.UserContext(), actor, id)
	if err != nil {
		return respondError(c, h.logger, err, "failed to load attendance")
	}

	return utils.SendSuccess(c, "attendance retrieved", record)
}

func (h *AttendanceHandler) create(c *fiber.Ctx) error {
	var payload dto.AttendanceCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record attendance")
	}

	record, err := h.service.Create(c.UserContext(), actor, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to record attendance")
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "attendance recorded", record)
}

func (h *AttendanceHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	var payload dto.AttendanceUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update attendance")
	}

	record, err := h.service.Update(c.UserContext(), actor, id, payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update attendance")
	}

	return utils.SendSuccess(c, "attendance updated", record)
}

func (h *AttendanceHandler) delete(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid identifier")
	}

	actor, err := actorFromContext(c)
	if err != nil {
		return respondError(c, h.logger, err, "failed to delete attendance")
	}

	if err := h.service.Delete(c.UserContext(), actor, id); err != nil {
		return respondError(c, h.logger, err, "failed to delete attendance")
	}

	return utils.SendSuccess(c, "attendance deleted", nil)
}
