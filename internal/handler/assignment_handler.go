package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/dto"
	"github.com/noah-isme/grade-sanchalaak/internal/service"
	"github.com/noah-isme/grade-sanchalaak/internal/utils"
)

// AssignmentHandler serves assignment CRUD and keyword extraction.
type AssignmentHandler struct {
	service service.AssignmentService
	logger  zerolog.Logger
}

func NewAssignmentHandler(service service.AssignmentService, logger zerolog.Logger) *AssignmentHandler {
	return &AssignmentHandler{
		service: service,
		logger:  logger.With().Str("component", "assignment_handler").Logger(),
	}
}

// Register mounts the routes. Reads are open to any authenticated caller;
// staffOnly guards the rest.
func (h *AssignmentHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	staffOnly = orPassthrough(staffOnly)

	router.Get("", h.list)
	router.Get("/:id", withID(h.get))
	router.Post("", staffOnly, h.create)
	router.Patch("/:id", staffOnly, withID(h.update))
	router.Delete("/:id", staffOnly, withID(h.delete))
	router.Post("/:id/keywords", staffOnly, withID(h.extractKeywords))
}

func (h *AssignmentHandler) list(c *fiber.Ctx) error {
	var query dto.AssignmentListQuery
	if err := c.QueryParser(&query); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid query parameters")
	}

	page, err := h.service.List(c.UserContext(), query)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignments retrieved", page)
}

func (h *AssignmentHandler) get(c *fiber.Ctx, id uint) error {
	assignment, err := h.service.Get(c.UserContext(), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment retrieved", assignment)
}

func (h *AssignmentHandler) create(c *fiber.Ctx) error {
	var payload dto.AssignmentCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Create(c.UserContext(), payload, userIDFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "assignment created", assignment)
}

func (h *AssignmentHandler) update(c *fiber.Ctx, id uint) error {
	var payload dto.AssignmentUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	assignment, err := h.service.Update(c.UserContext(), id, payload)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "assignment updated", assignment)
}

func (h *AssignmentHandler) delete(c *fiber.Ctx, id uint) error {
	if err := h.service.Delete(c.UserContext(), id); err != nil {
		return sendServiceError(c, h.logger, err)
	}
	requestLogger(h.logger, c).Info().Uint("assignment_id", id).Uint("deleted_by", userIDFromContext(c)).Msg("assignment deleted")
	return utils.SendSuccess(c, "assignment deleted", nil)
}

// extractKeywords calls the LLM once; the resulting set is fixed for the
// assignment until its problem statement changes.
func (h *AssignmentHandler) extractKeywords(c *fiber.Ctx, id uint) error {
	assignment, err := h.service.ExtractKeywords(c.UserContext(), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().Uint("assignment_id", id).Int("keywords", assignment.KeywordCount).Msg("assignment keywords extracted")
	return utils.SendSuccess(c, "keywords extracted", assignment)
}
