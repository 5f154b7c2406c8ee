package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/dto"
	"github.com/noah-isme/grade-sanchalaak/internal/service"
	"github.com/noah-isme/grade-sanchalaak/internal/utils"
)

// SubmissionHandler accepts student answers as uploaded documents.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register mounts the routes. Students may upload and read their own work;
// multi-file uploads are staff only.
func (h *SubmissionHandler) Register(router fiber.Router, staffOnly fiber.Handler) {
	router.Get("", h.list)
	router.Get("/:id", withID(h.get))
	router.Post("", h.upload)
	router.Post("/batch", orPassthrough(staffOnly), h.uploadBatch)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	var filter dto.SubmissionFilter
	var err error
	if filter.AssignmentID, err = parseQueryUint(c, "assignment_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if filter.StudentID, err = parseQueryUint(c, "student_id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	submissions, err := h.service.List(c.UserContext(), filter, actorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx, id uint) error {
	submission, err := h.service.Get(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccess(c, "submission retrieved", submission)
}

// upload takes one multipart "file". student_id is honoured for staff only.
func (h *SubmissionHandler) upload(c *fiber.Ctx) error {
	assignmentID, err := parseFormUint(c, "assignment_id", true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	studentID, err := parseFormUint(c, "student_id", false)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "file is required")
	}

	payload := dto.SubmissionUploadRequest{AssignmentID: assignmentID, StudentID: studentID}
	submission, err := h.service.Upload(c.UserContext(), payload, file, actorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "submission created", submission)
}

// uploadBatch stores every readable file under "files" and reports the rest
// without failing the request.
func (h *SubmissionHandler) uploadBatch(c *fiber.Ctx) error {
	assignmentID, err := parseFormUint(c, "assignment_id", true)
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	form, err := c.MultipartForm()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "multipart form expected")
	}
	files := form.File["files"]
	if len(files) == 0 {
		return utils.SendError(c, fiber.StatusBadRequest, "at least one file is required")
	}

	result, err := h.service.UploadBatch(c.UserContext(), assignmentID, files, actorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	status := fiber.StatusCreated
	if len(result.Created) == 0 {
		status = fiber.StatusOK
	}
	requestLogger(h.logger, c).Info().
		Uint("assignment_id", assignmentID).
		Int("created", len(result.Created)).
		Int("failed", len(result.Failed)).
		Msg("batch upload processed")
	return utils.SendSuccessWithStatus(c, status, "batch upload processed", result)
}
