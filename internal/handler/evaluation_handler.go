package handler

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/service"
	"github.com/noah-isme/grade-sanchalaak/internal/utils"
)

const progressPingInterval = 30 * time.Second

// EvaluationHandler exposes grading, reporting and live batch progress.
type EvaluationHandler struct {
	service  service.EvaluationService
	progress service.ProgressService
	logger   zerolog.Logger
}

// NewEvaluationHandler creates an evaluation handler. progress may be nil, in
// which case the websocket route is not registered.
func NewEvaluationHandler(service service.EvaluationService, progress service.ProgressService, logger zerolog.Logger) *EvaluationHandler {
	return &EvaluationHandler{
		service:  service,
		progress: progress,
		logger:   logger.With().Str("component", "evaluation_handler").Logger(),
	}
}

// Register binds the evaluation routes. limiter throttles the endpoints that
// call the LLM.
func (h *EvaluationHandler) Register(router fiber.Router, staffOnly, limiter fiber.Handler) {
	staffOnly, limiter = orPassthrough(staffOnly), orPassthrough(limiter)

	router.Post("/submissions/:id/evaluate", staffOnly, limiter, withID(h.evaluateSubmission))
	router.Get("/submissions/:id/evaluation", withID(h.getEvaluation))
	router.Post("/assignments/:id/evaluate", staffOnly, limiter, withID(h.evaluateAssignment))
	router.Get("/assignments/:id/report", staffOnly, withID(h.report))
	router.Get("/assignments/:id/report.csv", staffOnly, withID(h.reportCSV))

	if h.progress != nil {
		router.Get("/assignments/:id/progress", staffOnly, h.upgradeGuard, websocket.New(h.streamProgress))
	}
}

func (h *EvaluationHandler) evaluateSubmission(c *fiber.Ctx, id uint) error {
	result, err := h.service.EvaluateSubmission(c.UserContext(), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "submission evaluated", result)
}

func (h *EvaluationHandler) getEvaluation(c *fiber.Ctx, id uint) error {
	result, err := h.service.GetEvaluation(c.UserContext(), id, actorFromContext(c))
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "evaluation retrieved", result)
}

func (h *EvaluationHandler) evaluateAssignment(c *fiber.Ctx, id uint) error {
	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid force flag")
		}
		force = parsed
	}

	result, err := h.service.EvaluateAssignment(c.UserContext(), id, force)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	requestLogger(h.logger, c).Info().
		Str("run_id", result.RunID).
		Uint("assignment_id", id).
		Int("evaluated", result.Report.Summary.Count).
		Int("failed", result.Report.Summary.FailedCount).
		Msg("batch evaluation completed")

	return utils.SendSuccess(c, "assignment evaluated", result)
}

func (h *EvaluationHandler) report(c *fiber.Ctx, id uint) error {
	report, err := h.service.Report(c.UserContext(), id)
	if err != nil {
		return sendServiceError(c, h.logger, err)
	}

	return utils.SendSuccess(c, "report retrieved", report)
}

func (h *EvaluationHandler) reportCSV(c *fiber.Ctx, id uint) error {
	var buf bytes.Buffer
	if err := h.service.ExportCSV(c.UserContext(), id, &buf); err != nil {
		return sendServiceError(c, h.logger, err)
	}

	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=\"assignment-%d-report.csv\"", id))
	return c.Send(buf.Bytes())
}

func (h *EvaluationHandler) upgradeGuard(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	if _, err := parseUintParam(c, "id"); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}
	return c.Next()
}

func (h *EvaluationHandler) streamProgress(conn *websocket.Conn) {
	parsed, err := strconv.ParseUint(conn.Params("id"), 10, 64)
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseUnsupportedData, "invalid assignment id"))
		_ = conn.Close()
		return
	}
	assignmentID := uint(parsed)

	events, cleanup := h.progress.Subscribe(assignmentID)
	defer cleanup()

	logger := h.logger.With().Uint("assignment_id", assignmentID).Str("correlation_id", fmt.Sprint(conn.Locals("correlation_id"))).Logger()
	logger.Info().Msg("progress websocket connected")
	defer logger.Info().Msg("progress websocket disconnected")

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Msg("progress write failed")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
