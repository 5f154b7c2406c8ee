package handler

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/internal/middleware"
	"github.com/noah-isme/grade-sanchalaak/internal/service"
	"github.com/noah-isme/grade-sanchalaak/internal/utils"
	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
	"github.com/noah-isme/grade-sanchalaak/pkg/fileparser"
)

func userIDFromContext(c *fiber.Ctx) uint {
	if v := c.Locals("user_id"); v != nil {
		if id, ok := v.(uint); ok {
			return id
		}
		if id, ok := v.(int); ok {
			if id < 0 {
				return 0
			}
			return uint(id)
		}
	}
	return 0
}

func userRoleFromContext(c *fiber.Ctx) string {
	if v := c.Locals("user_role"); v != nil {
		if role, ok := v.(string); ok {
			return role
		}
	}
	return ""
}

func actorFromContext(c *fiber.Ctx) service.Actor {
	return service.Actor{
		ID:   userIDFromContext(c),
		Role: strings.ToLower(userRoleFromContext(c)),
	}
}

func requestLogger(base zerolog.Logger, c *fiber.Ctx) *zerolog.Logger {
	logger := base
	if c != nil {
		if correlation := middleware.GetCorrelationID(c); correlation != "" {
			logger = base.With().Str("correlation_id", correlation).Logger()
		}
	}
	return &logger
}

// withID parses the :id route parameter before calling next.
func withID(next func(c *fiber.Ctx, id uint) error) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseUintParam(c, "id")
		if err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		}
		return next(c, id)
	}
}

func orPassthrough(h fiber.Handler) fiber.Handler {
	if h != nil {
		return h
	}
	return func(c *fiber.Ctx) error { return c.Next() }
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	value := c.Params(name)
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid identifier")
	}
	return uint(parsed), nil
}

func parseQueryUint(c *fiber.Ctx, key string) (*uint, error) {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, errors.New("invalid " + key)
	}
	result := uint(parsed)
	return &result, nil
}

func parseFormUint(c *fiber.Ctx, key string, required bool) (uint, error) {
	value := strings.TrimSpace(c.FormValue(key))
	if value == "" {
		if required {
			return 0, errors.New("missing " + key)
		}
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return uint(parsed), nil
}

// sendServiceError maps domain errors onto HTTP statuses. Unknown errors are
// logged and hidden behind a generic 500.
func sendServiceError(c *fiber.Ctx, base zerolog.Logger, err error) error {
	logger := requestLogger(base, c)
	var validationErrors validator.ValidationErrors
	var parseErr *time.ParseError
	var fileErr *fileparser.Error

	switch {
	case errors.As(err, &validationErrors):
		return utils.SendValidationError(c, validationErrors)
	case errors.As(err, &parseErr):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid due_date, expected RFC3339")
	case errors.Is(err, service.ErrAssignmentNotFound),
		errors.Is(err, service.ErrSubmissionNotFound),
		errors.Is(err, service.ErrEvaluationNotFound):
		return utils.SendError(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrSubmissionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrKeywordsAlreadyExtracted),
		errors.Is(err, service.ErrBatchInProgress):
		return utils.SendError(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, service.ErrAssignmentPastDue):
		return utils.SendError(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrFileRequired):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrKeywordsMissing),
		errors.Is(err, evaluation.ErrInsufficientKeywords),
		errors.Is(err, evaluation.ErrEmptyProblemStatement),
		errors.Is(err, evaluation.ErrEmptySubmission):
		return utils.SendError(c, fiber.StatusUnprocessableEntity, evaluation.UserMessage(err))
	case errors.As(err, &fileErr):
		return utils.SendError(c, fileErrorStatus(fileErr), fileErr.UserMessage())
	case errors.Is(err, evaluation.ErrMalformedResponse):
		logger.Warn().Err(err).Msg("llm reply rejected")
		return utils.SendError(c, fiber.StatusBadGateway, evaluation.UserMessage(err))
	}

	if upstream, ok := ai.AsUpstreamError(err); ok {
		logger.Warn().Err(err).Str("reason", string(upstream.Reason)).Msg("llm provider request failed")
		return utils.SendError(c, upstreamStatus(upstream.Reason), upstream.UserMessage())
	}

	logger.Error().Err(err).Msg("internal server error")
	return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
}

func fileErrorStatus(err *fileparser.Error) int {
	switch {
	case errors.Is(err, fileparser.ErrTooLarge):
		return fiber.StatusRequestEntityTooLarge
	case errors.Is(err, fileparser.ErrUnsupportedFormat):
		return fiber.StatusUnsupportedMediaType
	default:
		return fiber.StatusUnprocessableEntity
	}
}

func upstreamStatus(reason ai.UpstreamReason) int {
	switch reason {
	case ai.ReasonRateLimit:
		return fiber.StatusTooManyRequests
	case ai.ReasonNotConfigured:
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusBadGateway
	}
}
