package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/observability"
)

// Observability records Prometheus metrics and one access log line for each
// request under prefix. Evaluation calls can take minutes, so latency is
// bucketed up to 30s.
func Observability(logger zerolog.Logger, prefix string) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		if !strings.HasPrefix(c.Path(), prefix) {
			return err
		}
		duration := time.Since(start)

		route := routeTemplate(c)
		method := c.Method()
		status := responseStatus(c, err)
		statusLabel := strconv.Itoa(status)

		observability.GradingRequests().WithLabelValues(method, route, statusLabel).Inc()
		observability.GradingLatency().WithLabelValues(method, route).Observe(duration.Seconds())
		if status >= fiber.StatusBadRequest {
			observability.GradingErrors().WithLabelValues(method, route, statusLabel).Inc()
		}

		var event *zerolog.Event
		message := "grading request completed"
		switch {
		case status >= fiber.StatusInternalServerError:
			event, message = logger.Error(), "grading request failed"
		case status >= fiber.StatusBadRequest:
			event, message = logger.Warn(), "grading request completed with client error"
		default:
			event = logger.Info()
		}

		event = event.
			Str("correlation_id", GetCorrelationID(c)).
			Str("route", route).
			Str("method", method).
			Int("status", status).
			Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
			Str("latency_bucket", latencyBucket(duration))
		if userID, ok := c.Locals("user_id").(uint); ok && userID != 0 {
			event = event.Uint("user_id", userID)
		}
		if err != nil && status >= fiber.StatusInternalServerError {
			event = event.Err(err)
		}
		event.Msg(message)

		return err
	}
}

// responseStatus resolves the status the error handler will write when the
// chain returned an error.
func responseStatus(c *fiber.Ctx, err error) int {
	if err == nil {
		return c.Response().StatusCode()
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}

func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
		return route.Path
	}
	return c.Path()
}

func latencyBucket(duration time.Duration) string {
	switch {
	case duration <= 100*time.Millisecond:
		return "<=100ms"
	case duration <= time.Second:
		return "<=1s"
	case duration <= 5*time.Second:
		return "<=5s"
	case duration <= 30*time.Second:
		return "<=30s"
	default:
		return ">30s"
	}
}
