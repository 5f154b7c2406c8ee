package middleware

import (
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"
)

// Config customises the middleware registration pipeline.
type Config struct {
	Logger *zerolog.Logger
	// MetricsPrefix limits request metrics and access logs to matching paths.
	MetricsPrefix string
	// AllowOrigins is a comma separated CORS allow list. Empty allows any origin.
	AllowOrigins string
}

// Register installs panic recovery, correlation ids, the access log and CORS,
// in that order.
func Register(app *fiber.App, cfg Config) {
	logger := zerolog.New(io.Discard)
	if cfg.Logger != nil {
		logger = cfg.Logger.With().Str("component", "http").Logger()
	}

	prefix := cfg.MetricsPrefix
	if prefix == "" {
		prefix = "/api"
	}
	origins := strings.TrimSpace(cfg.AllowOrigins)
	if origins == "" {
		origins = "*"
	}

	app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
		StackTraceHandler: func(c *fiber.Ctx, e interface{}) {
			logger.Error().
				Str("correlation_id", GetCorrelationID(c)).
				Str("path", c.Path()).
				Interface("panic", e).
				Msg("recovered from panic")
		},
	}))
	app.Use(CorrelationID())
	app.Use(Observability(logger, prefix))
	app.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + CorrelationHeader,
		ExposeHeaders: CorrelationHeader + ", Content-Disposition",
		AllowMethods:  "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))
}
