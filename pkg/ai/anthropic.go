package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// AnthropicCompleter implements Completer with the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewAnthropicCompleter constructs a completer backed by the official SDK.
// SDK level retries default to zero; the batch runner owns retry policy.
func NewAnthropicCompleter(cfg Config) (*AnthropicCompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	options := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(max(cfg.MaxRetries, 0)),
	}
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, option.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicCompleter{
		client: anthropic.NewClient(options...),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/grade-sanchalaak/pkg/ai/anthropic"),
		logger: logger.With().Str("component", "anthropic_completer").Logger(),
	}, nil
}

func (c *AnthropicCompleter) Name() string {
	return ProviderAnthropic + ":" + c.cfg.Model
}

// Complete sends the prompt pair and concatenates every text block of the reply.
func (c *AnthropicCompleter) Complete(parent context.Context, req CompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "anthropic.complete", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.String("role", string(req.Role)),
	))
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.cfg.Model),
		MaxTokens:   int64(c.cfg.MaxTokens),
		Temperature: anthropic.Float(float64(c.cfg.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	start := time.Now()
	message, err := c.client.Messages.New(ctx, params)
	observeCompletion(ProviderAnthropic, c.cfg.Model, req.Role, start)
	if err != nil {
		wrapped := wrapAnthropicError(c.cfg.Model, err)
		recordFailure(span, ProviderAnthropic, c.cfg.Model, req.Role, wrapped)
		c.logger.Warn().Err(wrapped).Str("role", string(req.Role)).Msg("completion failed")
		return "", wrapped
	}

	var builder strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			builder.WriteString(block.Text)
		}
	}

	if builder.Len() == 0 {
		wrapped := &UpstreamError{
			Reason:   ReasonServerError,
			Provider: ProviderAnthropic,
			Model:    c.cfg.Model,
			Cause:    errors.New("no text content returned from anthropic"),
		}
		recordFailure(span, ProviderAnthropic, c.cfg.Model, req.Role, wrapped)
		return "", wrapped
	}

	return builder.String(), nil
}

type anthropicErrorPayload struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func wrapAnthropicError(model string, err error) error {
	if _, ok := AsUpstreamError(err); ok {
		return err
	}

	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) {
		return newUpstreamError(ProviderAnthropic, model, err)
	}

	upstream := newUpstreamError(ProviderAnthropic, model, err).withStatus(apiErr.StatusCode)
	upstream.RequestID = apiErr.RequestID

	if raw := apiErr.RawJSON(); raw != "" {
		var payload anthropicErrorPayload
		if json.Unmarshal([]byte(raw), &payload) == nil {
			if payload.Error.Message != "" {
				upstream.Message = payload.Error.Message
			}
			if payload.Error.Type != "" {
				upstream = upstream.withCode(payload.Error.Type)
			}
			if payload.RequestID != "" {
				upstream.RequestID = payload.RequestID
			}
		}
	}

	return upstream
}
