package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OpenAICompleter implements Completer against any OpenAI compatible chat
// completion endpoint.
type OpenAICompleter struct {
	client *openai.Client
	cfg    Config
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAICompleter builds a completer using the provided configuration.
func NewOpenAICompleter(cfg Config) (*OpenAICompleter, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}

	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}

	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 2048
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		config.BaseURL = strings.TrimRight(base, "/")
	}

	return &OpenAICompleter{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		tracer: otel.Tracer("github.com/noah-isme/grade-sanchalaak/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_completer").Logger(),
	}, nil
}

func (c *OpenAICompleter) Name() string {
	return ProviderOpenAI + ":" + c.cfg.Model
}

// Complete sends the prompt pair and returns the first choice's content.
func (c *OpenAICompleter) Complete(parent context.Context, req CompletionRequest) (string, error) {
	ctx, span := c.tracer.Start(parent, "openai.complete", trace.WithAttributes(
		attribute.String("model", c.cfg.Model),
		attribute.String("role", string(req.Role)),
	))
	defer span.End()

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	request := openai.ChatCompletionRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.JSON {
		request.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, request)
	observeCompletion(ProviderOpenAI, c.cfg.Model, req.Role, start)
	if err != nil {
		wrapped := wrapOpenAIError(c.cfg.Model, err)
		recordFailure(span, ProviderOpenAI, c.cfg.Model, req.Role, wrapped)
		c.logger.Warn().Err(wrapped).Str("role", string(req.Role)).Msg("completion failed")
		return "", wrapped
	}

	if len(resp.Choices) == 0 {
		wrapped := &UpstreamError{
			Reason:   ReasonServerError,
			Provider: ProviderOpenAI,
			Model:    c.cfg.Model,
			Cause:    errors.New("no choices returned from openai"),
		}
		recordFailure(span, ProviderOpenAI, c.cfg.Model, req.Role, wrapped)
		return "", wrapped
	}

	span.SetAttributes(attribute.Int("usage.total_tokens", resp.Usage.TotalTokens))
	return resp.Choices[0].Message.Content, nil
}
