package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Supported provider identifiers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Role names the pipeline stage a completion belongs to.
type Role string

const (
	RoleExtract  Role = "extract"
	RoleEvaluate Role = "evaluate"
)

// CompletionRequest carries one prompt pair for the LLM.
type CompletionRequest struct {
	Role   Role
	System string
	Prompt string
	// JSON asks providers that support it to constrain output to a JSON object.
	JSON bool
}

// Completer sends prompts to an LLM and returns its raw text reply.
// Failures are reported as *UpstreamError.
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Name() string
}

// Config defines connection settings shared by every provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	MaxTokens   int
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
	Logger      zerolog.Logger
}

// New builds the completer for cfg.Provider. A missing API key yields a
// completer whose every call fails with ReasonNotConfigured.
func New(cfg Config) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderOpenAI
	}

	if strings.TrimSpace(cfg.APIKey) == "" {
		switch provider {
		case ProviderOpenAI, ProviderAnthropic:
			cfg.Logger.Warn().Str("provider", provider).Msg("llm api key missing, evaluation disabled")
			return Unconfigured(provider), nil
		}
	}

	switch provider {
	case ProviderOpenAI:
		return NewOpenAICompleter(cfg)
	case ProviderAnthropic:
		return NewAnthropicCompleter(cfg)
	default:
		return nil, fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
}

type unconfigured struct {
	provider string
}

// Unconfigured returns a Completer that always fails with ReasonNotConfigured.
func Unconfigured(provider string) Completer {
	return unconfigured{provider: provider}
}

func (u unconfigured) Complete(context.Context, CompletionRequest) (string, error) {
	return "", NotConfiguredError(u.provider)
}

func (u unconfigured) Name() string {
	return u.provider + ":unconfigured"
}
