package ai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// ErrUpstreamUnavailable is matched by every *UpstreamError via errors.Is.
var ErrUpstreamUnavailable = errors.New("llm upstream unavailable")

// UpstreamReason categorises why a completion request failed.
type UpstreamReason string

const (
	ReasonRateLimit      UpstreamReason = "rate_limit"
	ReasonQuotaExhausted UpstreamReason = "quota_exhausted"
	ReasonAuth           UpstreamReason = "auth"
	ReasonServerError    UpstreamReason = "server_error"
	ReasonNetwork        UpstreamReason = "network"
	ReasonNotConfigured  UpstreamReason = "not_configured"
	ReasonInvalidRequest UpstreamReason = "invalid_request"
	ReasonUnknown        UpstreamReason = "unknown"
)

// Retryable reports whether repeating the same request later may succeed.
func (r UpstreamReason) Retryable() bool {
	switch r {
	case ReasonRateLimit, ReasonServerError, ReasonNetwork:
		return true
	default:
		return false
	}
}

// UserMessage is the text shown to teachers when a request fails for this reason.
func (r UpstreamReason) UserMessage() string {
	switch r {
	case ReasonRateLimit:
		return "Rate limit exceeded. Please try again in a moment."
	case ReasonQuotaExhausted:
		return "AI credits depleted. Please add credits to continue."
	case ReasonAuth:
		return "The AI service rejected its credentials. Please contact support."
	case ReasonNotConfigured:
		return "AI service is not configured. Please contact support."
	case ReasonServerError:
		return "The AI service is temporarily unavailable. Please try again later."
	case ReasonNetwork:
		return "Could not reach the AI service. Please try again."
	case ReasonInvalidRequest:
		return "The AI service rejected the request. Please contact support."
	default:
		return "The AI request failed. Please try again."
	}
}

// UpstreamError describes a failed call to an LLM provider.
type UpstreamError struct {
	Reason    UpstreamReason
	Provider  string
	Model     string
	Status    int
	Code      string
	Message   string
	RequestID string
	Cause     error
}

func (e *UpstreamError) Error() string {
	parts := []string{fmt.Sprintf("[%s]", e.Reason)}
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Model != "" {
		parts = append(parts, "model="+e.Model)
	}
	if e.Status != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.Status))
	}
	if e.Code != "" {
		parts = append(parts, "code="+e.Code)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *UpstreamError) Unwrap() error {
	return e.Cause
}

// Is lets callers match any upstream failure against ErrUpstreamUnavailable.
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstreamUnavailable
}

// Retryable reports whether the failure is transient.
func (e *UpstreamError) Retryable() bool {
	return e.Reason.Retryable()
}

// UserMessage returns the human readable explanation for the failure.
func (e *UpstreamError) UserMessage() string {
	return e.Reason.UserMessage()
}

// NotConfiguredError is returned by completers built without credentials.
func NotConfiguredError(provider string) *UpstreamError {
	return &UpstreamError{
		Reason:   ReasonNotConfigured,
		Provider: provider,
		Message:  "api key is not configured",
	}
}

// AsUpstreamError extracts the *UpstreamError from err, if any.
func AsUpstreamError(err error) (*UpstreamError, bool) {
	var upstream *UpstreamError
	if errors.As(err, &upstream) {
		return upstream, true
	}
	return nil, false
}

func newUpstreamError(provider, model string, cause error) *UpstreamError {
	err := &UpstreamError{
		Reason:   classifyError(cause),
		Provider: provider,
		Model:    model,
		Cause:    cause,
	}
	if cause != nil {
		err.Message = cause.Error()
	}
	return err
}

func (e *UpstreamError) withStatus(status int) *UpstreamError {
	e.Status = status
	if reason := classifyStatusCode(status); reason != ReasonUnknown {
		e.Reason = reason
	}
	return e
}

func (e *UpstreamError) withCode(code string) *UpstreamError {
	e.Code = code
	if reason := classifyErrorCode(code); reason != ReasonUnknown {
		e.Reason = reason
	}
	return e
}

func wrapOpenAIError(model string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsUpstreamError(err); ok {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		upstream := newUpstreamError(ProviderOpenAI, model, err).withStatus(apiErr.HTTPStatusCode)
		if apiErr.Message != "" {
			upstream.Message = apiErr.Message
		}
		if apiErr.Code != nil {
			upstream = upstream.withCode(fmt.Sprint(apiErr.Code))
		}
		if apiErr.Type != "" && upstream.Code == "" {
			upstream = upstream.withCode(apiErr.Type)
		}
		return upstream
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return newUpstreamError(ProviderOpenAI, model, err).withStatus(reqErr.HTTPStatusCode)
	}

	return newUpstreamError(ProviderOpenAI, model, err)
}

func classifyStatusCode(status int) UpstreamReason {
	switch {
	case status == http.StatusPaymentRequired:
		return ReasonQuotaExhausted
	case status == http.StatusTooManyRequests:
		return ReasonRateLimit
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return ReasonAuth
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		return ReasonNetwork
	case status >= http.StatusInternalServerError:
		return ReasonServerError
	case status == http.StatusBadRequest, status == http.StatusNotFound, status == http.StatusUnprocessableEntity:
		return ReasonInvalidRequest
	default:
		return ReasonUnknown
	}
}

func classifyErrorCode(code string) UpstreamReason {
	switch strings.ToLower(strings.TrimSpace(code)) {
	case "insufficient_quota", "billing_hard_limit_reached", "billing_error":
		return ReasonQuotaExhausted
	case "rate_limit_exceeded", "rate_limit_error":
		return ReasonRateLimit
	case "invalid_api_key", "authentication_error", "permission_error":
		return ReasonAuth
	case "overloaded_error", "api_error", "server_error":
		return ReasonServerError
	default:
		return ReasonUnknown
	}
}

func classifyError(err error) UpstreamReason {
	if err == nil {
		return ReasonUnknown
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReasonNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return ReasonNetwork
	}

	message := strings.ToLower(err.Error())
	switch {
	case strings.Contains(message, "insufficient_quota"), strings.Contains(message, "credit"):
		return ReasonQuotaExhausted
	case strings.Contains(message, "rate limit"), strings.Contains(message, "too many requests"):
		return ReasonRateLimit
	case strings.Contains(message, "unauthorized"), strings.Contains(message, "invalid api key"):
		return ReasonAuth
	case strings.Contains(message, "timeout"), strings.Contains(message, "connection refused"), strings.Contains(message, "no such host"):
		return ReasonNetwork
	default:
		return ReasonUnknown
	}
}
