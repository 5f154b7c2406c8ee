package evaluation

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

// ExtractorConfig bounds the size of an extracted keyword set.
type ExtractorConfig struct {
	// MinKeywords is the floor below which extraction fails.
	MinKeywords int
	TargetMin   int
	TargetMax   int
}

// DefaultExtractorConfig asks for 30 to 50 keywords and rejects fewer than 5.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{MinKeywords: 5, TargetMin: 30, TargetMax: 50}
}

func (c ExtractorConfig) normalized() ExtractorConfig {
	defaults := DefaultExtractorConfig()
	if c.TargetMax <= 0 {
		c.TargetMax = defaults.TargetMax
	}
	if c.TargetMin <= 0 {
		c.TargetMin = min(defaults.TargetMin, c.TargetMax)
	}
	if c.TargetMin > c.TargetMax {
		c.TargetMin, c.TargetMax = c.TargetMax, c.TargetMin
	}
	if c.MinKeywords <= 0 {
		c.MinKeywords = defaults.MinKeywords
	}
	c.MinKeywords = min(c.MinKeywords, c.TargetMax)
	return c
}

// KeywordExtractor turns a problem statement into a keyword set using the LLM.
type KeywordExtractor struct {
	llm    ai.Completer
	cfg    ExtractorConfig
	logger zerolog.Logger
	tracer trace.Tracer
}

// NewKeywordExtractor builds an extractor; zero config fields take defaults.
func NewKeywordExtractor(llm ai.Completer, cfg ExtractorConfig, logger zerolog.Logger) *KeywordExtractor {
	return &KeywordExtractor{
		llm:    llm,
		cfg:    cfg.normalized(),
		logger: logger.With().Str("component", "keyword_extractor").Logger(),
		tracer: otel.Tracer("github.com/noah-isme/grade-sanchalaak/internal/evaluation"),
	}
}

// Config returns the effective configuration.
func (e *KeywordExtractor) Config() ExtractorConfig {
	return e.cfg
}

// Model names the completer backing the extractor.
func (e *KeywordExtractor) Model() string {
	return e.llm.Name()
}

// Extract asks the LLM for keywords and post-processes the reply.
func (e *KeywordExtractor) Extract(ctx context.Context, problem string) (KeywordSet, error) {
	problem = strings.TrimSpace(problem)
	if problem == "" {
		return KeywordSet{}, ErrEmptyProblemStatement
	}

	ctx, span := e.tracer.Start(ctx, "evaluation.extract_keywords", trace.WithAttributes(
		attribute.Int("problem.length", len(problem)),
	))
	defer span.End()

	raw, err := e.llm.Complete(ctx, ai.CompletionRequest{
		Role:   ai.RoleExtract,
		System: extractionSystemPrompt(e.cfg),
		Prompt: extractionUserPrompt(problem),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return KeywordSet{}, fmt.Errorf("extract keywords: %w", err)
	}

	values, err := ParseKeywords(raw)
	if err != nil {
		e.logger.Warn().Err(err).Str("raw", truncate(raw, 500)).Msg("keyword response unreadable")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return KeywordSet{}, err
	}

	set := NewKeywordSet(values).Truncate(e.cfg.TargetMax)
	span.SetAttributes(attribute.Int("keywords.count", set.Len()))

	if set.Len() < e.cfg.MinKeywords {
		err := &InsufficientKeywordsError{Got: set.Len(), Min: e.cfg.MinKeywords}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return KeywordSet{}, err
	}

	e.logger.Debug().Int("keywords", set.Len()).Int("reported", len(values)).Msg("keywords extracted")
	return set, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
