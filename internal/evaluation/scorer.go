package evaluation

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

// Result is a validated evaluation of one submission. Matched and missing
// keywords partition the reference set exactly.
type Result struct {
	MatchedKeywords     []string     `json:"matched_keywords"`
	MissingKeywords     []string     `json:"missing_keywords"`
	Rubric              RubricScores `json:"rubric_scores"`
	KeywordCoverage     float64      `json:"keyword_coverage"`
	OverallPercentage   float64      `json:"overall_percentage"`
	TotalScore          float64      `json:"total_score"`
	MaxScore            float64      `json:"max_score"`
	IsLowEffort         bool         `json:"is_low_effort"`
	WordCount           int          `json:"word_count"`
	KeywordHitCount     int          `json:"keyword_hit_count"`
	Feedback            string       `json:"feedback"`
	Warning             string       `json:"warning,omitempty"`
	Strengths           []string     `json:"strengths,omitempty"`
	AreasForImprovement []string     `json:"areas_for_improvement,omitempty"`
	Model               string       `json:"model"`
}

// ScoreInput is everything the scorer needs for one submission.
type ScoreInput struct {
	Text      string
	Keywords  KeywordSet
	LowEffort LowEffortReport
	// MaxPoints is the assignment's total marks; zero uses the scheme default.
	MaxPoints float64
}

// SubmissionScorer asks the LLM to grade a submission and validates the reply.
type SubmissionScorer struct {
	llm       ai.Completer
	scheme    ScoringScheme
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewSubmissionScorer builds a scorer using scheme to compute totals.
func NewSubmissionScorer(llm ai.Completer, scheme ScoringScheme, logger zerolog.Logger) *SubmissionScorer {
	return &SubmissionScorer{
		llm:       llm,
		scheme:    scheme,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "submission_scorer").Logger(),
		tracer:    otel.Tracer("github.com/noah-isme/grade-sanchalaak/internal/evaluation"),
	}
}

// Scheme returns the scoring scheme in use.
func (s *SubmissionScorer) Scheme() ScoringScheme {
	return s.scheme
}

// Score evaluates one submission. The low-effort flag is taken from the input
// and never from the model.
func (s *SubmissionScorer) Score(ctx context.Context, in ScoreInput) (Result, error) {
	if strings.TrimSpace(in.Text) == "" {
		return Result{}, ErrEmptySubmission
	}

	ctx, span := s.tracer.Start(ctx, "evaluation.score_submission", trace.WithAttributes(
		attribute.Int("keywords.count", in.Keywords.Len()),
		attribute.Int("submission.words", in.LowEffort.WordCount),
		attribute.Bool("submission.low_effort", in.LowEffort.IsLowEffort),
	))
	defer span.End()

	raw, err := s.llm.Complete(ctx, ai.CompletionRequest{
		Role:   ai.RoleEvaluate,
		System: evaluationSystemPrompt(),
		Prompt: evaluationUserPrompt(in.Text, in.Keywords, in.LowEffort),
		JSON:   true,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, fmt.Errorf("score submission: %w", err)
	}

	payload, err := ParseEvaluation(raw)
	if err != nil {
		s.logger.Warn().Err(err).Str("raw", truncate(raw, 500)).Msg("evaluation response unreadable")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Result{}, err
	}

	result := s.Reconcile(payload, in)
	result.Model = s.llm.Name()
	span.SetAttributes(
		attribute.Float64("result.total_score", result.TotalScore),
		attribute.Float64("result.keyword_coverage", result.KeywordCoverage),
	)
	return result, nil
}

// Reconcile validates a parsed payload against the reference keywords and
// computes the derived fields.
func (s *SubmissionScorer) Reconcile(payload EvaluationPayload, in ScoreInput) Result {
	matched := make(map[string]struct{}, len(payload.MatchedKeywords))
	discarded := 0
	for _, keyword := range payload.MatchedKeywords {
		canonical, ok := in.Keywords.Lookup(keyword)
		if !ok {
			discarded++
			continue
		}
		matched[canonical] = struct{}{}
	}
	for _, keyword := range payload.MissingKeywords {
		if !in.Keywords.Contains(keyword) {
			discarded++
		}
	}
	if discarded > 0 {
		s.logger.Debug().Int("discarded", discarded).Msg("dropped keywords outside the reference set")
	}

	result := Result{
		MatchedKeywords: make([]string, 0, len(matched)),
		MissingKeywords: make([]string, 0, in.Keywords.Len()-len(matched)),
		IsLowEffort:     in.LowEffort.IsLowEffort,
		WordCount:       in.LowEffort.WordCount,
		KeywordHitCount: in.LowEffort.KeywordHitCount,
		Warning:         in.LowEffort.Warning(),
	}
	for _, keyword := range in.Keywords.items {
		if _, ok := matched[keyword]; ok {
			result.MatchedKeywords = append(result.MatchedKeywords, keyword)
		} else {
			result.MissingKeywords = append(result.MissingKeywords, keyword)
		}
	}

	if in.Keywords.Len() > 0 {
		result.KeywordCoverage = roundTo(100*float64(len(result.MatchedKeywords))/float64(in.Keywords.Len()), 2)
	}

	result.Rubric = RubricScores{
		ContentQuality:        clampPercent(float64(payload.RubricScores.ContentQuality)),
		StructureOrganization: clampPercent(float64(payload.RubricScores.StructureOrganization)),
		CriticalThinking:      clampPercent(float64(payload.RubricScores.CriticalThinking)),
	}

	overall := s.scheme.OverallPercentage(result.KeywordCoverage, result.Rubric, in.Keywords.Len() > 0, float64(payload.OverallScore))
	result.OverallPercentage = roundTo(overall, 2)
	result.MaxScore = s.scheme.MaxPoints(in.MaxPoints)
	result.TotalScore = s.scheme.TotalScore(overall, result.MaxScore)

	result.Feedback = s.clean(payload.Feedback)
	if result.Feedback == "" {
		result.Feedback = fmt.Sprintf("Covered %d of %d reference keywords.", len(result.MatchedKeywords), in.Keywords.Len())
	}
	result.Strengths = s.cleanAll(payload.Strengths)
	result.AreasForImprovement = s.cleanAll(payload.AreasForImprovement)

	return result
}

func (s *SubmissionScorer) clean(value string) string {
	return strings.TrimSpace(html.UnescapeString(s.sanitizer.Sanitize(value)))
}

func (s *SubmissionScorer) cleanAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, value := range values {
		if cleaned := s.clean(value); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
