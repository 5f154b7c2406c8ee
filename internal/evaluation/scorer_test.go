package evaluation

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

func TestReconcileEnforcesPartition(t *testing.T) {
	scorer := NewSubmissionScorer(replyWith(""), DefaultScoringScheme(), zerolog.Nop())
	payload := EvaluationPayload{
		MatchedKeywords: []string{"indexing", "Sharding", "primary key", "Indexing"},
		MissingKeywords: []string{"Normalization", "INDEXING", "Event Sourcing"},
		RubricScores:    RubricPayload{ContentQuality: 80, StructureOrganization: 150, CriticalThinking: -5},
		OverallScore:    99,
		Feedback:        "<b>Nice</b> work",
	}

	result := scorer.Reconcile(payload, ScoreInput{Text: "text", Keywords: testKeywords(), MaxPoints: 20})

	require.Equal(t, []string{"Primary Key", "Indexing"}, result.MatchedKeywords)
	require.Equal(t, []string{"Normalization", "Foreign Key", "Transactions"}, result.MissingKeywords)
	require.Equal(t, 40.0, result.KeywordCoverage)
	require.Equal(t, RubricScores{ContentQuality: 80, StructureOrganization: 100, CriticalThinking: 0}, result.Rubric)
	require.InDelta(t, 55, result.OverallPercentage, 1e-9)
	require.Equal(t, 20.0, result.MaxScore)
	require.Equal(t, 11.0, result.TotalScore)
	require.Equal(t, "Nice work", result.Feedback)
}

func TestReconcileFallbackFeedbackAndEmptyKeywords(t *testing.T) {
	scorer := NewSubmissionScorer(replyWith(""), DefaultScoringScheme(), zerolog.Nop())
	payload := EvaluationPayload{
		MatchedKeywords: []string{"anything"},
		RubricScores:    RubricPayload{ContentQuality: 80, StructureOrganization: 60, CriticalThinking: 40},
		Feedback:        "   ",
	}

	result := scorer.Reconcile(payload, ScoreInput{Text: "text"})

	require.Empty(t, result.MatchedKeywords)
	require.Empty(t, result.MissingKeywords)
	require.Zero(t, result.KeywordCoverage)
	require.InDelta(t, 65, result.OverallPercentage, 1e-9)
	require.Equal(t, 100.0, result.MaxScore)
	require.Equal(t, 65.0, result.TotalScore)
	require.Equal(t, "Covered 0 of 0 reference keywords.", result.Feedback)
}

func TestReconcileReportedFormula(t *testing.T) {
	scheme := DefaultScoringScheme()
	scheme.Formula = FormulaReported
	scorer := NewSubmissionScorer(replyWith(""), scheme, zerolog.Nop())

	result := scorer.Reconcile(EvaluationPayload{OverallScore: 142, Feedback: "ok"}, ScoreInput{Text: "x", Keywords: testKeywords(), MaxPoints: 10})

	require.Equal(t, 100.0, result.OverallPercentage)
	require.Equal(t, 10.0, result.TotalScore)
}

func TestScoreCallsLLMAndCarriesLowEffort(t *testing.T) {
	llm := replyWith(`{
		"matched_keywords": ["Normalization", "Indexing", "Primary Key"],
		"missing_keywords": ["Foreign Key", "Transactions"],
		"rubric_scores": {"content_quality": 20, "structure_organization": 20, "critical_thinking": 10},
		"overall_score": 30,
		"feedback": "List of terms only.",
		"areas_for_improvement": ["Explain each concept", ""]
	}`)
	llm.modelID = "gpt-4o-mini"
	scorer := NewSubmissionScorer(llm, DefaultScoringScheme(), zerolog.Nop())

	text := "Normalization indexing primary key"
	keywords := testKeywords()
	report := DefaultLowEffortDetector().Detect(text, keywords)

	result, err := scorer.Score(context.Background(), ScoreInput{Text: text, Keywords: keywords, LowEffort: report})
	require.NoError(t, err)
	require.True(t, result.IsLowEffort)
	require.NotEmpty(t, result.Warning)
	require.Equal(t, 4, result.WordCount)
	require.Equal(t, 60.0, result.KeywordCoverage)
	require.Equal(t, []string{"Explain each concept"}, result.AreasForImprovement)
	require.Equal(t, "gpt-4o-mini", result.Model)

	require.Equal(t, 1, llm.callCount())
	call := llm.calls[0]
	require.Equal(t, ai.RoleEvaluate, call.Role)
	require.True(t, call.JSON)
	require.Contains(t, call.Prompt, `"Normalization"`)
	require.Contains(t, call.Prompt, "keyword list without explanation")
}

func TestScoreEmptySubmission(t *testing.T) {
	llm := replyWith("{}")
	scorer := NewSubmissionScorer(llm, DefaultScoringScheme(), zerolog.Nop())

	_, err := scorer.Score(context.Background(), ScoreInput{Text: "  ", Keywords: testKeywords()})
	require.ErrorIs(t, err, ErrEmptySubmission)
	require.Zero(t, llm.callCount())
}

func TestScoreMalformedAndUpstreamErrors(t *testing.T) {
	scorer := NewSubmissionScorer(replyWith("not json at all"), DefaultScoringScheme(), zerolog.Nop())
	_, err := scorer.Score(context.Background(), ScoreInput{Text: "answer", Keywords: testKeywords()})
	require.ErrorIs(t, err, ErrMalformedResponse)

	upstream := &ai.UpstreamError{Reason: ai.ReasonRateLimit, Provider: ai.ProviderAnthropic}
	scorer = NewSubmissionScorer(failWith(upstream), DefaultScoringScheme(), zerolog.Nop())
	_, err = scorer.Score(context.Background(), ScoreInput{Text: "answer", Keywords: testKeywords()})
	require.ErrorIs(t, err, ai.ErrUpstreamUnavailable)
	require.Equal(t, "Rate limit exceeded. Please try again in a moment.", UserMessage(err))
}
