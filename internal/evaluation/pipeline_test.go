package evaluation

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

const (
	mlProblem = "Explain how neural networks are trained with gradient descent and backpropagation, " +
		"and how deep learning practitioners detect overfitting in machine learning models."

	mlKeywordReply = "Sure, here are the keywords:\n```json\n" +
		`["Machine Learning", "Neural Networks", "Deep Learning", "machine learning", "Gradient Descent", "Backpropagation", "Overfitting"]` +
		"\n```"

	keywordListAnswer = "Machine Learning, Neural Networks, Deep Learning, Gradient Descent, Backpropagation, Overfitting"
	proseAnswer       = "Training neural networks is an optimisation problem. Gradient descent moves the weights against " +
		"the loss gradient in small steps, and a validation split shows when the model starts overfitting so training can stop early."
	unluckyAnswer = "Regularisation keeps models general by penalising large weights during training."
)

func mlCompleter() *stubCompleter {
	return &stubCompleter{reply: func(req ai.CompletionRequest) (string, error) {
		if req.Role == ai.RoleExtract {
			return mlKeywordReply, nil
		}
		switch {
		case strings.Contains(req.Prompt, "Backpropagation, Overfitting"):
			return "Evaluation follows.\n```json\n" + `{
				"matched_keywords": ["machine learning", "Neural Networks", "Deep Learning", "Gradient Descent", "Backpropagation", "Overfitting"],
				"missing_keywords": [],
				"rubric_scores": {"content_quality": 10, "structure_organization": 10, "critical_thinking": 10},
				"overall_score": 15,
				"feedback": "This is a list of terms without explanation."
			}` + "\n```", nil
		case strings.Contains(req.Prompt, "validation split"):
			return `{
				"matched_keywords": ["neural networks", "Gradient Descent", "overfitting", "Quantum Computing"],
				"missing_keywords": ["Machine Learning"],
				"rubric_scores": {"content_quality": 90, "structure_organization": "90", "critical_thinking": 90},
				"overall_score": 80,
				"feedback": "Clear explanation of the training loop."
			}`, nil
		default:
			return "", &ai.UpstreamError{Reason: ai.ReasonQuotaExhausted, Provider: "stub", Message: "quota exceeded"}
		}
	}}
}

func TestGradingPipelineEndToEnd(t *testing.T) {
	llm := mlCompleter()
	extractor := NewKeywordExtractor(llm, DefaultExtractorConfig(), zerolog.Nop())

	keywords, err := extractor.Extract(context.Background(), mlProblem)
	require.NoError(t, err)
	require.GreaterOrEqual(t, keywords.Len(), 5)
	require.Equal(t, []string{"Machine Learning", "Neural Networks", "Deep Learning", "Gradient Descent", "Backpropagation", "Overfitting"}, keywords.Items())

	scorer := NewSubmissionScorer(llm, DefaultScoringScheme(), zerolog.Nop())
	runner := NewBatchRunner(scorer, DefaultLowEffortDetector(), BatchConfig{Concurrency: 3, MaxAttempts: 3}, zerolog.Nop())

	results := runner.Run(context.Background(), BatchRequest{
		Keywords:  keywords,
		MaxPoints: 50,
		Items:     batchItems(keywordListAnswer, proseAnswer, unluckyAnswer),
	}, nil)

	listed, ok := results.Get(1)
	require.True(t, ok)
	require.True(t, listed.Succeeded())
	require.True(t, listed.Result.IsLowEffort)
	require.NotEmpty(t, listed.Result.Warning)
	require.Len(t, listed.Result.MatchedKeywords, keywords.Len())
	require.Empty(t, listed.Result.MissingKeywords)
	require.Equal(t, 23.0, listed.Result.TotalScore)

	prose, ok := results.Get(2)
	require.True(t, ok)
	require.True(t, prose.Succeeded())
	require.False(t, prose.Result.IsLowEffort)
	require.Equal(t, []string{"Neural Networks", "Gradient Descent", "Overfitting"}, prose.Result.MatchedKeywords)
	require.Equal(t, []string{"Machine Learning", "Deep Learning", "Backpropagation"}, prose.Result.MissingKeywords)
	require.Equal(t, 37.0, prose.Result.TotalScore)

	failed, ok := results.Get(3)
	require.True(t, ok)
	require.False(t, failed.Succeeded())
	upstream, isUpstream := ai.AsUpstreamError(failed.Err)
	require.True(t, isUpstream)
	require.Equal(t, ai.ReasonQuotaExhausted, upstream.Reason)

	// One extraction plus one call per submission: quota errors are not retried.
	require.Equal(t, 4, llm.callCount())

	report := results.Report()
	require.Equal(t, 3, report.Summary.Total)
	require.Equal(t, 2, report.Summary.Count)
	require.Equal(t, 1, report.Summary.FailedCount)
	require.Equal(t, 1, report.Summary.LowEffortCount)
	require.Equal(t, 30.0, report.Summary.AverageScore)
	require.Equal(t, []uint{1, 2, 3}, []uint{report.Rows[0].SubmissionID, report.Rows[1].SubmissionID, report.Rows[2].SubmissionID})
	require.NotEmpty(t, report.Rows[2].Error)
}

func TestKeywordExtractorKeepsFirstSeenCasing(t *testing.T) {
	extractor := NewKeywordExtractor(replyWith(`["API", "api", "Rest"]`), ExtractorConfig{MinKeywords: 2}, zerolog.Nop())

	keywords, err := extractor.Extract(context.Background(), "Design a REST API for a lending library.")
	require.NoError(t, err)
	require.Equal(t, []string{"API", "Rest"}, keywords.Items())
	require.Equal(t, 2, keywords.Len())
}

func TestAggregateAveragesSuccessfulScores(t *testing.T) {
	outcomes := make([]Outcome, 0, 4)
	for i, score := range []float64{20, 30, 40} {
		outcomes = append(outcomes, Outcome{SubmissionID: uint(i + 1), Result: &Result{TotalScore: score, MaxScore: 50}})
	}
	outcomes = append(outcomes, Outcome{SubmissionID: 4, Err: ErrEmptySubmission})

	report := Aggregate(outcomes)
	require.Equal(t, 30.0, report.Summary.AverageScore)
	require.Equal(t, 3, report.Summary.Count)
	require.Equal(t, 1, report.Summary.FailedCount)
}
