package evaluation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

func keywordReply(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("%q", fmt.Sprintf("term %d", i+1))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

func TestExtractorConfigNormalization(t *testing.T) {
	cfg := ExtractorConfig{}.normalized()
	require.Equal(t, DefaultExtractorConfig(), cfg)

	swapped := ExtractorConfig{MinKeywords: 3, TargetMin: 20, TargetMax: 10}.normalized()
	require.Equal(t, 10, swapped.TargetMin)
	require.Equal(t, 20, swapped.TargetMax)

	capped := ExtractorConfig{MinKeywords: 40, TargetMin: 5, TargetMax: 8}.normalized()
	require.Equal(t, 8, capped.MinKeywords)
}

func TestExtractReturnsDeduplicatedKeywords(t *testing.T) {
	llm := replyWith("```json\n[\"Normalization\", \"normalization\", \"Indexing\", \"Joins\", \"Views\", \"Triggers\", \"  \"]\n```")
	extractor := NewKeywordExtractor(llm, ExtractorConfig{MinKeywords: 5, TargetMin: 5, TargetMax: 10}, zerolog.Nop())

	set, err := extractor.Extract(context.Background(), "Design a relational schema for a library.")
	require.NoError(t, err)
	require.Equal(t, []string{"Normalization", "Indexing", "Joins", "Views", "Triggers"}, set.Items())

	require.Equal(t, 1, llm.callCount())
	require.Equal(t, ai.RoleExtract, llm.calls[0].Role)
	require.Contains(t, llm.calls[0].Prompt, "Design a relational schema")
	require.Contains(t, llm.calls[0].System, "5-10")
}

func TestExtractTruncatesToTargetMax(t *testing.T) {
	llm := replyWith(keywordReply(60))
	extractor := NewKeywordExtractor(llm, DefaultExtractorConfig(), zerolog.Nop())

	set, err := extractor.Extract(context.Background(), "Explain distributed consensus.")
	require.NoError(t, err)
	require.Equal(t, 50, set.Len())
	require.Equal(t, "term 1", set.Items()[0])
	require.Equal(t, "term 50", set.Items()[49])
}

func TestExtractExactCountPrompt(t *testing.T) {
	llm := replyWith(keywordReply(10))
	extractor := NewKeywordExtractor(llm, ExtractorConfig{MinKeywords: 5, TargetMin: 10, TargetMax: 10}, zerolog.Nop())

	_, err := extractor.Extract(context.Background(), "Describe photosynthesis.")
	require.NoError(t, err)
	require.Contains(t, llm.calls[0].System, "exactly 10")
}

func TestExtractInsufficientKeywords(t *testing.T) {
	llm := replyWith(`["one", "two", "ONE"]`)
	extractor := NewKeywordExtractor(llm, DefaultExtractorConfig(), zerolog.Nop())

	_, err := extractor.Extract(context.Background(), "Short problem.")
	require.ErrorIs(t, err, ErrInsufficientKeywords)

	var insufficient *InsufficientKeywordsError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, 2, insufficient.Got)
	require.Equal(t, 5, insufficient.Min)
	require.Contains(t, UserMessage(err), "more detailed problem statement")
}

func TestExtractMalformedResponse(t *testing.T) {
	extractor := NewKeywordExtractor(replyWith("Sorry, I cannot help."), DefaultExtractorConfig(), zerolog.Nop())

	_, err := extractor.Extract(context.Background(), "Problem")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractEmptyProblemSkipsLLM(t *testing.T) {
	llm := replyWith(keywordReply(10))
	extractor := NewKeywordExtractor(llm, DefaultExtractorConfig(), zerolog.Nop())

	_, err := extractor.Extract(context.Background(), "   \n\t")
	require.ErrorIs(t, err, ErrEmptyProblemStatement)
	require.Zero(t, llm.callCount())
}

func TestExtractPropagatesUpstreamError(t *testing.T) {
	upstream := &ai.UpstreamError{Reason: ai.ReasonQuotaExhausted, Provider: ai.ProviderOpenAI, Message: "insufficient_quota"}
	extractor := NewKeywordExtractor(failWith(upstream), DefaultExtractorConfig(), zerolog.Nop())

	_, err := extractor.Extract(context.Background(), "Problem")
	require.ErrorIs(t, err, ai.ErrUpstreamUnavailable)

	got, ok := ai.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, ai.ReasonQuotaExhausted, got.Reason)
	require.Equal(t, "AI credits depleted. Please add credits to continue.", UserMessage(err))
}
