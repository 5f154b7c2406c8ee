package evaluation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseKeywords(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "bare array", raw: `["normalization", "indexing"]`, want: []string{"normalization", "indexing"}},
		{name: "fenced", raw: "```json\n[\"joins\", \"views\"]\n```", want: []string{"joins", "views"}},
		{name: "fenced without language", raw: "```\n[\"joins\"]\n```", want: []string{"joins"}},
		{name: "surrounding prose", raw: "Sure, here you go: [\"b-tree\", \"hash index\"] Let me know!", want: []string{"b-tree", "hash index"}},
		{name: "wrapped object", raw: `{"keywords": ["acid", "isolation"]}`, want: []string{"acid", "isolation"}},
		{name: "empty array", raw: `[]`, want: []string{}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseKeywords(tc.raw)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseKeywordsRejectsMalformed(t *testing.T) {
	cases := map[string]string{
		"no json":         "I could not find any keywords.",
		"numbers":         `[1, 2, 3]`,
		"broken":          `["one", "two"`,
		"object no array": `{"terms": ["a"]}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseKeywords(raw)
			require.ErrorIs(t, err, ErrMalformedResponse)

			var malformedErr *MalformedResponseError
			require.True(t, errors.As(err, &malformedErr))
			require.Equal(t, ShapeKeywordArray, malformedErr.Shape)
			require.Equal(t, raw, malformedErr.Raw)
		})
	}
}

func TestParseEvaluation(t *testing.T) {
	raw := "Here is the evaluation:\n```json\n" + `{
		"matched_keywords": ["Indexing"],
		"missing_keywords": ["Transactions"],
		"rubric_scores": {"content_quality": 80, "structure_organization": 70.5, "critical_thinking": "60"},
		"overall_score": 72,
		"feedback": "Solid work.",
		"strengths": ["clear examples"]
	}` + "\n```"

	payload, err := ParseEvaluation(raw)
	require.NoError(t, err)
	require.Equal(t, []string{"Indexing"}, payload.MatchedKeywords)
	require.Equal(t, []string{"Transactions"}, payload.MissingKeywords)
	require.Equal(t, Score(80), payload.RubricScores.ContentQuality)
	require.Equal(t, Score(70.5), payload.RubricScores.StructureOrganization)
	require.Equal(t, Score(60), payload.RubricScores.CriticalThinking)
	require.Equal(t, Score(72), payload.OverallScore)
	require.Equal(t, "Solid work.", payload.Feedback)
	require.Equal(t, []string{"clear examples"}, payload.Strengths)
	require.Nil(t, payload.KeywordCoverage)
}

func TestParseEvaluationAcceptsCamelCaseAndPercentStrings(t *testing.T) {
	raw := `{
		"matchedKeywords": [],
		"missingKeywords": ["Joins"],
		"rubricScores": {"contentQuality": "85%", "structureOrganization": 50, "criticalThinking": 40},
		"overallScore": "61.5 %",
		"feedback": "Needs depth."
	}`

	payload, err := ParseEvaluation(raw)
	require.NoError(t, err)
	require.Equal(t, Score(85), payload.RubricScores.ContentQuality)
	require.Equal(t, Score(61.5), payload.OverallScore)
	require.Equal(t, []string{"Joins"}, payload.MissingKeywords)
}

func TestParseEvaluationRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"no rubric":        `{"matched_keywords": [], "missing_keywords": [], "overall_score": 1, "feedback": ""}`,
		"partial rubric":   `{"matched_keywords": [], "missing_keywords": [], "rubric_scores": {"content_quality": 1}, "overall_score": 1, "feedback": ""}`,
		"array instead":    `["not", "an", "object"]`,
		"non numeric":      `{"matched_keywords": [], "missing_keywords": [], "rubric_scores": {"content_quality": "high", "structure_organization": 1, "critical_thinking": 1}, "overall_score": 1, "feedback": ""}`,
		"plain refusal":    "I am unable to grade this.",
		"trailing garbage": `{"matched_keywords": [] "missing_keywords": []}`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseEvaluation(raw)
			require.ErrorIs(t, err, ErrMalformedResponse)
		})
	}
}

func TestExtractJSONText(t *testing.T) {
	text, ok := ExtractJSONText("prefix {\"a\": {\"b\": 1}} suffix", '{', '}')
	require.True(t, ok)
	require.Equal(t, `{"a": {"b": 1}}`, text)

	_, ok = ExtractJSONText("nothing here", '[', ']')
	require.False(t, ok)

	_, ok = ExtractJSONText("] backwards [", '[', ']')
	require.False(t, ok)
}

func TestToSnakeCase(t *testing.T) {
	require.Equal(t, "matched_keywords", toSnakeCase("matchedKeywords"))
	require.Equal(t, "overall_score", toSnakeCase("overall_score"))
	require.Equal(t, "feedback", toSnakeCase("feedback"))
}
