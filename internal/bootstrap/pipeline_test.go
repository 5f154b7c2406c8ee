package bootstrap

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/grade-sanchalaak/internal/config"
	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
)

func TestNewPipelineWithoutKeyIsUnconfigured(t *testing.T) {
	cfg := config.Config{
		AI:      config.AIConfig{Provider: "openai"},
		Scoring: config.ScoringConfig{Formula: "weighted"},
	}

	pipeline, err := NewPipeline(cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = pipeline.Extractor.Extract(context.Background(), "Design a normalised schema for a library.")
	upstream, ok := ai.AsUpstreamError(err)
	require.True(t, ok)
	require.Equal(t, ai.ReasonNotConfigured, upstream.Reason)
}

func TestAssembleAppliesConfig(t *testing.T) {
	cfg := config.Config{
		Scoring:   config.ScoringConfig{Formula: "reported", DefaultMaxPoints: 50},
		LowEffort: config.LowEffortConfig{WordFloor: 40, DensityCeiling: 0.5},
	}

	pipeline, err := Assemble(cfg, ai.Unconfigured(ai.ProviderOpenAI), zerolog.Nop())
	require.NoError(t, err)

	require.Equal(t, evaluation.FormulaReported, pipeline.Scorer.Scheme().Formula)
	require.Equal(t, evaluation.DefaultWeights(), pipeline.Scorer.Scheme().Weights)
	require.Equal(t, 50.0, pipeline.Scorer.Scheme().DefaultMaxPoints)
	require.Equal(t, 40, pipeline.Detector.WordFloor)
	require.Equal(t, 0.5, pipeline.Detector.DensityCeiling)
}

func TestAssembleRejectsUnknownFormula(t *testing.T) {
	_, err := Assemble(config.Config{Scoring: config.ScoringConfig{Formula: "median"}}, ai.Unconfigured(ai.ProviderOpenAI), zerolog.Nop())
	require.ErrorContains(t, err, "median")
}
