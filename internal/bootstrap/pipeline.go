// Package bootstrap assembles the grading pipeline from configuration for
// both the API server and the offline CLI.
package bootstrap

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/config"
	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/pkg/ai"
	"github.com/noah-isme/grade-sanchalaak/pkg/fileparser"
)

// Pipeline holds the configured grading components.
type Pipeline struct {
	LLM       ai.Completer
	Extractor *evaluation.KeywordExtractor
	Detector  evaluation.LowEffortDetector
	Scorer    *evaluation.SubmissionScorer
	Runner    *evaluation.BatchRunner
	Parser    *fileparser.Parser
}

// NewPipeline builds every component from cfg.
func NewPipeline(cfg config.Config, logger zerolog.Logger) (*Pipeline, error) {
	llm, err := ai.New(ai.Config{
		Provider:    cfg.AI.Provider,
		APIKey:      cfg.AI.APIKey(),
		Model:       cfg.AI.Model,
		BaseURL:     cfg.AI.BaseURL,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build llm client: %w", err)
	}

	return Assemble(cfg, llm, logger)
}

// Assemble wires the components around an existing completer.
func Assemble(cfg config.Config, llm ai.Completer, logger zerolog.Logger) (*Pipeline, error) {
	formula, err := evaluation.ParseFormula(cfg.Scoring.Formula)
	if err != nil {
		return nil, err
	}

	weights := evaluation.Weights{
		Coverage:              cfg.Scoring.WeightCoverage,
		ContentQuality:        cfg.Scoring.WeightContent,
		StructureOrganization: cfg.Scoring.WeightStructure,
		CriticalThinking:      cfg.Scoring.WeightCriticalThought,
	}
	if weights.Coverage+weights.ContentQuality+weights.StructureOrganization+weights.CriticalThinking <= 0 {
		weights = evaluation.DefaultWeights()
	}

	detector := evaluation.DefaultLowEffortDetector()
	if cfg.LowEffort.WordFloor > 0 {
		detector.WordFloor = cfg.LowEffort.WordFloor
	}
	if cfg.LowEffort.DensityCeiling > 0 {
		detector.DensityCeiling = cfg.LowEffort.DensityCeiling
	}

	scorer := evaluation.NewSubmissionScorer(llm, evaluation.ScoringScheme{
		Formula:          formula,
		Weights:          weights,
		DefaultMaxPoints: cfg.Scoring.DefaultMaxPoints,
	}, logger)

	return &Pipeline{
		LLM: llm,
		Extractor: evaluation.NewKeywordExtractor(llm, evaluation.ExtractorConfig{
			MinKeywords: cfg.Keywords.Min,
			TargetMin:   cfg.Keywords.TargetMin,
			TargetMax:   cfg.Keywords.TargetMax,
		}, logger),
		Detector: detector,
		Scorer:   scorer,
		Runner: evaluation.NewBatchRunner(scorer, detector, evaluation.BatchConfig{
			Concurrency: cfg.Batch.Concurrency,
			MaxAttempts: cfg.Batch.RetryAttempts,
			RetryDelay:  cfg.Batch.RetryDelay,
		}, logger),
		Parser: fileparser.New(cfg.UploadMaxSizeMB),
	}, nil
}
