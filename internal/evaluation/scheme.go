package evaluation

import (
	"fmt"
	"math"
	"strings"
)

// Formula selects how the overall percentage is derived.
type Formula string

const (
	// FormulaWeighted recombines coverage and rubric dimensions locally.
	FormulaWeighted Formula = "weighted"
	// FormulaReported trusts the LLM's overall score after clamping.
	FormulaReported Formula = "reported"
)

// ParseFormula maps a configuration string onto a Formula.
func ParseFormula(value string) (Formula, error) {
	switch Formula(strings.ToLower(strings.TrimSpace(value))) {
	case "", FormulaWeighted:
		return FormulaWeighted, nil
	case FormulaReported:
		return FormulaReported, nil
	default:
		return "", fmt.Errorf("unknown scoring formula %q", value)
	}
}

// Weights are the relative contributions of each dimension in FormulaWeighted.
type Weights struct {
	Coverage              float64
	ContentQuality        float64
	StructureOrganization float64
	CriticalThinking      float64
}

// DefaultWeights mirrors the grading rubric: 40/30/15/15.
func DefaultWeights() Weights {
	return Weights{Coverage: 0.40, ContentQuality: 0.30, StructureOrganization: 0.15, CriticalThinking: 0.15}
}

// RubricScores are the validated rubric dimensions, each within [0, 100].
type RubricScores struct {
	ContentQuality        float64 `json:"content_quality"`
	StructureOrganization float64 `json:"structure_organization"`
	CriticalThinking      float64 `json:"critical_thinking"`
}

// ScoringScheme converts validated fields into an overall percentage and a total score.
type ScoringScheme struct {
	Formula          Formula
	Weights          Weights
	DefaultMaxPoints float64
}

// DefaultScoringScheme uses the weighted formula over 100 points.
func DefaultScoringScheme() ScoringScheme {
	return ScoringScheme{Formula: FormulaWeighted, Weights: DefaultWeights(), DefaultMaxPoints: 100}
}

// MaxPoints returns requested when positive, the scheme default otherwise.
func (s ScoringScheme) MaxPoints(requested float64) float64 {
	if requested > 0 {
		return requested
	}
	if s.DefaultMaxPoints > 0 {
		return s.DefaultMaxPoints
	}
	return 100
}

// OverallPercentage combines coverage and rubric into [0, 100]. Without
// reference keywords the coverage weight drops out of the weighted mean.
func (s ScoringScheme) OverallPercentage(coverage float64, rubric RubricScores, hasKeywords bool, reported float64) float64 {
	if s.Formula == FormulaReported {
		return clampPercent(reported)
	}

	weights := s.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	type term struct{ weight, value float64 }
	terms := []term{
		{math.Max(weights.ContentQuality, 0), rubric.ContentQuality},
		{math.Max(weights.StructureOrganization, 0), rubric.StructureOrganization},
		{math.Max(weights.CriticalThinking, 0), rubric.CriticalThinking},
	}
	if hasKeywords {
		terms = append(terms, term{math.Max(weights.Coverage, 0), coverage})
	}

	var weighted, total float64
	for _, t := range terms {
		weighted += t.weight * clampPercent(t.value)
		total += t.weight
	}
	if total == 0 {
		return 0
	}
	return clampPercent(weighted / total)
}

// TotalScore scales an overall percentage onto maxPoints, rounded to the nearest point.
func (s ScoringScheme) TotalScore(overall, maxPoints float64) float64 {
	maxPoints = s.MaxPoints(maxPoints)
	total := math.Round(clampPercent(overall) / 100 * maxPoints)
	return math.Min(math.Max(total, 0), maxPoints)
}

func clampPercent(value float64) float64 {
	switch {
	case math.IsNaN(value), value < 0:
		return 0
	case value > 100:
		return 100
	default:
		return value
	}
}

func roundTo(value float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(value*factor) / factor
}
