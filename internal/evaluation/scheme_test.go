package evaluation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFormula(t *testing.T) {
	formula, err := ParseFormula("")
	require.NoError(t, err)
	require.Equal(t, FormulaWeighted, formula)

	formula, err = ParseFormula(" Reported ")
	require.NoError(t, err)
	require.Equal(t, FormulaReported, formula)

	_, err = ParseFormula("median")
	require.Error(t, err)
}

func TestOverallPercentageWeighted(t *testing.T) {
	scheme := DefaultScoringScheme()
	rubric := RubricScores{ContentQuality: 80, StructureOrganization: 60, CriticalThinking: 40}

	require.InDelta(t, 0.4*50+0.3*80+0.15*60+0.15*40, scheme.OverallPercentage(50, rubric, true, 0), 1e-9)
	require.InDelta(t, 65, scheme.OverallPercentage(0, rubric, false, 0), 1e-9)
}

func TestOverallPercentageReportedClamps(t *testing.T) {
	scheme := ScoringScheme{Formula: FormulaReported}

	require.Equal(t, 100.0, scheme.OverallPercentage(0, RubricScores{}, true, 130))
	require.Equal(t, 0.0, scheme.OverallPercentage(0, RubricScores{}, true, -4))
	require.Equal(t, 0.0, scheme.OverallPercentage(0, RubricScores{}, true, math.NaN()))
}

func TestTotalScoreBounds(t *testing.T) {
	scheme := DefaultScoringScheme()

	require.Equal(t, 100.0, scheme.MaxPoints(0))
	require.Equal(t, 25.0, scheme.MaxPoints(25))
	require.Equal(t, 10.0, scheme.TotalScore(140, 10))
	require.Equal(t, 0.0, scheme.TotalScore(-3, 0))
	require.Equal(t, 28.0, scheme.TotalScore(55, 50))
	require.Equal(t, 73.0, scheme.TotalScore(72.6, 0))
}
