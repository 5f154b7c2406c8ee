package evaluation

import (
	"fmt"
	"strings"
)

// LowEffortReport is the outcome of the keyword-stuffing heuristic.
type LowEffortReport struct {
	IsLowEffort     bool    `json:"is_low_effort"`
	WordCount       int     `json:"word_count"`
	KeywordHitCount int     `json:"keyword_hit_count"`
	Density         float64 `json:"density"`
}

// Warning returns the teacher-facing warning, or "" when the submission is not flagged.
func (r LowEffortReport) Warning() string {
	if !r.IsLowEffort {
		return ""
	}
	return fmt.Sprintf("Submission appears to list keywords without explanation (%d words, %d keyword hits).", r.WordCount, r.KeywordHitCount)
}

// LowEffortDetector flags short submissions dense with reference keywords.
// It is lexical and deterministic; matching is case-insensitive containment.
type LowEffortDetector struct {
	WordFloor      int
	DensityCeiling float64
}

// DefaultLowEffortDetector flags submissions under 100 words whose keyword
// density exceeds 0.3.
func DefaultLowEffortDetector() LowEffortDetector {
	return LowEffortDetector{WordFloor: 100, DensityCeiling: 0.3}
}

// Detect evaluates text against keywords.
func (d LowEffortDetector) Detect(text string, keywords KeywordSet) LowEffortReport {
	wordCount := len(strings.Fields(text))
	lowered := strings.ToLower(text)

	hits := 0
	for _, keyword := range keywords.items {
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			hits++
		}
	}

	density := float64(hits) / float64(max(wordCount, 1))
	return LowEffortReport{
		IsLowEffort:     wordCount < d.WordFloor && density > d.DensityCeiling,
		WordCount:       wordCount,
		KeywordHitCount: hits,
		Density:         density,
	}
}
