package models

import (
	"time"

	"gorm.io/datatypes"
)

// Evaluation is the stored result for a submission. Each submission keeps at
// most one; re-evaluating replaces it.
type Evaluation struct {
	ID                    uint                        `gorm:"primaryKey" json:"id"`
	SubmissionID          uint                        `gorm:"not null;uniqueIndex" json:"submission_id"`
	AssignmentID          uint                        `gorm:"not null;index" json:"assignment_id"`
	TotalScore            float64                     `gorm:"not null" json:"total_score"`
	MaxScore              float64                     `gorm:"not null" json:"max_score"`
	OverallPercentage     float64                     `json:"overall_percentage"`
	KeywordCoverage       float64                     `json:"keyword_coverage"`
	MatchedKeywords       datatypes.JSONSlice[string] `json:"matched_keywords"`
	MissingKeywords       datatypes.JSONSlice[string] `json:"missing_keywords"`
	ContentQuality        float64                     `json:"content_quality"`
	StructureOrganization float64                     `json:"structure_organization"`
	CriticalThinking      float64                     `json:"critical_thinking"`
	Feedback              string                      `gorm:"type:text" json:"feedback"`
	Strengths             datatypes.JSONSlice[string] `json:"strengths"`
	AreasForImprovement   datatypes.JSONSlice[string] `json:"areas_for_improvement"`
	IsLowEffort           bool                        `json:"is_low_effort"`
	WordCount             int                         `json:"word_count"`
	KeywordHitCount       int                         `json:"keyword_hit_count"`
	Warning               string                      `gorm:"size:512" json:"warning,omitempty"`
	Model                 string                      `gorm:"size:128" json:"model"`
	CreatedAt             time.Time                   `json:"created_at"`
	UpdatedAt             time.Time                   `json:"updated_at"`
}
