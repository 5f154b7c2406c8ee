package dto

import (
	"time"

	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

// EvaluationResponse is the stored evaluation of a submission.
type EvaluationResponse struct {
	ID                  uint                    `json:"id"`
	SubmissionID        uint                    `json:"submission_id"`
	AssignmentID        uint                    `json:"assignment_id"`
	TotalScore          float64                 `json:"total_score"`
	MaxScore            float64                 `json:"max_score"`
	OverallPercentage   float64                 `json:"overall_percentage"`
	KeywordCoverage     float64                 `json:"keyword_coverage"`
	MatchedKeywords     []string                `json:"matched_keywords"`
	MissingKeywords     []string                `json:"missing_keywords"`
	RubricScores        evaluation.RubricScores `json:"rubric_scores"`
	Feedback            string                  `json:"feedback"`
	Strengths           []string                `json:"strengths"`
	AreasForImprovement []string                `json:"areas_for_improvement"`
	IsLowEffort         bool                    `json:"is_low_effort"`
	WordCount           int                     `json:"word_count"`
	KeywordHitCount     int                     `json:"keyword_hit_count"`
	Warning             string                  `json:"warning,omitempty"`
	Model               string                  `json:"model"`
	EvaluatedAt         time.Time               `json:"evaluated_at"`
	// SubmissionStatus is the outcome of the latest attempt. When it is
	// evaluation_failed the scores above come from an earlier run.
	SubmissionStatus string `json:"submission_status,omitempty"`
	LastError        string `json:"last_error,omitempty"`
}

// BatchEvaluationResponse summarises a batch run over an assignment.
type BatchEvaluationResponse struct {
	RunID        string            `json:"run_id"`
	AssignmentID uint              `json:"assignment_id"`
	Report       evaluation.Report `json:"report"`
	DurationMS   int64             `json:"duration_ms"`
}

// ProgressEvent is streamed to websocket clients while a batch runs.
type ProgressEvent struct {
	RunID        string    `json:"run_id"`
	AssignmentID uint      `json:"assignment_id"`
	Type         string    `json:"type"`
	SubmissionID uint      `json:"submission_id,omitempty"`
	Label        string    `json:"label,omitempty"`
	Status       string    `json:"status,omitempty"`
	TotalScore   *float64  `json:"total_score,omitempty"`
	Error        string    `json:"error,omitempty"`
	Completed    int       `json:"completed"`
	Total        int       `json:"total"`
	SentAt       time.Time `json:"sent_at"`
}

// Progress event types.
const (
	ProgressStarted  = "started"
	ProgressItem     = "item"
	ProgressFinished = "finished"
)

// NewEvaluationResponse converts a stored evaluation into a DTO.
func NewEvaluationResponse(model models.Evaluation) EvaluationResponse {
	evaluatedAt := model.UpdatedAt
	if evaluatedAt.IsZero() {
		evaluatedAt = model.CreatedAt
	}
	return EvaluationResponse{
		ID:                model.ID,
		SubmissionID:      model.SubmissionID,
		AssignmentID:      model.AssignmentID,
		TotalScore:        model.TotalScore,
		MaxScore:          model.MaxScore,
		OverallPercentage: model.OverallPercentage,
		KeywordCoverage:   model.KeywordCoverage,
		MatchedKeywords:   nonNil(model.MatchedKeywords),
		MissingKeywords:   nonNil(model.MissingKeywords),
		RubricScores: evaluation.RubricScores{
			ContentQuality:        model.ContentQuality,
			StructureOrganization: model.StructureOrganization,
			CriticalThinking:      model.CriticalThinking,
		},
		Feedback:            model.Feedback,
		Strengths:           nonNil(model.Strengths),
		AreasForImprovement: nonNil(model.AreasForImprovement),
		IsLowEffort:         model.IsLowEffort,
		WordCount:           model.WordCount,
		KeywordHitCount:     model.KeywordHitCount,
		Warning:             model.Warning,
		Model:               model.Model,
		EvaluatedAt:         evaluatedAt,
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
