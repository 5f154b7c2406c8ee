package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

// EvaluationRepository persists evaluation results.
type EvaluationRepository interface {
	Upsert(ctx context.Context, evaluation *models.Evaluation) error
	GetBySubmission(ctx context.Context, submissionID uint) (models.Evaluation, error)
	ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Evaluation, error)
}

type evaluationRepository struct {
	db *gorm.DB
}

// NewEvaluationRepository instantiates the repository.
func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Upsert replaces any previous evaluation for the same submission.
func (r *evaluationRepository) Upsert(ctx context.Context, evaluation *models.Evaluation) error {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "submission_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"assignment_id", "total_score", "max_score", "overall_percentage", "keyword_coverage",
			"matched_keywords", "missing_keywords", "content_quality", "structure_organization",
			"critical_thinking", "feedback", "strengths", "areas_for_improvement", "is_low_effort",
			"word_count", "keyword_hit_count", "warning", "model", "updated_at",
		}),
	})
	if err := tx.Create(evaluation).Error; err != nil {
		return err
	}

	stored, err := r.GetBySubmission(ctx, evaluation.SubmissionID)
	if err != nil {
		return err
	}
	*evaluation = stored
	return nil
}

func (r *evaluationRepository) GetBySubmission(ctx context.Context, submissionID uint) (models.Evaluation, error) {
	var evaluation models.Evaluation
	if err := r.db.WithContext(ctx).Where("submission_id = ?", submissionID).First(&evaluation).Error; err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (r *evaluationRepository) ListByAssignment(ctx context.Context, assignmentID uint) ([]models.Evaluation, error) {
	var evaluations []models.Evaluation
	if err := r.db.WithContext(ctx).
		Where("assignment_id = ?", assignmentID).
		Order("submission_id ASC").
		Find(&evaluations).Error; err != nil {
		return nil, err
	}
	return evaluations, nil
}
