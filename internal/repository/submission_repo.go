package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

// SubmissionFilter narrows submission queries. Zero values match everything.
type SubmissionFilter struct {
	AssignmentID *uint
	StudentID    *uint
	Statuses     []string
	// WithoutContent skips the extracted text column for listings.
	WithoutContent bool
}

// SubmissionRepository stores uploaded answers and their evaluation status.
type SubmissionRepository interface {
	List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	GetByID(ctx context.Context, id uint) (models.Submission, error)
	Create(ctx context.Context, submission *models.Submission) error
	UpdateStatus(ctx context.Context, id uint, status, lastError string) error
}

type submissionRepository struct {
	db *gorm.DB
}

// NewSubmissionRepository instantiates the repository.
func NewSubmissionRepository(db *gorm.DB) SubmissionRepository {
	return &submissionRepository{db: db}
}

func (r *submissionRepository) scoped(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Submission{}).Preload("Evaluation")
}

func (r *submissionRepository) List(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := r.scoped(ctx)
	if filter.AssignmentID != nil {
		query = query.Where("assignment_id = ?", *filter.AssignmentID)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.WithoutContent {
		query = query.Omit("content")
	}

	// Upload order keeps batch progress and report rows stable.
	var submissions []models.Submission
	if err := query.Order("created_at ASC, id ASC").Find(&submissions).Error; err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *submissionRepository) GetByID(ctx context.Context, id uint) (models.Submission, error) {
	var submission models.Submission
	err := r.scoped(ctx).First(&submission, id).Error
	return submission, err
}

func (r *submissionRepository) Create(ctx context.Context, submission *models.Submission) error {
	if submission.Status == "" {
		submission.Status = models.SubmissionStatusSubmitted
	}
	return r.db.WithContext(ctx).Omit("Assignment", "Evaluation").Create(submission).Error
}

// UpdateStatus records the latest evaluation attempt. lastError is cleared
// on success.
func (r *submissionRepository) UpdateStatus(ctx context.Context, id uint, status, lastError string) error {
	if status == models.SubmissionStatusEvaluated {
		lastError = ""
	}
	result := r.db.WithContext(ctx).
		Model(&models.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": status, "last_error": lastError})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
