package models

import "time"

// Submission is a student file converted to text for evaluation.
type Submission struct {
	ID           uint        `gorm:"primaryKey" json:"id"`
	AssignmentID uint        `gorm:"not null;index" json:"assignment_id"`
	StudentID    uint        `gorm:"not null;index" json:"student_id"`
	FileName     string      `gorm:"size:255;not null" json:"file_name"`
	FileURL      string      `gorm:"size:512" json:"file_url"`
	Format       string      `gorm:"size:16" json:"format"`
	Content      string      `gorm:"type:text" json:"-"`
	WordCount    int         `json:"word_count"`
	Status       string      `gorm:"size:32;not null;index" json:"status"`
	LastError    string      `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
	Assignment   Assignment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`
	Evaluation   *Evaluation `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"evaluation,omitempty"`
}

const (
	// SubmissionStatusSubmitted indicates the submission has been uploaded but not evaluated.
	SubmissionStatusSubmitted = "submitted"
	// SubmissionStatusEvaluated indicates the latest evaluation succeeded.
	SubmissionStatusEvaluated = "evaluated"
	// SubmissionStatusFailed indicates the latest evaluation attempt failed.
	SubmissionStatusFailed = "evaluation_failed"
)

// IsEvaluated reports whether the submission has a current evaluation.
func (s Submission) IsEvaluated() bool {
	return s.Status == SubmissionStatusEvaluated
}
