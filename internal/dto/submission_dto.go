package dto

import (
	"time"

	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

// SubmissionUploadRequest captures the multipart form fields of an upload.
type SubmissionUploadRequest struct {
	AssignmentID uint `form:"assignment_id" validate:"required"`
	StudentID    uint `form:"student_id"`
}

// SubmissionFilter captures filtering parameters for listing submissions.
type SubmissionFilter struct {
	AssignmentID *uint   `query:"assignment_id"`
	StudentID    *uint   `query:"student_id"`
	Status       *string `query:"status" validate:"omitempty,oneof=submitted evaluated evaluation_failed"`
}

// SubmissionResponse is returned after uploading or retrieving submissions.
type SubmissionResponse struct {
	ID           uint                `json:"id"`
	AssignmentID uint                `json:"assignment_id"`
	StudentID    uint                `json:"student_id"`
	FileName     string              `json:"file_name"`
	FileURL      string              `json:"file_url,omitempty"`
	Format       string              `json:"format"`
	WordCount    int                 `json:"word_count"`
	Status       string              `json:"status"`
	LastError    string              `json:"last_error,omitempty"`
	Evaluation   *EvaluationResponse `json:"evaluation,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// BatchUploadFailure reports a file that could not be turned into a submission.
type BatchUploadFailure struct {
	FileName string `json:"file_name"`
	Error    string `json:"error"`
}

// BatchUploadResponse lists the outcome of a multi-file upload.
type BatchUploadResponse struct {
	AssignmentID uint                 `json:"assignment_id"`
	Created      []SubmissionResponse `json:"created"`
	Failed       []BatchUploadFailure `json:"failed"`
}

// NewSubmissionResponse converts a submission model into a DTO.
func NewSubmissionResponse(model models.Submission) SubmissionResponse {
	response := SubmissionResponse{
		ID:           model.ID,
		AssignmentID: model.AssignmentID,
		StudentID:    model.StudentID,
		FileName:     model.FileName,
		FileURL:      model.FileURL,
		Format:       model.Format,
		WordCount:    model.WordCount,
		Status:       model.Status,
		LastError:    model.LastError,
		CreatedAt:    model.CreatedAt,
		UpdatedAt:    model.UpdatedAt,
	}
	if model.Evaluation != nil && model.Evaluation.ID != 0 {
		evaluation := NewEvaluationResponse(*model.Evaluation)
		response.Evaluation = &evaluation
	}
	return response
}

// NewSubmissionResponseSlice converts models to DTOs.
func NewSubmissionResponseSlice(submissions []models.Submission) []SubmissionResponse {
	responses := make([]SubmissionResponse, 0, len(submissions))
	for _, model := range submissions {
		responses = append(responses, NewSubmissionResponse(model))
	}
	return responses
}
