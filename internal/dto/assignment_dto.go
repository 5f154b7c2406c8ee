package dto

import (
	"time"

	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

const isoLayout = time.RFC3339

// PaginationMeta captures pagination metadata for list responses.
type PaginationMeta struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalItems int64 `json:"total_items"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginationMeta computes the page count for total items.
func NewPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	meta := PaginationMeta{Page: page, PageSize: pageSize, TotalItems: total}
	if pageSize > 0 {
		meta.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return meta
}

// AssignmentListQuery holds the list filters accepted by the API.
type AssignmentListQuery struct {
	Search      string `query:"search"`
	Sort        string `query:"sort"`
	HasKeywords *bool  `query:"has_keywords"`
	Page        int    `query:"page" validate:"omitempty,min=1"`
	PageSize    int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// AssignmentCreateRequest describes the payload for creating a new assignment.
type AssignmentCreateRequest struct {
	Title            string  `json:"title" validate:"required,min=3,max=255"`
	ProblemStatement string  `json:"problem_statement" validate:"required,min=10"`
	TotalMarks       float64 `json:"total_marks" validate:"omitempty,gt=0,lte=1000"`
	DueDate          string  `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentUpdateRequest describes the payload for updating an assignment.
type AssignmentUpdateRequest struct {
	Title            *string  `json:"title" validate:"omitempty,min=3,max=255"`
	ProblemStatement *string  `json:"problem_statement" validate:"omitempty,min=10"`
	TotalMarks       *float64 `json:"total_marks" validate:"omitempty,gt=0,lte=1000"`
	DueDate          *string  `json:"due_date" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// AssignmentResponse is the serialized representation returned to API clients.
type AssignmentResponse struct {
	ID               uint       `json:"id"`
	Title            string     `json:"title"`
	ProblemStatement string     `json:"problem_statement"`
	Keywords         []string   `json:"keywords"`
	KeywordCount     int        `json:"keyword_count"`
	KeywordsModel    string     `json:"keywords_model,omitempty"`
	KeywordsSetAt    *time.Time `json:"keywords_set_at,omitempty"`
	TotalMarks       float64    `json:"total_marks"`
	DueDate          *time.Time `json:"due_date,omitempty"`
	CreatedBy        uint       `json:"created_by"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// AssignmentListResponse wraps a page of assignments.
type AssignmentListResponse struct {
	Items      []AssignmentResponse `json:"items"`
	Pagination PaginationMeta       `json:"pagination"`
	Search     string               `json:"search,omitempty"`
}

// NewAssignmentResponse converts a model into a DTO.
func NewAssignmentResponse(model models.Assignment) AssignmentResponse {
	keywords := []string(model.Keywords)
	if keywords == nil {
		keywords = []string{}
	}
	return AssignmentResponse{
		ID:               model.ID,
		Title:            model.Title,
		ProblemStatement: model.ProblemStatement,
		Keywords:         keywords,
		KeywordCount:     len(keywords),
		KeywordsModel:    model.KeywordsModel,
		KeywordsSetAt:    model.KeywordsSetAt,
		TotalMarks:       model.TotalMarks,
		DueDate:          model.DueDate,
		CreatedBy:        model.CreatedBy,
		CreatedAt:        model.CreatedAt,
		UpdatedAt:        model.UpdatedAt,
	}
}

// NewAssignmentResponseSlice converts a slice of models into DTOs.
func NewAssignmentResponseSlice(assignments []models.Assignment) []AssignmentResponse {
	responses := make([]AssignmentResponse, 0, len(assignments))
	for _, assignment := range assignments {
		responses = append(responses, NewAssignmentResponse(assignment))
	}

	return responses
}

// ParseDueDate converts an optional RFC3339 string into a time.
func ParseDueDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	parsed, err := time.Parse(isoLayout, value)
	if err != nil {
		return nil, err
	}
	parsed = parsed.UTC()
	return &parsed, nil
}
