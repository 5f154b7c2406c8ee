package models

import (
	"time"

	"gorm.io/datatypes"
)

// Assignment is a problem statement students answer, with its reference keywords.
type Assignment struct {
	ID               uint                        `gorm:"primaryKey" json:"id"`
	Title            string                      `gorm:"size:255;not null" json:"title"`
	ProblemStatement string                      `gorm:"type:text;not null" json:"problem_statement"`
	Keywords         datatypes.JSONSlice[string] `json:"keywords"`
	KeywordsModel    string                      `gorm:"size:128" json:"keywords_model,omitempty"`
	KeywordsSetAt    *time.Time                  `json:"keywords_set_at,omitempty"`
	TotalMarks       float64                     `gorm:"not null;default:100" json:"total_marks"`
	DueDate          *time.Time                  `json:"due_date,omitempty"`
	CreatedBy        uint                        `json:"created_by"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
	Submissions      []Submission                `json:"-"`
}

// HasKeywords reports whether a keyword set has been extracted.
func (a Assignment) HasKeywords() bool {
	return a.KeywordsSetAt != nil && len(a.Keywords) > 0
}

// IsPastDue returns true when the assignment has a deadline that already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return a.DueDate != nil && reference.After(*a.DueDate)
}
