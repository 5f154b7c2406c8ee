package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

// ErrKeywordsLocked indicates the assignment already holds a keyword set.
var ErrKeywordsLocked = errors.New("assignment keywords already set")

// AssignmentFilter describes pagination and search options. A nil
// HasKeywords matches assignments in either state.
type AssignmentFilter struct {
	Search      string
	Sort        string
	HasKeywords *bool
	Page        int
	PageSize    int
}

// AssignmentChanges lists the columns an update writes. Nil fields are left
// untouched and ClearDueDate removes the deadline.
type AssignmentChanges struct {
	Title            *string
	ProblemStatement *string
	TotalMarks       *float64
	DueDate          *time.Time
	ClearDueDate     bool
}

// AssignmentRepository defines persistence operations for assignments.
type AssignmentRepository interface {
	List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error)
	GetByID(ctx context.Context, id uint) (models.Assignment, error)
	Create(ctx context.Context, assignment *models.Assignment) error
	Update(ctx context.Context, id uint, changes AssignmentChanges) (models.Assignment, bool, error)
	Delete(ctx context.Context, id uint) error
	SetKeywords(ctx context.Context, id uint, keywords []string, model string) (models.Assignment, error)
}

type assignmentRepository struct {
	db *gorm.DB
}

// NewAssignmentRepository instantiates a GORM-backed repository.
func NewAssignmentRepository(db *gorm.DB) AssignmentRepository {
	return &assignmentRepository{db: db}
}

var assignmentSortColumns = map[string]string{
	"created_at": "created_at",
	"due_date":   "due_date",
	"title":      "title",
	"updated_at": "updated_at",
}

func (r *assignmentRepository) List(ctx context.Context, filter AssignmentFilter) ([]models.Assignment, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Assignment{})

	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		pattern := "%" + search + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(problem_statement) LIKE ?", pattern, pattern)
	}
	if filter.HasKeywords != nil {
		if *filter.HasKeywords {
			query = query.Where("keywords_set_at IS NOT NULL")
		} else {
			query = query.Where("keywords_set_at IS NULL")
		}
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order(assignmentOrder(filter.Sort)).Order("id DESC")
	if filter.PageSize > 0 {
		page := max(filter.Page, 1)
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	var assignments []models.Assignment
	if err := query.Find(&assignments).Error; err != nil {
		return nil, 0, err
	}
	return assignments, total, nil
}

func (r *assignmentRepository) GetByID(ctx context.Context, id uint) (models.Assignment, error) {
	var assignment models.Assignment
	err := r.db.WithContext(ctx).First(&assignment, id).Error
	return assignment, err
}

func (r *assignmentRepository) Create(ctx context.Context, assignment *models.Assignment) error {
	return r.db.WithContext(ctx).Omit("Submissions").Create(assignment).Error
}

// Update writes only the changed columns and reports whether grading was
// reset. A different problem statement clears the keyword set, removes every
// evaluation of the assignment and returns its submissions to submitted, all
// in one transaction.
func (r *assignmentRepository) Update(ctx context.Context, id uint, changes AssignmentChanges) (models.Assignment, bool, error) {
	reset := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&models.Assignment{}, id).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		if changes.ProblemStatement != nil {
			result := tx.Model(&models.Assignment{}).
				Where("id = ? AND problem_statement <> ?", id, *changes.ProblemStatement).
				Updates(map[string]interface{}{
					"problem_statement": *changes.ProblemStatement,
					"keywords":          nil,
					"keywords_model":    "",
					"keywords_set_at":   nil,
					"updated_at":        now,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected > 0 {
				reset = true
				if err := resetGrading(tx, id, now); err != nil {
					return err
				}
			}
		}

		fields := map[string]interface{}{}
		if changes.Title != nil {
			fields["title"] = *changes.Title
		}
		if changes.TotalMarks != nil {
			fields["total_marks"] = *changes.TotalMarks
		}
		switch {
		case changes.DueDate != nil:
			fields["due_date"] = *changes.DueDate
		case changes.ClearDueDate:
			fields["due_date"] = nil
		}
		if len(fields) == 0 {
			return nil
		}
		fields["updated_at"] = now
		return tx.Model(&models.Assignment{}).Where("id = ?", id).Updates(fields).Error
	})
	if err != nil {
		return models.Assignment{}, false, err
	}

	assignment, err := r.GetByID(ctx, id)
	return assignment, reset, err
}

func resetGrading(tx *gorm.DB, assignmentID uint, now time.Time) error {
	if err := tx.Where("assignment_id = ?", assignmentID).Delete(&models.Evaluation{}).Error; err != nil {
		return err
	}
	return tx.Model(&models.Submission{}).
		Where("assignment_id = ?", assignmentID).
		Updates(map[string]interface{}{
			"status":     models.SubmissionStatusSubmitted,
			"last_error": "",
			"updated_at": now,
		}).Error
}

// Delete removes the assignment with its submissions and evaluations.
func (r *assignmentRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Evaluation{}).Error; err != nil {
			return err
		}
		if err := tx.Where("assignment_id = ?", id).Delete(&models.Submission{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.Assignment{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
}

// SetKeywords stores the keyword set once. A second call fails with
// ErrKeywordsLocked until the problem statement changes.
func (r *assignmentRepository) SetKeywords(ctx context.Context, id uint, keywords []string, model string) (models.Assignment, error) {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.Assignment{}).
		Where("id = ? AND keywords_set_at IS NULL", id).
		Updates(map[string]interface{}{
			"keywords":        datatypes.JSONSlice[string](keywords),
			"keywords_model":  model,
			"keywords_set_at": now,
			"updated_at":      now,
		})
	if result.Error != nil {
		return models.Assignment{}, result.Error
	}

	assignment, err := r.GetByID(ctx, id)
	if err != nil {
		return models.Assignment{}, err
	}
	if result.RowsAffected == 0 {
		return assignment, ErrKeywordsLocked
	}
	return assignment, nil
}

// assignmentOrder accepts "column", "-column", "column:desc" or
// "column.desc" for whitelisted columns and defaults to newest first.
func assignmentOrder(sort string) string {
	sort = strings.ToLower(strings.TrimSpace(sort))
	direction := "ASC"
	if strings.HasPrefix(sort, "-") {
		sort, direction = sort[1:], "DESC"
	}
	if column, dir, found := strings.Cut(strings.ReplaceAll(sort, ".", ":"), ":"); found {
		sort = column
		switch dir {
		case "desc":
			direction = "DESC"
		case "asc":
			direction = "ASC"
		}
	}

	column, ok := assignmentSortColumns[sort]
	if !ok {
		return "created_at DESC"
	}
	return column + " " + direction
}
