package repository

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/grade-sanchalaak/internal/models"
)

func setupGradingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Assignment{}, &models.Submission{}, &models.Evaluation{}))
	return db
}

func TestAssignmentRepositorySetKeywordsOnce(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "Databases", ProblemStatement: "Explain normalization.", TotalMarks: 50}
	require.NoError(t, repo.Create(ctx, &assignment))

	stored, err := repo.SetKeywords(ctx, assignment.ID, []string{"normalization", "3NF"}, "gpt-4o-mini")
	require.NoError(t, err)
	require.True(t, stored.HasKeywords())
	require.Equal(t, []string{"normalization", "3NF"}, []string(stored.Keywords))
	require.Equal(t, "gpt-4o-mini", stored.KeywordsModel)

	again, err := repo.SetKeywords(ctx, assignment.ID, []string{"other"}, "gpt-4o-mini")
	require.ErrorIs(t, err, ErrKeywordsLocked)
	require.Equal(t, []string{"normalization", "3NF"}, []string(again.Keywords))

	_, err = repo.SetKeywords(ctx, 999, []string{"x"}, "m")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAssignmentRepositoryListSearchAndPaginate(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewAssignmentRepository(db)
	ctx := context.Background()

	for _, title := range []string{"Graph theory", "Operating systems", "Graph databases"} {
		require.NoError(t, repo.Create(ctx, &models.Assignment{Title: title, ProblemStatement: "Discuss " + title}))
	}

	items, total, err := repo.List(ctx, AssignmentFilter{Search: "graph", Sort: "title", PageSize: 1, Page: 2})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 1)
	require.Equal(t, "Graph theory", items[0].Title)

	items, _, err = repo.List(ctx, AssignmentFilter{Sort: "title:desc"})
	require.NoError(t, err)
	require.Equal(t, "Operating systems", items[0].Title)

	_, err = repo.SetKeywords(ctx, items[0].ID, []string{"scheduling"}, "m")
	require.NoError(t, err)

	ready := true
	items, total, err = repo.List(ctx, AssignmentFilter{HasKeywords: &ready})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "Operating systems", items[0].Title)

	ready = false
	_, total, err = repo.List(ctx, AssignmentFilter{HasKeywords: &ready})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)

	require.ErrorIs(t, repo.Delete(ctx, 12345), gorm.ErrRecordNotFound)
}

func TestAssignmentOrder(t *testing.T) {
	require.Equal(t, "title ASC", assignmentOrder("Title"))
	require.Equal(t, "due_date DESC", assignmentOrder("-due_date"))
	require.Equal(t, "due_date DESC", assignmentOrder("due_date.desc"))
	require.Equal(t, "updated_at ASC", assignmentOrder("updated_at:asc"))
	require.Equal(t, "created_at DESC", assignmentOrder("password; DROP TABLE assignments"))
}

func TestAssignmentRepositoryDeleteRemovesGradingData(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewAssignmentRepository(db)
	submissions := NewSubmissionRepository(db)
	evaluations := NewEvaluationRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "Networks", ProblemStatement: "Explain TCP."}
	require.NoError(t, repo.Create(ctx, &assignment))
	submission := models.Submission{AssignmentID: assignment.ID, StudentID: 3, FileName: "tcp.txt", Content: "handshake"}
	require.NoError(t, submissions.Create(ctx, &submission))
	require.Equal(t, models.SubmissionStatusSubmitted, submission.Status)
	require.NoError(t, evaluations.Upsert(ctx, &models.Evaluation{SubmissionID: submission.ID, AssignmentID: assignment.ID, TotalScore: 10, MaxScore: 100}))

	require.NoError(t, repo.Delete(ctx, assignment.ID))

	var remaining int64
	require.NoError(t, db.Model(&models.Submission{}).Where("assignment_id = ?", assignment.ID).Count(&remaining).Error)
	require.Zero(t, remaining)
	require.NoError(t, db.Model(&models.Evaluation{}).Where("assignment_id = ?", assignment.ID).Count(&remaining).Error)
	require.Zero(t, remaining)

	_, err := repo.GetByID(ctx, assignment.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestAssignmentRepositoryUpdateWritesOnlyChangedColumns(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewAssignmentRepository(db)
	submissions := NewSubmissionRepository(db)
	evaluations := NewEvaluationRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "Networks", ProblemStatement: "Explain TCP.", TotalMarks: 40}
	require.NoError(t, repo.Create(ctx, &assignment))
	stale, err := repo.GetByID(ctx, assignment.ID)
	require.NoError(t, err)
	require.False(t, stale.HasKeywords())

	_, err = repo.SetKeywords(ctx, assignment.ID, []string{"handshake", "congestion"}, "gpt-4o-mini")
	require.NoError(t, err)

	submission := models.Submission{AssignmentID: assignment.ID, StudentID: 3, FileName: "tcp.txt", Content: "handshake"}
	require.NoError(t, submissions.Create(ctx, &submission))
	require.NoError(t, evaluations.Upsert(ctx, &models.Evaluation{SubmissionID: submission.ID, AssignmentID: assignment.ID, TotalScore: 10, MaxScore: 40}))
	require.NoError(t, submissions.UpdateStatus(ctx, submission.ID, models.SubmissionStatusEvaluated, ""))

	title := "Transport protocols"
	same := stale.ProblemStatement
	updated, reset, err := repo.Update(ctx, assignment.ID, AssignmentChanges{Title: &title, ProblemStatement: &same})
	require.NoError(t, err)
	require.False(t, reset)
	require.Equal(t, title, updated.Title)
	require.Equal(t, 40.0, updated.TotalMarks)
	require.Equal(t, []string{"handshake", "congestion"}, []string(updated.Keywords))
	require.NotNil(t, updated.KeywordsSetAt)

	problem := "Explain UDP."
	updated, reset, err = repo.Update(ctx, assignment.ID, AssignmentChanges{ProblemStatement: &problem})
	require.NoError(t, err)
	require.True(t, reset)
	require.Equal(t, title, updated.Title)
	require.False(t, updated.HasKeywords())
	require.Nil(t, updated.KeywordsSetAt)

	stored, err := submissions.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.Equal(t, models.SubmissionStatusSubmitted, stored.Status)
	_, err = evaluations.GetBySubmission(ctx, submission.ID)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, _, err = repo.Update(ctx, 999, AssignmentChanges{Title: &title})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSubmissionRepositoryFiltersAndStatus(t *testing.T) {
	db := setupGradingTestDB(t)
	repo := NewSubmissionRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "A", ProblemStatement: "P"}
	require.NoError(t, db.Create(&assignment).Error)

	first := models.Submission{AssignmentID: assignment.ID, StudentID: 7, FileName: "a.txt", Content: "one", Status: models.SubmissionStatusSubmitted}
	second := models.Submission{AssignmentID: assignment.ID, StudentID: 8, FileName: "b.txt", Content: "two", Status: models.SubmissionStatusSubmitted}
	require.NoError(t, repo.Create(ctx, &first))
	require.NoError(t, repo.Create(ctx, &second))

	require.NoError(t, repo.UpdateStatus(ctx, second.ID, models.SubmissionStatusFailed, "rate limited"))
	require.ErrorIs(t, repo.UpdateStatus(ctx, 999, models.SubmissionStatusFailed, ""), gorm.ErrRecordNotFound)

	student := uint(7)
	mine, err := repo.List(ctx, SubmissionFilter{StudentID: &student})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Equal(t, "one", mine[0].Content)

	failures, err := repo.List(ctx, SubmissionFilter{AssignmentID: &assignment.ID, Statuses: []string{models.SubmissionStatusFailed}})
	require.NoError(t, err)
	require.Len(t, failures, 1)
	require.Equal(t, "rate limited", failures[0].LastError)

	pending, err := repo.List(ctx, SubmissionFilter{AssignmentID: &assignment.ID, Statuses: []string{models.SubmissionStatusSubmitted, models.SubmissionStatusFailed}, WithoutContent: true})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Empty(t, pending[0].Content)
	require.Equal(t, first.ID, pending[0].ID)

	require.NoError(t, repo.UpdateStatus(ctx, second.ID, models.SubmissionStatusEvaluated, "ignored"))
	reloaded, err := repo.GetByID(ctx, second.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.LastError)

	_, err = repo.GetByID(ctx, 999)
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestEvaluationRepositoryUpsertReplaces(t *testing.T) {
	db := setupGradingTestDB(t)
	submissions := NewSubmissionRepository(db)
	repo := NewEvaluationRepository(db)
	ctx := context.Background()

	assignment := models.Assignment{Title: "A", ProblemStatement: "P"}
	require.NoError(t, db.Create(&assignment).Error)
	submission := models.Submission{AssignmentID: assignment.ID, StudentID: 1, FileName: "a.txt", Status: models.SubmissionStatusSubmitted}
	require.NoError(t, submissions.Create(ctx, &submission))

	first := models.Evaluation{SubmissionID: submission.ID, AssignmentID: assignment.ID, TotalScore: 40, MaxScore: 100, MatchedKeywords: []string{"a"}}
	require.NoError(t, repo.Upsert(ctx, &first))
	require.NotZero(t, first.ID)

	second := models.Evaluation{SubmissionID: submission.ID, AssignmentID: assignment.ID, TotalScore: 75, MaxScore: 100, MatchedKeywords: []string{"a", "b"}, Feedback: "better"}
	require.NoError(t, repo.Upsert(ctx, &second))
	require.Equal(t, first.ID, second.ID)

	stored, err := repo.ListByAssignment(ctx, assignment.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	require.Equal(t, 75.0, stored[0].TotalScore)
	require.Equal(t, []string{"a", "b"}, []string(stored[0].MatchedKeywords))

	loaded, err := submissions.GetByID(ctx, submission.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Evaluation)
	require.Equal(t, "better", loaded.Evaluation.Feedback)
}
