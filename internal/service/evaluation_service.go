package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/grade-sanchalaak/internal/dto"
	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/internal/models"
	"github.com/noah-isme/grade-sanchalaak/internal/observability"
	"github.com/noah-isme/grade-sanchalaak/internal/repository"
)

var (
	// ErrKeywordsMissing indicates evaluation was requested before keyword extraction.
	ErrKeywordsMissing = errors.New("assignment keywords have not been extracted")
	// ErrEvaluationNotFound indicates the submission has no stored evaluation.
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrBatchInProgress indicates another batch is already running for the assignment.
	ErrBatchInProgress = errors.New("a batch evaluation is already running for this assignment")
)

// BatchEvaluator runs detection and scoring. *evaluation.BatchRunner satisfies it.
type BatchEvaluator interface {
	EvaluateOne(ctx context.Context, keywords evaluation.KeywordSet, maxPoints float64, item evaluation.BatchItem) evaluation.Outcome
	Run(ctx context.Context, req evaluation.BatchRequest, observe func(evaluation.Outcome)) *evaluation.ResultSet
}

// EvaluationService grades submissions and reports on assignments.
type EvaluationService interface {
	EvaluateSubmission(ctx context.Context, submissionID uint) (dto.EvaluationResponse, error)
	EvaluateAssignment(ctx context.Context, assignmentID uint, force bool) (dto.BatchEvaluationResponse, error)
	GetEvaluation(ctx context.Context, submissionID uint, actor Actor) (dto.EvaluationResponse, error)
	Report(ctx context.Context, assignmentID uint) (evaluation.Report, error)
	ExportCSV(ctx context.Context, assignmentID uint, w io.Writer) error
}

type evaluationService struct {
	assignments repository.AssignmentRepository
	submissions repository.SubmissionRepository
	evaluations repository.EvaluationRepository
	evaluator   BatchEvaluator
	progress    ProgressService
	reports     *ReportCache
	logger      zerolog.Logger
	tracer      trace.Tracer

	mu      sync.Mutex
	running map[uint]struct{}
}

// NewEvaluationService wires the evaluation use cases. progress may be nil.
func NewEvaluationService(assignmentRepo repository.AssignmentRepository, submissionRepo repository.SubmissionRepository, evaluationRepo repository.EvaluationRepository, evaluator BatchEvaluator, progress ProgressService, reports *ReportCache, logger zerolog.Logger) EvaluationService {
	return &evaluationService{
		assignments: assignmentRepo,
		submissions: submissionRepo,
		evaluations: evaluationRepo,
		evaluator:   evaluator,
		progress:    progress,
		reports:     reports,
		logger:      logger.With().Str("component", "evaluation_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/grade-sanchalaak/internal/service/evaluation"),
		running:     make(map[uint]struct{}),
	}
}

func (s *evaluationService) EvaluateSubmission(ctx context.Context, submissionID uint) (dto.EvaluationResponse, error) {
	ctx, span := s.tracer.Start(ctx, "evaluations.evaluate_submission", trace.WithAttributes(
		attribute.Int("submission.id", int(submissionID)),
	))
	defer span.End()

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrSubmissionNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	assignment, err := s.loadGradable(ctx, submission.AssignmentID)
	if err != nil {
		return dto.EvaluationResponse{}, err
	}

	outcome := s.evaluator.EvaluateOne(ctx, evaluation.NewKeywordSet(assignment.Keywords), assignment.TotalMarks, batchItem(submission))
	stored, err := s.persist(context.WithoutCancel(ctx), assignment.ID, outcome)
	s.reports.Invalidate(ctx, assignment.ID)
	if err != nil {
		span.RecordError(err)
		return dto.EvaluationResponse{}, err
	}
	if !outcome.Succeeded() {
		span.RecordError(outcome.Err)
		return dto.EvaluationResponse{}, outcome.Err
	}

	response := dto.NewEvaluationResponse(stored)
	response.SubmissionStatus = models.SubmissionStatusEvaluated
	return response, nil
}

// EvaluateAssignment grades every pending submission of an assignment, or all
// of them when force is set. Each outcome is stored as soon as it is known.
func (s *evaluationService) EvaluateAssignment(ctx context.Context, assignmentID uint, force bool) (dto.BatchEvaluationResponse, error) {
	assignment, err := s.loadGradable(ctx, assignmentID)
	if err != nil {
		return dto.BatchEvaluationResponse{}, err
	}

	if !s.acquire(assignmentID) {
		return dto.BatchEvaluationResponse{}, ErrBatchInProgress
	}
	defer s.release(assignmentID)

	filter := repository.SubmissionFilter{AssignmentID: &assignmentID}
	if !force {
		filter.Statuses = []string{models.SubmissionStatusSubmitted, models.SubmissionStatusFailed}
	}
	submissions, err := s.submissions.List(ctx, filter)
	if err != nil {
		return dto.BatchEvaluationResponse{}, err
	}

	items := make([]evaluation.BatchItem, 0, len(submissions))
	for _, submission := range submissions {
		items = append(items, batchItem(submission))
	}

	runID := uuid.NewString()
	ctx, span := s.tracer.Start(ctx, "evaluations.evaluate_assignment", trace.WithAttributes(
		attribute.Int("assignment.id", int(assignmentID)),
		attribute.Int("batch.size", len(items)),
		attribute.String("batch.run_id", runID),
	))
	defer span.End()

	logger := s.logger.With().Str("run_id", runID).Uint("assignment_id", assignmentID).Logger()
	logger.Info().Int("items", len(items)).Bool("force", force).Msg("batch evaluation started")

	start := time.Now()
	s.emit(ctx, dto.ProgressEvent{RunID: runID, AssignmentID: assignmentID, Type: dto.ProgressStarted, Total: len(items)})

	completed := 0
	persistCtx := context.WithoutCancel(ctx)
	results := s.evaluator.Run(ctx, evaluation.BatchRequest{
		Keywords:  evaluation.NewKeywordSet(assignment.Keywords),
		MaxPoints: assignment.TotalMarks,
		Items:     items,
	}, func(outcome evaluation.Outcome) {
		completed++
		if _, err := s.persist(persistCtx, assignmentID, outcome); err != nil {
			logger.Error().Err(err).Uint("submission_id", outcome.SubmissionID).Msg("failed to store evaluation outcome")
		}

		event := dto.ProgressEvent{
			RunID:        runID,
			AssignmentID: assignmentID,
			Type:         dto.ProgressItem,
			SubmissionID: outcome.SubmissionID,
			Label:        outcome.Label,
			Completed:    completed,
			Total:        len(items),
		}
		if outcome.Succeeded() {
			score := outcome.Result.TotalScore
			event.Status = evaluation.StatusEvaluated
			event.TotalScore = &score
		} else {
			event.Status = evaluation.StatusFailed
			event.Error = evaluation.UserMessage(outcome.Err)
		}
		s.emit(ctx, event)
	})

	s.reports.Invalidate(persistCtx, assignmentID)

	duration := time.Since(start)
	observability.BatchDuration().Observe(duration.Seconds())
	report := results.Report()

	s.emit(persistCtx, dto.ProgressEvent{
		RunID:        runID,
		AssignmentID: assignmentID,
		Type:         dto.ProgressFinished,
		Completed:    completed,
		Total:        len(items),
	})

	logger.Info().
		Int("evaluated", report.Summary.Count).
		Int("failed", report.Summary.FailedCount).
		Dur("duration", duration).
		Msg("batch evaluation finished")

	if err := ctx.Err(); err != nil {
		return dto.BatchEvaluationResponse{}, err
	}

	return dto.BatchEvaluationResponse{
		RunID:        runID,
		AssignmentID: assignmentID,
		Report:       report,
		DurationMS:   duration.Milliseconds(),
	}, nil
}

func (s *evaluationService) GetEvaluation(ctx context.Context, submissionID uint, actor Actor) (dto.EvaluationResponse, error) {
	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrSubmissionNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	if !actor.IsStaff() && submission.StudentID != actor.ID {
		return dto.EvaluationResponse{}, ErrSubmissionForbidden
	}

	stored, err := s.evaluations.GetBySubmission(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.EvaluationResponse{}, ErrEvaluationNotFound
		}
		return dto.EvaluationResponse{}, err
	}

	response := dto.NewEvaluationResponse(stored)
	response.SubmissionStatus = submission.Status
	response.LastError = submission.LastError
	return response, nil
}

// Report aggregates the latest stored outcome of every attempted submission.
// Submissions never evaluated are left out.
func (s *evaluationService) Report(ctx context.Context, assignmentID uint) (evaluation.Report, error) {
	if cached, ok := s.reports.Get(ctx, assignmentID); ok {
		return cached, nil
	}

	if _, err := s.assignments.GetByID(ctx, assignmentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return evaluation.Report{}, ErrAssignmentNotFound
		}
		return evaluation.Report{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		AssignmentID:   &assignmentID,
		Statuses:       []string{models.SubmissionStatusEvaluated, models.SubmissionStatusFailed},
		WithoutContent: true,
	})
	if err != nil {
		return evaluation.Report{}, err
	}

	outcomes := make([]evaluation.Outcome, 0, len(submissions))
	for _, submission := range submissions {
		outcome := evaluation.Outcome{SubmissionID: submission.ID, Label: submission.FileName}
		switch {
		case submission.IsEvaluated() && submission.Evaluation != nil:
			result := resultFromModel(*submission.Evaluation)
			outcome.Result = &result
		case submission.Status == models.SubmissionStatusFailed:
			outcome.Err = errors.New(submission.LastError)
		default:
			continue
		}
		outcomes = append(outcomes, outcome)
	}

	report := evaluation.Aggregate(outcomes)
	s.reports.Set(ctx, assignmentID, report)
	return report, nil
}

func (s *evaluationService) ExportCSV(ctx context.Context, assignmentID uint, w io.Writer) error {
	report, err := s.Report(ctx, assignmentID)
	if err != nil {
		return err
	}
	return report.WriteCSV(w)
}

func (s *evaluationService) loadGradable(ctx context.Context, assignmentID uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	if !assignment.HasKeywords() {
		return models.Assignment{}, ErrKeywordsMissing
	}
	return assignment, nil
}

// persist records an outcome. Failures keep any earlier evaluation row but
// mark the submission failed so reports show the latest attempt.
func (s *evaluationService) persist(ctx context.Context, assignmentID uint, outcome evaluation.Outcome) (models.Evaluation, error) {
	if !outcome.Succeeded() {
		observability.Evaluations().WithLabelValues(evaluation.StatusFailed).Inc()
		message := evaluation.UserMessage(outcome.Err)
		return models.Evaluation{}, s.submissions.UpdateStatus(ctx, outcome.SubmissionID, models.SubmissionStatusFailed, message)
	}

	model := evaluationModel(assignmentID, outcome.SubmissionID, *outcome.Result)
	if err := s.evaluations.Upsert(ctx, &model); err != nil {
		return models.Evaluation{}, err
	}
	if err := s.submissions.UpdateStatus(ctx, outcome.SubmissionID, models.SubmissionStatusEvaluated, ""); err != nil {
		return models.Evaluation{}, err
	}
	observability.Evaluations().WithLabelValues(evaluation.StatusEvaluated).Inc()
	return model, nil
}

func (s *evaluationService) emit(ctx context.Context, event dto.ProgressEvent) {
	if s.progress == nil {
		return
	}
	s.progress.Publish(ctx, event)
}

func (s *evaluationService) acquire(assignmentID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.running[assignmentID]; busy {
		return false
	}
	s.running[assignmentID] = struct{}{}
	return true
}

func (s *evaluationService) release(assignmentID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.running, assignmentID)
}

func batchItem(submission models.Submission) evaluation.BatchItem {
	return evaluation.BatchItem{
		SubmissionID: submission.ID,
		Label:        submission.FileName,
		Text:         submission.Content,
	}
}

func evaluationModel(assignmentID, submissionID uint, result evaluation.Result) models.Evaluation {
	return models.Evaluation{
		SubmissionID:          submissionID,
		AssignmentID:          assignmentID,
		TotalScore:            result.TotalScore,
		MaxScore:              result.MaxScore,
		OverallPercentage:     result.OverallPercentage,
		KeywordCoverage:       result.KeywordCoverage,
		MatchedKeywords:       datatypes.JSONSlice[string](result.MatchedKeywords),
		MissingKeywords:       datatypes.JSONSlice[string](result.MissingKeywords),
		ContentQuality:        result.Rubric.ContentQuality,
		StructureOrganization: result.Rubric.StructureOrganization,
		CriticalThinking:      result.Rubric.CriticalThinking,
		Feedback:              result.Feedback,
		Strengths:             datatypes.JSONSlice[string](result.Strengths),
		AreasForImprovement:   datatypes.JSONSlice[string](result.AreasForImprovement),
		IsLowEffort:           result.IsLowEffort,
		WordCount:             result.WordCount,
		KeywordHitCount:       result.KeywordHitCount,
		Warning:               result.Warning,
		Model:                 result.Model,
	}
}

func resultFromModel(model models.Evaluation) evaluation.Result {
	return evaluation.Result{
		MatchedKeywords: model.MatchedKeywords,
		MissingKeywords: model.MissingKeywords,
		Rubric: evaluation.RubricScores{
			ContentQuality:        model.ContentQuality,
			StructureOrganization: model.StructureOrganization,
			CriticalThinking:      model.CriticalThinking,
		},
		KeywordCoverage:     model.KeywordCoverage,
		OverallPercentage:   model.OverallPercentage,
		TotalScore:          model.TotalScore,
		MaxScore:            model.MaxScore,
		IsLowEffort:         model.IsLowEffort,
		WordCount:           model.WordCount,
		KeywordHitCount:     model.KeywordHitCount,
		Feedback:            model.Feedback,
		Warning:             model.Warning,
		Strengths:           model.Strengths,
		AreasForImprovement: model.AreasForImprovement,
		Model:               model.Model,
	}
}
