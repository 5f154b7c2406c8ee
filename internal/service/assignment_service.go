package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/noah-isme/grade-sanchalaak/internal/dto"
	"github.com/noah-isme/grade-sanchalaak/internal/evaluation"
	"github.com/noah-isme/grade-sanchalaak/internal/models"
	"github.com/noah-isme/grade-sanchalaak/internal/observability"
	"github.com/noah-isme/grade-sanchalaak/internal/repository"
)

var (
	// ErrAssignmentNotFound indicates the requested assignment does not exist.
	ErrAssignmentNotFound = errors.New("assignment not found")
	// ErrKeywordsAlreadyExtracted indicates the keyword set is fixed until the problem statement changes.
	ErrKeywordsAlreadyExtracted = errors.New("assignment keywords already extracted")
)

// KeywordExtractor derives the reference keywords of a problem statement.
type KeywordExtractor interface {
	Extract(ctx context.Context, problem string) (evaluation.KeywordSet, error)
	Model() string
}

// AssignmentService exposes assignment domain use cases.
type AssignmentService interface {
	List(ctx context.Context, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error)
	Get(ctx context.Context, id uint) (dto.AssignmentResponse, error)
	Create(ctx context.Context, payload dto.AssignmentCreateRequest, creatorID uint) (dto.AssignmentResponse, error)
	Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error)
	Delete(ctx context.Context, id uint) error
	ExtractKeywords(ctx context.Context, id uint) (dto.AssignmentResponse, error)
}

type assignmentService struct {
	repo       repository.AssignmentRepository
	extractor  KeywordExtractor
	reports    *ReportCache
	validator  *validator.Validate
	logger     zerolog.Logger
	tracer     trace.Tracer
	defaultMax float64
}

// NewAssignmentService builds a new assignment service. defaultMarks applies
// when an assignment is created without total marks.
func NewAssignmentService(repo repository.AssignmentRepository, extractor KeywordExtractor, reports *ReportCache, validate *validator.Validate, defaultMarks float64, logger zerolog.Logger) AssignmentService {
	if defaultMarks <= 0 {
		defaultMarks = 100
	}
	return &assignmentService{
		repo:       repo,
		extractor:  extractor,
		reports:    reports,
		validator:  validate,
		logger:     logger.With().Str("component", "assignment_service").Logger(),
		tracer:     otel.Tracer("github.com/noah-isme/grade-sanchalaak/internal/service/assignment"),
		defaultMax: defaultMarks,
	}
}

func (s *assignmentService) List(ctx context.Context, query dto.AssignmentListQuery) (dto.AssignmentListResponse, error) {
	if err := s.validator.Struct(query); err != nil {
		return dto.AssignmentListResponse{}, err
	}

	page := query.Page
	if page <= 0 {
		page = 1
	}
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	search := strings.TrimSpace(query.Search)
	assignments, total, err := s.repo.List(ctx, repository.AssignmentFilter{
		Search:      search,
		Sort:        query.Sort,
		HasKeywords: query.HasKeywords,
		Page:        page,
		PageSize:    pageSize,
	})
	if err != nil {
		return dto.AssignmentListResponse{}, err
	}

	return dto.AssignmentListResponse{
		Items:      dto.NewAssignmentResponseSlice(assignments),
		Pagination: dto.NewPaginationMeta(page, pageSize, total),
		Search:     search,
	}, nil
}

func (s *assignmentService) Get(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	assignment, err := s.load(ctx, id)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Create(ctx context.Context, payload dto.AssignmentCreateRequest, creatorID uint) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	dueDate, err := dto.ParseDueDate(payload.DueDate)
	if err != nil {
		return dto.AssignmentResponse{}, err
	}

	marks := payload.TotalMarks
	if marks <= 0 {
		marks = s.defaultMax
	}

	assignment := models.Assignment{
		Title:            strings.TrimSpace(payload.Title),
		ProblemStatement: strings.TrimSpace(payload.ProblemStatement),
		TotalMarks:       marks,
		DueDate:          dueDate,
		CreatedBy:        creatorID,
	}

	if err := s.repo.Create(ctx, &assignment); err != nil {
		return dto.AssignmentResponse{}, err
	}

	s.logger.Info().Uint("assignment_id", assignment.ID).Msg("assignment created")

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Update(ctx context.Context, id uint, payload dto.AssignmentUpdateRequest) (dto.AssignmentResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.AssignmentResponse{}, err
	}

	var changes repository.AssignmentChanges
	if payload.Title != nil {
		title := strings.TrimSpace(*payload.Title)
		changes.Title = &title
	}
	if payload.ProblemStatement != nil {
		problem := strings.TrimSpace(*payload.ProblemStatement)
		changes.ProblemStatement = &problem
	}
	changes.TotalMarks = payload.TotalMarks
	if payload.DueDate != nil {
		dueDate, err := dto.ParseDueDate(*payload.DueDate)
		if err != nil {
			return dto.AssignmentResponse{}, err
		}
		changes.DueDate = dueDate
		changes.ClearDueDate = dueDate == nil
	}

	assignment, reset, err := s.repo.Update(ctx, id, changes)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}
	if reset {
		s.logger.Info().Uint("assignment_id", id).Msg("problem statement changed, keyword set and evaluations cleared")
	}
	s.reports.Invalidate(ctx, id)

	return dto.NewAssignmentResponse(assignment), nil
}

func (s *assignmentService) Delete(ctx context.Context, id uint) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAssignmentNotFound
		}
		return err
	}
	s.reports.Invalidate(ctx, id)
	return nil
}

func (s *assignmentService) ExtractKeywords(ctx context.Context, id uint) (dto.AssignmentResponse, error) {
	ctx, span := s.tracer.Start(ctx, "assignments.extract_keywords", trace.WithAttributes(
		attribute.Int("assignment.id", int(id)),
	))
	defer span.End()

	assignment, err := s.load(ctx, id)
	if err != nil {
		span.RecordError(err)
		return dto.AssignmentResponse{}, err
	}

	if assignment.HasKeywords() {
		observability.KeywordExtractions().WithLabelValues("locked").Inc()
		return dto.AssignmentResponse{}, ErrKeywordsAlreadyExtracted
	}

	start := time.Now()
	set, err := s.extractor.Extract(ctx, assignment.ProblemStatement)
	if err != nil {
		observability.KeywordExtractions().WithLabelValues(extractionOutcome(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "extraction failed")
		s.logger.Warn().Err(err).Uint("assignment_id", id).Msg("keyword extraction failed")
		return dto.AssignmentResponse{}, err
	}

	stored, err := s.repo.SetKeywords(ctx, id, set.Items(), s.extractor.Model())
	if err != nil {
		if errors.Is(err, repository.ErrKeywordsLocked) {
			observability.KeywordExtractions().WithLabelValues("locked").Inc()
			return dto.AssignmentResponse{}, ErrKeywordsAlreadyExtracted
		}
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AssignmentResponse{}, ErrAssignmentNotFound
		}
		return dto.AssignmentResponse{}, err
	}

	observability.KeywordExtractions().WithLabelValues("success").Inc()
	span.SetAttributes(attribute.Int("keywords.count", set.Len()))
	s.logger.Info().
		Uint("assignment_id", id).
		Int("keywords", set.Len()).
		Dur("duration", time.Since(start)).
		Msg("keywords extracted")

	return dto.NewAssignmentResponse(stored), nil
}

func (s *assignmentService) load(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func extractionOutcome(err error) string {
	switch {
	case errors.Is(err, evaluation.ErrInsufficientKeywords):
		return "insufficient"
	case errors.Is(err, evaluation.ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, evaluation.ErrEmptyProblemStatement):
		return "empty"
	default:
		return "upstream"
	}
}
