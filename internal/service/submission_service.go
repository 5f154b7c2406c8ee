package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
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
	"github.com/noah-isme/grade-sanchalaak/pkg/fileparser"
)

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionForbidden indicates a student tried to reach another student's work.
	ErrSubmissionForbidden = errors.New("submission belongs to another student")
	// ErrAssignmentPastDue indicates a student uploaded after the deadline.
	ErrAssignmentPastDue = errors.New("assignment is past due")
	// ErrFileRequired indicates an upload without any file part.
	ErrFileRequired = errors.New("submission file is required")
)

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// DocumentParser converts an uploaded file into text.
type DocumentParser interface {
	Parse(name string, data []byte) (fileparser.Document, error)
}

// Actor is the authenticated caller.
type Actor struct {
	ID   uint
	Role string
}

// IsStaff reports whether the actor may see every student's work.
func (a Actor) IsStaff() bool {
	return a.Role == "teacher" || a.Role == "admin"
}

// SubmissionService orchestrates submission workflows.
type SubmissionService interface {
	Upload(ctx context.Context, payload dto.SubmissionUploadRequest, file *multipart.FileHeader, actor Actor) (dto.SubmissionResponse, error)
	UploadBatch(ctx context.Context, assignmentID uint, files []*multipart.FileHeader, actor Actor) (dto.BatchUploadResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter, actor Actor) ([]dto.SubmissionResponse, error)
	Get(ctx context.Context, id uint, actor Actor) (dto.SubmissionResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	assignments repository.AssignmentRepository
	parser      DocumentParser
	uploader    FileUploader
	reports     *ReportCache
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	maxBytes    int64
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance. A nil uploader
// keeps only the extracted text.
func NewSubmissionService(subRepo repository.SubmissionRepository, assignmentRepo repository.AssignmentRepository, parser DocumentParser, uploader FileUploader, reports *ReportCache, validate *validator.Validate, maxSizeMB int, logger zerolog.Logger) SubmissionService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &submissionService{
		submissions: subRepo,
		assignments: assignmentRepo,
		parser:      parser,
		uploader:    uploader,
		reports:     reports,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/grade-sanchalaak/internal/service/submission"),
		maxBytes:    int64(maxSizeMB) * 1024 * 1024,
		now:         time.Now,
	}
}

func (s *submissionService) Upload(ctx context.Context, payload dto.SubmissionUploadRequest, file *multipart.FileHeader, actor Actor) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	if file == nil {
		return dto.SubmissionResponse{}, ErrFileRequired
	}

	assignment, err := s.loadAssignment(ctx, payload.AssignmentID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	if !actor.IsStaff() && assignment.IsPastDue(s.now()) {
		return dto.SubmissionResponse{}, ErrAssignmentPastDue
	}

	studentID := actor.ID
	if actor.IsStaff() && payload.StudentID != 0 {
		studentID = payload.StudentID
	}

	created, err := s.store(ctx, assignment, studentID, file)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.reports.Invalidate(ctx, assignment.ID)
	return dto.NewSubmissionResponse(created), nil
}

// UploadBatch stores each file independently; one bad file never rejects the others.
func (s *submissionService) UploadBatch(ctx context.Context, assignmentID uint, files []*multipart.FileHeader, actor Actor) (dto.BatchUploadResponse, error) {
	if len(files) == 0 {
		return dto.BatchUploadResponse{}, ErrFileRequired
	}

	assignment, err := s.loadAssignment(ctx, assignmentID)
	if err != nil {
		return dto.BatchUploadResponse{}, err
	}

	response := dto.BatchUploadResponse{
		AssignmentID: assignmentID,
		Created:      make([]dto.SubmissionResponse, 0, len(files)),
		Failed:       make([]dto.BatchUploadFailure, 0),
	}

	for _, file := range files {
		if err := ctx.Err(); err != nil {
			return response, err
		}

		created, err := s.store(ctx, assignment, actor.ID, file)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", file.Filename).Uint("assignment_id", assignmentID).Msg("batch upload file rejected")
			response.Failed = append(response.Failed, dto.BatchUploadFailure{FileName: file.Filename, Error: evaluation.UserMessage(err)})
			continue
		}
		response.Created = append(response.Created, dto.NewSubmissionResponse(created))
	}

	s.reports.Invalidate(ctx, assignmentID)
	s.logger.Info().
		Uint("assignment_id", assignmentID).
		Int("created", len(response.Created)).
		Int("failed", len(response.Failed)).
		Msg("batch upload processed")

	return response, nil
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter, actor Actor) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	repoFilter := repository.SubmissionFilter{
		AssignmentID:   filter.AssignmentID,
		StudentID:      filter.StudentID,
		WithoutContent: true,
	}
	if filter.Status != nil {
		repoFilter.Statuses = []string{*filter.Status}
	}
	if !actor.IsStaff() {
		own := actor.ID
		repoFilter.StudentID = &own
	}

	submissions, err := s.submissions.List(ctx, repoFilter)
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) Get(ctx context.Context, id uint, actor Actor) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	if !actor.IsStaff() && submission.StudentID != actor.ID {
		return dto.SubmissionResponse{}, ErrSubmissionForbidden
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) store(ctx context.Context, assignment models.Assignment, studentID uint, file *multipart.FileHeader) (models.Submission, error) {
	ctx, span := s.tracer.Start(ctx, "submissions.store", trace.WithAttributes(
		attribute.Int("assignment.id", int(assignment.ID)),
		attribute.String("upload.original_name", strings.TrimSpace(file.Filename)),
		attribute.Int64("upload.request_size", file.Size),
	))
	defer span.End()

	if file.Size > s.maxBytes {
		observability.UploadRejected().WithLabelValues("size").Inc()
		err := &fileparser.Error{FileName: file.Filename, Kind: fileparser.ErrTooLarge}
		span.RecordError(err)
		span.SetStatus(codes.Error, "payload too large")
		return models.Submission{}, err
	}

	handle, err := file.Open()
	if err != nil {
		span.RecordError(err)
		return models.Submission{}, fmt.Errorf("failed to open file: %w", err)
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxBytes+1)); err != nil {
		span.RecordError(err)
		return models.Submission{}, fmt.Errorf("failed to read file: %w", err)
	}

	doc, err := s.parser.Parse(file.Filename, buf.Bytes())
	if err != nil {
		observability.UploadRejected().WithLabelValues(rejectionReason(err)).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "parse failed")
		return models.Submission{}, err
	}
	span.SetAttributes(attribute.String("upload.format", string(doc.Format)))

	var fileURL string
	if s.uploader != nil {
		fileURL, err = s.uploader.Upload(ctx, file.Filename, bytes.NewReader(buf.Bytes()))
		if err != nil {
			observability.UploadRejected().WithLabelValues("storage").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage failed")
			return models.Submission{}, fmt.Errorf("failed to upload file: %w", err)
		}
	}

	submission := models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    studentID,
		FileName:     file.Filename,
		FileURL:      fileURL,
		Format:       string(doc.Format),
		Content:      doc.Text,
		WordCount:    len(strings.Fields(doc.Text)),
		Status:       models.SubmissionStatusSubmitted,
	}

	if err := s.submissions.Create(ctx, &submission); err != nil {
		span.RecordError(err)
		return models.Submission{}, err
	}

	observability.SubmissionsStored().WithLabelValues(string(doc.Format)).Inc()
	s.logger.Info().
		Uint("submission_id", submission.ID).
		Uint("assignment_id", assignment.ID).
		Str("format", string(doc.Format)).
		Int("words", submission.WordCount).
		Msg("submission stored")

	return submission, nil
}

func (s *submissionService) loadAssignment(ctx context.Context, id uint) (models.Assignment, error) {
	assignment, err := s.assignments.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Assignment{}, ErrAssignmentNotFound
		}
		return models.Assignment{}, err
	}
	return assignment, nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, fileparser.ErrUnsupportedFormat):
		return "type"
	case errors.Is(err, fileparser.ErrTooLarge):
		return "size"
	default:
		return "parse"
	}
}
