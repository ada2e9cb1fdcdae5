package analyses

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"cropguard/internal/imagecheck"
	"cropguard/internal/shared/metrics"
	"cropguard/internal/shared/storage/object"
	"cropguard/internal/shared/telemetry"
)

// Analyzer produces a report for one image. *Orchestrator implements it.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, imageRef string) (AnalysisReport, error)
}

// Service contains business logic for analyses.
type Service struct {
	Repo      Repo
	Store     object.ImageStore
	Analyzer  Analyzer
	Validator *imagecheck.Validator

	now func() time.Time
}

// CreateInput is one uploaded photo plus the user's annotations.
type CreateInput struct {
	UserID   string
	FileName string
	Image    []byte
	Location string
	Notes    string
}

// Create validates the photo, runs the analysis, stores the image and
// persists the record. Nothing is stored when the analysis fails.
func (s *Service) Create(ctx context.Context, in CreateInput) (Analysis, error) {
	if in.UserID == "" {
		return Analysis{}, ErrMissingUser
	}
	validator := s.Validator
	if validator == nil {
		validator = imagecheck.New(imagecheck.DefaultMaxBytes)
	}
	info, err := validator.Validate(in.Image)
	if err != nil {
		return Analysis{}, err
	}

	requestID := requestIDFromContext(ctx)
	startedAt := s.clock()
	metrics.IncAnalysisStarted()

	report, err := s.Analyzer.Analyze(ctx, in.Image, in.FileName)
	if err != nil {
		cause := failureCause(err)
		metrics.IncAnalysisFailed(cause)
		metrics.ObserveAnalysisDuration(s.clock().Sub(startedAt))
		telemetry.Warn("analysis.failed", map[string]any{
			"request_id": requestID,
			"user_id":    in.UserID,
			"cause":      cause,
			"error":      err,
		})
		return Analysis{}, err
	}

	var imageKey string
	if s.Store != nil {
		imageKey, err = s.Store.Put(ctx, object.Image{
			OwnerID:     in.UserID,
			FileName:    in.FileName,
			ContentType: info.ContentType,
			Extension:   info.Extension,
			Data:        in.Image,
		})
		if err != nil {
			metrics.IncAnalysisFailed("storage")
			return Analysis{}, fmt.Errorf("%w: store image: %v", ErrStorage, err)
		}
		report.ImageReference = imageKey
	}

	now := s.clock().UTC()
	analysis := Analysis{
		ID:        uuid.NewString(),
		UserID:    in.UserID,
		FileName:  in.FileName,
		ImageKey:  imageKey,
		Status:    StatusDetected,
		Location:  in.Location,
		Notes:     in.Notes,
		Report:    report,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Repo.Create(ctx, analysis); err != nil {
		metrics.IncAnalysisFailed("storage")
		if imageKey != "" {
			s.discardImage(ctx, imageKey, in.UserID)
		}
		return Analysis{}, fmt.Errorf("%w: persist analysis: %v", ErrStorage, err)
	}

	metrics.IncAnalysisCompleted(string(report.Severity))
	metrics.ObserveAnalysisDuration(s.clock().Sub(startedAt))
	telemetry.Info("analysis.completed", map[string]any{
		"request_id":  requestID,
		"user_id":     in.UserID,
		"analysis_id": analysis.ID,
		"severity":    report.Severity,
		"crop_type":   report.CropType,
		"source":      report.Source,
		"size_bytes":  info.SizeBytes,
	})
	return analysis, nil
}

// Get returns the user's analysis by ID.
func (s *Service) Get(ctx context.Context, userID, analysisID string) (Analysis, error) {
	if userID == "" {
		return Analysis{}, ErrMissingUser
	}
	if analysisID == "" {
		return Analysis{}, ErrNotFound
	}
	return s.Repo.GetByID(ctx, userID, analysisID)
}

// List returns analyses for a user ordered newest-first.
func (s *Service) List(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}
	return s.Repo.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus moves an analysis to detected, treating or resolved.
func (s *Service) UpdateStatus(ctx context.Context, userID, analysisID, status string) (Analysis, error) {
	if userID == "" {
		return Analysis{}, ErrMissingUser
	}
	if !ValidStatus(status) {
		return Analysis{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	updated, err := s.Repo.UpdateStatus(ctx, userID, analysisID, status)
	if err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":  requestIDFromContext(ctx),
		"user_id":     userID,
		"analysis_id": analysisID,
		"status":      status,
	})
	return updated, nil
}

// OpenImage streams the stored photo behind a user's analysis.
func (s *Service) OpenImage(ctx context.Context, userID, analysisID string) (io.ReadCloser, error) {
	analysis, err := s.Get(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}
	if s.Store == nil || analysis.ImageKey == "" {
		return nil, ErrNotFound
	}
	rc, err := s.Store.Open(ctx, analysis.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("%w: open image: %v", ErrStorage, err)
	}
	return rc, nil
}

// Stats returns the dashboard counters for a user.
func (s *Service) Stats(ctx context.Context, userID string) (Stats, error) {
	if userID == "" {
		return Stats{}, ErrMissingUser
	}
	return s.Repo.Stats(ctx, userID)
}

// discardImage removes a stored photo whose record could not be saved. It runs
// even if ctx was cancelled mid-request.
func (s *Service) discardImage(ctx context.Context, key, userID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Store.Delete(ctx, key); err != nil {
		telemetry.Error("analysis.image_orphaned", map[string]any{
			"request_id": requestIDFromContext(ctx),
			"user_id":    userID,
			"image_key":  key,
			"error":      err,
		})
	}
}

func (s *Service) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func failureCause(err error) string {
	var ae *AnalysisError
	switch {
	case errors.As(err, &ae):
		return string(ae.Cause)
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "deadline_exceeded"
	default:
		return "unknown"
	}
}
