package service

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

const (
	// DefaultMaxUploadBytes caps a single image upload.
	DefaultMaxUploadBytes = 5 << 20
	// ImageURLPrefix is the public path images are served under.
	ImageURLPrefix = "/uploads/"

	imageCleanupTimeout = 5 * time.Second
)

// DiagnosisService owns the upload → symptoms → results lifecycle.
type DiagnosisService struct {
	repo           ports.DiagnosisRepository
	images         ports.ImageStore
	classifier     ports.Classifier
	maxUploadBytes int64
	logger         zerolog.Logger
}

func NewDiagnosisService(
	repo ports.DiagnosisRepository,
	images ports.ImageStore,
	classifier ports.Classifier,
	maxUploadBytes int64,
	logger zerolog.Logger,
) *DiagnosisService {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &DiagnosisService{
		repo:           repo,
		images:         images,
		classifier:     classifier,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// UploadImage stores the image bytes and creates a diagnosis in the created
// state. This is the only way a diagnosis comes into existence.
func (s *DiagnosisService) UploadImage(ctx context.Context, in ports.UploadImageInput) (*ports.UploadResult, error) {
	if in.Body == nil || in.Size <= 0 {
		return nil, domain.NewValidationError("no image uploaded")
	}
	if in.Size > s.maxUploadBytes {
		return nil, domain.NewValidationError(fmt.Sprintf("image exceeds the %d byte limit", s.maxUploadBytes))
	}
	if !strings.HasPrefix(in.ContentType, "image/") {
		return nil, domain.NewValidationError("only image files are allowed")
	}

	key := newImageKey(time.Now().UTC(), in.Filename)
	if err := s.images.Save(ctx, key, in.ContentType, in.Size, in.Body); err != nil {
		s.logger.Error().Err(err).Str("owner_id", in.OwnerID).Msg("failed to store image")
		return nil, err
	}

	d := &domain.Diagnosis{
		UserID:    in.OwnerID,
		ImageURL:  ImageURLPrefix + key,
		ImageKey:  key,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, d); err != nil {
		s.logger.Error().Err(err).Str("owner_id", in.OwnerID).Msg("failed to create diagnosis")
		s.discardImage(ctx, key)
		return nil, err
	}

	s.logger.Info().Str("diagnosis_id", d.ID).Str("owner_id", in.OwnerID).Msg("diagnosis created")
	return &ports.UploadResult{DiagnosisID: d.ID, ImageURL: d.ImageURL}, nil
}

// SubmitSymptoms attaches the questionnaire answers, asks the classifier for
// results and stores both together. A diagnosis can only be completed once.
func (s *DiagnosisService) SubmitSymptoms(ctx context.Context, diagnosisID, requesterID string, symptoms domain.Symptoms) (*ports.SubmitResult, error) {
	if err := domain.ValidateID(diagnosisID); err != nil {
		return nil, err
	}

	d, err := s.ownedDiagnosis(ctx, diagnosisID, requesterID)
	if err != nil {
		return nil, err
	}
	if len(symptoms) == 0 {
		return nil, domain.NewValidationError("symptoms are required")
	}
	if !d.Status().CanTransitionTo(domain.StatusCompleted) {
		return nil, domain.ErrAlreadySubmitted
	}

	results, err := s.classify(ctx, d, symptoms)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Complete(ctx, d.ID, requesterID, symptoms, results); err != nil {
		if !errors.Is(err, domain.ErrAlreadySubmitted) {
			s.logger.Error().Err(err).Str("diagnosis_id", d.ID).Msg("failed to store results")
		}
		return nil, err
	}

	s.logger.Info().
		Str("diagnosis_id", d.ID).
		Str("severity", results.Severity).
		Int("conditions", len(results.Predictions)).
		Msg("diagnosis completed")

	return &ports.SubmitResult{DiagnosisID: d.ID, Results: results}, nil
}

// GetResults returns the stored results of a completed diagnosis.
func (s *DiagnosisService) GetResults(ctx context.Context, diagnosisID, requesterID string) (*domain.Results, error) {
	if err := domain.ValidateID(diagnosisID); err != nil {
		return nil, err
	}

	d, err := s.ownedDiagnosis(ctx, diagnosisID, requesterID)
	if err != nil {
		return nil, err
	}
	if d.Results == nil {
		return nil, domain.ErrResultsNotReady
	}
	return d.Results, nil
}

// GetHistory lists every diagnosis owned by requesterID, newest first.
func (s *DiagnosisService) GetHistory(ctx context.Context, requesterID string) ([]ports.HistoryItem, error) {
	items, err := s.repo.ListByUser(ctx, requesterID)
	if err != nil {
		return nil, err
	}

	out := make([]ports.HistoryItem, 0, len(items))
	for _, d := range items {
		out = append(out, ports.HistoryItem{
			ID:          d.ID,
			ImageURL:    d.ImageURL,
			Date:        d.CreatedAt,
			Status:      d.Status(),
			HasSymptoms: len(d.Symptoms) > 0,
			HasResults:  d.Results != nil,
			Results:     d.Results,
		})
	}
	return out, nil
}

// OpenImage resolves an image reference produced by UploadImage.
func (s *DiagnosisService) OpenImage(ctx context.Context, key string) (*ports.StoredImage, error) {
	key = strings.TrimPrefix(key, "/")
	if key == "" || strings.Contains(key, "..") {
		return nil, domain.ErrImageNotFound
	}
	return s.images.Open(ctx, key)
}

// ownedDiagnosis loads a diagnosis and enforces ownership. A missing record
// and a record owned by someone else are reported differently.
func (s *DiagnosisService) ownedDiagnosis(ctx context.Context, diagnosisID, requesterID string) (*domain.Diagnosis, error) {
	d, err := s.repo.FindByID(ctx, diagnosisID)
	if err != nil {
		return nil, err
	}
	if !d.OwnedBy(requesterID) {
		s.logger.Warn().Str("diagnosis_id", diagnosisID).Str("requester_id", requesterID).Msg("diagnosis access denied")
		return nil, domain.ErrForbidden
	}
	return d, nil
}

// discardImage removes an image whose diagnosis could not be recorded. A
// failed delete leaves the key in the log for manual cleanup.
func (s *DiagnosisService) discardImage(ctx context.Context, key string) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), imageCleanupTimeout)
	defer cancel()
	if err := s.images.Delete(dctx, key); err != nil {
		s.logger.Warn().Err(err).Str("image_key", key).Msg("orphaned image left in store")
	}
}

func (s *DiagnosisService) classify(ctx context.Context, d *domain.Diagnosis, symptoms domain.Symptoms) (*domain.Results, error) {
	img, err := s.images.Open(ctx, d.ImageKey)
	if err != nil {
		return nil, fmt.Errorf("open image for diagnosis %s: %w", d.ID, err)
	}
	defer img.Body.Close()

	results, err := s.classifier.Classify(ctx, ports.ClassifyInput{
		DiagnosisID: d.ID,
		Image:       img.Body,
		ContentType: img.ContentType,
		Symptoms:    symptoms,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("diagnosis_id", d.ID).Msg("classification failed")
		return nil, fmt.Errorf("%w: %w", domain.ErrInference, err)
	}
	if results == nil {
		return nil, fmt.Errorf("%w: empty response", domain.ErrInference)
	}
	return results, nil
}

// newImageKey builds a date-partitioned, collision-free storage key that keeps
// the original file extension.
func newImageKey(now time.Time, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 8 || strings.ContainsAny(ext, `/\`) {
		ext = ""
	}
	return fmt.Sprintf("%d/%02d/%02d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
}
