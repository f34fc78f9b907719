package ports

import (
	"context"
	"io"
	"time"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
)

// UploadImageInput carries one uploaded image from the transport layer.
type UploadImageInput struct {
	OwnerID     string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// UploadResult is returned after a diagnosis has been created.
type UploadResult struct {
	DiagnosisID string
	ImageURL    string
}

// SubmitResult is returned once symptoms and results have been attached.
type SubmitResult struct {
	DiagnosisID string
	Results     *domain.Results
}

// HistoryItem is the summary view of one diagnosis in a user's history.
type HistoryItem struct {
	ID          string
	ImageURL    string
	Date        time.Time
	Status      domain.DiagnosisStatus
	HasSymptoms bool
	HasResults  bool
	Results     *domain.Results
}

// DiagnosisService defines the three-step diagnosis workflow.
type DiagnosisService interface {
	UploadImage(ctx context.Context, in UploadImageInput) (*UploadResult, error)
	SubmitSymptoms(ctx context.Context, diagnosisID, requesterID string, symptoms domain.Symptoms) (*SubmitResult, error)
	GetResults(ctx context.Context, diagnosisID, requesterID string) (*domain.Results, error)
	GetHistory(ctx context.Context, requesterID string) ([]HistoryItem, error)
	OpenImage(ctx context.Context, key string) (*StoredImage, error)
}
