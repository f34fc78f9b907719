package ports

import (
	"context"
	"io"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
)

// ClassifyInput is what the inference collaborator receives.
type ClassifyInput struct {
	DiagnosisID string
	Image       io.Reader
	ContentType string
	Symptoms    domain.Symptoms
}

// Classifier computes ranked conditions from an image and questionnaire
// answers. Whatever it returns is stored unmodified.
type Classifier interface {
	Classify(ctx context.Context, in ClassifyInput) (*domain.Results, error)
}
