package ports

import (
	"context"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
)

// DiagnosisRepository defines persistence operations for diagnoses.
type DiagnosisRepository interface {
	// Create inserts a diagnosis in the created state and sets d.ID.
	Create(ctx context.Context, d *domain.Diagnosis) error
	FindByID(ctx context.Context, id string) (*domain.Diagnosis, error)
	// Complete attaches symptoms and results in a single update. The write only
	// applies to a diagnosis owned by userID that has no results yet; otherwise
	// domain.ErrAlreadySubmitted is returned and nothing changes.
	Complete(ctx context.Context, id, userID string, symptoms domain.Symptoms, results *domain.Results) error
	// ListByUser returns the user's diagnoses, newest first.
	ListByUser(ctx context.Context, userID string) ([]*domain.Diagnosis, error)
}
