package handler

import (
	"errors"
	"time"

	"github.com/diagnosphere/skincheck-api/internal/core/domain"
	"github.com/diagnosphere/skincheck-api/internal/core/ports"
)

// --- Service output → Response ---

func toHistoryResponse(items []ports.HistoryItem) []historyItemResponse {
	out := make([]historyItemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, historyItemResponse{
			ID:          it.ID,
			ImageURL:    it.ImageURL,
			Date:        it.Date.UTC().Format(time.RFC3339),
			Status:      string(it.Status),
			HasSymptoms: it.HasSymptoms,
			HasResults:  it.HasResults,
			Results:     it.Results,
		})
	}
	return out
}

// errorReason reduces a workflow error to a low-cardinality metric label.
func errorReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return "validation"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrDiagnosisNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrResultsNotReady):
		return "not_ready"
	case errors.Is(err, domain.ErrAlreadySubmitted):
		return "already_submitted"
	case errors.Is(err, domain.ErrInference):
		return "inference"
	default:
		return "internal"
	}
}
