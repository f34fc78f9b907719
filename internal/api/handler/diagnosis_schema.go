package handler

import "github.com/diagnosphere/skincheck-api/internal/core/domain"

type uploadResponse struct {
	DiagnosisID string `json:"diagnosisId"`
	ImageURL    string `json:"imageUrl"`
	Message     string `json:"message"`
}

type submitResponse struct {
	DiagnosisID string          `json:"diagnosisId"`
	Results     *domain.Results `json:"results"`
}

type historyItemResponse struct {
	ID          string          `json:"id"`
	ImageURL    string          `json:"imageUrl"`
	Date        string          `json:"date"`
	Status      string          `json:"status"`
	HasSymptoms bool            `json:"hasSymptoms"`
	HasResults  bool            `json:"hasResults"`
	Results     *domain.Results `json:"results,omitempty"`
}
