package client

import "time"

// User is the public profile returned by the auth endpoints.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// AuthResponse is returned by Register and Login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Condition is one ranked entry of a diagnosis result.
type Condition struct {
	Name        string   `json:"name"`
	Probability float64  `json:"probability"`
	Description string   `json:"description,omitempty"`
	NextSteps   []string `json:"nextSteps,omitempty"`
	Treatments  []string `json:"treatments,omitempty"`
	Severity    string   `json:"severity,omitempty"`
}

// Results is the computed outcome of a diagnosis.
type Results struct {
	Predictions     []Condition `json:"predictions"`
	Severity        string      `json:"severity"`
	Recommendations []string    `json:"recommendations"`
}

type UploadResponse struct {
	DiagnosisID string `json:"diagnosisId"`
	ImageURL    string `json:"imageUrl"`
	Message     string `json:"message"`
}

type SubmitResponse struct {
	DiagnosisID string   `json:"diagnosisId"`
	Results     *Results `json:"results"`
}

type HistoryItem struct {
	ID          string    `json:"id"`
	ImageURL    string    `json:"imageUrl"`
	Date        time.Time `json:"date"`
	Status      string    `json:"status"`
	HasSymptoms bool      `json:"hasSymptoms"`
	HasResults  bool      `json:"hasResults"`
	Results     *Results  `json:"results,omitempty"`
}

type Health struct {
	Status         string `json:"status"`
	StoreConnected bool   `json:"storeConnected"`
}
