package domain

import (
	"encoding/hex"
	"time"
)

// DiagnosisStatus is the workflow state of a diagnosis.
type DiagnosisStatus string

const (
	StatusCreated   DiagnosisStatus = "created"
	StatusCompleted DiagnosisStatus = "completed"
)

// validTransitions is forward-only; Completed is terminal.
var validTransitions = map[DiagnosisStatus][]DiagnosisStatus{
	StatusCreated: {StatusCompleted},
}

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s DiagnosisStatus) CanTransitionTo(next DiagnosisStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Symptoms is the questionnaire answers, keyed by question. Stored verbatim.
type Symptoms map[string]any

// Condition is one ranked entry returned by the classifier. Probability is an
// independent confidence score; entries are not normalized to sum to 1.
type Condition struct {
	Name        string   `json:"name" bson:"name"`
	Probability float64  `json:"probability" bson:"probability"`
	Description string   `json:"description,omitempty" bson:"description,omitempty"`
	NextSteps   []string `json:"nextSteps,omitempty" bson:"next_steps,omitempty"`
	Treatments  []string `json:"treatments,omitempty" bson:"treatments,omitempty"`
	Severity    string   `json:"severity,omitempty" bson:"severity,omitempty"`
}

// Results is the computed outcome attached when symptoms are submitted.
type Results struct {
	Predictions     []Condition `json:"predictions" bson:"predictions"`
	Severity        string      `json:"severity" bson:"severity"`
	Recommendations []string    `json:"recommendations" bson:"recommendations"`
}

// Diagnosis ties one user, one uploaded image and, once completed, one
// symptom/result pair.
type Diagnosis struct {
	ID        string
	UserID    string
	ImageURL  string
	ImageKey  string
	Symptoms  Symptoms
	Results   *Results
	CreatedAt time.Time
}

// Status derives the workflow state from the attached payloads.
func (d *Diagnosis) Status() DiagnosisStatus {
	if d.Results != nil {
		return StatusCompleted
	}
	return StatusCreated
}

// OwnedBy reports whether userID owns the diagnosis.
func (d *Diagnosis) OwnedBy(userID string) bool {
	return d.UserID == userID
}

// ValidateID rejects identifiers that cannot address a stored record:
// anything other than 24 hex characters.
func ValidateID(id string) error {
	if len(id) != 24 {
		return NewValidationError("invalid diagnosis ID")
	}
	if _, err := hex.DecodeString(id); err != nil {
		return NewValidationError("invalid diagnosis ID")
	}
	return nil
}
