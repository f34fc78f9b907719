package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrUserExists         = errors.New("user with this email already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("not authorized to access this diagnosis")
	ErrDiagnosisNotFound  = errors.New("diagnosis not found")
	ErrResultsNotReady    = errors.New("no results available yet")
	ErrAlreadySubmitted   = errors.New("symptoms already submitted for this diagnosis")
	ErrImageNotFound      = errors.New("image not found")
	ErrInference          = errors.New("diagnosis engine unavailable")
	ErrStore              = errors.New("store failure")
)

// ValidationError reports malformed or missing input. It matches ErrValidation
// under errors.Is so callers can test the kind without knowing the message.
type ValidationError struct {
	Msg string
}

func NewValidationError(msg string) error {
	return &ValidationError{Msg: msg}
}

func (e *ValidationError) Error() string { return e.Msg }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
