package handler

import "github.com/diagnosphere/skincheck-api/internal/core/domain"

// --- Request / Response types ---

// Presence is checked by the auth service so a missing field yields the
// single "all fields are required" message; tags here only bound lengths.
type registerRequest struct {
	Name     string `json:"name"     validate:"max=100"`
	Email    string `json:"email"    validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

type loginRequest struct {
	Email    string `json:"email"    validate:"max=254"`
	Password string `json:"password" validate:"max=72"`
}

type authResponse struct {
	Token string            `json:"token"`
	User  domain.PublicUser `json:"user"`
}

type logoutResponse struct {
	Success bool `json:"success"`
}

// errorResponse documents the error envelope for swagger; rendering lives in
// the api package's error handler.
type errorResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}
