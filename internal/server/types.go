// Package server provides the HTTP surface for the silence-removal
// service. It includes handlers, middleware, routes, and DTOs separated
// from domain types.
package server

// CreateProjectRequest is the HTTP request body for creating an empty
// project ahead of uploads.
type CreateProjectRequest struct {
	// Name is the project display name.
	Name string `json:"name" validate:"required,min=1,max=200"`
	// SilenceThreshold is the peak-level silence threshold in dB.
	SilenceThreshold *int `json:"silenceThreshold" validate:"omitempty,min=-90,max=0"`
	// MinSilenceDuration is the minimum silence run length in milliseconds.
	MinSilenceDuration *int `json:"minSilenceDuration" validate:"omitempty,min=50,max=60000"`
	// OutputFormat selects the processed container: mp3, wav, or flac.
	OutputFormat *string `json:"outputFormat" validate:"omitempty,oneof=mp3 wav flac"`
}

// UpdateProjectRequest is the HTTP request body for updating a project.
// Nil fields are left unchanged.
type UpdateProjectRequest struct {
	Name               *string `json:"name" validate:"omitempty,min=1,max=200"`
	IsFavorite         *bool   `json:"isFavorite"`
	SilenceThreshold   *int    `json:"silenceThreshold" validate:"omitempty,min=-90,max=0"`
	MinSilenceDuration *int    `json:"minSilenceDuration" validate:"omitempty,min=50,max=60000"`
	OutputFormat       *string `json:"outputFormat" validate:"omitempty,oneof=mp3 wav flac"`
}

// FavoriteRequest toggles a project's favorite flag.
type FavoriteRequest struct {
	IsFavorite bool `json:"isFavorite"`
}

// ReprocessRequest carries optional new settings for a reprocessing run.
// Omitted fields fall back to the owning project's current settings.
type ReprocessRequest struct {
	SilenceThreshold   *int    `json:"silenceThreshold" validate:"omitempty,min=-90,max=0"`
	MinSilenceDuration *int    `json:"minSilenceDuration" validate:"omitempty,min=50,max=60000"`
	OutputFormat       *string `json:"outputFormat" validate:"omitempty,oneof=mp3 wav flac"`
}

// ContactRequest is a contact form submission.
type ContactRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Email   string `json:"email" validate:"required,email"`
	Subject string `json:"subject" validate:"required,min=1,max=300"`
	Message string `json:"message" validate:"required,min=1,max=5000"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the human-readable error message.
	Error string `json:"error"`
	// Code is the error code for programmatic handling.
	Code string `json:"code"`
}

// HealthResponse is the HTTP response for the health check endpoint.
type HealthResponse struct {
	// Status is the health status of the service.
	Status string `json:"status"`
}
