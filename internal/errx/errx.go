// Package errx attaches HTTP semantics to errors crossing the service
// boundary.
package errx

import (
	"errors"
	"fmt"
	"net/http"
)

const (
	// SystemErrorMessage is a user-facing fallback when internal errors occur.
	SystemErrorMessage = "internal server error"
	// InvalidInputMessage describes rejected requests.
	InvalidInputMessage = "invalid request"
	// RunnerErrorMessage describes agent runner failures.
	RunnerErrorMessage = "agent run failed"
	// StorageErrorMessage describes state store failures.
	StorageErrorMessage = "conversation state unavailable"
)

// AppError wraps an underlying error with an HTTP status and safe message.
type AppError struct {
	Err     error
	Status  int
	Message string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError with the provided information.
func New(err error, status int, message string) *AppError {
	return &AppError{
		Err:     err,
		Status:  status,
		Message: message,
	}
}

// InvalidInput marks err as a 400.
func InvalidInput(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadRequest, InvalidInputMessage)
}

// Runner marks err as a failure of the upstream agent runner.
func Runner(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusBadGateway, RunnerErrorMessage)
}

// Storage marks err as a state store failure.
func Storage(err error) error {
	if err == nil {
		return nil
	}
	return New(err, http.StatusServiceUnavailable, StorageErrorMessage)
}

// StatusOf returns the HTTP status carried by err, or 500.
func StatusOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	return http.StatusInternalServerError
}
