package domain

import "errors"

// Sentinel errors for the application.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("resource already exists")
	ErrInvalidInput      = errors.New("invalid input")
	ErrInvalidTransition = errors.New("illegal control mode transition")
	ErrAPIFailure        = errors.New("api reported failure")
)
