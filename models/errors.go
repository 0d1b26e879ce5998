package models

import "errors"

// Error kinds shared by the store, service and HTTP layers. Callers wrap them with
// fmt.Errorf("%w: ...") and the HTTP layer maps them to status codes with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("not allowed")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrUpstream     = errors.New("upstream failure")
)
