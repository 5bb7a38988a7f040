package service

import "errors"

// ErrPermissionDenied means the caller is authenticated but does not own or
// may not mutate the resource.
var ErrPermissionDenied = errors.New("permission denied")

// ValidationError carries a caller-facing message for malformed input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErr(msg string) error {
	return &ValidationError{Message: msg}
}
