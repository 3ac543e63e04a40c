package models

import "fmt"

// Error codes used in internal error handling and completion reports.
const (
	ErrCodeSessionFailed  = "SESSION_FAILED"
	ErrCodeSessionLost    = "SESSION_LOST"
	ErrCodeNavigation     = "NAVIGATION_FAILED"
	ErrCodeTimeout        = "WAIT_TIMEOUT"
	ErrCodeDiscoveryEmpty = "DISCOVERY_EMPTY"
	ErrCodeExportFailed   = "EXPORT_FAILED"
	ErrCodeInvalidConfig  = "INVALID_CONFIG"
	ErrCodeInternal       = "INTERNAL_ERROR"
)

// RunError is the internal error type carrying an error code.
// It implements the error interface and supports error wrapping via Unwrap.
type RunError struct {
	Code    string
	Message string
	Err     error // wrapped original error
}

func (e *RunError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// NewRunError creates a new RunError.
func NewRunError(code, message string, err error) *RunError {
	return &RunError{Code: code, Message: message, Err: err}
}
