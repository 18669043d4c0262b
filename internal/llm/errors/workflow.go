package errors

import "fmt"

// WorkflowError carries a classified completion failure across the activity
// boundary. Type drives retry classification; Code keeps the provider's own
// error code and Details any structured context worth logging.
type WorkflowError struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Code      string         `json:"code"`
	Retryable bool           `json:"retryable"`
	Details   map[string]any `json:"details"`
	Cause     error          `json:"-"`
}

// Error formats the failure with its type and, when present, the provider
// code so log lines stay greppable.
func (e *WorkflowError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the underlying error so errors.Is and errors.As can reach
// the provider failure.
func (e *WorkflowError) Unwrap() error {
	return e.Cause
}

// ShouldRetry returns the explicit retry recommendation. It takes
// precedence over the type-based classification in IsRetryableError.
func (e *WorkflowError) ShouldRetry() bool {
	return e.Retryable
}
