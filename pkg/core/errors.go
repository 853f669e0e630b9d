// Package core defines the shared error taxonomy for the resolution engine.
// Every failure surfaced to a caller carries a stable machine-readable code;
// categories describe which recovery strategy (if any) applies.
package core

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies a failure by the recovery strategy it admits.
type ErrorCategory int

const (
	CategoryNone         ErrorCategory = iota // No error
	CategoryAvailability                      // Window/app unreachable within budget
	CategoryResolution                        // No candidate met the criteria
	CategoryVerification                      // Action issued but never confirmed by polling
	CategoryCache                             // Cache schema/fingerprint mismatch or I/O failure
	CategoryStructural                        // A cached path no longer resolves
)

// String returns the string representation of ErrorCategory.
func (c ErrorCategory) String() string {
	switch c {
	case CategoryNone:
		return "none"
	case CategoryAvailability:
		return "availability"
	case CategoryResolution:
		return "resolution"
	case CategoryVerification:
		return "verification"
	case CategoryCache:
		return "cache"
	case CategoryStructural:
		return "structural"
	default:
		return "unknown"
	}
}

// ResolutionError is a structured error with a stable code and category.
type ResolutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: WINDOW_NOT_READY, SEARCH_MISS, ...
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface.
func (e *ResolutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *ResolutionError) Unwrap() error {
	return e.Cause
}

// Is matches another *ResolutionError by code, so sentinel values compare
// equal to their WithCause/WithDetails copies.
func (e *ResolutionError) Is(target error) bool {
	var re *ResolutionError
	if !errors.As(target, &re) {
		return false
	}
	return e.Code == re.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *ResolutionError) WithCause(cause error) *ResolutionError {
	return &ResolutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message.
func (e *ResolutionError) WithMessage(msg string) *ResolutionError {
	return &ResolutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details merged in.
func (e *ResolutionError) WithDetails(details map[string]interface{}) *ResolutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ResolutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors, one per stable code.
var (
	// Availability
	ErrWindowNotReady = &ResolutionError{
		Category: CategoryAvailability,
		Code:     "WINDOW_NOT_READY",
		Message:  "no usable window appeared within the recovery budget",
	}

	// Resolution
	ErrSearchMiss = &ResolutionError{
		Category: CategoryResolution,
		Code:     "SEARCH_MISS",
		Message:  "no search result matched the query",
	}
	ErrSearchFieldMissing = &ResolutionError{
		Category: CategoryResolution,
		Code:     "SEARCH_FIELD_MISSING",
		Message:  "search field could not be located",
	}
	ErrInputFieldMissing = &ResolutionError{
		Category: CategoryResolution,
		Code:     "INPUT_FIELD_MISSING",
		Message:  "message input field could not be located",
	}
	ErrTranscriptMissing = &ResolutionError{
		Category: CategoryResolution,
		Code:     "TRANSCRIPT_MISSING",
		Message:  "transcript container could not be located",
	}

	// Verification
	ErrFocusFail = &ResolutionError{
		Category: CategoryVerification,
		Code:     "FOCUS_FAIL",
		Message:  "element did not report focus after focus attempts",
	}
	ErrInputNotReflected = &ResolutionError{
		Category: CategoryVerification,
		Code:     "INPUT_NOT_REFLECTED",
		Message:  "typed text was not reflected in the field value",
	}
	ErrEnterNotEffective = &ResolutionError{
		Category: CategoryVerification,
		Code:     "ENTER_NOT_EFFECTIVE",
		Message:  "confirmation keystroke produced no observable effect",
	}
	ErrOpenNotConfirmed = &ResolutionError{
		Category: CategoryVerification,
		Code:     "OPEN_NOT_CONFIRMED",
		Message:  "chat window did not appear after activation",
	}
	ErrCloseNotConfirmed = &ResolutionError{
		Category: CategoryVerification,
		Code:     "CLOSE_NOT_CONFIRMED",
		Message:  "window was not removed from the window list",
	}

	// Cache
	ErrCacheMismatch = &ResolutionError{
		Category: CategoryCache,
		Code:     "CACHE_MISMATCH",
		Message:  "cache schema or application fingerprint mismatch",
	}
	ErrCacheIO = &ResolutionError{
		Category: CategoryCache,
		Code:     "CACHE_IO",
		Message:  "cache document could not be read or written",
	}

	// Structural
	ErrPathStale = &ResolutionError{
		Category: CategoryStructural,
		Code:     "PATH_STALE",
		Message:  "cached path no longer resolves in the live tree",
	}
)

// New creates a new ResolutionError with the given parameters.
func New(category ErrorCategory, code, message string) *ResolutionError {
	return &ResolutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}

// CodeOf returns the stable code of err, or "" when err carries none.
func CodeOf(err error) string {
	var re *ResolutionError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}
