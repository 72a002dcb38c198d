package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes for categorization. Each code maps to one recovery policy in
// the aggregation pipeline (see the per-code constructors below).
const (
	ErrCodeValidation = "VALIDATION_ERROR"
	ErrCodeInternal   = "INTERNAL_ERROR"

	// A collaborator lookup failed (network, timeout, non-success status).
	// Recovered locally: the source contributes nothing, aggregation continues.
	ErrCodeSourceUnavailable = "SOURCE_UNAVAILABLE"

	// The directory crawl produced zero usable pages or zero entries.
	ErrCodeNoCandidateFound = "NO_CANDIDATE_FOUND"

	// No crawled candidate passed the name match. Verification is skipped;
	// the aggregate record still carries whatever passive data the
	// collaborators supplied.
	ErrCodeEntityNotMatched = "ENTITY_NOT_MATCHED"

	// A step of an insurance probe failed to find its element or action
	// target. Recovered as a not-accepted outcome for that plan only.
	ErrCodeProbeIncomplete = "PROBE_INCOMPLETE"

	// Neither an acceptance nor a rejection pattern matched the result page.
	ErrCodeClassificationAmbiguous = "CLASSIFICATION_AMBIGUOUS"
)

// DomainError is a structured error carrying a stable code and optional
// context details.
type DomainError struct {
	Code    string
	Message string
	Details map[string]any
	Err     error
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is by comparing codes.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithDetail attaches a context key/value to the error.
func (e *DomainError) WithDetail(key string, value any) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Sentinel domain errors, for use with errors.Is.
var (
	ErrSourceUnavailable = &DomainError{Code: ErrCodeSourceUnavailable, Message: "source unavailable"}
	ErrNoCandidateFound  = &DomainError{Code: ErrCodeNoCandidateFound, Message: "no candidate found"}
	ErrEntityNotMatched  = &DomainError{Code: ErrCodeEntityNotMatched, Message: "entity not matched"}
	ErrProbeIncomplete   = &DomainError{Code: ErrCodeProbeIncomplete, Message: "probe incomplete"}
	ErrInvalidInput      = &DomainError{Code: ErrCodeValidation, Message: "invalid input"}
)

// SourceUnavailableError wraps a failed collaborator lookup.
func SourceUnavailableError(source string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeSourceUnavailable,
		Message: fmt.Sprintf("source %s unavailable", source),
		Details: map[string]any{"source": source},
		Err:     err,
	}
}

// EntityNotMatchedError reports that no crawled candidate matched the target.
func EntityNotMatchedError(target string, candidates int) *DomainError {
	return &DomainError{
		Code:    ErrCodeEntityNotMatched,
		Message: fmt.Sprintf("no candidate matched %q", target),
		Details: map[string]any{"target": target, "candidates": candidates},
		Err:     ErrEntityNotMatched,
	}
}

// ProbeIncompleteError reports a probe that could not complete its sequence.
func ProbeIncompleteError(plan, step string, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeProbeIncomplete,
		Message: fmt.Sprintf("probe for %q failed at %s", plan, step),
		Details: map[string]any{"plan": plan, "step": step},
		Err:     err,
	}
}

// ValidationError creates a validation domain error for a named field.
func ValidationError(field, message string) *DomainError {
	return &DomainError{
		Code:    ErrCodeValidation,
		Message: message,
		Details: map[string]any{"field": field},
		Err:     ErrInvalidInput,
	}
}

// AsDomainError converts an error to a DomainError if possible.
func AsDomainError(err error) (*DomainError, bool) {
	var derr *DomainError
	if errors.As(err, &derr) {
		return derr, true
	}
	return nil, false
}

// GetErrorCode returns the stable code for an error.
func GetErrorCode(err error) string {
	if derr, ok := AsDomainError(err); ok {
		return derr.Code
	}
	return ErrCodeInternal
}

// GetHTTPStatus maps a domain error to an HTTP status for the API layer.
func GetHTTPStatus(err error) int {
	switch GetErrorCode(err) {
	case ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeEntityNotMatched, ErrCodeNoCandidateFound:
		return http.StatusNotFound
	case ErrCodeSourceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
