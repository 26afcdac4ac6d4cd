package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainBusinessRuleError indicates a business rule violation
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"

	// DomainNotFoundError indicates a resource was not found
	DomainNotFoundError DomainErrorType = "NOT_FOUND"

	// DomainConflictError indicates a conflict with existing state
	DomainConflictError DomainErrorType = "CONFLICT"

	// DomainInfrastructureError indicates a collaborator-level failure
	DomainInfrastructureError DomainErrorType = "INFRASTRUCTURE_ERROR"

	DomainAuthorizationError DomainErrorType = "AUTHORIZATION_ERROR"
	DomainRateLimitError     DomainErrorType = "RATE_LIMIT_ERROR"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type       DomainErrorType        `json:"type"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	Retryable  bool                   `json:"retryable"`
	StatusCode int                    `json:"status_code"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Details:    make(map[string]interface{}),
		StatusCode: domainErrorTypeToStatusCode(errorType),
	}
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// WithRetryable sets whether the error is retryable
func (e *DomainError) WithRetryable(retryable bool) *DomainError {
	e.Retryable = retryable
	return e
}

// WithStatusCode sets a custom HTTP status code
func (e *DomainError) WithStatusCode(code int) *DomainError {
	e.StatusCode = code
	return e
}

// Is matches on Type and Code so that fresh instances compare equal to their sentinel.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// clone returns a detached copy of a sentinel so details never leak between callers.
func (e *DomainError) clone() *DomainError {
	c := *e
	c.Details = make(map[string]interface{}, len(e.Details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	return &c
}

func domainErrorTypeToStatusCode(errorType DomainErrorType) int {
	switch errorType {
	case DomainValidationError:
		return http.StatusBadRequest
	case DomainBusinessRuleError:
		return http.StatusUnprocessableEntity
	case DomainNotFoundError:
		return http.StatusNotFound
	case DomainConflictError:
		return http.StatusConflict
	case DomainAuthorizationError:
		return http.StatusForbidden
	case DomainRateLimitError:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var (
	// Conversation errors
	ErrUnknownStep = NewDomainError(
		DomainNotFoundError,
		"UNKNOWN_STEP",
		"The conversation step is not defined",
	)

	ErrInvalidOption = NewDomainError(
		DomainValidationError,
		"INVALID_OPTION",
		"The option is not offered by the current step",
	)

	ErrInputNotExpected = NewDomainError(
		DomainBusinessRuleError,
		"INPUT_NOT_EXPECTED",
		"The current step does not accept free-text input",
	)

	ErrEmptyInput = NewDomainError(
		DomainValidationError,
		"EMPTY_INPUT",
		"Input text must not be empty",
	)

	ErrInvalidGraph = NewDomainError(
		DomainValidationError,
		"INVALID_GRAPH",
		"The conversation graph is malformed",
	)

	ErrFlowNotFound = NewDomainError(
		DomainNotFoundError,
		"FLOW_NOT_FOUND",
		"The requested conversation flow does not exist",
	)

	// Case errors
	ErrSessionClosed = NewDomainError(
		DomainConflictError,
		"SESSION_CLOSED",
		"The case session does not accept this action",
	)

	ErrCaseNotFound = NewDomainError(
		DomainNotFoundError,
		"CASE_NOT_FOUND",
		"The requested case does not exist",
	)

	ErrInvalidStatusTransition = NewDomainError(
		DomainConflictError,
		"INVALID_STATUS_TRANSITION",
		"The case cannot move to the requested status",
	)

	ErrMessageTooLong = NewDomainError(
		DomainValidationError,
		"MESSAGE_TOO_LONG",
		"Message text exceeds maximum length",
	)

	// Driver errors
	ErrDriverNotFound = NewDomainError(
		DomainNotFoundError,
		"DRIVER_NOT_FOUND",
		"The requested driver registration does not exist",
	)

	ErrDriverAlreadyRegistered = NewDomainError(
		DomainConflictError,
		"DRIVER_ALREADY_REGISTERED",
		"A registration for this driver already exists",
	)

	ErrDriverNotPending = NewDomainError(
		DomainBusinessRuleError,
		"DRIVER_NOT_PENDING",
		"Only pending registrations can be reviewed",
	)

	ErrForbidden = NewDomainError(
		DomainAuthorizationError,
		"FORBIDDEN",
		"User is not allowed to perform this action",
	)

	ErrRateLimitExceeded = NewDomainError(
		DomainRateLimitError,
		"RATE_LIMIT_EXCEEDED",
		"Too many requests, please try again later",
	).WithRetryable(true)

	// Collaborator errors
	ErrStoreUnavailable = NewDomainError(
		DomainInfrastructureError,
		"STORE_UNAVAILABLE",
		"The case store is unavailable",
	).WithRetryable(true).WithStatusCode(http.StatusServiceUnavailable)

	ErrConcurrentModification = NewDomainError(
		DomainConflictError,
		"CONCURRENT_MODIFICATION",
		"The case was modified by another process",
	).WithRetryable(true)

	ErrEventPublishFailed = NewDomainError(
		DomainInfrastructureError,
		"EVENT_PUBLISH_FAILED",
		"Failed to publish domain event",
	).WithRetryable(true)
)

// NewUnknownStepError reports a step identifier missing from a graph.
func NewUnknownStepError(stepID string) *DomainError {
	return ErrUnknownStep.clone().WithDetail("step_id", stepID)
}

// NewInvalidOptionError reports an option the step does not declare.
func NewInvalidOptionError(stepID, option string) *DomainError {
	return ErrInvalidOption.clone().
		WithDetail("step_id", stepID).
		WithDetail("option", option)
}

// NewInputNotExpectedError creates an error for free text on a step that takes options
func NewInputNotExpectedError(stepID string) *DomainError {
	return ErrInputNotExpected.clone().WithDetail("step_id", stepID)
}

// NewEmptyInputError creates an error for blank input
func NewEmptyInputError(stepID string) *DomainError {
	return ErrEmptyInput.clone().WithDetail("step_id", stepID)
}

// NewInvalidGraphError collects every authoring problem found while building a graph.
func NewInvalidGraphError(graph string, problems []string) *DomainError {
	err := ErrInvalidGraph.clone().WithDetail("graph", graph).WithDetail("problems", problems)
	err.Message = fmt.Sprintf("conversation graph %q is malformed: %s", graph, strings.Join(problems, "; "))
	return err
}

// NewFlowNotFoundError creates a flow not found error
func NewFlowNotFoundError(name string) *DomainError {
	return ErrFlowNotFound.clone().WithDetail("flow", name)
}

// NewSessionClosedError reports why a session refused an action.
func NewSessionClosedError(caseID, reason string) *DomainError {
	return ErrSessionClosed.clone().
		WithDetail("case_id", caseID).
		WithDetail("reason", reason)
}

// NewCaseNotFoundError creates a case not found error
func NewCaseNotFoundError(caseID string) *DomainError {
	return ErrCaseNotFound.clone().WithDetail("case_id", caseID)
}

// NewInvalidStatusTransitionError creates an invalid status transition error
func NewInvalidStatusTransitionError(from, to string) *DomainError {
	return ErrInvalidStatusTransition.clone().
		WithDetail("from", from).
		WithDetail("to", to)
}

// NewMessageTooLongError creates a message too long error
func NewMessageTooLongError(maxLength int) *DomainError {
	return ErrMessageTooLong.clone().WithDetail("max_length", maxLength)
}

// NewDriverNotFoundError creates a driver not found error
func NewDriverNotFoundError(driverID string) *DomainError {
	return ErrDriverNotFound.clone().WithDetail("driver_id", driverID)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(action string) *DomainError {
	return ErrForbidden.clone().WithDetail("action", action)
}

// NewStoreUnavailableError wraps a transport failure from the persistence collaborator.
func NewStoreUnavailableError(operation string, cause error) *DomainError {
	return ErrStoreUnavailable.clone().
		WithDetail("operation", operation).
		WithCause(cause)
}

// NewConcurrentModificationError creates a concurrent modification error
func NewConcurrentModificationError(resource string) *DomainError {
	return ErrConcurrentModification.clone().WithDetail("resource", resource)
}

// NewEventPublishFailedError creates an event publish failure error
func NewEventPublishFailedError(cause error) *DomainError {
	return ErrEventPublishFailed.clone().WithCause(cause)
}

// GetDomainError extracts a DomainError from an error chain
func GetDomainError(err error) *DomainError {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return nil
}

// IsRetryable reports whether err carries a retryable DomainError.
func IsRetryable(err error) bool {
	domainErr := GetDomainError(err)
	return domainErr != nil && domainErr.Retryable
}

// ValidationErrors aggregates multiple field validation errors
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{Errors: make([]*DomainError, 0)}
}

// Add adds a validation error for a field
func (v *ValidationErrors) Add(field string, message string) {
	err := NewDomainError(DomainValidationError, "FIELD_VALIDATION_ERROR", message).
		WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}
	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return fmt.Sprintf("Validation failed: %s", strings.Join(messages, "; "))
}

// ToMap groups messages by field for JSON responses
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)
	for _, err := range v.Errors {
		field, ok := err.Details["field"].(string)
		if !ok {
			field = "general"
		}
		result[field] = append(result[field], err.Message)
	}
	return result
}
