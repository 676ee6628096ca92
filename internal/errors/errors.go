// Package errors provides centralized error definitions and error handling
// utilities for the Omni codebase. It defines domain-specific errors,
// semantic error types, error constructors with context wrapping, and error
// classification helpers.
//
// # Error Types
//
// The package provides two categories of errors:
//
// Domain-specific errors represent errors from specific subsystems:
//   - InitializationError: a collaborator (recognizer, synthesizer, wake word
//     detector) failed to start; fatal to processor startup
//   - ProcessingError: a task exhausted its retry budget
//   - CacheError: an invalid key, TTL, or oversize value on a cache call
//   - ListeningError: a failure inside the listening cycle
//
// Semantic errors represent common error conditions:
//   - NotFoundError: resource not found
//   - ValidationError: invalid input or state
//   - TimeoutError: operation timed out (retryable by default)
//
// # Usage
//
// Creating errors:
//
//	// Domain-specific error
//	err := errors.NewProcessingError("all attempts failed", errors.ErrRetriesExhausted).
//		WithTaskType("weather").WithAttempts(3)
//
//	// Semantic error
//	err := errors.NewTimeoutError("task execution", 5*time.Second)
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrTimeout) { ... }
//
//	var procErr *errors.ProcessingError
//	if errors.As(err, &procErr) { ... }
//
//	if errors.IsRetryable(err) { ... }
//	if errors.IsUserFacing(err) { ... }
//
// # Error Classification
//
// Errors can be classified by severity and behavior:
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors whose message is safe to speak or display
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Cache-related sentinel errors
var (
	// ErrInvalidKey indicates that a cache key is empty or malformed.
	ErrInvalidKey = New("invalid cache key")
	// ErrInvalidTTL indicates that a TTL value is negative or unusable.
	ErrInvalidTTL = New("invalid ttl")
	// ErrOversizeValue indicates that a value exceeds the cache size budget on its own.
	ErrOversizeValue = New("value exceeds cache size budget")
	// ErrCacheMiss indicates that a key is absent or expired.
	ErrCacheMiss = New("cache miss")
)

// Scheduler-related sentinel errors
var (
	// ErrRetriesExhausted indicates that a task used up its full retry budget.
	ErrRetriesExhausted = New("retries exhausted")
	// ErrOffline indicates that a task requiring connectivity ran in offline mode.
	ErrOffline = New("network unavailable in offline mode")
	// ErrBatchDiscarded indicates that pending batch items were discarded at shutdown.
	ErrBatchDiscarded = New("batch discarded during shutdown")
)

// Listening-related sentinel errors
var (
	// ErrRecognizerUnavailable indicates that the speech recognizer is not usable.
	ErrRecognizerUnavailable = New("recognizer unavailable")
	// ErrWakeWordUnavailable indicates that the wake word detector is not usable.
	ErrWakeWordUnavailable = New("wake word detector unavailable")
	// ErrNoSpeech indicates that no speech was captured before the listen timeout.
	ErrNoSpeech = New("no speech detected")
)

// General sentinel errors
var (
	// ErrTimeout indicates that an operation timed out.
	ErrTimeout = New("operation timed out")
	// ErrCanceled indicates that an operation was canceled.
	ErrCanceled = New("operation canceled")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrShuttingDown indicates that the processor is stopping and rejected new work.
	ErrShuttingDown = New("processor is shutting down")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// OmniError is the base interface for all Omni errors.
// It extends the standard error interface with additional methods for
// error handling and classification.
type OmniError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	// This is used by errors.Is() for error comparison.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to speak or
	// display to end users.
	IsUserFacing() bool
}

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// InitializationError represents a collaborator that failed to start.
// It is fatal to processor startup and never retried by this core.
//
// Example:
//
//	err := errors.NewInitializationError("failed to load model", cause).
//		WithComponent("recognizer")
type InitializationError struct {
	baseError
	Component string
}

// NewInitializationError creates a new InitializationError.
func NewInitializationError(message string, cause error) *InitializationError {
	return &InitializationError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityCritical,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithComponent adds the failing component name to the error context.
func (e *InitializationError) WithComponent(component string) *InitializationError {
	e.Component = component
	return e
}

// Error returns the formatted error message.
func (e *InitializationError) Error() string {
	prefix := "initialization error"
	if e.Component != "" {
		prefix = fmt.Sprintf("initialization error [component=%s]", e.Component)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *InitializationError) Is(target error) bool {
	if _, ok := target.(*InitializationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ProcessingError represents a task that exhausted its retry budget.
// It is reported to the caller and feedback layer, but is non-fatal to
// the processor.
//
// Example:
//
//	err := errors.NewProcessingError("all attempts failed", lastErr).
//		WithTaskType("weather").WithAttempts(3)
type ProcessingError struct {
	baseError
	TaskType string
	Attempts int
}

// NewProcessingError creates a new ProcessingError.
func NewProcessingError(message string, cause error) *ProcessingError {
	return &ProcessingError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithTaskType adds the task type to the error context.
func (e *ProcessingError) WithTaskType(taskType string) *ProcessingError {
	e.TaskType = taskType
	return e
}

// WithAttempts records how many attempts were made before giving up.
func (e *ProcessingError) WithAttempts(attempts int) *ProcessingError {
	e.Attempts = attempts
	return e
}

// WithSeverity sets the error severity.
func (e *ProcessingError) WithSeverity(s Severity) *ProcessingError {
	e.severity = s
	return e
}

// Error returns the formatted error message.
func (e *ProcessingError) Error() string {
	var parts []string
	if e.TaskType != "" {
		parts = append(parts, fmt.Sprintf("task=%s", e.TaskType))
	}
	if e.Attempts > 0 {
		parts = append(parts, fmt.Sprintf("attempts=%d", e.Attempts))
	}

	prefix := "processing error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("processing error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ProcessingError) Is(target error) bool {
	if _, ok := target.(*ProcessingError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// CacheError represents a failure on a single cache call. It is local to
// that call and does not affect other entries.
//
// Example:
//
//	err := errors.NewCacheError("rejecting oversize value", errors.ErrOversizeValue).
//		WithKey("weather:london").WithOp("set")
type CacheError struct {
	baseError
	Key string
	Op  string
}

// NewCacheError creates a new CacheError.
func NewCacheError(message string, cause error) *CacheError {
	return &CacheError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: false,
		},
	}
}

// WithKey adds the cache key to the error context.
func (e *CacheError) WithKey(key string) *CacheError {
	e.Key = key
	return e
}

// WithOp adds the cache operation name to the error context.
func (e *CacheError) WithOp(op string) *CacheError {
	e.Op = op
	return e
}

// Error returns the formatted error message.
func (e *CacheError) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.Key != "" {
		parts = append(parts, fmt.Sprintf("key=%s", e.Key))
	}

	prefix := "cache error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("cache error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *CacheError) Is(target error) bool {
	if _, ok := target.(*CacheError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ListeningError represents a failure inside the listening cycle. It always
// transitions the state machine to its error state and is auto-recovered,
// never propagated out of the loop.
//
// Example:
//
//	err := errors.NewListeningError("recognizer poll failed", cause).
//		WithState("listening")
type ListeningError struct {
	baseError
	State string
}

// NewListeningError creates a new ListeningError.
func NewListeningError(message string, cause error) *ListeningError {
	return &ListeningError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: false,
		},
	}
}

// WithState adds the listening state during which the error occurred.
func (e *ListeningError) WithState(state string) *ListeningError {
	e.State = state
	return e
}

// Error returns the formatted error message.
func (e *ListeningError) Error() string {
	prefix := "listening error"
	if e.State != "" {
		prefix = fmt.Sprintf("listening error [state=%s]", e.State)
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ListeningError) Is(target error) bool {
	if _, ok := target.(*ListeningError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// NotFoundError represents a resource that could not be found.
//
// Example:
//
//	err := errors.NewNotFoundError("cache entry", "weather:london")
//	fmt.Println(err) // "cache entry 'weather:london' not found"
type NotFoundError struct {
	baseError
	ResourceType string
	ResourceID   string
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{
		baseError: baseError{
			message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
		ResourceType: resourceType,
		ResourceID:   resourceID,
	}
}

// WithCause adds a cause to the error.
func (e *NotFoundError) WithCause(cause error) *NotFoundError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *NotFoundError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s '%s' not found: %v", e.ResourceType, e.ResourceID, e.cause)
	}
	return fmt.Sprintf("%s '%s' not found", e.ResourceType, e.ResourceID)
}

// Is checks if this error matches the target.
func (e *NotFoundError) Is(target error) bool {
	if _, ok := target.(*NotFoundError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("ttl cannot be negative")
//	err = err.WithField("ttl").WithValue(-1)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			retryable:  false,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	if errors.Is(target, ErrInvalidInput) {
		return true
	}
	return e.baseError.Is(target)
}

// TimeoutError represents an operation that timed out. Inside the scheduler
// it is an internal, retryable signal distinct from a hard failure; it is
// never surfaced past the scheduler directly.
//
// Example:
//
//	err := errors.NewTimeoutError("task execution", 5*time.Second)
//	fmt.Println(err) // "timeout error: task execution (timeout: 5s)"
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:    operation,
			severity:   SeverityWarning,
			retryable:  true, // Timeouts are generally retryable
			userFacing: true,
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// WithRetryable sets whether the error is retryable (default true for timeouts).
func (e *TimeoutError) WithRetryable(r bool) *TimeoutError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing OmniError with IsRetryable() returning true
//   - TimeoutError instances
//   - Errors wrapping ErrTimeout
//
// Example:
//
//	if errors.IsRetryable(err) {
//	    time.Sleep(backoff)
//	    return retry(operation)
//	}
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var omniErr OmniError
	if As(err, &omniErr) {
		return omniErr.IsRetryable()
	}

	// Check for known retryable sentinel errors
	if Is(err, ErrTimeout) {
		return true
	}

	return false
}

// IsUserFacing returns true if the error message is safe to speak or display
// to end users. This checks for:
//   - Errors implementing OmniError with IsUserFacing() returning true
//   - Semantic errors (NotFoundError, ValidationError, TimeoutError)
//
// Example:
//
//	if errors.IsUserFacing(err) {
//	    feedback.Say(err.Error())
//	} else {
//	    feedback.Say("Sorry, something went wrong.")
//	    log.Error("internal error", "err", err)
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}

	var omniErr OmniError
	if As(err, &omniErr) {
		return omniErr.IsUserFacing()
	}

	// Semantic errors are always user-facing
	var notFound *NotFoundError
	var validation *ValidationError
	var timeout *TimeoutError

	if As(err, &notFound) || As(err, &validation) || As(err, &timeout) {
		return true
	}

	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement OmniError.
//
// Example:
//
//	switch errors.GetSeverity(err) {
//	case errors.SeverityCritical:
//	    shutdown(err)
//	case errors.SeverityError:
//	    log.Error("error occurred", "err", err)
//	case errors.SeverityWarning:
//	    log.Warn("warning", "err", err)
//	}
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}

	var omniErr OmniError
	if As(err, &omniErr) {
		return omniErr.Severity()
	}

	// Default to Error severity for unknown errors
	return SeverityError
}

// IsDomainError returns true if the error is a domain-specific error
// (InitializationError, ProcessingError, CacheError, or ListeningError).
func IsDomainError(err error) bool {
	if err == nil {
		return false
	}

	var initErr *InitializationError
	var procErr *ProcessingError
	var cacheErr *CacheError
	var listenErr *ListeningError

	return As(err, &initErr) || As(err, &procErr) ||
		As(err, &cacheErr) || As(err, &listenErr)
}

// IsSemanticError returns true if the error is a semantic error
// (NotFoundError, ValidationError, or TimeoutError).
func IsSemanticError(err error) bool {
	if err == nil {
		return false
	}

	var notFound *NotFoundError
	var validation *ValidationError
	var timeout *TimeoutError

	return As(err, &notFound) || As(err, &validation) || As(err, &timeout)
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to dispatch command")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
//
// Example:
//
//	err := errors.Wrapf(baseErr, "failed to flush batch for %s", taskType)
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
