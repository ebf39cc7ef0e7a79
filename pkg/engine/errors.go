package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a pipeline failure by the stage that produced it and
// whether it ends the run.
type ErrorKind string

const (
	// KindNotFound indicates the identifier list is absent. Fatal.
	KindNotFound ErrorKind = "not_found"

	// KindInvalid indicates unusable input or configuration, such as a
	// rejected duplicate identifier. Fatal.
	KindInvalid ErrorKind = "invalid"

	// KindFetch indicates the shared resource could not be acquired. Fatal.
	KindFetch ErrorKind = "fetch"

	// KindExecution indicates a single identifier failed to transform.
	// Recorded per item; the run carries on with the other identifiers.
	KindExecution ErrorKind = "execution"

	// KindIncomplete indicates aggregation found missing outputs. Fatal for
	// this attempt; re-running retries only the missing identifiers.
	KindIncomplete ErrorKind = "incomplete"

	// KindPublish indicates the archive could not be published. Fatal.
	KindPublish ErrorKind = "publish"

	// KindInternal indicates an unexpected filesystem or runtime failure. Fatal.
	KindInternal ErrorKind = "internal"
)

// IsFatal reports whether errors of this kind end the run.
func (k ErrorKind) IsFatal() bool {
	return k != KindExecution
}

// PipelineError represents a classified pipeline failure with context.
type PipelineError struct {
	// Kind is the error classification.
	Kind ErrorKind `json:"kind"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Identifier is the item that caused the error, if applicable.
	Identifier string `json:"identifier,omitempty"`

	// Missing lists the identifiers whose outputs were absent at aggregation.
	Missing []string `json:"missing,omitempty"`

	// Err is the underlying error that caused this error.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Kind, e.Message)
	if e.Identifier != "" {
		fmt.Fprintf(&b, " (identifier=%s)", e.Identifier)
	}
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing=%s)", strings.Join(e.Missing, ","))
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying error for error chain inspection.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Is implements error equality checking for errors.Is. A target without a
// code matches every error of the same kind.
func (e *PipelineError) Is(target error) bool {
	t, ok := target.(*PipelineError)
	if !ok {
		return false
	}
	if e.Kind != t.Kind {
		return false
	}
	return t.Code == "" || e.Code == t.Code
}

// Sentinels for errors.Is.
var (
	ErrNotFound   = &PipelineError{Kind: KindNotFound, Message: "not found"}
	ErrInvalid    = &PipelineError{Kind: KindInvalid, Message: "invalid"}
	ErrFetch      = &PipelineError{Kind: KindFetch, Message: "fetch failed"}
	ErrExecution  = &PipelineError{Kind: KindExecution, Message: "execution failed"}
	ErrIncomplete = &PipelineError{Kind: KindIncomplete, Message: "incomplete"}
	ErrPublish    = &PipelineError{Kind: KindPublish, Message: "publish failed"}
	ErrInternal   = &PipelineError{Kind: KindInternal, Message: "internal error"}
)

func newError(kind ErrorKind, message string, err error) *PipelineError {
	return &PipelineError{
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// NewNotFoundError creates a new not-found error.
func NewNotFoundError(message string, err error) *PipelineError {
	return newError(KindNotFound, message, err).WithCode(ErrCodeNotFound)
}

// NewInvalidError creates a new invalid-input error.
func NewInvalidError(message string, err error) *PipelineError {
	return newError(KindInvalid, message, err).WithCode(ErrCodeValidation)
}

// NewFetchError creates a new resource fetch error.
func NewFetchError(message string, err error) *PipelineError {
	return newError(KindFetch, message, err).WithCode(ErrCodeFetchFailed)
}

// NewExecutionError creates a new per-item execution error for id.
func NewExecutionError(id, message string, err error) *PipelineError {
	return newError(KindExecution, message, err).
		WithCode(ErrCodeTransformFailed).
		WithIdentifier(id)
}

// NewIncompleteError creates an aggregation error listing the identifiers
// whose outputs are missing.
func NewIncompleteError(missing []string) *PipelineError {
	e := newError(KindIncomplete,
		fmt.Sprintf("%d expected output(s) missing", len(missing)), nil).
		WithCode(ErrCodeIncomplete)
	e.Missing = append([]string(nil), missing...)
	return e
}

// NewPublishError creates a new archive publish error.
func NewPublishError(message string, err error) *PipelineError {
	return newError(KindPublish, message, err).WithCode(ErrCodePublishFailed)
}

// NewInternalError creates a new internal error.
func NewInternalError(message string, err error) *PipelineError {
	return newError(KindInternal, message, err).WithCode(ErrCodeInternal)
}

// WithIdentifier adds identifier context to an error.
func (e *PipelineError) WithIdentifier(id string) *PipelineError {
	e.Identifier = id
	return e
}

// WithCode sets the error code.
func (e *PipelineError) WithCode(code string) *PipelineError {
	e.Code = code
	return e
}

// KindOf returns the kind of the first PipelineError in err's chain, or ""
// when there is none.
func KindOf(err error) ErrorKind {
	var e *PipelineError
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsNotFound returns true if the error is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsInvalid returns true if the error is an invalid-input error.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalid)
}

// IsFetch returns true if the error is a resource fetch error.
func IsFetch(err error) bool {
	return errors.Is(err, ErrFetch)
}

// IsExecution returns true if the error is a per-item execution error.
func IsExecution(err error) bool {
	return errors.Is(err, ErrExecution)
}

// IsIncomplete returns true if the error is an incomplete-aggregation error.
func IsIncomplete(err error) bool {
	return errors.Is(err, ErrIncomplete)
}

// IsPublish returns true if the error is a publish error.
func IsPublish(err error) bool {
	return errors.Is(err, ErrPublish)
}

// IsInternal returns true if the error is an internal error.
func IsInternal(err error) bool {
	return errors.Is(err, ErrInternal)
}

// Common error codes.
const (
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeDuplicate         = "DUPLICATE_IDENTIFIER"
	ErrCodeFetchFailed       = "FETCH_FAILED"
	ErrCodeInvalidIdentifier = "INVALID_IDENTIFIER"
	ErrCodeTriggerUnreadable = "TRIGGER_UNREADABLE"
	ErrCodeTransformFailed   = "TRANSFORM_FAILED"
	ErrCodeOutputMissing     = "OUTPUT_MISSING"
	ErrCodeTriggerRetire     = "TRIGGER_RETIRE_FAILED"
	ErrCodeEmpty             = "EMPTY"
	ErrCodeIncomplete        = "INCOMPLETE"
	ErrCodePublishFailed     = "PUBLISH_FAILED"
	ErrCodeCancelled         = "CANCELLED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)
