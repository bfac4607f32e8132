package engine

import (
	"errors"
	"fmt"
)

// RuntimeError is a failure of the engine itself, as opposed to a vault
// operation that ran and was rejected. Requests that fail with a
// RuntimeError before sequencing never reach the journal.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RequestID identifies the affected request.
	RequestID string

	// Operation is the requested operation name.
	Operation string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeUnknownOperation means the operation name is not recognized.
	ErrCodeUnknownOperation RuntimeErrorCode = "UNKNOWN_OPERATION"

	// ErrCodeInvalidArgs means the request arguments could not be decoded.
	ErrCodeInvalidArgs RuntimeErrorCode = "INVALID_ARGS"

	// ErrCodeStopped means the engine no longer accepts requests.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeJournal means a journal write failed.
	ErrCodeJournal RuntimeErrorCode = "JOURNAL_WRITE_FAILED"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Operation != "" {
		msg += fmt.Sprintf(" (op=%s)", e.Operation)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

func hasCode(err error, code RuntimeErrorCode) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}

// IsUnknownOperation reports whether err is an unknown-operation error.
// Uses errors.As to handle wrapped errors.
func IsUnknownOperation(err error) bool {
	return hasCode(err, ErrCodeUnknownOperation)
}

// IsInvalidArgs reports whether err is an argument decoding error.
func IsInvalidArgs(err error) bool {
	return hasCode(err, ErrCodeInvalidArgs)
}

// IsStopped reports whether err means the engine has stopped.
func IsStopped(err error) bool {
	return hasCode(err, ErrCodeStopped)
}

func newInvalidArgs(req Request, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeInvalidArgs,
		Message:   "request arguments are invalid",
		RequestID: req.ID,
		Operation: req.Operation,
		Err:       err,
	}
}

func newJournalError(req Request, stage string, err error) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeJournal,
		Message:   "journal write failed",
		RequestID: req.ID,
		Operation: req.Operation,
		Details:   map[string]string{"stage": stage},
		Err:       err,
	}
}
