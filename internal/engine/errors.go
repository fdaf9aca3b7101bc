package engine

import (
	"errors"
	"fmt"
)

// Error is the typed error returned by List operations and constructors.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Op is the operation that failed (initial_load, load_top, ...).
	Op string

	// ListID identifies the affected list, if known.
	ListID string

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeFetchFailed indicates the page fetch failed. The window is
	// unchanged and the load may be retried.
	ErrCodeFetchFailed ErrorCode = "FETCH_FAILED"

	// ErrCodeAnchorNotFound indicates the anchored item was not rendered
	// after every allowed reload.
	ErrCodeAnchorNotFound ErrorCode = "ANCHOR_NOT_FOUND"

	// ErrCodeMissingCapability indicates a required collaborator was not
	// supplied to New.
	ErrCodeMissingCapability ErrorCode = "MISSING_CAPABILITY"

	// ErrCodeInvalidConfig indicates the configuration failed validation.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.ListID != "" {
		msg += fmt.Sprintf(" (list=%s)", e.ListID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsFetchError returns true if err is, or wraps, a fetch failure.
func IsFetchError(err error) bool {
	return hasCode(err, ErrCodeFetchFailed)
}

// IsAnchorNotFound returns true if err reports a missing anchor.
func IsAnchorNotFound(err error) bool {
	return hasCode(err, ErrCodeAnchorNotFound)
}

// IsMissingCapability returns true if err reports a missing collaborator.
func IsMissingCapability(err error) bool {
	return hasCode(err, ErrCodeMissingCapability)
}

// IsConfigError returns true if err reports an invalid configuration.
func IsConfigError(err error) bool {
	return hasCode(err, ErrCodeInvalidConfig)
}

func newFetchError(op, listID string, err error) *Error {
	return &Error{Code: ErrCodeFetchFailed, Op: op, ListID: listID, Err: err}
}

func newAnchorNotFoundError(listID string, err error) *Error {
	return &Error{Code: ErrCodeAnchorNotFound, Op: "scroll_to_anchor", ListID: listID, Err: err}
}

func newCapabilityError(listID, capability string) *Error {
	return &Error{
		Code:   ErrCodeMissingCapability,
		Op:     "new",
		ListID: listID,
		Err:    fmt.Errorf("%s is required", capability),
	}
}

func newConfigError(listID string, err error) *Error {
	return &Error{Code: ErrCodeInvalidConfig, Op: "new", ListID: listID, Err: err}
}
