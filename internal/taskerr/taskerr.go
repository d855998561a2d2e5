// Package taskerr defines the error kinds surfaced by the integration's tasks.
// Every error carries a human readable message and, for batched failures,
// a details mapping suitable for programmatic consumption.
package taskerr

import (
	"encoding/json"
	"errors"
)

const (
	// KindValidation marks malformed or semantically invalid input.
	KindValidation = "servicenow_integration.validation"
	// KindClassifier marks a failed call against the node classifier.
	KindClassifier = "servicenow_integration.classifier"
	// KindUnexpected marks any other failure surfaced by a command.
	KindUnexpected = "servicenow_integration.error"
)

// Error is a task failure of a given kind.
type Error struct {
	Kind    string
	Msg     string
	Details map[string]interface{}
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	return e.Msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the error the way task runners expect it under "_error".
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Kind    string                 `json:"kind"`
		Msg     string                 `json:"msg"`
		Details map[string]interface{} `json:"details"`
	}{
		Kind:    e.Kind,
		Msg:     e.Msg,
		Details: e.Details,
	}
	if out.Details == nil {
		out.Details = map[string]interface{}{}
	}
	return json.Marshal(out)
}

// Validation creates a validation error.
func Validation(msg string, details map[string]interface{}) *Error {
	return &Error{Kind: KindValidation, Msg: msg, Details: details}
}

// Classifier creates a classifier error wrapping cause, which may be nil.
func Classifier(msg string, details map[string]interface{}, cause error) *Error {
	return &Error{Kind: KindClassifier, Msg: msg, Details: details, Err: cause}
}

// IsValidation reports whether err is, or wraps, a validation error.
func IsValidation(err error) bool {
	return isKind(err, KindValidation)
}

// IsClassifier reports whether err is, or wraps, a classifier error.
func IsClassifier(err error) bool {
	return isKind(err, KindClassifier)
}

// As extracts the task error from err's chain.
func As(err error) (*Error, bool) {
	var taskErr *Error
	if errors.As(err, &taskErr) {
		return taskErr, true
	}
	return nil, false
}

// FromError returns err's task error, or wraps err as an unexpected one.
func FromError(err error) *Error {
	if taskErr, ok := As(err); ok {
		return taskErr
	}
	return &Error{Kind: KindUnexpected, Msg: err.Error(), Err: err}
}

func isKind(err error, kind string) bool {
	taskErr, ok := As(err)
	return ok && taskErr.Kind == kind
}
