package verify

import (
	"errors"
	"fmt"
)

// ErrRejected matches every RejectedError via errors.Is.
var ErrRejected = errors.New("mutation rejected by verifier")

// RejectedErrorCode categorizes rejections.
type RejectedErrorCode string

const (
	// ErrCodeDenied indicates the verifier returned false.
	ErrCodeDenied RejectedErrorCode = "DENIED"

	// ErrCodeVerifierFailed indicates the verifier itself returned an error.
	ErrCodeVerifierFailed RejectedErrorCode = "VERIFIER_FAILED"
)

// RejectedError reports a mutation stopped by the gate.
type RejectedError struct {
	Code      RejectedErrorCode
	Kind      string
	Operation Operation
	Cause     error
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s %s rejected: %v", e.Code, e.Operation, e.Kind, e.Cause)
	}
	return fmt.Sprintf("%s: %s %s rejected", e.Code, e.Operation, e.Kind)
}

// Is makes errors.Is(err, ErrRejected) true for every RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// Unwrap returns the verifier error, if any.
func (e *RejectedError) Unwrap() error {
	return e.Cause
}

// IsRejected reports whether err is a gate rejection.
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
