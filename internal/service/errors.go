// Package service implements the resource managers: applications, members,
// environments, secrets and variables. Every operation resolves the caller's
// role on the owning application and checks it against the access policy
// before touching storage.
package service

import (
	"errors"
	"fmt"
)

// Kind classifies a service failure.
type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
	KindValidationFailed Kind = "validation_failed"
	KindConflict         Kind = "conflict"
	KindDecryptionFailed Kind = "decryption_failed"
	KindStorageFailure   Kind = "storage_failure"
)

// Error is the typed failure returned by every manager operation.
// Message is safe to show to callers; Err is the internal cause.
type Error struct {
	Kind    Kind
	Message string
	Details map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind, so errors.Is(err, &Error{Kind: KindConflict}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// KindOf returns the kind of err, or KindStorageFailure for untyped errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindStorageFailure
}

func unauthenticated() *Error {
	return &Error{Kind: KindUnauthenticated, Message: "authentication required"}
}

func forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func notFound(resource string) *Error {
	return &Error{Kind: KindNotFound, Message: resource + " not found"}
}

func validation(err error) *Error {
	return &Error{Kind: KindValidationFailed, Message: err.Error(), Err: err}
}

func validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidationFailed, Message: fmt.Sprintf(format, args...)}
}

func conflict(msg string, details map[string]any) *Error {
	return &Error{Kind: KindConflict, Message: msg, Details: details}
}

func decryptionFailed(err error) *Error {
	return &Error{Kind: KindDecryptionFailed, Message: "stored secret could not be decrypted", Err: err}
}

func storageFailure(op string, err error) *Error {
	return &Error{Kind: KindStorageFailure, Message: "internal storage error", Err: fmt.Errorf("%s: %w", op, err)}
}
