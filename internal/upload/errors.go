package upload

import (
	"errors"
	"fmt"

	"trivia-backend/internal/catalog"
	"trivia-backend/internal/objectstore"
)

// Kind classifies failures so the HTTP boundary can pick a status code.
type Kind string

const (
	KindMissingField           Kind = "MissingField"
	KindMissingAsset           Kind = "MissingAsset"
	KindInvalidField           Kind = "InvalidField"
	KindAssetTooLarge          Kind = "AssetTooLarge"
	KindReferenceNotFound      Kind = "ReferenceNotFound"
	KindBatchArityMismatch     Kind = "BatchArityMismatch"
	KindNotFound               Kind = "NotFound"
	KindUploadFailed           Kind = "UploadFailed"
	KindVisibilityChangeFailed Kind = "VisibilityChangeFailed"
	KindPersistenceFailed      Kind = "PersistenceFailed"
)

// Error carries a taxonomy kind and a message safe to return to clients.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so the sentinels below work with
// errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

var (
	ErrMissingField           = &Error{Kind: KindMissingField}
	ErrMissingAsset           = &Error{Kind: KindMissingAsset}
	ErrInvalidField           = &Error{Kind: KindInvalidField}
	ErrAssetTooLarge          = &Error{Kind: KindAssetTooLarge}
	ErrReferenceNotFound      = &Error{Kind: KindReferenceNotFound}
	ErrBatchArityMismatch     = &Error{Kind: KindBatchArityMismatch}
	ErrNotFound               = &Error{Kind: KindNotFound}
	ErrUploadFailed           = &Error{Kind: KindUploadFailed}
	ErrVisibilityChangeFailed = &Error{Kind: KindVisibilityChangeFailed}
	ErrPersistenceFailed      = &Error{Kind: KindPersistenceFailed}
)

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the taxonomy kind of err, or "" when err is not classified.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsClientError reports whether err should be answered with a 4xx status.
func IsClientError(err error) bool {
	switch KindOf(err) {
	case KindMissingField, KindMissingAsset, KindInvalidField, KindAssetTooLarge,
		KindReferenceNotFound, KindBatchArityMismatch, KindNotFound:
		return true
	default:
		return false
	}
}

func bindError(err error) error {
	var fe *catalog.FieldError
	if !errors.As(err, &fe) {
		return newError(KindInvalidField, err, "invalid input")
	}
	if errors.Is(err, catalog.ErrMissing) {
		return newError(KindMissingField, nil, "missing required field %s", fe.Column)
	}
	return newError(KindInvalidField, nil, "invalid value for %s", fe.Column)
}

func objectError(err error, name string) error {
	if errors.Is(err, objectstore.ErrVisibilityChangeFailed) {
		return newError(KindVisibilityChangeFailed, err, "could not publish %s", name)
	}
	return newError(KindUploadFailed, err, "could not upload %s", name)
}

func persistenceError(err error, format string, args ...any) error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return newError(KindPersistenceFailed, err, format, args...)
}
