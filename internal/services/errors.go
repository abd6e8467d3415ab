package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/readify/api/internal/repositories"
)

// ErrorKind classifies service failures. Each kind maps to one HTTP status.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation_error"
	KindAuthorization     ErrorKind = "authorization_error"
	KindNotFound          ErrorKind = "not_found"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindLimitExceeded     ErrorKind = "limit_exceeded"
	KindDuplicate         ErrorKind = "duplicate"
	KindConflict          ErrorKind = "conflict"
	KindUnexpected        ErrorKind = "unexpected_error"
)

// Status returns the HTTP status code carried by errors of this kind.
func (k ErrorKind) Status() int {
	switch k {
	case KindValidation, KindInvalidTransition, KindLimitExceeded, KindDuplicate:
		return http.StatusBadRequest
	case KindAuthorization:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is the error type returned by every service operation.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works for every
// not-found failure regardless of message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t.Kind == e.Kind
}

// Kind sentinels for errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation failed"}
	ErrAuthorization     = &Error{Kind: KindAuthorization, Message: "not allowed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid transition"}
	ErrLimitExceeded     = &Error{Kind: KindLimitExceeded, Message: "limit exceeded"}
	ErrDuplicate         = &Error{Kind: KindDuplicate, Message: "duplicate"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrUnexpected        = &Error{Kind: KindUnexpected, Message: "unexpected error"}
)

func newError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func validationError(format string, args ...any) error {
	return newError(KindValidation, format, args...)
}

func authorizationError(format string, args ...any) error {
	return newError(KindAuthorization, format, args...)
}

func notFoundError(format string, args ...any) error {
	return newError(KindNotFound, format, args...)
}

// KindOf reports the kind of a service error; anything else is unexpected.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return KindUnexpected
}

// mapRepositoryError converts persistence failures into service errors. entity names what was
// being loaded so not-found messages read naturally ("order not found").
func mapRepositoryError(entity string, err error) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return err
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return &Error{Kind: KindNotFound, Message: entity + " not found", Err: err}
		case repoErr.IsConflict():
			return &Error{Kind: KindConflict, Message: entity + " was modified concurrently", Err: err}
		case repoErr.IsUnavailable():
			return &Error{Kind: KindUnexpected, Message: "storage unavailable", Err: err}
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindUnexpected, Message: "request cancelled", Err: err}
	}
	return &Error{Kind: KindUnexpected, Message: "storage failure", Err: err}
}

func isRepositoryNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func isRepositoryConflict(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}
