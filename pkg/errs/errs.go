// Package errs defines the error taxonomy shared by the store, the API
// surface and the client. Each error carries a Kind; the API maps kinds
// to HTTP status codes and the client decides retry/recovery per kind.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	// KindValidation rejects malformed input (empty text, bad cursor).
	// Never retried.
	KindValidation
	// KindUnauthorized means a bad or missing token. Never retried.
	KindUnauthorized
	// KindForbidden means the actor lacks permission. Surfaced to user.
	KindForbidden
	// KindNotFound means the target is gone (deleted or expired). The
	// client treats this as success on delete - it is a benign race.
	KindNotFound
)

type Error struct {
	Kind Kind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func Forbidden(format string, args ...any) error {
	return &Error{Kind: KindForbidden, Msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsUnauthorized(err error) bool { return KindOf(err) == KindUnauthorized }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }

// HTTPStatus maps an error kind to the status code the REST surface
// returns for it.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// FromStatus reconstructs the taxonomy from a response status code, for
// the client side of the wire.
func FromStatus(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return &Error{Kind: KindValidation, Msg: msg}
	case http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized, Msg: msg}
	case http.StatusForbidden:
		return &Error{Kind: KindForbidden, Msg: msg}
	case http.StatusNotFound:
		return &Error{Kind: KindNotFound, Msg: msg}
	default:
		return &Error{Kind: KindInternal, Msg: msg}
	}
}
