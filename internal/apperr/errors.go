// Package apperr holds the typed failure taxonomy shared by the credential
// issuer, the HTTP handlers, and the authenticated API client. Every failure
// that crosses a component boundary is one *Error with a stable status and a
// human-readable detail.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindValidation         Kind = "validation_error"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindEmailTaken         Kind = "email_taken"
	KindNetwork            Kind = "network_error"
	KindAuthExpired        Kind = "auth_expired"
	KindServer             Kind = "server_error"
)

const (
	InvalidCredentialsDetail = "Invalid credentials"
	EmailTakenDetail         = "Email already registered"
	NetworkDetail            = "Network error: Unable to connect to the server. Please check your connection and try again."
	AuthExpiredDetail        = "Session expired. Please log in again."
)

type Error struct {
	Kind   Kind
	Status int
	Detail string
	Field  string
	cause  error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error of the same kind, so the package sentinels can be
// used with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation         = &Error{Kind: KindValidation, Status: http.StatusBadRequest}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Status: http.StatusUnauthorized}
	ErrEmailTaken         = &Error{Kind: KindEmailTaken, Status: http.StatusBadRequest}
	ErrNetwork            = &Error{Kind: KindNetwork, Status: 0}
	ErrAuthExpired        = &Error{Kind: KindAuthExpired, Status: http.StatusUnauthorized}
	ErrServer             = &Error{Kind: KindServer, Status: http.StatusInternalServerError}
)

func Validation(field, detail string) *Error {
	return &Error{Kind: KindValidation, Status: http.StatusBadRequest, Field: field, Detail: detail}
}

func InvalidCredentials() *Error {
	return &Error{Kind: KindInvalidCredentials, Status: http.StatusUnauthorized, Detail: InvalidCredentialsDetail}
}

func EmailTaken() *Error {
	return &Error{Kind: KindEmailTaken, Status: http.StatusBadRequest, Field: "email", Detail: EmailTakenDetail}
}

func Network(cause error) *Error {
	return &Error{Kind: KindNetwork, Status: 0, Detail: NetworkDetail, cause: cause}
}

func AuthExpired(detail string) *Error {
	if detail == "" {
		detail = AuthExpiredDetail
	}
	return &Error{Kind: KindAuthExpired, Status: http.StatusUnauthorized, Detail: detail}
}

func Server(status int, detail string) *Error {
	if detail == "" {
		detail = http.StatusText(status)
	}
	if detail == "" {
		detail = "An error occurred"
	}
	return &Error{Kind: KindServer, Status: status, Detail: detail}
}

// Internal wraps an unexpected failure. The cause is kept for logging and
// never rendered to callers.
func Internal(cause error) *Error {
	return &Error{Kind: KindServer, Status: http.StatusInternalServerError, Detail: "internal server error", cause: cause}
}

// From normalizes any error into the taxonomy. Untyped errors become
// internal server errors.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal(err)
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
