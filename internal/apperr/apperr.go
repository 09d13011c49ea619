// Package apperr defines the error kinds surfaced by account and channel operations.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the transport layer.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAuthentication
	KindNotFound
	KindConflict
	KindUpload
	KindPersistence
	KindTokenIssuance
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindUpload:
		return "upload"
	case KindPersistence:
		return "persistence"
	case KindTokenIssuance:
		return "token_issuance"
	default:
		return "unknown"
	}
}

// Error carries a client-safe message and the underlying cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Kind.String() + ": " + e.Message
	}
	return e.Kind.String() + ": " + e.Message + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation reports bad or missing input.
func Validation(msg string) error {
	return &Error{Kind: KindValidation, Message: msg}
}

// Authentication reports bad credentials or tokens.
func Authentication(msg string, cause error) error {
	return &Error{Kind: KindAuthentication, Message: msg, Err: cause}
}

// NotFound reports a missing record.
func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict reports a duplicate identity.
func Conflict(msg string) error {
	return &Error{Kind: KindConflict, Message: msg}
}

// Upload reports a failed BlobStore call.
func Upload(msg string, cause error) error {
	return &Error{Kind: KindUpload, Message: msg, Err: cause}
}

// Persistence reports a failed store read or write.
func Persistence(msg string, cause error) error {
	return &Error{Kind: KindPersistence, Message: msg, Err: cause}
}

// TokenIssuance reports a failure to mint or persist a token pair.
func TokenIssuance(msg string, cause error) error {
	return &Error{Kind: KindTokenIssuance, Message: msg, Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return http.StatusText(http.StatusInternalServerError)
}

// HTTPStatus maps err to a response status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindAuthentication:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
