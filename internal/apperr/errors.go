package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by who is responsible for it.
type Kind int

const (
	// Unknown is the kind of errors that were never tagged.
	Unknown Kind = iota
	// InputError covers undeterminable or unsupported file types and
	// missing required fields.
	InputError
	// ExternalServiceError covers failures of the AI model, the mail
	// provider, the object store and the metadata store.
	ExternalServiceError
	// AuthError covers missing, invalid or expired credentials.
	AuthError
	// ParseError covers model responses that are not valid structured JSON.
	ParseError
)

// String returns the kind name used in logs and metrics.
func (k Kind) String() string {
	switch k {
	case InputError:
		return "input_error"
	case ExternalServiceError:
		return "external_service_error"
	case AuthError:
		return "auth_error"
	case ParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Error is an error tagged with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a tagged error from a message.
func New(kind Kind, op, msg string) *Error {
	return &Error{Kind: kind, Op: op, Err: errors.New(msg)}
}

// Wrap tags err with kind. It returns nil when err is nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Input is shorthand for New(InputError, op, fmt.Sprintf(format, args...)).
func Input(op, format string, args ...interface{}) *Error {
	return &Error{Kind: InputError, Op: op, Err: fmt.Errorf(format, args...)}
}

// Auth is shorthand for New(AuthError, op, fmt.Sprintf(format, args...)).
func Auth(op, format string, args ...interface{}) *Error {
	return &Error{Kind: AuthError, Op: op, Err: fmt.Errorf(format, args...)}
}

// External wraps err as an ExternalServiceError.
func External(op string, err error) error {
	return Wrap(ExternalServiceError, op, err)
}

// KindOf returns the Kind of the outermost tagged error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the HTTP layer responds with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case InputError, AuthError:
		return http.StatusBadRequest
	case ExternalServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
