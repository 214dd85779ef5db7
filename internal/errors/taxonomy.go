// Package errors defines the canonical error taxonomy returned by the core.
//
// Every failure that crosses a provider service boundary is coerced into an
// *Error carrying one of the Kind constants below. The HTTP boundary is the
// only place a Kind becomes a status code (see internal/httpapi/envelope.go).
package errors

import "fmt"

// Kind is a stable error code surfaced to clients.
type Kind string

const (
	MissingParam    Kind = "MISSING_PARAM"
	InvalidParam    Kind = "INVALID_PARAM"
	InvalidSymbol   Kind = "INVALID_SYMBOL"
	InvalidInterval Kind = "INVALID_INTERVAL"
	InvalidRange    Kind = "INVALID_RANGE"
	InvalidLimit    Kind = "INVALID_LIMIT"
	TooManySymbols  Kind = "TOO_MANY_SYMBOLS"
	BadRequest      Kind = "BAD_REQUEST"

	SymbolNotFound Kind = "SYMBOL_NOT_FOUND"
	NotFound       Kind = "NOT_FOUND"

	RateLimit         Kind = "RATE_LIMIT"
	ProviderThrottled Kind = "PROVIDER_THROTTLED"

	NetworkError   Kind = "NETWORK_ERROR"
	ProviderError  Kind = "PROVIDER_ERROR"
	ValidationErr  Kind = "VALIDATION_ERROR"
	CircuitOpenErr Kind = "CIRCUIT_OPEN"

	Unauthorized    Kind = "UNAUTHORIZED"
	MissingToken    Kind = "MISSING_TOKEN"
	InvalidPassword Kind = "INVALID_PASSWORD"

	InternalError Kind = "INTERNAL_ERROR"

	InvalidCategory Kind = "INVALID_CATEGORY"
	AIRateLimit     Kind = "AI_RATE_LIMIT"
	AIAuthError     Kind = "AI_AUTH_ERROR"
	AIError         Kind = "AI_ERROR"
)

// Error is the only failure shape a provider service returns upward.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter int64 // milliseconds, populated for CircuitOpenErr
	cause      error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds an *Error with the given kind and message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap attaches a Kind to an underlying error, preserving it for errors.Is/As.
func Wrap(kind Kind, cause error) *Error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: kind, Message: msg, cause: cause}
}

// CircuitOpen builds the CIRCUIT_OPEN error carrying retryAfterMs.
func CircuitOpen(name string, retryAfterMs int64) *Error {
	return &Error{
		Kind:       CircuitOpenErr,
		Message:    fmt.Sprintf("circuit breaker %q is open", name),
		RetryAfter: retryAfterMs,
	}
}

// As extracts an *Error from a generic error, if present.
func As(err error) (*Error, bool) {
	var target *Error
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e, true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return target, false
}

// HTTPStatus maps a Kind to its HTTP status code.
func HTTPStatus(k Kind) int {
	switch k {
	case MissingParam, InvalidParam, InvalidSymbol, InvalidInterval, InvalidRange,
		InvalidLimit, TooManySymbols, BadRequest, InvalidCategory, ValidationErr:
		return 400
	case Unauthorized, MissingToken, InvalidPassword:
		return 401
	case SymbolNotFound, NotFound:
		return 404
	case RateLimit, ProviderThrottled, AIRateLimit:
		return 429
	case ProviderError, AIError:
		return 502
	case NetworkError, AIAuthError:
		return 503
	case CircuitOpenErr:
		return 503
	case InternalError:
		return 500
	default:
		return 500
	}
}
