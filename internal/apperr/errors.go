package apperr

import (
	"errors"
	"fmt"
)

// ErrCode is a typed error code enum identifying each failure class.
type ErrCode string

const (
	// ─── Setup ─────────────────────────────────────────────────────────
	ErrConfig  ErrCode = "CONFIG_ERROR"
	ErrStorage ErrCode = "STORAGE_ERROR"
	ErrLocked  ErrCode = "RUN_LOCKED"

	// ─── Timetable Service ─────────────────────────────────────────────
	ErrTransport       ErrCode = "TRANSPORT_ERROR"
	ErrProtocol        ErrCode = "PROTOCOL_ERROR"
	ErrAuth            ErrCode = "AUTH_ERROR"
	ErrSessionRequired ErrCode = "SESSION_REQUIRED"

	// ─── Message ───────────────────────────────────────────────────────
	ErrLookup   ErrCode = "LOOKUP_FAULT"
	ErrDelivery ErrCode = "DELIVERY_ERROR"

	// ─── Status API ────────────────────────────────────────────────────
	ErrRateLimited ErrCode = "RATE_LIMITED"

	// ─── Fallback ──────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// Error carries a code, the operation that failed and the underlying cause.
type Error struct {
	Code ErrCode
	Op   string
	Err  error
}

// New wraps err with a code. A nil err is replaced by the code's message.
func New(code ErrCode, op string, err error) *Error {
	if err == nil {
		err = errors.New(GetMessage(code))
	}
	return &Error{Code: code, Op: op, Err: err}
}

// Errorf is New with a formatted cause.
func Errorf(code ErrCode, op, format string, args ...interface{}) *Error {
	return New(code, op, fmt.Errorf(format, args...))
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the outermost *Error in err's chain,
// ErrInternal for untyped errors and "" for nil.
func CodeOf(err error) ErrCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ErrInternal
}

// Is reports whether err carries the given code.
func Is(err error, code ErrCode) bool {
	return err != nil && CodeOf(err) == code
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	switch CodeOf(err) {
	case "":
		return 0
	case ErrConfig:
		return 2
	case ErrTransport:
		return 3
	case ErrProtocol:
		return 4
	case ErrAuth:
		return 5
	case ErrSessionRequired:
		return 6
	case ErrLookup:
		return 7
	case ErrDelivery:
		return 8
	case ErrStorage:
		return 9
	case ErrLocked:
		return 10
	default:
		return 1
	}
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	case ErrConfig:
		return "Required configuration is missing or invalid."
	case ErrStorage:
		return "Reading or writing the local cache failed."
	case ErrLocked:
		return "Another run for this class is in progress."
	case ErrTransport:
		return "The remote service could not be reached."
	case ErrProtocol:
		return "The remote service sent an unexpected response."
	case ErrAuth:
		return "Authentication against WebUntis failed."
	case ErrSessionRequired:
		return "An authenticated session is required."
	case ErrLookup:
		return "A timetable entry references unknown data."
	case ErrDelivery:
		return "The notification could not be delivered."
	case ErrRateLimited:
		return "Too many requests, try again later."
	default:
		return "An unexpected error occurred."
	}
}
