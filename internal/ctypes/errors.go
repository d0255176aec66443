package ctypes

import (
	"errors"
	"fmt"
)

// Common collection errors. Every *Error unwraps to one of these, so callers
// can test the failure kind with errors.Is.
var (
	// ErrNetwork indicates the collection API was unreachable or answered with a non-success status
	ErrNetwork = errors.New("collection API request failed")

	// ErrValidation indicates a create or update payload is missing required fields
	ErrValidation = errors.New("invalid card")

	// ErrNotFound indicates the mutation target does not exist
	ErrNotFound = errors.New("card not found")

	// ErrStorageUnavailable indicates the local cache medium could not be used
	ErrStorageUnavailable = errors.New("local storage unavailable")

	// ErrCompression indicates an image could not be compressed
	ErrCompression = errors.New("image compression failed")
)

// Kind identifies a class of failure.
type Kind string

const (
	KindNetwork            Kind = "NETWORK"
	KindValidation         Kind = "VALIDATION"
	KindNotFound           Kind = "NOT_FOUND"
	KindStorageUnavailable Kind = "STORAGE_UNAVAILABLE"
	KindCompression        Kind = "COMPRESSION"
	KindUnknown            Kind = "UNKNOWN"
)

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindValidation:
		return ErrValidation
	case KindNotFound:
		return ErrNotFound
	case KindStorageUnavailable:
		return ErrStorageUnavailable
	case KindCompression:
		return ErrCompression
	default:
		return nil
	}
}

// Error is a classified failure crossing a component boundary.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Status  int // HTTP status, when the failure came from the collection API
	Cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the cause and the kind sentinel.
func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s := e.Kind.sentinel(); s != nil {
		errs = append(errs, s)
	}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Retryable reports whether re-invoking the operation may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork
}

// NewError creates a classified error.
func NewError(kind Kind, op, message string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Cause: cause}
}

// Errorf creates a classified error with a formatted message.
func Errorf(kind Kind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure kind of err, or KindUnknown.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for _, k := range []Kind{KindNetwork, KindValidation, KindNotFound, KindStorageUnavailable, KindCompression} {
		if errors.Is(err, k.sentinel()) {
			return k
		}
	}
	return KindUnknown
}
