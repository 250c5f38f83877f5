// Package apperr defines the error taxonomy shared by the match and index flows.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies where a failure came from.
type Kind string

// Kind values.
const (
	KindTransport Kind = "transport" // network/auth failure talking to the object store
	KindService   Kind = "service"   // recognition backend failure
	KindInput     Kind = "input"     // missing or unreadable local file or path
	KindDecode    Kind = "decode"    // image bytes could not be decoded
	KindAPI       Kind = "api"       // non-200 answer from the local proxy API
)

// Error annotates an underlying error with its kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s error", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New wraps err with kind and operation. Returns nil if err is nil.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Transport wraps an object store failure.
func Transport(op string, err error) error { return New(KindTransport, op, err) }

// Service wraps a recognition backend failure.
func Service(op string, err error) error { return New(KindService, op, err) }

// Input wraps an invalid local input.
func Input(op string, err error) error { return New(KindInput, op, err) }

// Decode wraps an image decoding failure.
func Decode(op string, err error) error { return New(KindDecode, op, err) }

// API wraps a local proxy API failure.
func API(op string, err error) error { return New(KindAPI, op, err) }

// KindOf returns the kind of the outermost *Error in the chain, or "" if there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether any *Error in the chain has the given kind.
func IsKind(err error, kind Kind) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Kind == kind {
			return true
		}
		err = e.Err
	}
	return false
}

// Title returns the short heading shown to the user for an error of this kind.
func Title(err error) string {
	switch KindOf(err) {
	case KindTransport:
		return "Upload Error"
	case KindService:
		return "Match Error"
	case KindInput:
		return "File Selection Error"
	case KindDecode:
		return "Image Error"
	case KindAPI:
		return "API Error"
	default:
		return "Error"
	}
}
