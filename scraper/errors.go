package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a fetch failure for histogramming and retry
// decisions.
type ErrorKind int

const (
	ErrOther ErrorKind = iota
	ErrHTTP            // non-2xx status, carried verbatim in Status
	ErrTimeout
	ErrConnection
	ErrDecode       // JSON/HTML unreadable
	ErrMissingField // mandatory field absent after parsing
	ErrKindMismatch // page disagrees with the requested advertisement kind
)

// FetchError is the single typed error surfaced by the Listing Fetcher.
type FetchError struct {
	Kind       ErrorKind
	Status     int    // set for ErrHTTP
	Field      string // set for ErrMissingField
	WantRental bool   // set for ErrKindMismatch: the kind the caller asked for
	Cause      error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case ErrHTTP:
		return fmt.Sprintf("http %d", e.Status)
	case ErrTimeout:
		return "request timed out"
	case ErrConnection:
		return "connection error"
	case ErrDecode:
		return fmt.Sprintf("decode error: %v", e.Cause)
	case ErrMissingField:
		return fmt.Sprintf("missing field %q", e.Field)
	case ErrKindMismatch:
		if e.WantRental {
			return "unexpected sale listing when rental requested"
		}
		return "unexpected rental listing when sale requested"
	default:
		return fmt.Sprintf("fetch error: %v", e.Cause)
	}
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Bucket names the histogram bucket for this error.
func (e *FetchError) Bucket() string {
	switch e.Kind {
	case ErrHTTP:
		return fmt.Sprintf("http_%d", e.Status)
	case ErrTimeout:
		return "timeout"
	case ErrConnection:
		return "connection_error"
	case ErrDecode:
		return "decode_error"
	case ErrMissingField:
		return "missing_" + e.Field
	case ErrKindMismatch:
		return "kind_mismatch"
	default:
		return "other_error"
	}
}

// Transient reports whether a retry may succeed.
func (e *FetchError) Transient() bool {
	switch e.Kind {
	case ErrTimeout, ErrConnection:
		return true
	case ErrHTTP:
		switch e.Status {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

func missingField(name string) *FetchError {
	return &FetchError{Kind: ErrMissingField, Field: name}
}

// classifyTransport maps a transport-level error from net/http to a
// FetchError kind.
func classifyTransport(err error) *FetchError {
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: ErrTimeout, Cause: err}
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return &FetchError{Kind: ErrTimeout, Cause: err}
	}
	var operr *net.OpError
	if errors.As(err, &operr) {
		return &FetchError{Kind: ErrConnection, Cause: err}
	}
	if errors.Is(err, context.Canceled) {
		return &FetchError{Kind: ErrOther, Cause: err}
	}
	return &FetchError{Kind: ErrConnection, Cause: err}
}

// AsFetchError unwraps err into a *FetchError, wrapping unknown errors
// as ErrOther so every failure lands in a histogram bucket.
func AsFetchError(err error) *FetchError {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe
	}
	return &FetchError{Kind: ErrOther, Cause: err}
}
