package pricing

import (
	"context"
	"errors"
)

var (
	// ErrValidation marks a request rejected before it reached the network.
	ErrValidation = errors.New("invalid price request")
	// ErrTransient marks a network or backend failure that was retried.
	ErrTransient = errors.New("price lookup failed")
	// ErrCanceled marks a lookup superseded by a newer query.
	ErrCanceled = errors.New("price lookup canceled")
	// ErrNoPrice marks a response that carried no numeric price.
	ErrNoPrice = errors.New("no price in response")
)

// ErrorKind classifies a failed Result.
type ErrorKind string

const (
	KindNone       ErrorKind = ""
	KindValidation ErrorKind = "validation"
	KindTransient  ErrorKind = "transient"
	KindCanceled   ErrorKind = "canceled"
	KindNoPrice    ErrorKind = "no_price"
)

// Result is the outcome of a single price lookup. Failures are values, not
// panics or thrown errors, so one bad resort never blocks the others.
type Result struct {
	OK    bool      `json:"ok"`
	Price float64   `json:"price,omitempty"`
	Kind  ErrorKind `json:"kind,omitempty"`
	Err   error     `json:"-"`
}

// Resolved builds a successful result.
func Resolved(price float64) Result {
	return Result{OK: true, Price: price}
}

// Failed builds a failed result, deriving Kind from err.
func Failed(err error) Result {
	return Result{Kind: KindOf(err), Err: err}
}

// KindOf maps an error onto the lookup taxonomy.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrCanceled), errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, ErrNoPrice):
		return KindNoPrice
	default:
		return KindTransient
	}
}

// Canceled reports whether the lookup was abandoned rather than failed.
func (r Result) Canceled() bool {
	return r.Kind == KindCanceled
}

// Error returns the failure message, or "" for a success.
func (r Result) Error() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
