package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies venue adapter failures so callers can branch without
// string matching.
type ErrorKind string

const (
	ErrTransport           ErrorKind = "transport"
	ErrRateLimited         ErrorKind = "rate_limited"
	ErrNotFound            ErrorKind = "not_found"
	ErrSchema              ErrorKind = "schema"
	ErrValidation          ErrorKind = "validation"
	ErrInsufficientBalance ErrorKind = "insufficient_balance"
)

// VenueError is a classified failure from a venue adapter operation.
type VenueError struct {
	Venue   Venue
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *VenueError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %s: %v", e.Venue, e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Venue, e.Op, e.Kind, e.Message)
}

func (e *VenueError) Unwrap() error {
	return e.Err
}

// NewVenueError builds a classified adapter error.
func NewVenueError(venue Venue, kind ErrorKind, op, message string, err error) *VenueError {
	return &VenueError{Venue: venue, Kind: kind, Op: op, Message: message, Err: err}
}

// KindOf returns the classification of an adapter error, or ErrTransport for
// unclassified errors (network-layer failures arrive unwrapped).
func KindOf(err error) ErrorKind {
	var ve *VenueError
	if errors.As(err, &ve) {
		return ve.Kind
	}
	return ErrTransport
}

// IsRetryable reports whether the failure is worth retrying with backoff.
// Schema drift and validation failures never are.
func IsRetryable(err error) bool {
	switch KindOf(err) {
	case ErrTransport, ErrRateLimited:
		return true
	}
	return false
}
