// Package errs defines the error taxonomy shared across the service.
//
// Each category maps to a distinct caller-visible outcome: authentication
// failures are never retried, authorization failures are distinct from
// not-found, rate limits carry the server-mandated delay, and configuration
// errors abort startup. HTTP status mapping lives with the handlers, not here.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// base holds the common fields for all error categories.
type base struct {
	message string
	err     error
}

func (b base) error() string {
	if b.err == nil {
		return b.message
	}
	return fmt.Sprintf("%s: %v", b.message, b.err)
}

// Unwrap exposes the underlying error to support errors.Is / errors.As.
func (b base) Unwrap() error {
	return b.err
}

// Authentication indicates the caller's bearer token is missing, invalid or
// expired.
type Authentication struct {
	base
}

func (e Authentication) Error() string { return e.error() }

// NewAuthentication creates a new Authentication error.
func NewAuthentication(message string, err ...error) Authentication {
	return Authentication{base{message: message, err: errors.Join(err...)}}
}

// Authorization indicates an authenticated caller lacks entitlement to the
// requested resource. Deliberately carries no detail about whether the
// resource exists.
type Authorization struct {
	base
}

func (e Authorization) Error() string { return e.error() }

// NewAuthorization creates a new Authorization error.
func NewAuthorization(message string, err ...error) Authorization {
	return Authorization{base{message: message, err: errors.Join(err...)}}
}

// NotFound indicates entitlement was confirmed but the requested content does
// not exist upstream or in the ledger.
type NotFound struct {
	base
}

func (e NotFound) Error() string { return e.error() }

// NewNotFound creates a new NotFound error.
func NewNotFound(message string, err ...error) NotFound {
	return NotFound{base{message: message, err: errors.Join(err...)}}
}

// Validation indicates a structurally malformed request body or parameter,
// rejected at the boundary before any processing.
type Validation struct {
	base
}

func (e Validation) Error() string { return e.error() }

// NewValidation creates a new Validation error.
func NewValidation(message string, err ...error) Validation {
	return Validation{base{message: message, err: errors.Join(err...)}}
}

// Upstream indicates the platform API failed unexpectedly (5xx, network).
// Transient; eligible for a bounded retry with the same parameters.
type Upstream struct {
	base
}

func (e Upstream) Error() string { return e.error() }

// NewUpstream creates a new Upstream error.
func NewUpstream(message string, err ...error) Upstream {
	return Upstream{base{message: message, err: errors.Join(err...)}}
}

// RateLimit indicates the platform explicitly throttled the request. The
// request must be retried after RetryAfter, never dropped.
type RateLimit struct {
	base
	// RetryAfter is the server-mandated delay before retrying.
	RetryAfter time.Duration
}

func (e RateLimit) Error() string { return e.error() }

// NewRateLimit creates a new RateLimit error with the mandated delay.
func NewRateLimit(message string, retryAfter time.Duration, err ...error) RateLimit {
	return RateLimit{
		base:       base{message: message, err: errors.Join(err...)},
		RetryAfter: retryAfter,
	}
}

// Configuration indicates missing or invalid required configuration at
// startup. Fatal; the operation aborts rather than partially executing.
type Configuration struct {
	base
}

func (e Configuration) Error() string { return e.error() }

// NewConfiguration creates a new Configuration error.
func NewConfiguration(message string, err ...error) Configuration {
	return Configuration{base{message: message, err: errors.Join(err...)}}
}

// Signature indicates a webhook authenticity check failed. Rejected outright;
// a retry would not change the outcome.
type Signature struct {
	base
}

func (e Signature) Error() string { return e.error() }

// NewSignature creates a new Signature error.
func NewSignature(message string, err ...error) Signature {
	return Signature{base{message: message, err: errors.Join(err...)}}
}
