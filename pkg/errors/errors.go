// Package errors carries the API error codes and how each one surfaces on
// the wire.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeOutOfStock    Code = "INSUFFICIENT_STOCK"
	CodePromoInvalid  Code = "PROMO_INVALID"
	CodePayment       Code = "PAYMENT_FAILED"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata describes how a code is rendered to clients.
type Metadata struct {
	HTTPStatus    int
	Retryable     bool
	PublicMessage string
	// ExposeMessage lets the error's own message replace PublicMessage.
	ExposeMessage  bool
	DetailsAllowed bool
}

type rendering uint8

const (
	exposeMessage rendering = 1 << iota
	exposeDetails
	retryable
)

func describe(status int, public string, flags rendering) Metadata {
	return Metadata{
		HTTPStatus:     status,
		PublicMessage:  public,
		Retryable:      flags&retryable != 0,
		ExposeMessage:  flags&exposeMessage != 0,
		DetailsAllowed: flags&exposeDetails != 0,
	}
}

var catalogue = map[Code]Metadata{
	CodeValidation:    describe(http.StatusBadRequest, "validation failed", exposeMessage|exposeDetails),
	CodeUnauthorized:  describe(http.StatusUnauthorized, "authentication required", exposeMessage),
	CodeForbidden:     describe(http.StatusForbidden, "access denied", exposeMessage),
	CodeNotFound:      describe(http.StatusNotFound, "resource not found", exposeMessage),
	CodeConflict:      describe(http.StatusConflict, "conflict detected", exposeMessage),
	CodeStateConflict: describe(http.StatusUnprocessableEntity, "state transition disallowed", exposeMessage|exposeDetails),
	CodeOutOfStock:    describe(http.StatusConflict, "insufficient stock", exposeMessage|exposeDetails),
	CodePromoInvalid:  describe(http.StatusUnprocessableEntity, "promo code rejected", exposeMessage),
	CodePayment:       describe(http.StatusBadGateway, "payment could not be initiated, please retry", retryable),
	CodeIdempotency:   describe(http.StatusConflict, "idempotency key reused", exposeMessage|exposeDetails),
	CodeRateLimit:     describe(http.StatusTooManyRequests, "rate limit exceeded", exposeMessage),
	CodeInternal:      describe(http.StatusInternalServerError, "internal server error", retryable),
	CodeDependency:    describe(http.StatusServiceUnavailable, "dependency unavailable", retryable|exposeDetails),
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	if meta, ok := catalogue[code]; ok {
		return meta
	}
	return catalogue[CodeInternal]
}

// Error is a coded failure. Message is what the caller wrote; whether it is
// shown to clients depends on the code's Metadata.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap keeps err reachable through errors.Is and errors.As. A nil err yields
// a plain New.
func Wrap(code Code, err error, message string) *Error {
	e := New(code, message)
	e.cause = err
	return e
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails mutates and returns e so it can be chained off New.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

// PublicMessage is the text a client sees for e.
func (e *Error) PublicMessage() string {
	meta := MetadataFor(e.Code())
	if meta.ExposeMessage && e.Message() != "" {
		return e.Message()
	}
	return meta.PublicMessage
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause == nil {
		return string(e.code) + ": " + e.message
	}
	return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// IsCode reports whether err carries code anywhere in its chain.
func IsCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}

func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}
