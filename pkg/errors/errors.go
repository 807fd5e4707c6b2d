// Package errors defines the error taxonomy shared by every component of
// the trading suite. Components never panic or use exceptions for control
// flow across a component boundary; they return a *TradeError instead.
package errors

import (
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
)

// Code enumerates the error kinds from the taxonomy. Kinds, not concrete
// types: callers switch on Code, not on Go type.
type Code string

const (
	// CodeTransientTransport covers retried network/HTTP failures.
	CodeTransientTransport Code = "TRANSIENT_TRANSPORT"
	// CodeAuthentication covers token/auth failures; at most one
	// re-authentication is attempted before this surfaces.
	CodeAuthentication Code = "AUTHENTICATION"
	// CodeValidation is fatal for the operation; never retried.
	CodeValidation Code = "VALIDATION"
	// CodeBrokerRejection carries the broker's rejection message verbatim.
	CodeBrokerRejection Code = "BROKER_REJECTION"
	// CodeProtocolCorruption marks a frame rejected by the decoder; the
	// connection is not torn down.
	CodeProtocolCorruption Code = "PROTOCOL_CORRUPTION"
	// CodeUnprotectedPosition is critical: bracket protection failed after
	// a partial fill.
	CodeUnprotectedPosition Code = "UNPROTECTED_POSITION"
	// CodeTimeout marks an operation that failed to complete in its
	// deadline; partial state is rolled back where possible.
	CodeTimeout Code = "TIMEOUT"
	// CodeCircuitOpen means the operation was refused by an open breaker.
	CodeCircuitOpen Code = "CIRCUIT_OPEN"
	// CodeRateLimited means a token bucket was empty past its wait bound.
	CodeRateLimited Code = "RATE_LIMITED"
	// CodeNotFound covers lookups against unknown ids.
	CodeNotFound Code = "NOT_FOUND"
	// CodeTerminalState rejects mutation of an order no longer live.
	CodeTerminalState Code = "TERMINAL_STATE"
	// CodeAlreadyExists signals an idempotent replay of a prior request.
	CodeAlreadyExists Code = "ALREADY_EXISTS"
)

// TradeError is the concrete error value returned across component
// boundaries. It is comparable via errors.Is on Code and supports
// errors.As for the wrapped Cause.
type TradeError struct {
	Code          Code
	Message       string
	CorrelationID string
	Cause         error
	At            time.Time
}

// New builds a TradeError with a fresh correlation id.
func New(code Code, message string) *TradeError {
	return &TradeError{
		Code:          code,
		Message:       message,
		CorrelationID: ksuid.New().String(),
		At:            time.Now(),
	}
}

// Wrap builds a TradeError that retains cause for errors.Unwrap.
func Wrap(code Code, cause error, message string) *TradeError {
	e := New(code, message)
	e.Cause = cause
	return e
}

func (e *TradeError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/As.
func (e *TradeError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, &TradeError{Code: X}) match on Code alone.
func (e *TradeError) Is(target error) bool {
	t, ok := target.(*TradeError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Of reports whether err is a *TradeError of the given code.
func Of(err error, code Code) bool {
	var te *TradeError
	if ok := As(err, &te); !ok {
		return false
	}
	return te.Code == code
}

// As is kept local so callers need only import this package; it walks
// err's Unwrap chain itself and stops at the first *TradeError.
func As(err error, target **TradeError) bool {
	for err != nil {
		if te, ok := err.(*TradeError); ok {
			*target = te
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
