package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies engine failures so callers can react without string
// matching. Every user-visible failure carries exactly one kind.
type ErrorKind int

const (
	KindValidation ErrorKind = iota // zero amount, malformed address, invalid fee split
	KindCapacity                    // exceeds max supply, insufficient reserve
	KindSlippage                    // quoted amount diverged beyond tolerance
	KindDeadline                    // executed after the stated deadline
	KindState                       // operation invalid for current pool state
	KindTimelock                    // fee change requested before readyAt
	KindAuthorization               // privileged call from non-owner, or missing signer
	KindProvider                    // underlying provider/network failure, surfaced verbatim
	KindTimeout                     // confirmation wait exceeded its bound
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindCapacity:
		return "capacity"
	case KindSlippage:
		return "slippage"
	case KindDeadline:
		return "deadline"
	case KindState:
		return "state"
	case KindTimelock:
		return "timelock"
	case KindAuthorization:
		return "authorization"
	case KindProvider:
		return "provider"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// Error is the engine-wide error type. Op names the failing operation
// ("pool.Buy", "client.GetBuyQuote"), Message is human readable, Err holds
// any underlying cause.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s): %v", e.Op, e.Message, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s (%s)", e.Op, e.Message, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes two domain errors match when their kinds match, so sentinel-style
// checks like errors.Is(err, &Error{Kind: KindSlippage}) work.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// E constructs a domain error without an underlying cause.
func E(kind ErrorKind, op, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Wrap constructs a domain error around an underlying cause. The cause is
// preserved verbatim for errors.Is/As chains.
func Wrap(kind ErrorKind, op string, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf reports the kind of err, or KindProvider when err is not a domain
// error (anything unknown came from below us).
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindProvider
}

func isKind(err error, kind ErrorKind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func IsValidation(err error) bool    { return isKind(err, KindValidation) }
func IsCapacity(err error) bool      { return isKind(err, KindCapacity) }
func IsSlippage(err error) bool      { return isKind(err, KindSlippage) }
func IsDeadline(err error) bool      { return isKind(err, KindDeadline) }
func IsState(err error) bool         { return isKind(err, KindState) }
func IsTimelock(err error) bool      { return isKind(err, KindTimelock) }
func IsAuthorization(err error) bool { return isKind(err, KindAuthorization) }
func IsTimeout(err error) bool       { return isKind(err, KindTimeout) }
