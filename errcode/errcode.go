package errcode

import "errors"

// Code is a stable, loggable error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes (short, stable).
const (
	OK            Code = "ok"
	Busy          Code = "busy"
	Unsupported   Code = "unsupported"
	InvalidParams Code = "invalid_params"
	Timeout       Code = "timeout"
	Suspended     Code = "suspended"
	ShortFrame    Code = "short_frame"

	Error Code = "error" // generic fallback
)

// Optional wrapper when we want to keep context and a cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Wrap returns an *E carrying code c for operation op.
func Wrap(c Code, op string, err error) *E {
	e := &E{C: c, Op: op, Err: err}
	if err != nil {
		e.Msg = err.Error()
	}
	return e
}

type coder interface{ Code() Code }

// Of extracts a Code from an error, searching its wrap chain, defaulting to
// Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	var x coder
	if errors.As(err, &x) {
		return x.Code()
	}
	var c Code
	if errors.As(err, &c) {
		return c
	}
	return Error
}
