// Package apperr defines the failure categories shared by the resolver,
// the record providers and the config loader.
//
// Callers branch on the Kind of an error, never on its wrapped cause. The
// cause is kept only so logs can show what actually went wrong.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindIO
	KindFormat
	KindNetwork
	KindRecordTypeMismatch
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "i/o error"
	case KindFormat:
		return "format error"
	case KindNetwork:
		return "network error"
	case KindRecordTypeMismatch:
		return "record type mismatch"
	default:
		return "unknown error"
	}
}

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrIO                 = &Error{Kind: KindIO}
	ErrFormat             = &Error{Kind: KindFormat}
	ErrNetwork            = &Error{Kind: KindNetwork}
	ErrRecordTypeMismatch = &Error{Kind: KindRecordTypeMismatch}
)

type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. Message and
// cause are ignored.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of the outermost *Error in err's chain, or
// KindUnknown when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

func IO(msg string, err error) error {
	return &Error{Kind: KindIO, Msg: msg, Err: err}
}

func Format(msg string, err error) error {
	return &Error{Kind: KindFormat, Msg: msg, Err: err}
}

func Network(msg string, err error) error {
	return &Error{Kind: KindNetwork, Msg: msg, Err: err}
}

// TypeMismatch reports a remote record whose type is not the one the agent
// manages.
func TypeMismatch(want, got string) error {
	return &Error{
		Kind: KindRecordTypeMismatch,
		Msg:  fmt.Sprintf("record type mismatch: want %s, got %s", want, got),
	}
}
