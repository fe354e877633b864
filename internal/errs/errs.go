// Package errs is the error taxonomy shared by every scout94 component.
//
// Errors travel as values. At the command surface they are rendered to text
// together with the name of their Kind so a client can branch on the category
// without parsing messages.
package errs

import (
	"errors"
	"fmt"
	"io/fs"
)

// Kind is the category of a failure.
type Kind int

const (
	Unknown Kind = iota
	NotFound
	Spawn
	Transport
	AlreadyRunning
	Invalid
	IO
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Spawn:
		return "spawn"
	case Transport:
		return "transport"
	case AlreadyRunning:
		return "already_running"
	case Invalid:
		return "invalid"
	case IO:
		return "io"
	default:
		return "unknown"
	}
}

// Error is a Kind-tagged error.
type Error struct {
	Kind       Kind
	Message    string
	Underlying error
}

func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Underlying)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Underlying }

// ErrorKind reports the category; other packages' error types implement the
// same method to take part in KindOf.
func (e *Error) ErrorKind() Kind { return e.Kind }

// New creates an Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Errorf creates an Error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap tags err with kind. A nil err stays nil.
func Wrap(err error, kind Kind, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: msg, Underlying: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, kind Kind, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Underlying: err}
}

type kinder interface {
	ErrorKind() Kind
}

// KindOf returns the first Kind found in err's chain, or Unknown.
func KindOf(err error) Kind {
	var k kinder
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return Unknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FromFS classifies a filesystem error: missing paths are NotFound, the
// rest IO.
func FromFS(err error, msg string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return Wrap(err, NotFound, msg)
	}
	return Wrap(err, IO, msg)
}
