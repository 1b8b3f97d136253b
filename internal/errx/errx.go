// Package errx classifies application errors by Kind so transport layers can
// pick a status without inspecting messages.
package errx

import (
	"errors"
	"fmt"
)

// Kind is the category of an application error.
type Kind uint8

const (
	Unknown Kind = iota
	NotFound
	Conflict
	Invalid
	// Expired means the record exists but is past its lifetime.
	Expired
	Unavailable
	Internal
)

var kindNames = [...]string{
	Unknown:     "Unknown",
	NotFound:    "NotFound",
	Conflict:    "Conflict",
	Invalid:     "Invalid",
	Expired:     "Expired",
	Unavailable: "Unavailable",
	Internal:    "Internal",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

// Error annotates Err with the operation that failed and its Kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

// E wraps err. A nil err stays nil so callers can wrap unconditionally.
func E(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Errorf builds a new error of the given kind from a format string.
func Errorf(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op
	case e.Op == "":
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// outermost returns the first *Error in err's chain.
func outermost(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// KindOf returns the kind of the outermost *Error in err's chain, or Unknown.
func KindOf(err error) Kind {
	if e, ok := outermost(err); ok {
		return e.Kind
	}
	return Unknown
}

// OpOf returns the op of the outermost *Error in err's chain, or "".
func OpOf(err error) string {
	if e, ok := outermost(err); ok {
		return e.Op
	}
	return ""
}

// Is reports whether err is non-nil and KindOf(err) == kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
