package mmif

import (
	"fmt"

	"github.com/pkg/errors"
)

// Error kinds. Every error returned by this package wraps exactly one of them.
var (
	ErrParse              = errors.New("malformed MMIF input")
	ErrValidation         = errors.New("MMIF validation failed")
	ErrKeyConflict        = errors.New("key already exists")
	ErrNotFound           = errors.New("not found")
	ErrAmbiguousLookup    = errors.New("ambiguous id")
	ErrImmutable          = errors.New("frozen MMIF object should be immutable")
	ErrAdditionalProperty = errors.New("additional properties are disallowed")
)

// Error carries one of the error kinds above plus a message.
type Error struct {
	Kind error
	Msg  string
	// Details lists the individual schema violations of a ValidationError.
	Details []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func parseErrorf(format string, args ...interface{}) error {
	return newError(ErrParse, format, args...)
}

func validationErrorf(format string, args ...interface{}) error {
	return newError(ErrValidation, format, args...)
}

func notFoundf(format string, args ...interface{}) error {
	return newError(ErrNotFound, format, args...)
}

func immutable(what string) error {
	return newError(ErrImmutable, "%s is frozen", what)
}

func additionalProperty(owner, key string) error {
	return newError(ErrAdditionalProperty, "%s does not accept %q", owner, key)
}
