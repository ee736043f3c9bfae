package failure

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without inspecting messages.
type Kind int

const (
	KindOther Kind = iota
	KindValidation
	KindTaken
	KindNotFound
	KindUnauthenticated
	KindForbidden
	KindIdentity
	KindStore
	KindNeedsConfirmation
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTaken:
		return "taken"
	case KindNotFound:
		return "not-found"
	case KindUnauthenticated:
		return "not-auth"
	case KindForbidden:
		return "forbidden"
	case KindIdentity:
		return "identity"
	case KindStore:
		return "store"
	case KindNeedsConfirmation:
		return "needs-confirmation"
	default:
		return "other"
	}
}

// Error tags an underlying error with a Kind and the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with kind. A nil err yields nil.
func E(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf builds a tagged error from a message.
func Newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the outermost Kind found in err's chain, or KindOther.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindOther
}

// Is reports whether err carries kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message returns the innermost human-readable message, without operation prefixes.
func Message(err error) string {
	var fe *Error
	for errors.As(err, &fe) {
		err = fe.Err
		fe = nil
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
