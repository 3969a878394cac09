// Package apperr defines the typed error kinds shared by the engine and its adapters.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch without inspecting messages.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindAlreadyExists
	KindInvalid
	KindConfig
	KindProvider
	KindStorage
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrInvalid       = errors.New("invalid argument")
	ErrConfig        = errors.New("configuration error")
	ErrProvider      = errors.New("embedding provider error")
	ErrStorage       = errors.New("storage error")
)

var sentinels = map[Kind]error{
	KindNotFound:      ErrNotFound,
	KindConflict:      ErrConflict,
	KindAlreadyExists: ErrAlreadyExists,
	KindInvalid:       ErrInvalid,
	KindConfig:        ErrConfig,
	KindProvider:      ErrProvider,
	KindStorage:       ErrStorage,
}

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindAlreadyExists:
		return "already_exists"
	case KindInvalid:
		return "invalid"
	case KindConfig:
		return "config"
	case KindProvider:
		return "provider"
	case KindStorage:
		return "storage"
	default:
		return "unknown"
	}
}

// Error carries a Kind together with the failing operation and note path.
type Error struct {
	Kind Kind
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		if msg != "" {
			msg += ": "
		}
		msg += e.Err.Error()
	}
	if msg == "" {
		return e.Kind.String()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// E builds an *Error. err may be nil.
func E(kind Kind, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf builds an *Error with a formatted cause.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the first *Error in err's chain, or the kind whose
// sentinel err wraps. KindUnknown when neither applies.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	for k, s := range sentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnknown
}

// Is reports whether err is of the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
