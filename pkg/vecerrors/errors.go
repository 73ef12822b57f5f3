// Package vecerrors defines the error taxonomy the core returns. The core
// never converts these to transport-level codes; that mapping belongs to the
// (out-of-scope) HTTP adapter.
package vecerrors

import (
	"errors"
	"fmt"
)

// Kind classifies an error the way an adapter would map it to a status code.
type Kind int

const (
	// Internal marks an unexpected invariant violation.
	Internal Kind = iota
	// NotFound marks an absent identifier (library, document, chunk, snapshot).
	NotFound
	// InvalidArgument marks a schema violation, unknown enum value, mutually
	// exclusive options, out-of-range k, or invalid index config.
	InvalidArgument
	// DimensionMismatch marks an embedding whose length doesn't match the
	// library's established dimension.
	DimensionMismatch
	// Unavailable marks a snapshot operation requested with persistence
	// disabled.
	Unavailable
	// Conflict marks a name or id collision.
	Conflict
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case InvalidArgument:
		return "invalid_argument"
	case DimensionMismatch:
		return "dimension_mismatch"
	case Unavailable:
		return "unavailable"
	case Conflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error wraps an underlying error with operation context and a taxonomy Kind.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vectorcore: %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("vectorcore: %s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return errors.Is(e.Err, target)
}

// New wraps err with op and kind. Returns nil if err is nil.
func New(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Newf builds a new Error from a format string.
func Newf(op string, kind Kind, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to Internal if err does not
// wrap an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Sentinel errors matched via errors.Is against the wrapped cause.
var (
	ErrLibraryNotFound     = errors.New("library not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrChunkNotFound       = errors.New("chunk not found")
	ErrSnapshotNotFound    = errors.New("no snapshot found")
	ErrStoreClosed         = errors.New("store is closed")
	ErrPersistenceDisabled = errors.New("persistence is disabled")
)
