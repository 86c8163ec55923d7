package hnsw

import "errors"

// ErrorKind classifies a failure per spec.md §7.
type ErrorKind int

const (
	// KindInvalidArgument covers malformed call arguments: k<1, mismatched
	// slice lengths in Update, a dimension mismatch the distance function
	// chose to validate.
	KindInvalidArgument ErrorKind = iota
	// KindNotSupported covers Remove/RemoveBatch called on an index built
	// with AllowRemovals=false.
	KindNotSupported
	// KindCorrupt covers a Deserialize that fails a framing or invariant
	// check.
	KindCorrupt
	// KindInternal covers a RegionLocker ownership-table invariant
	// violation — indicates a bug in the core, not caller misuse.
	KindInternal
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidArgument:
		return "invalid_argument"
	case KindNotSupported:
		return "not_supported"
	case KindCorrupt:
		return "corrupt"
	case KindInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Error is the error type every public Index method returns. Wrap with
// errors.Is against the Err* sentinels below to branch on kind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is one of the Err* sentinels matching e's
// Kind, so callers can write errors.Is(err, hnsw.ErrInvalidArgument).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidArgument:
		return e.Kind == KindInvalidArgument
	case ErrNotSupported:
		return e.Kind == KindNotSupported
	case ErrCorrupt:
		return e.Kind == KindCorrupt
	case ErrInternal:
		return e.Kind == KindInternal
	}
	return false
}

// Sentinel errors for errors.Is checks. There is deliberately no
// ErrInvalidHandle: that kind only applies to an FFI surface, which this
// module doesn't expose (spec.md §6's FFI surface is a binding concern,
// not a core one).
var (
	ErrInvalidArgument = errors.New("hnsw: invalid argument")
	ErrNotSupported    = errors.New("hnsw: not supported")
	ErrCorrupt         = errors.New("hnsw: corrupt")
	ErrInternal        = errors.New("hnsw: internal error")
)

func invalidArgument(msg string) error { return &Error{Kind: KindInvalidArgument, Msg: msg} }
func notSupported(msg string) error    { return &Error{Kind: KindNotSupported, Msg: msg} }
func corrupt(msg string, err error) error {
	return &Error{Kind: KindCorrupt, Msg: msg, Err: err}
}
func internalf(msg string) error { return &Error{Kind: KindInternal, Msg: msg} }
