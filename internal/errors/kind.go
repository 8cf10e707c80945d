package errors

import "fmt"

// Kind classifies an error by the way the engine propagates it.
type Kind int

const (
	// Unknown is returned by KindOf for errors that carry no kind.
	Unknown Kind = iota
	// IO is a local file that cannot be read or written.
	IO
	// RemoteUnavailable is a failure to list, fetch or upload remote objects.
	RemoteUnavailable
	// ToolFailure is an archiver, encryption or checksum tool that failed.
	ToolFailure
	// IntegrityFailure is a checksum mismatch of an uploaded payload.
	IntegrityFailure
	// PartialRestore is an archive that could not be extracted completely.
	PartialRestore
)

func (k Kind) String() string {
	switch k {
	case IO:
		return "io error"
	case RemoteUnavailable:
		return "remote unavailable"
	case ToolFailure:
		return "tool failure"
	case IntegrityFailure:
		return "integrity failure"
	case PartialRestore:
		return "partial restore"
	default:
		return "unknown"
	}
}

type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }

func (e *kindError) Unwrap() error { return e.err }

// Format keeps the %+v stack trace output of the wrapped pkg/errors value.
func (e *kindError) Format(s fmt.State, verb rune) {
	if f, ok := e.err.(fmt.Formatter); ok {
		f.Format(s, verb)
		return
	}
	_, _ = fmt.Fprint(s, e.err.Error())
}

// WithKind marks err with kind. If err is nil, WithKind returns nil. The
// innermost kind wins when an error is marked more than once.
func WithKind(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != Unknown {
		return err
	}
	return &kindError{kind: kind, err: err}
}

// KindOf returns the kind err was marked with, or Unknown.
func KindOf(err error) Kind {
	var ke *kindError
	if As(err, &ke) {
		return ke.kind
	}
	return Unknown
}

// IsKind reports whether err was marked with kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
