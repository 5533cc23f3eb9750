package sensor

import "errors"

// Kind classifies why a sensor read failed.
type Kind int

// Failure kinds. None of them is retried.
const (
	// KindConfiguration: the probe script is missing from its expected path.
	KindConfiguration Kind = iota + 1

	// KindExec: the elevated command could not be started or did not finish.
	KindExec

	// KindParse: the probe output is not a valid probe JSON object.
	KindParse

	// KindReported: the probe ran and reported an error itself.
	KindReported

	// KindInternal: the service failed after a successful probe run.
	KindInternal
)

// String returns a stable identifier for logs, audit rows and metric tags.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration_error"
	case KindExec:
		return "exec_error"
	case KindParse:
		return "parse_error"
	case KindReported:
		return "probe_error"
	case KindInternal:
		return "internal_error"
	default:
		return "unknown_error"
	}
}

// Error is the error type returned by Probe and Reader.Read.
//
// Message is what HTTP callers see. Err carries the underlying cause for
// logging and is never rendered into the response.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels below, so errors.Is(err, ErrInvalidResponse)
// holds for every parse failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t.Message != "" {
		return false
	}
	return t.Kind == e.Kind
}

// Sentinels for errors.Is checks.
var (
	ErrProbeNotFound   = &Error{Kind: KindConfiguration}
	ErrProbeExec       = &Error{Kind: KindExec}
	ErrInvalidResponse = &Error{Kind: KindParse}
	ErrProbeReported   = &Error{Kind: KindReported}
	ErrInternal        = &Error{Kind: KindInternal}
)

// invalidResponsePrefix starts every parse failure message.
const invalidResponsePrefix = "Invalid JSON response"

// KindOf returns the failure kind of err, or 0 for nil and foreign errors.
func KindOf(err error) Kind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}
