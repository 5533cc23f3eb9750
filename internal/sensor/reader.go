package sensor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irsensor/internal/process"
)

// ReadEvent describes one finished read, successful or not.
type ReadEvent struct {
	Time     time.Time
	Duration time.Duration

	// Executed is true when the probe process was attempted.
	Executed bool
	Command  string
	ExitCode int
	Elevated bool

	// Caller is taken from the read's context.
	Caller Caller

	// Result is set on success, Err on failure.
	Result *ProbeResult
	Err    error
}

// Outcome returns "ok" or the failure kind.
func (e ReadEvent) Outcome() string {
	if e.Err == nil {
		return "ok"
	}
	return KindOf(e.Err).String()
}

// Observer is notified after every read. Implementations must not block
// for long; the HTTP response waits for them.
type Observer interface {
	ObserveRead(ctx context.Context, ev ReadEvent)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, ev ReadEvent)

// ObserveRead implements Observer.
func (f ObserverFunc) ObserveRead(ctx context.Context, ev ReadEvent) {
	f(ctx, ev)
}

// ReaderOptions holds the dependencies of a Reader.
type ReaderOptions struct {
	// Probe runs the sensor reader. Required.
	Probe Probe

	// Logger receives the diagnostic command/output lines. Optional.
	Logger *logging.Logger

	// Observers are notified after every read. Optional.
	Observers []Observer

	// HideRawOutput replaces the probe output in parse error messages
	// with a generic text. The raw output is still logged.
	HideRawOutput bool

	// TokenSource supplies random bytes for tokens. Defaults to crypto/rand.
	TokenSource io.Reader
}

// Reader turns one probe run into a ProbeResult.
//
// It holds no per-read state and is safe for concurrent use.
type Reader struct {
	probe     Probe
	logger    *logging.Logger
	observers []Observer
	hideRaw   bool
	tokenSrc  io.Reader
	now       func() time.Time
}

// NewReader creates a Reader.
func NewReader(opts ReaderOptions) (*Reader, error) {
	if opts.Probe == nil {
		return nil, errors.New("probe is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Reader{
		probe:     opts.Probe,
		logger:    logger.With("component", "sensor"),
		observers: opts.Observers,
		hideRaw:   opts.HideRawOutput,
		tokenSrc:  opts.TokenSource,
		now:       time.Now,
	}, nil
}

// Read runs the probe once and returns its validated, possibly augmented result.
//
// Steps:
//  1. Run the probe (missing script and start failures surface as *Error)
//  2. Log the command and the raw output
//  3. Parse the output as a probe JSON object
//  4. Fail with the probe's own message if it reported an error
//  5. Inject a fresh verification token on detection when none was supplied
//
// Every returned error is a *Error whose message is safe to show to callers.
func (r *Reader) Read(ctx context.Context) (*ProbeResult, error) {
	started := r.now()
	out, err := r.probe.Probe(ctx)

	ev := ReadEvent{Time: started, ExitCode: -1, Caller: CallerFrom(ctx)}
	if out != nil {
		ev.Executed = true
		ev.Command = out.Command
		ev.ExitCode = out.ExitCode
		ev.Elevated = out.Elevated
		r.logger.Info("probe command", "command", out.Command)
		r.logger.Info("probe output",
			"output", out.Raw,
			"exit_code", out.ExitCode,
			"duration_ms", out.Duration.Milliseconds(),
			"truncated", out.Truncated,
		)
	}

	result, err := r.evaluate(out, err)

	ev.Duration = r.now().Sub(started)
	ev.Result = result
	ev.Err = err
	if err != nil {
		r.logger.Warn("sensor read failed",
			"kind", KindOf(err).String(),
			"error", err.Error(),
			"cause", errors.Unwrap(err),
			"truncated", out != nil && out.Truncated,
		)
	}
	r.notify(ctx, ev)

	return result, err
}

// evaluate applies the parse/error/token rules to one probe run.
func (r *Reader) evaluate(out *Output, probeErr error) (*ProbeResult, error) {
	if probeErr != nil {
		var se *Error
		if errors.As(probeErr, &se) {
			return nil, se
		}
		return nil, &Error{Kind: KindExec, Message: "Failed to run probe", Err: probeErr}
	}

	result, err := ParseProbeResult([]byte(out.Raw))
	if err != nil {
		msg := invalidResponsePrefix + ": " + out.Raw
		switch {
		case r.hideRaw:
			msg = invalidResponsePrefix
		case out.Truncated:
			msg = fmt.Sprintf("%s: output exceeds %d bytes", invalidResponsePrefix, process.MaxOutputSize)
		}
		return nil, &Error{Kind: KindParse, Message: msg, Err: err}
	}

	if msg := result.Error(); msg != "" {
		return nil, &Error{Kind: KindReported, Message: msg}
	}
	result.clearError()

	if result.Detected() && result.VerificationToken() == "" {
		token, err := NewVerificationToken(r.tokenSrc)
		if err != nil {
			return nil, &Error{Kind: KindInternal, Message: "Failed to generate verification token", Err: err}
		}
		result.SetVerificationToken(token)
	}

	return result, nil
}

// notify fans the event out to all observers.
func (r *Reader) notify(ctx context.Context, ev ReadEvent) {
	for _, o := range r.observers {
		o.ObserveRead(ctx, ev)
	}
}
