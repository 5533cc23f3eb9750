package audit

import (
	"context"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

// writeTimeout bounds a single audit insert.
const writeTimeout = 5 * time.Second

// Recorder is a sensor.Observer that writes one Execution per probe run.
//
// Reads that never started a process (missing script) are not recorded:
// nothing was executed with elevated privileges.
type Recorder struct {
	repo   Repository
	logger *logging.Logger
}

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Recorder{repo: repo, logger: logger.With("component", "audit")}
}

// ObserveRead implements sensor.Observer.
func (r *Recorder) ObserveRead(ctx context.Context, ev sensor.ReadEvent) {
	if !ev.Executed {
		return
	}

	entry := executionFromEvent(ev)

	// The request may already be gone; the audit row must still be written.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.repo.Create(writeCtx, entry); err != nil {
		r.logger.Error("audit write failed",
			"command", entry.Command,
			"outcome", entry.Outcome,
			"error", err,
		)
	}
}

func executionFromEvent(ev sensor.ReadEvent) *Execution {
	e := &Execution{
		ExecutedAt: ev.Time,
		Command:    ev.Command,
		Elevated:   ev.Elevated,
		ExitCode:   ev.ExitCode,
		DurationMS: ev.Duration.Milliseconds(),
		Outcome:    ev.Outcome(),
		RequestID:  ev.Caller.RequestID,
		RemoteAddr: ev.Caller.RemoteAddr,
	}
	if ev.Result != nil {
		e.Detected = ev.Result.Detected()
	}
	if ev.Err != nil {
		e.Error = ev.Err.Error()
	}
	return e
}
