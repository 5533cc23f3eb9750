package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// MaxOutputSize caps the combined stdout/stderr captured from one run (1 MB).
// Anything beyond it is dropped and Result.Truncated is set.
const MaxOutputSize = 1 << 20

// defaultGracefulTimeout is how long a cancelled process gets after SIGTERM
// before it is killed.
const defaultGracefulTimeout = 5 * time.Second

var (
	// ErrStartFailed is returned when the command could not be started at all
	// (binary missing, permission denied on exec, etc.).
	ErrStartFailed = errors.New("process: start failed")

	// ErrTimeout is returned when the run exceeded Config.Timeout.
	ErrTimeout = errors.New("process: timed out")
)

// Config holds configuration for a one-shot command.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the executable to run.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Elevation is placed in front of Binary, e.g. ["sudo", "-n"].
	// Empty runs the command directly.
	Elevation []string

	// Env are additional environment variables (key=value format).
	// If nil, inherits from parent process.
	Env []string

	// WorkDir is the working directory for the process.
	// If empty, inherits from parent process.
	WorkDir string

	// Timeout bounds the run. Zero means wait for as long as it takes.
	Timeout time.Duration

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration
}

// Argv returns the full argument vector including the elevation prefix.
func (c Config) Argv() []string {
	argv := make([]string, 0, len(c.Elevation)+1+len(c.Args))
	argv = append(argv, c.Elevation...)
	argv = append(argv, c.Binary)
	argv = append(argv, c.Args...)
	return argv
}

// CommandLine renders Argv as a single shell-like string for logs and audit.
func (c Config) CommandLine() string {
	argv := c.Argv()
	parts := make([]string, len(argv))
	for i, a := range argv {
		if a == "" || strings.ContainsAny(a, " \t\n\"'\\$") {
			parts[i] = fmt.Sprintf("%q", a)
		} else {
			parts[i] = a
		}
	}
	return strings.Join(parts, " ")
}

// Elevated reports whether the command runs behind a privilege escalation prefix.
func (c Config) Elevated() bool {
	return len(c.Elevation) > 0
}

// Result describes a finished run.
type Result struct {
	// Command is the rendered command line that was executed.
	Command string

	// Output is the combined stdout and stderr, in the order it was written.
	Output []byte

	// Truncated is set when Output hit MaxOutputSize.
	Truncated bool

	// ExitCode is the process exit status, or -1 if it was killed by a signal.
	ExitCode int

	// PID of the started process (0 if it never started).
	PID int

	// Duration is wall-clock time from start to exit.
	Duration time.Duration
}

// Logger defines the logging interface for the runner.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Runner executes one-shot commands and captures their output.
//
// A Runner holds no per-run state; Run may be called concurrently and each
// call spawns its own independent process.
type Runner struct {
	config Config
	logger Logger
}

// NewRunner creates a runner for the given command configuration.
func NewRunner(cfg Config) *Runner {
	if cfg.GracefulTimeout == 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	return &Runner{
		config: cfg,
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the runner.
func (r *Runner) SetLogger(logger Logger) {
	r.logger = logger
}

// Config returns the command configuration.
func (r *Runner) Config() Config {
	return r.config
}

// Run starts the command, waits for it to exit and returns its combined output.
//
// A non-zero exit status is not an error: it is reported in Result.ExitCode
// and the output is returned as usual. Errors are reserved for failures to
// start (ErrStartFailed), Config.Timeout expiry (ErrTimeout) and ctx
// cancellation. In the timeout and cancellation cases the partial output is
// still returned alongside the error.
func (r *Runner) Run(ctx context.Context) (*Result, error) {
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	argv := r.config.Argv()
	res := &Result{
		Command:  r.config.CommandLine(),
		ExitCode: -1,
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec // argv comes from service configuration, never from requests

	// Own process group so cancellation reaches interpreter children too.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)
	}
	cmd.WaitDelay = r.config.GracefulTimeout

	if r.config.Env != nil {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}
	if r.config.WorkDir != "" {
		cmd.Dir = r.config.WorkDir
	}

	out := &limitedBuffer{limit: MaxOutputSize}
	cmd.Stdout = out
	cmd.Stderr = out

	r.logger.Debug("starting process",
		"name", r.config.Name,
		"command", res.Command,
		"elevated", r.config.Elevated(),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		res.Duration = time.Since(start)
		return res, fmt.Errorf("%w: %s: %w", ErrStartFailed, r.config.Name, err)
	}
	res.PID = cmd.Process.Pid

	waitErr := cmd.Wait()
	res.Duration = time.Since(start)
	res.Output = out.Bytes()
	res.Truncated = out.truncated
	if cmd.ProcessState != nil {
		res.ExitCode = cmd.ProcessState.ExitCode()
	}

	r.logger.Debug("process exited",
		"name", r.config.Name,
		"pid", res.PID,
		"exit_code", res.ExitCode,
		"duration_ms", res.Duration.Milliseconds(),
	)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) && r.config.Timeout > 0 {
			return res, fmt.Errorf("%w: %s after %v", ErrTimeout, r.config.Name, r.config.Timeout)
		}
		return res, fmt.Errorf("%s: %w", r.config.Name, ctxErr)
	}

	var exitErr *exec.ExitError
	if waitErr != nil && !errors.As(waitErr, &exitErr) {
		// I/O copy problems and WaitDelay expiry end up here.
		r.logger.Warn("process wait failed",
			"name", r.config.Name,
			"error", waitErr,
		)
	}

	if res.Truncated {
		r.logger.Warn("process output truncated",
			"name", r.config.Name,
			"limit_bytes", MaxOutputSize,
		)
	}

	return res, nil
}

// limitedBuffer is an io.Writer that keeps at most limit bytes and silently
// discards the rest so the child never blocks on a full pipe.
type limitedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.buf.Len()
	if room <= 0 {
		b.truncated = b.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.buf.Write(p[:room])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *limitedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
