package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/process"
)

// Output is what one probe run produced.
type Output struct {
	// Command is the command line that was executed.
	Command string

	// Raw is the combined stdout/stderr with surrounding whitespace trimmed.
	Raw string

	// Truncated is set when the output exceeded process.MaxOutputSize and
	// Raw holds only its beginning.
	Truncated bool

	// ExitCode of the probe process, -1 if it never ran to completion.
	ExitCode int

	// Elevated is true when the command ran behind a privilege escalation prefix.
	Elevated bool

	// Duration of the run.
	Duration time.Duration
}

// Probe runs the external sensor reader once.
//
// Implementations return a *Error of KindConfiguration or KindExec when the
// probe could not be run. When the process was at least attempted, the
// returned Output is non-nil so callers can log the command.
type Probe interface {
	Probe(ctx context.Context) (*Output, error)
}

// ExecProbeConfig describes where the probe script lives and how it runs.
type ExecProbeConfig struct {
	// ScriptDir holds the script. Relative paths resolve against BaseDir.
	ScriptDir string

	// ScriptName is the script file name, e.g. "read_ir_sensor.py".
	ScriptName string

	// Interpreter runs the script. Empty executes the script directly.
	Interpreter string

	// Elevation is the privilege escalation prefix, e.g. ["sudo", "-n"].
	Elevation []string

	// Timeout bounds one run. Zero waits indefinitely.
	Timeout time.Duration

	// BaseDir anchors a relative ScriptDir. Empty means the directory of
	// the running executable.
	BaseDir string
}

// ExecProbe runs the probe script as an OS process.
//
// The script path is fixed at construction and never depends on the request.
// Runs are detached from the caller's cancellation: a client that hangs up
// does not stop a probe that is already touching the hardware.
type ExecProbe struct {
	scriptName string
	scriptPath string
	runner     *process.Runner
}

// NewExecProbe creates a probe adapter from cfg.
//
// Returns:
//   - *ExecProbe: adapter ready for use (the script is checked on every run)
//   - error: if the script location cannot be resolved
func NewExecProbe(cfg ExecProbeConfig) (*ExecProbe, error) {
	if cfg.ScriptName == "" {
		return nil, fmt.Errorf("probe script name is required")
	}

	scriptPath, err := resolveScriptPath(cfg.BaseDir, cfg.ScriptDir, cfg.ScriptName)
	if err != nil {
		return nil, err
	}

	pcfg := process.Config{
		Name:      "ir-probe",
		Elevation: cfg.Elevation,
		WorkDir:   filepath.Dir(scriptPath),
		Timeout:   cfg.Timeout,
	}
	if cfg.Interpreter != "" {
		pcfg.Binary = cfg.Interpreter
		pcfg.Args = []string{scriptPath}
	} else {
		pcfg.Binary = scriptPath
	}

	return &ExecProbe{
		scriptName: cfg.ScriptName,
		scriptPath: scriptPath,
		runner:     process.NewRunner(pcfg),
	}, nil
}

// resolveScriptPath joins dir and name, anchoring a relative dir at base.
func resolveScriptPath(base, dir, name string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if !filepath.IsAbs(dir) {
		if base == "" {
			exe, err := os.Executable()
			if err != nil {
				return "", fmt.Errorf("locating executable: %w", err)
			}
			base = filepath.Dir(exe)
		}
		dir = filepath.Join(base, dir)
	}
	return filepath.Join(dir, name), nil
}

// SetLogger sets the logger used for process-level debug output.
func (p *ExecProbe) SetLogger(logger process.Logger) {
	p.runner.SetLogger(logger)
}

// ScriptPath returns the absolute path the probe is expected at.
func (p *ExecProbe) ScriptPath() string {
	return p.scriptPath
}

// CommandLine returns the command line a run will execute.
func (p *ExecProbe) CommandLine() string {
	return p.runner.Config().CommandLine()
}

// Probe implements Probe.
func (p *ExecProbe) Probe(ctx context.Context) (*Output, error) {
	info, err := os.Stat(p.scriptPath)
	if err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", p.scriptPath)
		}
		return nil, &Error{
			Kind:    KindConfiguration,
			Message: p.scriptName + " not found",
			Err:     err,
		}
	}

	cfg := p.runner.Config()
	res, err := p.runner.Run(context.WithoutCancel(ctx))

	out := &Output{
		Command:  res.Command,
		Raw:       strings.TrimSpace(string(res.Output)),
		Truncated: res.Truncated,
		ExitCode:  res.ExitCode,
		Elevated:  cfg.Elevated(),
		Duration:  res.Duration,
	}

	if err != nil {
		msg := "Failed to run " + p.scriptName
		if errors.Is(err, process.ErrTimeout) {
			msg = fmt.Sprintf("%s timed out after %v", p.scriptName, cfg.Timeout)
		}
		return out, &Error{Kind: KindExec, Message: msg, Err: err}
	}

	return out, nil
}
