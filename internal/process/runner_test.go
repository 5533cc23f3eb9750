package process

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func shRunner(script string) *Runner {
	return NewRunner(Config{
		Name:   "test-proc",
		Binary: "sh",
		Args:   []string{"-c", script},
	})
}

func TestNewRunner_Defaults(t *testing.T) {
	r := NewRunner(Config{Name: "test-proc", Binary: "/usr/bin/true"})

	if r.Config().GracefulTimeout != defaultGracefulTimeout {
		t.Errorf("GracefulTimeout = %v, want %v", r.Config().GracefulTimeout, defaultGracefulTimeout)
	}
	if r.Config().Timeout != 0 {
		t.Errorf("Timeout = %v, want 0", r.Config().Timeout)
	}
}

func TestConfig_Argv(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "no elevation",
			cfg:  Config{Binary: "python3", Args: []string{"/opt/probe.py"}},
			want: []string{"python3", "/opt/probe.py"},
		},
		{
			name: "sudo prefix",
			cfg:  Config{Binary: "python3", Args: []string{"/opt/probe.py"}, Elevation: []string{"sudo", "-n"}},
			want: []string{"sudo", "-n", "python3", "/opt/probe.py"},
		},
		{
			name: "bare binary",
			cfg:  Config{Binary: "/opt/probe"},
			want: []string{"/opt/probe"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cfg.Argv()
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("Argv() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfig_CommandLine(t *testing.T) {
	cfg := Config{
		Binary:    "python3",
		Args:      []string{"/opt/ir sensor/read.py"},
		Elevation: []string{"sudo"},
	}

	got := cfg.CommandLine()
	want := `sudo python3 "/opt/ir sensor/read.py"`
	if got != want {
		t.Errorf("CommandLine() = %q, want %q", got, want)
	}
}

func TestConfig_Elevated(t *testing.T) {
	if (Config{Binary: "x"}).Elevated() {
		t.Error("Elevated() = true without prefix")
	}
	if !(Config{Binary: "x", Elevation: []string{"sudo"}}).Elevated() {
		t.Error("Elevated() = false with sudo prefix")
	}
}

func TestRun_CapturesCombinedOutput(t *testing.T) {
	r := shRunner(`echo out; echo err 1>&2`)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	out := string(res.Output)
	if !strings.Contains(out, "out") || !strings.Contains(out, "err") {
		t.Errorf("Output = %q, want both stdout and stderr", out)
	}
	if res.ExitCode != 0 {
		t.Errorf("ExitCode = %d, want 0", res.ExitCode)
	}
	if res.PID == 0 {
		t.Error("PID = 0, want started process id")
	}
	if res.Command == "" {
		t.Error("Command is empty")
	}
}

func TestRun_OutputCapped(t *testing.T) {
	r := shRunner(fmt.Sprintf(`head -c %d /dev/zero | tr '\0' a`, MaxOutputSize+4096))

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !res.Truncated {
		t.Error("Truncated = false, want true for oversized output")
	}
	if len(res.Output) != MaxOutputSize {
		t.Errorf("len(Output) = %d, want %d", len(res.Output), MaxOutputSize)
	}
}

func TestRun_NonZeroExitIsNotAnError(t *testing.T) {
	r := shRunner(`echo '{"detected":false,"error":"GPIO setup failed"}'; exit 1`)

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v, want nil for non-zero exit", err)
	}
	if res.ExitCode != 1 {
		t.Errorf("ExitCode = %d, want 1", res.ExitCode)
	}
	if !strings.Contains(string(res.Output), "GPIO setup failed") {
		t.Errorf("Output = %q, want script JSON", res.Output)
	}
}

func TestRun_StartFailure(t *testing.T) {
	r := NewRunner(Config{
		Name:   "missing",
		Binary: "/nonexistent/binary/for/test",
	})

	res, err := r.Run(context.Background())
	if err == nil {
		t.Fatal("Run() expected error for missing binary")
	}
	if !errors.Is(err, ErrStartFailed) {
		t.Errorf("Run() error = %v, want ErrStartFailed", err)
	}
	if res == nil || res.PID != 0 {
		t.Errorf("Result = %+v, want non-nil with PID 0", res)
	}
}

func TestRun_Timeout(t *testing.T) {
	r := NewRunner(Config{
		Name:            "sleeper",
		Binary:          "sh",
		Args:            []string{"-c", "echo partial; sleep 10"},
		Timeout:         200 * time.Millisecond,
		GracefulTimeout: time.Second,
	})

	start := time.Now()
	res, err := r.Run(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Run() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Run() took %v, want prompt termination", elapsed)
	}
	if !strings.Contains(string(res.Output), "partial") {
		t.Errorf("Output = %q, want partial output", res.Output)
	}
}

func TestRun_ContextCancelled(t *testing.T) {
	r := shRunner("sleep 10")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := r.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want context.Canceled", err)
	}
}

func TestRun_Env(t *testing.T) {
	r := NewRunner(Config{
		Name:   "env",
		Binary: "sh",
		Args:   []string{"-c", "printf %s \"$PROBE_PIN\""},
		Env:    []string{"PROBE_PIN=17"},
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if string(res.Output) != "17" {
		t.Errorf("Output = %q, want 17", res.Output)
	}
}

func TestRun_WorkDir(t *testing.T) {
	dir := t.TempDir()
	r := NewRunner(Config{
		Name:    "pwd",
		Binary:  "sh",
		Args:    []string{"-c", "pwd -P"},
		WorkDir: dir,
	})

	res, err := r.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasSuffix(strings.TrimSpace(string(res.Output)), dirBase(dir)) {
		t.Errorf("Output = %q, want working directory %q", res.Output, dir)
	}
}

func dirBase(p string) string {
	i := strings.LastIndex(p, "/")
	return p[i+1:]
}

func TestLimitedBuffer(t *testing.T) {
	b := &limitedBuffer{limit: 4}

	n, err := b.Write([]byte("abcdef"))
	if err != nil || n != 6 {
		t.Fatalf("Write() = %d, %v; want 6, nil", n, err)
	}
	if string(b.Bytes()) != "abcd" {
		t.Errorf("Bytes() = %q, want abcd", b.Bytes())
	}
	if !b.truncated {
		t.Error("truncated = false, want true")
	}

	if n, _ := b.Write([]byte("gh")); n != 2 {
		t.Errorf("Write() after full = %d, want 2", n)
	}
	if string(b.Bytes()) != "abcd" {
		t.Errorf("Bytes() = %q after overflow, want abcd", b.Bytes())
	}
}
