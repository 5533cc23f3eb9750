// Package process runs short-lived helper commands on behalf of the service.
//
// It is used for hardware probes that need elevated privileges: the command
// is started behind a configurable escalation prefix (sudo, doas, or nothing),
// its stdout and stderr are captured as one stream, and the exit status is
// reported without being treated as a failure.
//
// Features:
//   - Optional privilege escalation prefix
//   - Combined output capture with a size cap
//   - Optional timeout with SIGTERM to the process group, then SIGKILL
//   - Context-based cancellation
//
// Example usage:
//
//	r := process.NewRunner(process.Config{
//	    Name:      "ir-probe",
//	    Binary:    "python3",
//	    Args:      []string{"/opt/irsensor/read_ir_sensor.py"},
//	    Elevation: []string{"sudo", "-n"},
//	})
//
//	res, err := r.Run(ctx)
//	if err != nil {
//	    return err
//	}
//	fmt.Println(res.ExitCode, string(res.Output))
package process
