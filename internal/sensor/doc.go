// Package sensor reads the infrared proximity sensor through its external probe.
//
// The probe is a small script (read_ir_sensor.py) that talks to the GPIO pin
// and prints one JSON object. It needs root for GPIO access, so it is started
// behind a configurable escalation prefix such as "sudo -n".
//
// A Reader runs the probe once per call, logs the command and raw output,
// validates the JSON, turns a self-reported probe error into a failure, and
// adds a 32 character hex verification token to detection events that lack one.
//
// Failures are always *Error values with one of these kinds:
//
//	KindConfiguration  probe script missing
//	KindExec           escalation/interpreter could not start, or timed out
//	KindParse          output is not a probe JSON object
//	KindReported       probe printed {"error": "..."}
//
// Observers registered on the Reader see every read (success or failure) and
// are used for the execution audit, MQTT events and InfluxDB telemetry.
package sensor
