package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// MeasurementProbe is the measurement holding one point per sensor read.
const MeasurementProbe = "ir_probe"

// ProbeRun is one sensor read as recorded in InfluxDB.
type ProbeRun struct {
	Time time.Time

	// Tags
	SiteID  string
	Outcome string // "ok" or a failure kind

	// Fields
	Detected bool
	Duration time.Duration
	ExitCode int
}

// newProbePoint builds the ir_probe point for run.
func newProbePoint(run ProbeRun) *write.Point {
	ts := run.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		MeasurementProbe,
		map[string]string{
			"site":    run.SiteID,
			"outcome": run.Outcome,
		},
		map[string]interface{}{
			"detected":    run.Detected,
			"duration_ms": float64(run.Duration.Microseconds()) / 1000,
			"exit_code":   run.ExitCode,
		},
		ts,
	)
}

// WriteProbeRun records one sensor read.
// The write is non-blocking; it is dropped when the client is not connected.
func (c *Client) WriteProbeRun(run ProbeRun) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(newProbePoint(run))
}
