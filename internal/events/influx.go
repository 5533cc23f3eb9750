package events

import (
	"context"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

// PointWriter is the part of the InfluxDB client the recorder needs.
type PointWriter interface {
	WriteProbeRun(run influxdb.ProbeRun)
}

// InfluxRecorder is a sensor.Observer writing one ir_probe point per read,
// failures included. The write itself is buffered by the client, so the
// recorder can be called inline.
type InfluxRecorder struct {
	writer PointWriter
	siteID string
}

// NewInfluxRecorder creates a recorder tagging points with siteID.
func NewInfluxRecorder(writer PointWriter, siteID string) *InfluxRecorder {
	return &InfluxRecorder{writer: writer, siteID: siteID}
}

// ObserveRead implements sensor.Observer.
func (r *InfluxRecorder) ObserveRead(_ context.Context, ev sensor.ReadEvent) {
	run := influxdb.ProbeRun{
		Time:     ev.Time,
		SiteID:   r.siteID,
		Outcome:  ev.Outcome(),
		Duration: ev.Duration,
		ExitCode: ev.ExitCode,
	}
	if ev.Result != nil {
		run.Detected = ev.Result.Detected()
	}
	r.writer.WriteProbeRun(run)
}
