// Package influxdb records IR sensor telemetry in InfluxDB.
//
// Every read produces one point in the ir_probe measurement:
//
//	tags:   site, outcome ("ok", "parse_error", "probe_error", ...)
//	fields: detected (bool), duration_ms (float), exit_code (int)
//
// Writes are batched and non-blocking. A slow or unreachable InfluxDB never
// delays a sensor read; write failures are reported through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.WriteProbeRun(influxdb.ProbeRun{SiteID: "site-001", Outcome: "ok", Detected: true})
package influxdb
