// Package events forwards sensor reads to the outside world.
//
// MQTTPublisher puts successful reads and detection events on the broker,
// InfluxRecorder writes one telemetry point per read, and Async decouples
// any observer from the request path with a bounded queue. None of them can
// change the outcome of a read: failures are logged and dropped.
package events
