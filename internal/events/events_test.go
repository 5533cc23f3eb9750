package events

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

type published struct {
	topic    string
	payload  []byte
	retained bool
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) PublishJSON(topic string, v any, retained bool) error {
	payload, err := mqtt.MarshalPayload(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, published{topic: topic, payload: payload, retained: retained})
	return f.err
}

type fakeWriter struct {
	runs []influxdb.ProbeRun
}

func (f *fakeWriter) WriteProbeRun(run influxdb.ProbeRun) {
	f.runs = append(f.runs, run)
}

func mustResult(t *testing.T, raw string) *sensor.ProbeResult {
	t.Helper()
	r, err := sensor.ParseProbeResult([]byte(raw))
	if err != nil {
		t.Fatalf("ParseProbeResult(%s) error = %v", raw, err)
	}
	return r
}

// =============================================================================
// MQTT publisher
// =============================================================================

func TestMQTTPublisherDetection(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub, mqtt.NewTopics("plant"), "site-001", nil)

	p.ObserveRead(context.Background(), sensor.ReadEvent{
		Time:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Caller: sensor.Caller{RequestID: "req-7"},
		Result: mustResult(t, `{"detected": true, "verification_token": "tok", "pin": 17}`),
	})

	if len(pub.msgs) != 2 {
		t.Fatalf("published %d messages, want state + detection", len(pub.msgs))
	}

	state := pub.msgs[0]
	if state.topic != "plant/sensor/ir/state" || !state.retained {
		t.Errorf("state message on %q retained=%v", state.topic, state.retained)
	}
	var sm StateMessage
	if err := json.Unmarshal(state.payload, &sm); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if !sm.Detected || sm.SiteID != "site-001" || sm.Timestamp != "2026-03-01T12:00:00Z" {
		t.Errorf("state = %+v", sm)
	}
	if string(sm.Result) != `{"detected":true,"pin":17,"verification_token":"tok"}` {
		t.Errorf("state result = %s", sm.Result)
	}

	det := pub.msgs[1]
	if det.topic != "plant/sensor/ir/detection" || det.retained {
		t.Errorf("detection message on %q retained=%v", det.topic, det.retained)
	}
	var dm DetectionMessage
	if err := json.Unmarshal(det.payload, &dm); err != nil {
		t.Fatalf("detection payload: %v", err)
	}
	if dm.VerificationToken != "tok" || dm.RequestID != "req-7" {
		t.Errorf("detection = %+v", dm)
	}
}

func TestMQTTPublisherKeepsHTMLCharacters(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub, mqtt.NewTopics("plant"), "site-001", nil)

	p.ObserveRead(context.Background(), sensor.ReadEvent{
		Time:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Result: mustResult(t, `{"detected": false, "status": "<idle & ok>"}`),
	})

	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(pub.msgs))
	}
	want := `"result":{"detected":false,"status":"<idle & ok>"}`
	if got := string(pub.msgs[0].payload); !strings.Contains(got, want) {
		t.Errorf("state payload = %s, want it to contain %s", got, want)
	}
}

func TestMQTTPublisherNoDetection(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub, mqtt.NewTopics(""), "site-001", nil)

	p.ObserveRead(context.Background(), sensor.ReadEvent{Result: mustResult(t, `{"detected": false}`)})

	if len(pub.msgs) != 1 || pub.msgs[0].topic != "irsensor/sensor/ir/state" {
		t.Errorf("messages = %+v, want state only", pub.msgs)
	}
}

func TestMQTTPublisherSkipsFailures(t *testing.T) {
	pub := &fakePublisher{}
	p := NewMQTTPublisher(pub, mqtt.NewTopics(""), "site-001", nil)

	p.ObserveRead(context.Background(), sensor.ReadEvent{
		Executed: true,
		Err:      &sensor.Error{Kind: sensor.KindParse, Message: "Invalid JSON response: x"},
	})

	if len(pub.msgs) != 0 {
		t.Errorf("published %d messages for a failed read", len(pub.msgs))
	}
}

func TestMQTTPublisherErrorsAreSwallowed(t *testing.T) {
	pub := &fakePublisher{err: mqtt.ErrNotConnected}
	p := NewMQTTPublisher(pub, mqtt.NewTopics(""), "site-001", nil)

	p.ObserveRead(context.Background(), sensor.ReadEvent{Result: mustResult(t, `{"detected": true, "verification_token": "t"}`)})

	if len(pub.msgs) != 2 {
		t.Errorf("attempts = %d, want detection still attempted after state failure", len(pub.msgs))
	}
}

// =============================================================================
// Influx recorder
// =============================================================================

func TestInfluxRecorder(t *testing.T) {
	w := &fakeWriter{}
	r := NewInfluxRecorder(w, "site-001")

	r.ObserveRead(context.Background(), sensor.ReadEvent{
		Duration: 90 * time.Millisecond,
		ExitCode: 0,
		Result:   mustResult(t, `{"detected": true}`),
	})
	r.ObserveRead(context.Background(), sensor.ReadEvent{
		ExitCode: 1,
		Err:      &sensor.Error{Kind: sensor.KindReported, Message: "GPIO busy"},
	})

	if len(w.runs) != 2 {
		t.Fatalf("runs = %d, want 2", len(w.runs))
	}
	if ok := w.runs[0]; ok.Outcome != "ok" || !ok.Detected || ok.SiteID != "site-001" || ok.Duration != 90*time.Millisecond {
		t.Errorf("success run = %+v", ok)
	}
	if bad := w.runs[1]; bad.Outcome != "probe_error" || bad.Detected || bad.ExitCode != 1 {
		t.Errorf("failure run = %+v", bad)
	}
}

// =============================================================================
// Async
// =============================================================================

type chanObserver chan sensor.ReadEvent

func (c chanObserver) ObserveRead(_ context.Context, ev sensor.ReadEvent) { c <- ev }

func TestAsyncDeliversInOrder(t *testing.T) {
	out := make(chanObserver, 10)
	a := NewAsync("test", out, 10, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		a.Run(ctx)
		close(done)
	}()

	for i := range 3 {
		a.ObserveRead(context.Background(), sensor.ReadEvent{ExitCode: i})
	}

	for i := range 3 {
		select {
		case ev := <-out:
			if ev.ExitCode != i {
				t.Errorf("event %d has ExitCode %d", i, ev.ExitCode)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timeout waiting for delivery")
		}
	}

	cancel()
	<-done
}

func TestAsyncDropsWhenFull(t *testing.T) {
	a := NewAsync("test", chanObserver(make(chan sensor.ReadEvent, 10)), 2, nil)

	for range 5 {
		a.ObserveRead(context.Background(), sensor.ReadEvent{})
	}

	if a.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", a.Pending())
	}
	if a.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", a.Dropped())
	}
}

func TestAsyncDrainsOnShutdown(t *testing.T) {
	out := make(chanObserver, 10)
	a := NewAsync("test", out, 10, nil)

	for range 4 {
		a.ObserveRead(context.Background(), sensor.ReadEvent{})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx) // returns after draining

	if len(out) != 4 {
		t.Errorf("delivered %d events on shutdown, want 4", len(out))
	}
}

func TestAsyncKeepsContextValuesAfterCancel(t *testing.T) {
	var got sensor.Caller
	var gotErr error
	obs := sensor.ObserverFunc(func(ctx context.Context, _ sensor.ReadEvent) {
		got = sensor.CallerFrom(ctx)
		gotErr = ctx.Err()
	})
	a := NewAsync("test", obs, 1, nil)

	reqCtx, cancelReq := context.WithCancel(sensor.WithCaller(context.Background(), sensor.Caller{RequestID: "r"}))
	a.ObserveRead(reqCtx, sensor.ReadEvent{})
	cancelReq()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	if got.RequestID != "r" {
		t.Errorf("caller = %+v, want request id preserved", got)
	}
	if errors.Is(gotErr, context.Canceled) {
		t.Error("delivered context is cancelled")
	}
}

func TestAsyncRecoversPanics(t *testing.T) {
	calls := 0
	obs := sensor.ObserverFunc(func(context.Context, sensor.ReadEvent) {
		calls++
		if calls == 1 {
			panic("boom")
		}
	})
	a := NewAsync("test", obs, 4, nil)
	a.ObserveRead(context.Background(), sensor.ReadEvent{})
	a.ObserveRead(context.Background(), sensor.ReadEvent{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a.Run(ctx)

	if calls != 2 {
		t.Errorf("calls = %d, want delivery to continue after a panic", calls)
	}
}
