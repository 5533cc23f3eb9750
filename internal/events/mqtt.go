package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-irsensor/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-irsensor/internal/sensor"
)

// Publisher is the part of the MQTT client the publisher needs.
type Publisher interface {
	PublishJSON(topic string, v any, retained bool) error
}

// StateMessage is published (retained) after every successful read.
type StateMessage struct {
	SiteID    string          `json:"site_id"`
	Detected  bool            `json:"detected"`
	Timestamp string          `json:"timestamp"`
	Result    json.RawMessage `json:"result"`
}

// DetectionMessage is published once per detection event.
type DetectionMessage struct {
	SiteID            string `json:"site_id"`
	VerificationToken string `json:"verification_token"`
	Timestamp         string `json:"timestamp"`
	RequestID         string `json:"request_id,omitempty"`
}

// MQTTPublisher is a sensor.Observer publishing reads to MQTT.
// Failed reads are not published.
type MQTTPublisher struct {
	client Publisher
	topics mqtt.Topics
	siteID string
	logger *logging.Logger
}

// NewMQTTPublisher creates a publisher for client under topics.
func NewMQTTPublisher(client Publisher, topics mqtt.Topics, siteID string, logger *logging.Logger) *MQTTPublisher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &MQTTPublisher{
		client: client,
		topics: topics,
		siteID: siteID,
		logger: logger.With("component", "mqtt-events"),
	}
}

// ObserveRead implements sensor.Observer.
func (p *MQTTPublisher) ObserveRead(_ context.Context, ev sensor.ReadEvent) {
	if ev.Err != nil || ev.Result == nil {
		return
	}

	result, err := ev.Result.MarshalJSON()
	if err != nil {
		p.logger.Error("encoding read result", "error", err)
		return
	}

	ts := ev.Time.UTC().Format(time.RFC3339Nano)

	state := StateMessage{
		SiteID:    p.siteID,
		Detected:  ev.Result.Detected(),
		Timestamp: ts,
		Result:    result,
	}
	if err := p.client.PublishJSON(p.topics.SensorState(), state, true); err != nil {
		p.logger.Warn("publishing sensor state failed", "error", err)
	}

	if !ev.Result.Detected() {
		return
	}

	detection := DetectionMessage{
		SiteID:            p.siteID,
		VerificationToken: ev.Result.VerificationToken(),
		Timestamp:         ts,
		RequestID:         ev.Caller.RequestID,
	}
	if err := p.client.PublishJSON(p.topics.SensorDetection(), detection, false); err != nil {
		p.logger.Warn("publishing detection failed", "error", err)
	}
}
