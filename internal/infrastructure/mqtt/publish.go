package mqtt

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Maximum payload size for MQTT messages (1MB).
// Probe output is capped at the same size, so a full result always fits.
const maxPayloadSize = 1 << 20

// Publish sends a message to the specified MQTT topic.
//
// Parameters:
//   - topic: The topic to publish to (e.g., "irsensor/sensor/ir/detection")
//   - payload: The message payload (typically JSON, max 1MB)
//   - qos: Quality of Service level (0, 1, or 2)
//   - retained: Whether the broker should keep the message for new subscribers
//
// Returns:
//   - error: nil on success, or wrapped error describing the failure
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return nil
}

// PublishJSON encodes v with MarshalPayload and publishes it with the
// configured QoS.
//
// Parameters:
//   - topic: The topic to publish to
//   - v: Value to encode as the JSON payload
//   - retained: Whether the broker should keep the message for new subscribers
//
// Returns:
//   - error: ErrPublishFailed wrapping the encoding error, or any Publish error
func (c *Client) PublishJSON(topic string, v any, retained bool) error {
	payload, err := MarshalPayload(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, byte(c.cfg.QoS), retained)
}

// MarshalPayload encodes v as compact JSON without HTML escaping, so probe
// strings reach subscribers byte-for-byte as the HTTP endpoint returns them.
func MarshalPayload(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
