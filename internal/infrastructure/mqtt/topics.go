package mqtt

import "strings"

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "irsensor"

// Topics builds the MQTT topics the service publishes to.
//
// All topics live below a configurable prefix so several sensors can share
// one broker:
//
//	topics := mqtt.NewTopics("irsensor/line-2")
//	topics.SensorState()
//	// Returns: "irsensor/line-2/sensor/ir/state"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix.
// Leading and trailing slashes are dropped; an empty prefix uses DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root all topics share.
func (t Topics) Prefix() string {
	if t.prefix == "" {
		return DefaultTopicPrefix
	}
	return t.prefix
}

// SystemStatus returns the topic for service online/offline status.
// Carries the LWT and is retained.
//
// Example: irsensor/system/status
func (t Topics) SystemStatus() string {
	return t.Prefix() + "/system/status"
}

// SensorState returns the topic for the latest sensor reading (retained).
//
// Example: irsensor/sensor/ir/state
func (t Topics) SensorState() string {
	return t.Prefix() + "/sensor/ir/state"
}

// SensorDetection returns the topic for detection events (not retained).
//
// Example: irsensor/sensor/ir/detection
func (t Topics) SensorDetection() string {
	return t.Prefix() + "/sensor/ir/detection"
}

// All returns every topic the service publishes to, for broker ACL setup
// and debugging.
func (t Topics) All() []string {
	return []string{t.SystemStatus(), t.SensorState(), t.SensorDetection()}
}
