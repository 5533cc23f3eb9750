// Package mqtt publishes IR sensor readings to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health reporting
//
// # Topics
//
// Every topic sits below a configurable prefix (default "irsensor"):
//
//	<prefix>/system/status        online/offline, retained, LWT
//	<prefix>/sensor/ir/state      latest successful reading, retained
//	<prefix>/sensor/ir/detection  one message per detection event
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishJSON(client.Topics().SensorDetection(), event, false)
package mqtt
