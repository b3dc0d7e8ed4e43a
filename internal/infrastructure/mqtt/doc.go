// Package mqtt publishes registry change events to an MQTT broker.
//
// The client connects with auto-reconnect and a Last Will on the system
// status topic, so subscribers can tell when the registry goes away.
// Events are published by the relay package, one message per change on
// gatekeeper/events/students/{student_id}.
//
// # Security Considerations
//
//   - Enable TLS (mqtt.broker.tls) outside local development
//   - Pass credentials through GATEKEEPER_MQTT_USERNAME / GATEKEEPER_MQTT_PASSWORD
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.StudentEvent("S1")
//	err = client.Publish(topic, payload, 1, false)
package mqtt
