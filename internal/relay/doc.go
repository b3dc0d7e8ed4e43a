// Package relay mirrors registry change events onto MQTT.
//
// A Relay joins the observer hub like any WebSocket client and publishes
// each event it receives to gatekeeper/events/students/{student_id}. It
// gets no special treatment from the hub: if the broker is too slow and the
// relay's queue fills, the hub drops it and the relay joins again. Events
// missed while it was detached are not replayed.
package relay
