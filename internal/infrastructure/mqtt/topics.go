package mqtt

import "fmt"

// Topic prefixes for everything the registry publishes.
const (
	TopicPrefix       = "gatekeeper"
	TopicPrefixEvents = TopicPrefix + "/events"
	TopicPrefixSystem = TopicPrefix + "/system"
)

// Topics builds registry topic names.
//
//	topic := mqtt.Topics{}.StudentEvent("S1")
//	// Returns: "gatekeeper/events/students/S1"
type Topics struct{}

// StudentEvent is the topic carrying change events for one student.
func (Topics) StudentEvent(studentID string) string {
	return fmt.Sprintf("%s/students/%s", TopicPrefixEvents, studentID)
}

// AllStudentEvents matches every student event topic.
func (Topics) AllStudentEvents() string {
	return TopicPrefixEvents + "/students/+"
}

// SystemStatus carries the registry's retained online/offline status.
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}
