package notify

// EventKind identifies the mutation that produced a ChangeEvent.
type EventKind string

// Event kinds, one per registry mutation.
const (
	KindCreated EventKind = "created"
	KindUpdated EventKind = "updated"
	KindDeleted EventKind = "deleted"
)

// Human-readable messages carried alongside the kind. Dashboards written
// against the first version of the registry display these.
const (
	messageCreated = "student added"
	messageUpdated = "student updated"
	messageDeleted = "student deleted"
)

// ChangeEvent describes one committed mutation of a student record.
// It is built after the store confirms the write and is never persisted.
type ChangeEvent struct {
	Kind      EventKind `json:"kind"`
	StudentID string    `json:"student_id"`
	Name      string    `json:"name,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// Created returns the event for a newly inserted record.
func Created(studentID, name string) ChangeEvent {
	return ChangeEvent{Kind: KindCreated, StudentID: studentID, Name: name, Message: messageCreated}
}

// Updated returns the event for a modified record. name is the record's
// name after the update.
func Updated(studentID, name string) ChangeEvent {
	return ChangeEvent{Kind: KindUpdated, StudentID: studentID, Name: name, Message: messageUpdated}
}

// Deleted returns the event for a removed record.
func Deleted(studentID string) ChangeEvent {
	return ChangeEvent{Kind: KindDeleted, StudentID: studentID, Message: messageDeleted}
}
