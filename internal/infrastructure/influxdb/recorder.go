package influxdb

import "time"

// OperationWriter is the part of Client the recorder needs.
type OperationWriter interface {
	WriteOperation(operation, outcome string, duration time.Duration, observers int)
	WriteImport(imported, failed int, duration time.Duration)
}

// Recorder adapts a Client to the registry service and importer telemetry
// hooks.
// Each call becomes a registry_operations point that also carries the
// number of live observers at the time.
type Recorder struct {
	writer    OperationWriter
	observers func() int
}

// NewRecorder creates a recorder. observers may be nil, in which case the
// observers field is written as zero.
func NewRecorder(writer OperationWriter, observers func() int) *Recorder {
	return &Recorder{writer: writer, observers: observers}
}

// RecordOperation writes one point for a completed registry operation.
func (r *Recorder) RecordOperation(operation, outcome string, duration time.Duration) {
	count := 0
	if r.observers != nil {
		count = r.observers()
	}
	r.writer.WriteOperation(operation, outcome, duration, count)
}

// RecordImport writes one point for a finished import run.
func (r *Recorder) RecordImport(imported, failed int, duration time.Duration) {
	r.writer.WriteImport(imported, failed, duration)
}
