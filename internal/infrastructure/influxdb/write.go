package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	// MeasurementOperations holds one point per registry service call.
	MeasurementOperations = "registry_operations"

	// MeasurementImports holds one point per bulk import run.
	MeasurementImports = "import_runs"
)

// operationPoint builds a registry_operations point. Student IDs are not
// tagged.
func operationPoint(operation, outcome string, duration time.Duration, observers int, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementOperations,
		map[string]string{
			"operation": operation,
			"outcome":   outcome,
		},
		map[string]interface{}{
			"duration_ms": float64(duration.Microseconds()) / 1000,
			"observers":   observers,
		},
		ts,
	)
}

// WriteOperation records one registry operation. The write is non-blocking.
//
// Example:
//
//	client.WriteOperation("create", "ok", 3*time.Millisecond, 12)
func (c *Client) WriteOperation(operation, outcome string, duration time.Duration, observers int) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(operationPoint(operation, outcome, duration, observers, time.Now()))
}

// WriteImport records one bulk import run. The write is non-blocking.
func (c *Client) WriteImport(imported, failed int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(importPoint(imported, failed, duration, time.Now()))
}

// importPoint builds an import_runs point. Runs are not tagged.
func importPoint(imported, failed int, duration time.Duration, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementImports,
		nil,
		map[string]interface{}{
			"imported":    imported,
			"failed":      failed,
			"duration_ms": float64(duration.Microseconds()) / 1000,
		},
		ts,
	)
}
