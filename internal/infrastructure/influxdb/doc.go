// Package influxdb records registry telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every registry
// service call produces one point in the registry_operations measurement:
//
//	registry_operations,operation=create,outcome=ok duration_ms=2.4,observers=3i
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	svc.AddRecorder(influxdb.NewRecorder(client, hub.Count))
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; write failures are
// reported through the SetOnError callback.
package influxdb
