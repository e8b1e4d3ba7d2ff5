// Package influxdb provides the optional raw-measurement history sink.
//
// The hourly rollup in SQLite is the system of record for consumption
// queries; this sink keeps the individual measurement points alongside it
// for fine-grained history and dashboarding. It wraps the official
// influxdb-client-go v2 library.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // sink disabled or unreachable; the pipeline runs without it
//	}
//	defer client.Close()
//
//	client.WriteMeasurement(ctx, m)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
//
// # Error Handling
//
// Writes are non-blocking and batched; batch errors surface asynchronously
// via SetOnError. Connection and health check errors are returned directly.
package influxdb
