// Package directory maintains the local projection of the device directory.
//
// The projection is fed by lifecycle events from the device service and is
// deliberately lossy in the other direction: this service never writes back.
// Rows exist so measurement rollups have a foreign-key anchor and so
// placeholder recovery can register a device before its creation event
// arrives.
//
// Two write paths touch the table:
//
//   - Sync applies DEVICE_CREATED / DEVICE_UPDATED / DEVICE_DELETED events
//     as full-row upserts and deletes.
//   - The consumption aggregator inserts placeholder rows (name
//     "Unknown device") when a measurement references a device the
//     projection has not seen yet.
//
// A later materialized upsert always overwrites a placeholder, so arrival
// order between a device's creation event and its first measurement does not
// matter.
package directory
