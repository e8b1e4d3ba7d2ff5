// Package consumption rolls device telemetry up into hourly energy buckets.
//
// Each measurement is folded into the bucket for its UTC day and hour by
// adding to the stored value, so accumulation is commutative: duplicates are
// not deduplicated (each broker delivery counts once) but arrival order
// never changes the final total.
//
// The bucket table references the device directory. When a measurement
// arrives for a device the directory has not seen, the foreign key fires,
// the aggregator registers a placeholder row and retries the rollup exactly
// once. That keeps early telemetry instead of dropping it while lifecycle
// events are still in flight.
package consumption
