// Package simulator generates synthetic household telemetry.
//
// Each configured device follows a daily load curve: a flat night baseline,
// a gentle daytime ramp, and an evening peak around 18:00, with a little
// noise on top. Measurements are published through the reliable publisher at
// a fixed interval; a failed batch is logged and the next tick carries on,
// since simulated telemetry tolerates loss.
package simulator
