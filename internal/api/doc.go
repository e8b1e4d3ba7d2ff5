// Package api provides the HTTP read surface for HomeWatt Core.
//
// The monitor ingests everything through the broker; HTTP exists only for
// reading what has been aggregated. The server exposes the hourly
// consumption profile, the device directory projection, and a health
// endpoint, and follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple
// goroutines.
package api
