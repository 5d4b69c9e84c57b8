// Package api provides the HTTP API and WebSocket stream for the bus decoder.
//
// It exposes the recorded inventory (devices, group addresses, recent
// telegrams), live session counters, and a WebSocket endpoint that streams
// decoded telegrams as they arrive. The API is read-only; nothing on the bus
// can be changed through it.
//
// The server follows the same lifecycle pattern as other infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// The WebSocket hub doubles as a monitor sink, so the monitor feeds it
// directly:
//
//	m := monitor.New(src, opts, server.Hub())
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
