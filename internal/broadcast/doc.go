// Package broadcast implements the delivery fan-out using the actor pattern.
//
// The Broadcaster owns the subscription registry (connection -> stream id) and
// routes delivery batches from stream sessions to every subscribed WebSocket
// client. Uses single goroutine + command channel (no mutexes). Per-connection
// write goroutines handle slow clients gracefully.
package broadcast
