// Package server implements the HTTP surface using the Echo framework.
//
// Routes: WebSocket subscriptions (/ws/:stream), stream status
// (/streams/:stream) and observability (/health, /metrics, /version).
package server
