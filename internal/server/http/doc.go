// Package httpserver exposes the streaming API over HTTP: one SSE route per
// stream kind, a multiplexed WebSocket endpoint, and the health and metrics
// endpoints.
package httpserver
