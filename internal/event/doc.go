// Package event defines the transient wire message exchanged with the
// upstream pub/sub system. Messages are never persisted; one that fails to
// parse is dropped by the caller.
package event
