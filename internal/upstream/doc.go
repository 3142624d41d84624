// Package upstream owns the process's connection to the upstream pub/sub
// system (Redis). One Link per worker carries every channel subscription;
// the receive loop reconnects with backoff and re-issues the tracked
// subscriptions so local listeners survive an outage without resubscribing.
package upstream
