// Package session implements the per-client connection state machine over
// either transport (WebSocket or SSE): subscription lifecycle, delivery
// with filtering, subscribed-marker heartbeats, and forced close on token
// revocation.
//
// A Session owns every listener it registers; closing the session
// synchronously unregisters all of them, so no listener outlives its
// session.
package session
