// Package filter decides, per listener, whether an update event on a
// filtered channel may be delivered to that listener's viewer.
//
// The language check is local and always runs first; the block/mute/domain
// check is one collaborator-store round trip and fails closed: on a store
// error the message is dropped rather than risk leaking suppressed content.
package filter
