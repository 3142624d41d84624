// Package store gives the streaming server its read-only view of the web
// application's relational schema: access tokens, list ownership, and the
// block/mute/domain-block relations the filtering pipeline consults.
//
// The server never writes through this package.
package store
