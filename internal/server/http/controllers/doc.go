// Package controllers holds the HTTP handlers for the streaming API and the
// transport adapters that bridge connections into sessions.
package controllers
