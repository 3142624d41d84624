// Package log provides the structured logging facade used across the
// streaming server.
//
// # Overview
//
// The package exposes a small Logger interface with leveled methods and a
// Field type for structured context. Internally it is backed by Go's
// standard library slog, so output format (text or JSON) and level are
// chosen once at construction and the rest of the codebase stays against
// this facade.
//
// Quick start
//
//	l := log.NewLogger(
//	    log.WithLevel(log.InfoLevel),
//	    log.WithFormat(log.TextFormat),
//	)
//	l = l.With(log.Component("registry"))
//	l.Info("subscribed", log.Str("channel", "timeline:public"))
//
// Loggers are passed explicitly via dependency injection; there is no
// package-level default.
package log
