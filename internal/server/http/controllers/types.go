package controllers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/firehose-io/firehose/internal/filter"
	"github.com/firehose-io/firehose/internal/metrics"
	"github.com/firehose-io/firehose/internal/registry"
	"github.com/firehose-io/firehose/internal/session"
	"github.com/firehose-io/firehose/internal/store"
	"github.com/firehose-io/firehose/internal/stream"
	"github.com/firehose-io/firehose/pkg/id"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Deps carries the shared collaborators every controller needs.
type Deps struct {
	Store    store.Store
	Registry *registry.Registry
	Resolver *stream.Resolver
	Filter   *filter.Pipeline
	// Marker may be nil; subscribed markers are skipped then.
	Marker session.Marker
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Logger  logpkg.Logger
	// IDs tags each connection's log lines with a sortable request id.
	// May be nil; lines are untagged then.
	IDs *id.Generator

	// RequireAuth rejects connections that carry no access token.
	RequireAuth bool
	// PingInterval is the WebSocket liveness ping cadence.
	PingInterval time.Duration
	// HeartbeatInterval is the SSE keep-alive comment cadence.
	HeartbeatInterval time.Duration
}

func (d *Deps) sessionOptions(transportType string, logger logpkg.Logger) session.Options {
	return session.Options{
		Registry:      d.Registry,
		Resolver:      d.Resolver,
		Filter:        d.Filter,
		Marker:        d.Marker,
		Metrics:       d.Metrics,
		Logger:        logger,
		TransportType: transportType,
	}
}

// connLogger builds the per-connection logger, tagged with a fresh request
// id when a generator is configured.
func (d *Deps) connLogger(component string) logpkg.Logger {
	logger := d.Logger.WithComponent(component)
	if d.IDs != nil {
		logger = logger.With(logpkg.Str("request_id", d.IDs.Next().String()))
	}
	return logger
}

// identityFromToken resolves an access token to an identity, mapping a
// missing token to anonymous access or a 401 depending on configuration.
func (d *Deps) identityFromToken(ctx context.Context, token string) (*store.Identity, error) {
	if token == "" {
		if d.RequireAuth {
			return nil, &stream.AuthenticationError{Reason: "missing access token"}
		}
		return nil, nil
	}
	identity, err := d.Store.IdentityFromToken(ctx, token)
	if errors.Is(err, store.ErrInvalidToken) {
		return nil, &stream.AuthenticationError{Reason: "invalid access token"}
	}
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// requestToken extracts the access token from the Authorization header or
// the access_token query parameter.
func requestToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
			return token
		}
	}
	return r.URL.Query().Get("access_token")
}
