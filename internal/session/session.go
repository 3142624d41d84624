package session

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/firehose-io/firehose/internal/filter"
	"github.com/firehose-io/firehose/internal/metrics"
	"github.com/firehose-io/firehose/internal/registry"
	"github.com/firehose-io/firehose/internal/store"
	"github.com/firehose-io/firehose/internal/stream"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Transport is the write side of one client connection. Implementations
// must be safe for concurrent SendEvent calls and idempotent Close.
type Transport interface {
	// SendEvent writes one event frame. stream is the logical stream name,
	// used by transports that echo it back (WebSocket frames).
	SendEvent(stream []string, event, payload string) error
	Close() error
}

// Marker refreshes the subscribed-channel markers other processes observe.
// *upstream.Presence satisfies it.
type Marker interface {
	Refresh(ctx context.Context, channels []string)
	Interval() time.Duration
}

// Options wires a Session to the per-worker collaborators.
type Options struct {
	Registry *registry.Registry
	Resolver *stream.Resolver
	Filter   *filter.Pipeline
	// Marker may be nil; no subscribed markers are written then.
	Marker Marker
	// Metrics may be nil.
	Metrics *metrics.Metrics
	Logger  logpkg.Logger
	// TransportType is the metric label: "websocket" or "eventsource".
	TransportType string
}

// ErrSessionClosed is returned by Subscribe on a closed session.
var ErrSessionClosed = errors.New("session closed")

// Session represents one client connection with its resolved identity and
// the set of logical streams it subscribed to.
type Session struct {
	opts      Options
	identity  *store.Identity
	transport Transport
	logger    logpkg.Logger

	// ctx is cancelled on close; it bounds marker tickers and pending
	// filtering lookups.
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	subs   map[string]*subscription
	system *systemListener
}

// New creates a Session for an accepted transport. identity is nil for
// anonymous connections.
func New(identity *store.Identity, transport Transport, opts Options) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		opts:      opts,
		identity:  identity,
		transport: transport,
		logger:    opts.Logger,
		ctx:       ctx,
		cancel:    cancel,
		subs:      make(map[string]*subscription),
	}
	if opts.Metrics != nil {
		opts.Metrics.ConnectedClients.WithLabelValues(opts.TransportType).Inc()
	}
	return s
}

// Identity returns the resolved identity, or nil for anonymous sessions.
func (s *Session) Identity() *store.Identity { return s.identity }

// Done is closed once the session is closed, whether by the client, a write
// failure, or a kill message.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

// SubscribeSystem registers the revocation listener on the per-token and
// per-account system channels. It is a no-op for anonymous sessions.
func (s *Session) SubscribeSystem(ctx context.Context) error {
	if s.identity == nil {
		return nil
	}
	sys := &systemListener{sess: s}
	channels := []string{
		"timeline:access_token:" + s.identity.AccessTokenID,
		"timeline:system:" + s.identity.AccountID,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.system = sys
	sys.channels = channels
	s.mu.Unlock()

	for i, ch := range channels {
		if err := s.opts.Registry.Register(ctx, ch, sys); err != nil {
			for _, done := range channels[:i] {
				s.opts.Registry.Unregister(ctx, done, sys)
			}
			return err
		}
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectedChannels.WithLabelValues(s.opts.TransportType, "system").Add(float64(len(channels)))
	}
	return nil
}

// Subscribe resolves and registers one logical stream. Authorization is
// recomputed on every call; a duplicate subscribe for the same resolved
// channel set is a no-op.
func (s *Session) Subscribe(ctx context.Context, kind stream.Kind, params stream.Params) error {
	if err := stream.CheckScopes(kind, s.identity); err != nil {
		return err
	}
	res, err := s.opts.Resolver.Resolve(ctx, kind, s.identity, params)
	if err != nil {
		return err
	}
	key := subscriptionKey(res.ChannelIDs)

	sub := &subscription{
		sess:           s,
		key:            key,
		kind:           kind,
		channels:       res.ChannelIDs,
		streamName:     res.StreamName,
		needsFiltering: res.NeedsFiltering,
		allowLocalOnly: res.AllowLocalOnly,
		done:           make(chan struct{}),
	}
	sub.active.Store(true)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if _, exists := s.subs[key]; exists {
		s.mu.Unlock()
		return nil
	}
	s.subs[key] = sub
	s.mu.Unlock()

	for i, ch := range res.ChannelIDs {
		if err := s.opts.Registry.Register(ctx, ch, sub); err != nil {
			for _, done := range res.ChannelIDs[:i] {
				s.opts.Registry.Unregister(ctx, done, sub)
			}
			s.mu.Lock()
			delete(s.subs, key)
			s.mu.Unlock()
			return err
		}
	}

	if s.opts.Marker != nil {
		go s.runMarker(sub)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectedChannels.WithLabelValues(s.opts.TransportType, kind.String()).Inc()
	}
	s.logger.Info("stream subscribed", logpkg.Any("channels", res.ChannelIDs))
	return nil
}

// Unsubscribe re-resolves the stream to its channel set and removes the
// matching subscription. An unknown key is a no-op.
func (s *Session) Unsubscribe(ctx context.Context, kind stream.Kind, params stream.Params) error {
	res, err := s.opts.Resolver.Resolve(ctx, kind, s.identity, params)
	if err != nil {
		return err
	}
	key := subscriptionKey(res.ChannelIDs)

	s.mu.Lock()
	sub, ok := s.subs[key]
	if ok {
		delete(s.subs, key)
	}
	s.mu.Unlock()
	if !ok {
		return nil
	}
	s.teardown(sub)
	s.logger.Info("stream unsubscribed", logpkg.Any("channels", sub.channels))
	return nil
}

// Close tears the session down: every owned listener is unregistered, the
// marker heartbeats stop, pending filtering results are discarded, and the
// transport is released. Safe to call any number of times, from any state.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = make(map[string]*subscription)
	sys := s.system
	s.system = nil
	s.mu.Unlock()

	s.cancel()

	for _, sub := range subs {
		s.teardown(sub)
	}
	if sys != nil {
		for _, ch := range sys.channels {
			s.opts.Registry.Unregister(context.Background(), ch, sys)
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.ConnectedChannels.WithLabelValues(s.opts.TransportType, "system").Sub(float64(len(sys.channels)))
		}
	}
	if err := s.transport.Close(); err != nil {
		s.logger.Debug("transport close", logpkg.Err(err))
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectedClients.WithLabelValues(s.opts.TransportType).Dec()
	}
	s.logger.Info("session closed")
}

// SubscriptionCount returns the number of active logical streams.
func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Session) teardown(sub *subscription) {
	if !sub.active.CompareAndSwap(true, false) {
		return
	}
	close(sub.done)
	for _, ch := range sub.channels {
		s.opts.Registry.Unregister(context.Background(), ch, sub)
	}
	if s.opts.Metrics != nil {
		s.opts.Metrics.ConnectedChannels.WithLabelValues(s.opts.TransportType, sub.kind.String()).Dec()
	}
}

func (s *Session) runMarker(sub *subscription) {
	s.opts.Marker.Refresh(s.ctx, sub.channels)
	ticker := time.NewTicker(s.opts.Marker.Interval())
	defer ticker.Stop()
	for {
		select {
		case <-sub.done:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.opts.Marker.Refresh(s.ctx, sub.channels)
		}
	}
}

// subscriptionKey builds the stable composite key for a channel set: the
// sorted channel ids joined with ';'.
func subscriptionKey(channels []string) string {
	sorted := make([]string, len(channels))
	copy(sorted, channels)
	sort.Strings(sorted)
	return strings.Join(sorted, ";")
}
