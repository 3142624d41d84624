package registry

import (
	"context"
	"sync"

	"github.com/firehose-io/firehose/internal/event"
	"github.com/firehose-io/firehose/internal/metrics"
	"github.com/firehose-io/firehose/internal/upstream"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Listener receives messages fanned out from one upstream channel. Values
// must be comparable: Unregister removes by identity.
type Listener interface {
	Deliver(channel string, msg *event.Message)
}

// entry holds one channel's listeners. Its lock is what covers the upstream
// subscribe and unsubscribe for that channel, so a slow upstream call stalls
// only that channel; the registry-wide map lock is never held across I/O.
type entry struct {
	mu         sync.Mutex
	listeners  []Listener
	subscribed bool
	// removed marks an entry already deleted from the map. A Register that
	// raced with the deletion starts over with a fresh entry.
	removed bool
}

// Registry is the per-worker channel-to-listener map. All methods are safe
// for concurrent use.
type Registry struct {
	link    upstream.Link
	metrics *metrics.Metrics
	logger  logpkg.Logger

	mu      sync.Mutex
	entries map[string]*entry
}

// New creates a Registry over the given upstream link. metrics may be nil.
func New(link upstream.Link, m *metrics.Metrics, logger logpkg.Logger) *Registry {
	return &Registry{
		link:    link,
		metrics: m,
		logger:  logger.WithComponent("registry"),
		entries: make(map[string]*entry),
	}
}

// lookup returns the channel's entry, creating one when create is set.
func (r *Registry) lookup(channel string, create bool) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[channel]
	if !ok && create {
		e = &entry{}
		r.entries[channel] = e
	}
	return e
}

// drop deletes the entry from the map if it is still the current one.
func (r *Registry) drop(channel string, e *entry) {
	r.mu.Lock()
	if r.entries[channel] == e {
		delete(r.entries, channel)
	}
	r.mu.Unlock()
}

// Register adds a listener to the channel's entry. The first listener on a
// channel triggers the upstream subscribe, under the channel's own lock, so
// the refcount invariant (upstream subscribed iff listeners exist) holds at
// every observable point while dispatch on other channels keeps flowing.
func (r *Registry) Register(ctx context.Context, channel string, l Listener) error {
	for {
		e := r.lookup(channel, true)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		if !e.subscribed {
			if err := r.link.Subscribe(ctx, channel); err != nil {
				e.removed = true
				e.mu.Unlock()
				r.drop(channel, e)
				return err
			}
			e.subscribed = true
			if r.metrics != nil {
				r.metrics.UpstreamSubscriptions.Inc()
			}
		}
		e.listeners = append(e.listeners, l)
		e.mu.Unlock()
		return nil
	}
}

// Unregister removes a listener. When the last listener leaves, the entry is
// retired and the upstream unsubscribe issued under the channel's lock.
// Removing a listener that is not registered is a no-op.
func (r *Registry) Unregister(ctx context.Context, channel string, l Listener) {
	e := r.lookup(channel, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	found := false
	for i, existing := range e.listeners {
		if existing == l {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			found = true
			break
		}
	}
	if !found || len(e.listeners) > 0 {
		e.mu.Unlock()
		return
	}
	e.removed = true
	if err := r.link.Unsubscribe(ctx, channel); err != nil {
		r.logger.Error("upstream unsubscribe failed",
			logpkg.Str("channel", channel), logpkg.Err(err))
	}
	if r.metrics != nil {
		r.metrics.UpstreamSubscriptions.Dec()
	}
	e.mu.Unlock()
	r.drop(channel, e)
}

// ListenerCount returns the number of listeners registered on a channel.
func (r *Registry) ListenerCount(channel string) int {
	e := r.lookup(channel, false)
	if e == nil {
		return 0
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners)
}

// Dispatch parses a raw upstream message and invokes every listener
// currently registered on the channel, synchronously and in registration
// order. A malformed message is dropped and logged. A panicking listener is
// recovered and logged; it never prevents delivery to the rest.
func (r *Registry) Dispatch(channel string, raw []byte) {
	if r.metrics != nil {
		r.metrics.UpstreamMessagesReceived.Inc()
	}

	e := r.lookup(channel, false)
	if e == nil {
		return
	}
	e.mu.Lock()
	snapshot := make([]Listener, len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	if len(snapshot) == 0 {
		return
	}

	msg, err := event.Parse(raw)
	if err != nil {
		r.logger.Error("dropping malformed upstream message",
			logpkg.Str("channel", channel), logpkg.Err(err))
		return
	}

	for _, l := range snapshot {
		r.deliver(channel, l, msg)
	}
}

func (r *Registry) deliver(channel string, l Listener, msg *event.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				logpkg.Str("channel", channel), logpkg.Any("panic", rec))
		}
	}()
	l.Deliver(channel, msg)
}
