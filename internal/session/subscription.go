package session

import (
	"sync/atomic"

	"github.com/firehose-io/firehose/internal/event"
	"github.com/firehose-io/firehose/internal/filter"
	"github.com/firehose-io/firehose/internal/stream"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// subscription is the listener registered against each upstream channel on
// behalf of one logical stream. It is owned exclusively by its Session.
type subscription struct {
	sess *Session
	key  string
	kind stream.Kind

	channels       []string
	streamName     []string
	needsFiltering bool
	allowLocalOnly bool

	// active flips to false exactly once, on unsubscribe or close. A
	// delivery that was mid-flight in the filtering pipeline checks it
	// again before writing.
	active atomic.Bool
	done   chan struct{}
}

// Deliver implements registry.Listener.
func (sub *subscription) Deliver(_ string, msg *event.Message) {
	if !sub.active.Load() {
		return
	}

	// Everything except update events passes straight through: deletes,
	// notifications, and edits are personalized at publish time.
	if !msg.IsStatus() {
		sub.transmit(msg.Event, msg.PayloadText())
		return
	}

	st, err := filter.ParseStatus(msg.Payload)
	if err != nil {
		if sub.needsFiltering {
			sub.sess.logger.Error("dropping unparseable status on filtered channel", logpkg.Err(err))
			return
		}
		sub.transmit(msg.Event, msg.PayloadText())
		return
	}

	// Local-only statuses only go to logged-in viewers on streams that
	// opted in.
	if st.LocalOnly && !(sub.sess.identity != nil && sub.allowLocalOnly) {
		return
	}

	if !sub.needsFiltering || sub.sess.identity == nil {
		sub.transmit(msg.Event, msg.PayloadText())
		return
	}

	// The suppression lookup runs off the dispatch path so one slow viewer
	// never holds up fanout to the rest. The result is applied only if the
	// listener is still registered when it lands.
	eventName, payload := msg.Event, msg.PayloadText()
	go func() {
		if !sub.sess.opts.Filter.Allow(sub.sess.ctx, sub.sess.identity, st) {
			return
		}
		if !sub.active.Load() {
			return
		}
		sub.transmit(eventName, payload)
	}()
}

func (sub *subscription) transmit(eventName, payload string) {
	if err := sub.sess.transport.SendEvent(sub.streamName, eventName, payload); err != nil {
		sub.sess.logger.Error("transport write failed, closing session", logpkg.Err(err))
		sub.sess.Close()
		return
	}
	if sub.sess.opts.Metrics != nil {
		sub.sess.opts.Metrics.MessagesSent.WithLabelValues(sub.sess.opts.TransportType).Inc()
	}
}
