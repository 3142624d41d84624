package session

import (
	"github.com/firehose-io/firehose/internal/event"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// systemListener watches the per-token and per-account control channels. A
// kill message models token revocation: the session is torn down at once
// instead of polling token validity.
type systemListener struct {
	sess     *Session
	channels []string
}

// Deliver implements registry.Listener.
func (l *systemListener) Deliver(_ string, msg *event.Message) {
	switch msg.Event {
	case event.EventKill:
		l.sess.logger.Info("access token revoked, closing session")
		l.sess.Close()
	case event.EventFiltersChanged:
		// No keyword-filter cache to invalidate here; acknowledged so the
		// message is not reported as unknown.
		l.sess.logger.Debug("filters changed")
	default:
		l.sess.logger.Debug("unhandled system message", logpkg.Str("event", msg.Event))
	}
}
