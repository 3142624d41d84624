package upstream

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Presence maintains the "subscribed:<channel>" markers other processes read
// to observe live subscriber interest. Each marker lives three refresh
// intervals, so a crashed worker's markers expire on their own.
type Presence struct {
	client   *redis.Client
	prefix   string
	interval time.Duration
	logger   logpkg.Logger
}

// NewPresence creates a Presence. The client must not be the pub/sub
// connection: SET is not allowed while a connection is in subscribe mode.
func NewPresence(client *redis.Client, prefix string, interval time.Duration, logger logpkg.Logger) *Presence {
	return &Presence{
		client:   client,
		prefix:   prefix,
		interval: interval,
		logger:   logger.WithComponent("presence"),
	}
}

// Interval returns the refresh cadence sessions should use.
func (p *Presence) Interval() time.Duration { return p.interval }

// Refresh writes (or extends) the marker for each channel.
func (p *Presence) Refresh(ctx context.Context, channels []string) {
	ttl := 3 * p.interval
	for _, ch := range channels {
		if err := p.client.Set(ctx, p.prefix+"subscribed:"+ch, "1", ttl).Err(); err != nil {
			p.logger.Warn("subscribed marker refresh failed",
				logpkg.Str("channel", ch), logpkg.Err(err))
		}
	}
}
