package upstream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"

	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Handler receives each raw message delivered on a subscribed channel. The
// channel name has the process-wide prefix already stripped.
type Handler func(channel string, payload []byte)

// Link is the subscribe side of the upstream pub/sub connection.
type Link interface {
	Subscribe(ctx context.Context, channel string) error
	Unsubscribe(ctx context.Context, channel string) error
}

// NewRedisClient builds a client from the configured URL or host/port pair.
func NewRedisClient(url, addr, password string, db int) (*redis.Client, error) {
	if url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, err
		}
		return redis.NewClient(opts), nil
	}
	return redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db}), nil
}

// RedisLink implements Link over a single Redis pub/sub connection.
type RedisLink struct {
	pubsub  *redis.PubSub
	prefix  string
	handler Handler
	logger  logpkg.Logger

	mu       sync.Mutex
	channels map[string]struct{}
}

// NewRedisLink opens the pub/sub connection. Run must be called to start
// the receive loop.
func NewRedisLink(client *redis.Client, prefix string, handler Handler, logger logpkg.Logger) *RedisLink {
	return &RedisLink{
		pubsub:   client.Subscribe(context.Background()),
		prefix:   prefix,
		handler:  handler,
		logger:   logger.WithComponent("upstream"),
		channels: make(map[string]struct{}),
	}
}

// Subscribe issues an upstream subscribe for the channel and tracks it for
// re-subscription after a reconnect.
func (l *RedisLink) Subscribe(ctx context.Context, channel string) error {
	l.mu.Lock()
	l.channels[channel] = struct{}{}
	l.mu.Unlock()
	l.logger.Debug("subscribe", logpkg.Str("channel", channel))
	return l.pubsub.Subscribe(ctx, l.prefix+channel)
}

// Unsubscribe removes the upstream subscription.
func (l *RedisLink) Unsubscribe(ctx context.Context, channel string) error {
	l.mu.Lock()
	delete(l.channels, channel)
	l.mu.Unlock()
	l.logger.Debug("unsubscribe", logpkg.Str("channel", channel))
	return l.pubsub.Unsubscribe(ctx, l.prefix+channel)
}

// SubscriptionCount returns the number of tracked upstream channels.
func (l *RedisLink) SubscriptionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.channels)
}

// Run receives messages until ctx is cancelled. Receive errors trigger a
// backoff wait and a re-subscribe of every tracked channel; local listener
// state is untouched, so delivery resumes without client involvement.
func (l *RedisLink) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second

	for {
		msg, err := l.pubsub.ReceiveMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return l.pubsub.Close()
			}
			wait := bo.NextBackOff()
			l.logger.Error("upstream receive failed, reconnecting",
				logpkg.Err(err), logpkg.Any("backoff", wait))
			select {
			case <-ctx.Done():
				return l.pubsub.Close()
			case <-time.After(wait):
			}
			l.resubscribeAll(ctx)
			continue
		}
		bo.Reset()
		l.handler(strings.TrimPrefix(msg.Channel, l.prefix), []byte(msg.Payload))
	}
}

func (l *RedisLink) resubscribeAll(ctx context.Context) {
	l.mu.Lock()
	names := make([]string, 0, len(l.channels))
	for ch := range l.channels {
		names = append(names, l.prefix+ch)
	}
	l.mu.Unlock()
	if len(names) == 0 {
		return
	}
	if err := l.pubsub.Subscribe(ctx, names...); err != nil {
		l.logger.Error("re-subscribe after reconnect failed", logpkg.Err(err))
		return
	}
	l.logger.Info("re-subscribed after reconnect", logpkg.Int("channels", len(names)))
}
