package config

import (
	"fmt"
	"net/url"
	"time"
)

// Config is the top-level configuration assembled from defaults and env.
type Config struct {
	// HTTP listener.
	Bind string
	Port int

	Redis    Redis
	Database Database

	// RequireAuthentication rejects connections that carry no access token.
	// Matches the instance-wide policy of limited-federation deployments.
	RequireAuthentication bool

	// Heartbeat cadences. WSPingInterval drives WebSocket liveness pings,
	// SSEHeartbeatInterval the SSE comment lines, and SubscribedTTLInterval
	// the "subscribed:<channel>" marker refresh in Redis.
	WSPingInterval        time.Duration
	SSEHeartbeatInterval  time.Duration
	SubscribedTTLInterval time.Duration

	LogLevel  string
	LogFormat string
}

// Redis holds the upstream pub/sub connection settings. Namespace becomes a
// "<ns>:" prefix on every channel name.
type Redis struct {
	URL       string
	Host      string
	Port      int
	DB        int
	Password  string
	Namespace string
}

// Prefix returns the channel prefix derived from Namespace ("" when unset).
func (r Redis) Prefix() string {
	if r.Namespace == "" {
		return ""
	}
	return r.Namespace + ":"
}

// Addr returns the host:port pair for direct (non-URL) connections.
func (r Redis) Addr() string { return fmt.Sprintf("%s:%d", r.Host, r.Port) }

// Database holds the read-only collaborator store connection settings.
type Database struct {
	URL      string
	Host     string
	Port     int
	Name     string
	User     string
	Password string
	PoolSize int
}

// ConnString returns a pgx-compatible connection string, preferring URL.
func (d Database) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.User != "" {
		u.User = url.UserPassword(d.User, d.Password)
	}
	q := u.Query()
	q.Set("pool_max_conns", fmt.Sprintf("%d", d.PoolSize))
	u.RawQuery = q.Encode()
	return u.String()
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		Bind: "127.0.0.1",
		Port: 4000,
		Redis: Redis{
			Host: "127.0.0.1",
			Port: 6379,
		},
		Database: Database{
			Host:     "localhost",
			Port:     5432,
			Name:     "mastodon_development",
			PoolSize: 10,
		},
		WSPingInterval:        30 * time.Second,
		SSEHeartbeatInterval:  15 * time.Second,
		SubscribedTTLInterval: 6 * time.Minute,
		LogLevel:              "info",
		LogFormat:             "text",
	}
}
