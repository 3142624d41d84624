package serverrun

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	cfgpkg "github.com/firehose-io/firehose/internal/config"
	"github.com/firehose-io/firehose/internal/filter"
	"github.com/firehose-io/firehose/internal/metrics"
	"github.com/firehose-io/firehose/internal/registry"
	httpserver "github.com/firehose-io/firehose/internal/server/http"
	"github.com/firehose-io/firehose/internal/server/http/controllers"
	"github.com/firehose-io/firehose/internal/store"
	"github.com/firehose-io/firehose/internal/stream"
	"github.com/firehose-io/firehose/internal/upstream"
	"github.com/firehose-io/firehose/pkg/id"
	logpkg "github.com/firehose-io/firehose/pkg/log"
)

// Options are the command-line overrides layered on top of env and defaults.
type Options struct {
	Bind      string
	Port      int
	LogLevel  string
	LogFormat string
}

// Run wires the whole worker together and blocks until ctx is cancelled: the
// collaborator store, the upstream pub/sub link, the subscription registry,
// and the HTTP front with both transports.
func Run(ctx context.Context, opts Options) error {
	sctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := cfgpkg.Default()
	cfgpkg.FromEnv(&cfg)
	if opts.Bind != "" {
		cfg.Bind = opts.Bind
	}
	if opts.Port != 0 {
		cfg.Port = opts.Port
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}

	level, err := logpkg.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logpkg.NewLogger(
		logpkg.WithLevel(level),
		logpkg.WithFormat(logpkg.ParseFormat(cfg.LogFormat)),
	)

	logger.Info("starting streaming server",
		logpkg.Str("bind", cfg.Bind),
		logpkg.Int("port", cfg.Port),
		logpkg.Bool("require_auth", cfg.RequireAuthentication),
	)

	st, err := store.NewPostgres(sctx, cfg.Database.ConnString(), logger)
	if err != nil {
		return fmt.Errorf("open collaborator store: %w", err)
	}
	defer st.Close()
	if err := st.Ping(sctx); err != nil {
		return fmt.Errorf("collaborator store unreachable: %w", err)
	}

	// Two Redis clients: one is dedicated to pub/sub (a connection in
	// subscribe mode cannot run regular commands), the other writes the
	// subscribed markers.
	subClient, err := upstream.NewRedisClient(cfg.Redis.URL, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("redis pub/sub client: %w", err)
	}
	defer subClient.Close()
	cmdClient, err := upstream.NewRedisClient(cfg.Redis.URL, cfg.Redis.Addr(), cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("redis client: %w", err)
	}
	defer cmdClient.Close()

	m := metrics.New()
	var reg *registry.Registry
	link := upstream.NewRedisLink(subClient, cfg.Redis.Prefix(), func(channel string, payload []byte) {
		reg.Dispatch(channel, payload)
	}, logger)
	reg = registry.New(link, m, logger)
	presence := upstream.NewPresence(cmdClient, cfg.Redis.Prefix(), cfg.SubscribedTTLInterval, logger)

	deps := &controllers.Deps{
		Store:             st,
		Registry:          reg,
		Resolver:          stream.NewResolver(st),
		Filter:            filter.New(st, logger),
		Marker:            presence,
		Metrics:           m,
		Logger:            logger,
		IDs:               id.NewGenerator(),
		RequireAuth:       cfg.RequireAuthentication,
		PingInterval:      cfg.WSPingInterval,
		HeartbeatInterval: cfg.SSEHeartbeatInterval,
	}
	hsrv := httpserver.New(deps)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := link.Run(sctx); err != nil && sctx.Err() == nil {
			logger.Error("upstream link stopped", logpkg.Err(err))
		}
	}()

	addr := fmt.Sprintf("%s:%d", cfg.Bind, cfg.Port)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := hsrv.ListenAndServe(sctx, addr); err != nil && sctx.Err() == nil {
			logger.Error("http server stopped", logpkg.Err(err))
		}
	}()

	<-sctx.Done()
	hsrv.Close()
	wg.Wait()
	logger.Info("streaming server stopped")
	return nil
}
