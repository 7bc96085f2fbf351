package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/tglistener/internal/broker"
	"github.com/memohai/tglistener/internal/config"
	"github.com/memohai/tglistener/internal/db"
	"github.com/memohai/tglistener/internal/dialog"
	"github.com/memohai/tglistener/internal/forward"
	"github.com/memohai/tglistener/internal/handlers"
	depchecker "github.com/memohai/tglistener/internal/healthcheck/checkers/dependency"
	listenerchecker "github.com/memohai/tglistener/internal/healthcheck/checkers/listener"
	"github.com/memohai/tglistener/internal/listener"
	"github.com/memohai/tglistener/internal/logger"
	"github.com/memohai/tglistener/internal/media"
	"github.com/memohai/tglistener/internal/server"
	"github.com/memohai/tglistener/internal/session"
	"github.com/memohai/tglistener/internal/telegram"
)

type configFile string

func newServeCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Restore saved sessions and serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			runServe(*configPath)
			return nil
		},
	}
}

func runServe(path string) {
	fx.New(
		fx.Supply(configFile(path)),
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideRedis,
			provideBroker,
			provideSessionStore,
			provideDialogCache,
			provideMediaService,
			provideForwarder,
			telegram.NewConnector,
			provideRegistry,
			provideServerHandler(provideListenerHandler),
			provideServerHandler(providePingHandler),
			provideServer,
		),
		fx.Invoke(
			startListeners,
			startTokenSync,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(path configFile) (config.Config, error) {
	cfg, err := config.Load(string(path))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideRedis(lc fx.Lifecycle, cfg config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return rdb.Close() }})
	return rdb
}

func provideBroker(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) *broker.AMQPPublisher {
	pub := broker.NewAMQPPublisher(log, broker.AMQPConfig{
		URL:                  cfg.RabbitMQ.URL,
		Queue:                cfg.RabbitMQ.Queue,
		MessageTTL:           cfg.RabbitMQ.MessageTTL,
		DeadLetterExchange:   cfg.RabbitMQ.DeadLetterExchange,
		DeadLetterRoutingKey: cfg.RabbitMQ.DeadLetterRoutingKey,
	})
	lc.Append(fx.Hook{OnStop: func(ctx context.Context) error { return pub.CloseContext(ctx) }})
	return pub
}

func provideSessionStore(log *slog.Logger, conn *pgxpool.Pool) *session.Store {
	return session.NewStore(log, conn)
}

func provideDialogCache(log *slog.Logger, rdb *redis.Client, cfg config.Config) *dialog.Cache {
	return dialog.NewCache(log, rdb, cfg.Redis.Timeout)
}

func provideMediaService(log *slog.Logger, cfg config.Config) *media.Service {
	fetcher := media.NewFetcher(log, media.FetcherConfig{
		MaxBytes:      cfg.Media.MaxBytes,
		Timeout:       cfg.Media.DownloadTimeout,
		MaxConcurrent: cfg.Media.MaxConcurrentDownloads,
	})
	uploader := media.NewUploader(log, media.UploaderConfig{
		BaseURL: cfg.Uploader.BaseURL,
		Path:    cfg.Uploader.Path,
		Timeout: cfg.Uploader.Timeout,
	})
	return media.NewService(log, fetcher, uploader)
}

func provideForwarder(log *slog.Logger, pub *broker.AMQPPublisher, cfg config.Config) *forward.Forwarder {
	return forward.NewForwarder(log, pub, forward.Config{
		BotToken:    cfg.Forward.BotToken,
		ChatID:      cfg.Forward.GroupID,
		Timeout:     cfg.RabbitMQ.PublishTimeout,
		MaxInFlight: cfg.RabbitMQ.MaxInFlight,
	})
}

func provideRegistry(log *slog.Logger, cfg config.Config, connector *telegram.Connector, store *session.Store, cache *dialog.Cache, mediaService *media.Service, forwarder *forward.Forwarder) *listener.Registry {
	return listener.NewRegistry(log, connector, store, listener.Pipeline{
		Resolver: cache,
		Media:    mediaService,
		Emitter:  forwarder,
	}, listener.NewConsolePrompter(), listener.Options{
		Limit:     cfg.Listener.Limit,
		QueueSize: cfg.Listener.QueueSize,
		Workers:   cfg.Listener.Workers,
	})
}

func provideListenerHandler(log *slog.Logger, registry *listener.Registry) *handlers.ListenerHandler {
	return handlers.NewListenerHandler(log, registry)
}

func providePingHandler(log *slog.Logger, cfg config.Config, registry *listener.Registry, conn *pgxpool.Pool, rdb *redis.Client, pub *broker.AMQPPublisher) *handlers.PingHandler {
	return handlers.NewPingHandler(log,
		depchecker.NewChecker(log, "postgres", conn.Ping),
		depchecker.NewChecker(log, "redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }),
		depchecker.NewChecker(log, "rabbitmq", pub.Ping),
		listenerchecker.NewChecker(log, registry, cfg.Listener.Limit),
	)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.ServerHandlers...)
}

func startListeners(lc fx.Lifecycle, logger *slog.Logger, registry *listener.Registry, forwarder *forward.Forwarder) {
	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go registry.Restore(ctx)
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			registry.Shutdown(stopCtx)
			if err := forwarder.Wait(stopCtx); err != nil {
				logger.Warn("pending forwards dropped", slog.Any("error", err))
			}
			return nil
		},
	})
}

func startTokenSync(lc fx.Lifecycle, logger *slog.Logger, cfg config.Config, registry *listener.Registry) error {
	spec := strings.TrimSpace(cfg.Listener.TokenSync)
	if spec == "" {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { registry.SyncTokens(ctx) }); err != nil {
		cancel()
		return fmt.Errorf("token sync schedule %q: %w", spec, err)
	}
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			c.Start()
			logger.Info("token sync scheduled", slog.String("spec", spec))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-c.Stop().Done():
			case <-stopCtx.Done():
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("http server starting", slog.String("addr", cfg.Server.Addr), slog.String("version", version))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
