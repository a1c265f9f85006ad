package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tg_forwarder/internal/config"
	"tg_forwarder/internal/credential"
	"tg_forwarder/internal/httpapi"
	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/mongo"
	"tg_forwarder/internal/notify"
	"tg_forwarder/internal/query"
	"tg_forwarder/internal/state"
	"tg_forwarder/internal/telegram/mtproto"
	"tg_forwarder/internal/telegram/platform"
	"tg_forwarder/internal/telegram/relay"
	"tg_forwarder/internal/tracing"

	"golang.org/x/sync/errgroup"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB *mongo.Client
	Tracing *tracing.Provider
	Shared  *state.Shared
	Relay   *relay.Relay
	Server  *httpapi.Server
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{Shared: state.New()}

	tp, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("init tracing failed: %w", err)
	}
	app.Tracing = tp

	// 初始化 MongoDB（可选，仅用于保存会话凭据）
	sinks := credential.Multi{credential.LogSink{}}
	if cfg.Mongo.URI != "" {
		mongoClient, err := mongo.InitFromConfig(cfg)
		if err != nil {
			app.Close(ctx) // 清理已初始化的服务
			return nil, fmt.Errorf("init MongoDB failed: %w", err)
		}
		app.MongoDB = mongoClient
		logger.L().Info("MongoDB initialized successfully")

		store := credential.NewMongoStore(mongoClient.Database(), cfg.Telegram.AccountIdentifier)
		if cfg.Telegram.SessionCredential == "" {
			stored, err := store.Load(ctx)
			if err != nil {
				logger.L().Warnf("Failed to load stored session credential: %v", err)
			} else if stored != "" {
				cfg.Telegram.SessionCredential = stored
				logger.L().Info("Loaded session credential from MongoDB")
			}
		}
		sinks = append(sinks, store)
	}

	notifier, err := notify.FromConfig(cfg.Notify)
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("init notifier failed: %w", err)
	}

	client, err := mtproto.New(mtproto.ConfigFromApp(cfg, mtproto.ReaderPrompt(os.Stdin, os.Stdout)))
	if err != nil {
		app.Close(ctx)
		return nil, fmt.Errorf("init telegram client failed: %w", err)
	}

	app.wire(cfg, client, sinks, notifier)
	return app, nil
}

// wire 组装 Relay 与查询服务，二者只通过 Shared 共享状态
func (a *App) wire(cfg *config.Config, client platform.Client, sink relay.CredentialSink, notifier relay.Notifier) {
	a.Relay = relay.New(relay.ConfigFromApp(cfg), client, a.Shared, sink, notifier)
	a.Server = httpapi.NewServer(cfg.HTTP.Port, cfg.HTTP.APIKey, a.Shared, query.NewService(a.Shared))

	if cfg.HTTP.APIKey == "" {
		logger.L().Warn("API_KEY is not set, message endpoints are unauthenticated")
	}
	if cfg.UsesPlaceholderTarget() {
		logger.L().Warnf("TARGET_CHANNEL is not set, using placeholder %q", config.DefaultTargetChannel)
	}
}

// Run 并发运行 HTTP 服务与 Relay
// Relay 在转发生效前失败不会停止 HTTP 服务，/health 持续报告未就绪；
// 转发生效后断线则返回错误，由进程守护重启
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.Server.Run(ctx)
	})

	g.Go(func() error {
		err := a.Relay.Run(ctx)
		if err == nil || !relay.IsFatal(err) {
			if err != nil {
				logger.L().Errorf("Failed to start Telegram relay: %v", err)
			}
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close MongoDB failed: %w", err))
		}
	}
	if err := a.Tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing failed: %w", err))
	}
	return errors.Join(errs...)
}
