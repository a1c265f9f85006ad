package relay

import (
	"context"
	"fmt"
	"time"

	"tg_forwarder/internal/config"
	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/state"
	"tg_forwarder/internal/telegram/platform"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// CredentialSink 接收本次运行新签发的会话字符串（每次运行最多一次）
// 持久化策略由宿主程序决定
type CredentialSink interface {
	OnNewCredential(ctx context.Context, credential string) error
}

// Notifier 运维通知
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Config Relay 配置
type Config struct {
	SourceChannel   string
	TargetChannel   string
	RetryPolicy     string
	RetryAttempts   int
	RetryDelay      time.Duration
	RatePerSecond   float64
	DisconnectPause time.Duration
}

// ConfigFromApp 从应用配置构建 Relay 配置
func ConfigFromApp(cfg *config.Config) Config {
	return Config{
		SourceChannel:   cfg.Telegram.SourceChannel,
		TargetChannel:   cfg.Telegram.TargetChannel,
		RetryPolicy:     cfg.Forward.RetryPolicy,
		RetryAttempts:   cfg.Forward.RetryAttempts,
		RetryDelay:      cfg.Forward.RetryDelay,
		RatePerSecond:   cfg.Forward.RatePerSecond,
		DisconnectPause: cfg.Forward.DisconnectPause,
	}
}

// Relay 维护唯一会话，监听源频道并转发到目标频道
type Relay struct {
	cfg      Config
	client   platform.Client
	shared   *state.Shared
	sink     CredentialSink
	notifier Notifier
	limiter  *rate.Limiter
}

// New 创建 Relay
func New(cfg Config, client platform.Client, shared *state.Shared, sink CredentialSink, notifier Notifier) *Relay {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 20
	}
	burst := int(cfg.RatePerSecond)
	if burst < 1 {
		burst = 1
	}
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}

	return &Relay{
		cfg:      cfg,
		client:   client,
		shared:   shared,
		sink:     sink,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst),
	}
}

// Run 阻塞运行直到会话结束
// 返回 nil 表示正常终止；Active 之前的失败返回 ErrAuthentication / ErrChannelResolution；
// Active 之后的意外断线在暂停 DisconnectPause 后返回 ErrDisconnected
func (r *Relay) Run(ctx context.Context) error {
	r.shared.Update(func(s *state.Snapshot) {
		s.Reader = r.client
		s.Phase = state.PhaseAuthenticating
	})

	active := false
	err := r.client.Run(ctx, func(ctx context.Context) error {
		if err := r.establishSession(ctx); err != nil {
			return err
		}

		source, target, err := r.resolveChannels(ctx)
		if err != nil {
			return err
		}

		events := r.client.Subscribe(source)
		r.shared.Update(func(s *state.Snapshot) {
			s.Forwarding = true
			s.Phase = state.PhaseActive
			s.LastError = ""
		})
		active = true

		logger.L().Infof("Auto-forwarding active: %s -> %s", source.Title, target.Title)
		return r.consume(ctx, events, source, target)
	})

	r.shared.Update(func(s *state.Snapshot) { s.Forwarding = false })

	if ctx.Err() != nil {
		r.shared.SetPhase(state.PhaseTerminated)
		logger.L().Info("Relay terminated")
		return nil
	}

	if !active {
		if err == nil {
			err = fmt.Errorf("%w: session closed before forwarding started", ErrAuthentication)
		}
		r.fail(ctx, err)
		return err
	}

	if err == nil {
		err = fmt.Errorf("event stream closed")
	}
	r.shared.Update(func(s *state.Snapshot) {
		s.Phase = state.PhaseDisconnected
		s.LastError = err.Error()
	})
	logger.L().Errorf("Relay runtime error: %v", err)
	r.notify(ctx, fmt.Sprintf("⚠️ Relay disconnected: %v", err))

	// 不自动重连，等待片刻后交由进程守护重启
	select {
	case <-ctx.Done():
	case <-time.After(r.cfg.DisconnectPause):
	}
	return fmt.Errorf("%w: %w", ErrDisconnected, err)
}

// establishSession 恢复或新建会话，新会话字符串只交付一次
func (r *Relay) establishSession(ctx context.Context) error {
	result, err := r.client.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	logger.L().Infof("Connected as %s", result.DisplayName)

	if result.NewCredential != "" && r.sink != nil {
		if err := r.sink.OnNewCredential(ctx, result.NewCredential); err != nil {
			logger.L().Errorf("Failed to hand over new session credential: %v", err)
		}
		r.notify(ctx, "🔑 A new session credential was issued; capture it and set SESSION_CREDENTIAL before the next deploy.")
	}

	r.shared.SetPhase(state.PhaseChannelsResolving)
	return nil
}

// resolveChannels 解析源频道与目标频道
func (r *Relay) resolveChannels(ctx context.Context) (platform.ChannelRef, platform.ChannelRef, error) {
	source, err := r.client.ResolveChannel(ctx, r.cfg.SourceChannel)
	if err != nil {
		return platform.ChannelRef{}, platform.ChannelRef{},
			fmt.Errorf("%w: source %q: %w", ErrChannelResolution, r.cfg.SourceChannel, err)
	}

	target, err := r.client.ResolveChannel(ctx, r.cfg.TargetChannel)
	if err != nil {
		return platform.ChannelRef{}, platform.ChannelRef{},
			fmt.Errorf("%w: target %q: %w", ErrChannelResolution, r.cfg.TargetChannel, err)
	}

	r.shared.Update(func(s *state.Snapshot) {
		t := target
		s.Target = &t
	})

	logger.L().WithFields(logrus.Fields{"id": source.ID}).Infof("Source: %s", source.Title)
	logger.L().WithFields(logrus.Fields{"id": target.ID}).Infof("Target: %s", target.Title)
	return source, target, nil
}

func (r *Relay) fail(ctx context.Context, err error) {
	r.shared.Update(func(s *state.Snapshot) {
		s.Phase = state.PhaseFailed
		s.LastError = err.Error()
	})
	logger.L().Errorf("Relay failed to start: %v", err)
	r.notify(ctx, fmt.Sprintf("❌ Relay failed to start: %v", err))
}

func (r *Relay) notify(ctx context.Context, text string) {
	if r.notifier == nil {
		return
	}
	// 运行上下文可能已取消，通知使用独立超时
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := r.notifier.Notify(notifyCtx, text); err != nil {
		logger.L().Warnf("Failed to send operator notification: %v", err)
	}
}
