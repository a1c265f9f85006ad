// Package credential 处理会话凭据的交付与持久化
package credential

import (
	"context"
	"errors"
	"strings"

	"tg_forwarder/internal/logger"
)

// Sink 新会话字符串的接收方
type Sink interface {
	OnNewCredential(ctx context.Context, credential string) error
}

// LogSink 在日志中醒目地输出一次会话字符串，供运维复制到 SESSION_CREDENTIAL
type LogSink struct{}

// OnNewCredential 实现 Sink
func (LogSink) OnNewCredential(_ context.Context, credential string) error {
	banner := strings.Repeat("=", 80)
	logger.L().Info(banner)
	logger.L().Info("🔑 COPY THIS SESSION CREDENTIAL:")
	logger.L().Info(credential)
	logger.L().Info(banner)
	logger.L().Info("⚠️  Set it as the SESSION_CREDENTIAL environment variable, then redeploy")
	logger.L().Info(banner)
	return nil
}

// Multi 依次交付给多个 Sink，单个失败不影响其它
type Multi []Sink

// OnNewCredential 实现 Sink，返回所有失败的合并错误
func (m Multi) OnNewCredential(ctx context.Context, credential string) error {
	var errs []error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.OnNewCredential(ctx, credential); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
