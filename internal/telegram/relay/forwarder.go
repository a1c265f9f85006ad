package relay

import (
	"context"
	"errors"
	"time"

	"tg_forwarder/internal/config"
	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/metrics"
	"tg_forwarder/internal/telegram/platform"
	"tg_forwarder/internal/tracing"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// consume 单消费者顺序处理入站事件，保证转发顺序与接收顺序一致
func (r *Relay) consume(ctx context.Context, events <-chan platform.InboundEvent, source, target platform.ChannelRef) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return errors.New("event stream closed")
			}
			r.handleEvent(ctx, ev, source, target)
		}
	}
}

// handleEvent 处理单个事件，失败只记录日志后丢弃
func (r *Relay) handleEvent(ctx context.Context, ev platform.InboundEvent, source, target platform.ChannelRef) {
	if ev.ChatID != source.ID {
		logger.L().Debugf("Channel message from %d, expected %d, skipping", ev.ChatID, source.ID)
		metrics.RecordForward(metrics.ForwardResultSkipped)
		return
	}

	ctx, span := tracing.Start(ctx, "relay.forward",
		attribute.Int64("source.id", source.ID),
		attribute.Int64("target.id", target.ID),
		attribute.Int("message.id", ev.MessageID),
	)

	err := r.forward(ctx, ev, target)
	tracing.End(span, err)

	if err != nil {
		metrics.RecordForward(metrics.ForwardResultFailed)
		logger.L().WithFields(logrus.Fields{
			"message_id": ev.MessageID,
			"target_id":  target.ID,
		}).Errorf("Forward failed: %v", err)
		return
	}

	metrics.RecordForward(metrics.ForwardResultSuccess)
	logger.L().Infof("Forwarded message %d", ev.MessageID)
}

// forward 按重试策略转发
// none: 单次尝试；fixed-backoff: 最多 RetryAttempts 次，间隔 RetryDelay
func (r *Relay) forward(ctx context.Context, ev platform.InboundEvent, target platform.ChannelRef) error {
	attempts := 1
	if r.cfg.RetryPolicy == config.RetryPolicyFixedBackoff {
		attempts = r.cfg.RetryAttempts
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		// 等待速率限制
		if err := r.limiter.Wait(ctx); err != nil {
			return &ForwardError{MessageID: ev.MessageID, Attempts: i, Err: err}
		}

		metrics.RecordForwardAttempt()
		lastErr = r.client.Forward(ctx, target, ev)
		if lastErr == nil {
			return nil
		}

		// 如果不是最后一次重试，等待后重试
		if i < attempts-1 {
			logger.L().Warnf("Forward attempt %d failed for message %d: %v, retrying in %v",
				i+1, ev.MessageID, lastErr, r.cfg.RetryDelay)
			select {
			case <-ctx.Done():
				return &ForwardError{MessageID: ev.MessageID, Attempts: i + 1, Err: ctx.Err()}
			case <-time.After(r.cfg.RetryDelay):
			}
		}
	}

	return &ForwardError{MessageID: ev.MessageID, Attempts: attempts, Err: lastErr}
}
