package notify

import (
	"context"
	"fmt"

	"tg_forwarder/internal/config"
	"tg_forwarder/internal/logger"

	"github.com/go-telegram/bot"
)

// Notifier 运维通知
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Nop 未配置通知时使用
type Nop struct{}

// Notify 实现 Notifier
func (Nop) Notify(context.Context, string) error { return nil }

// BotNotifier 通过 Bot API 向运维聊天发送消息
type BotNotifier struct {
	bot    *bot.Bot
	chatID int64
}

// NewBotNotifier 创建 Bot 通知器
// 跳过 getMe，避免启动时依赖 Bot API 可用
func NewBotNotifier(token string, chatID int64, opts ...bot.Option) (*BotNotifier, error) {
	if token == "" {
		return nil, fmt.Errorf("notify bot token cannot be empty")
	}

	opts = append([]bot.Option{bot.WithSkipGetMe()}, opts...)
	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create notify bot: %w", err)
	}

	return &BotNotifier{bot: b, chatID: chatID}, nil
}

// FromConfig 根据配置返回通知器，未配置时返回 Nop
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	if cfg.BotToken == "" {
		return Nop{}, nil
	}
	n, err := NewBotNotifier(cfg.BotToken, cfg.ChatID)
	if err != nil {
		return nil, err
	}
	logger.L().Infof("Operator notifications enabled for chat %d", cfg.ChatID)
	return n, nil
}

// Notify 实现 Notifier
func (n *BotNotifier) Notify(ctx context.Context, text string) error {
	_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: n.chatID,
		Text:   "📡 tg_forwarder\n\n" + text,
	})
	if err != nil {
		return fmt.Errorf("failed to send notification to %d: %w", n.chatID, err)
	}
	return nil
}
