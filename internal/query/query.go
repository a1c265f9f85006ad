// Package query 按需读取目标频道近期历史，整理为逐条与合并两种结果
// 目标频道历史即唯一数据源，本地不做索引或缓存
package query

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/metrics"
	"tg_forwarder/internal/state"
	"tg_forwarder/internal/telegram/platform"
	"tg_forwarder/internal/tracing"

	"go.opentelemetry.io/otel/attribute"
)

const (
	// MaxMessages 单次读取历史的上限，超出部分按正常截断处理
	MaxMessages = 200
	// DefaultHours 默认时间窗口
	DefaultHours = 24
	// Separator 合并文本分隔符
	Separator = "\n\n---\n\n"
	// linkLabel 附加在正文后的来源链接前缀
	linkLabel = "\n🔗 Source: "
)

var (
	// ErrServiceUnavailable 会话未连接或目标频道未解析
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrUpstreamRead 读取频道历史失败
	ErrUpstreamRead = errors.New("error fetching messages")
	// ErrInvalidWindow 时间窗口非法
	ErrInvalidWindow = errors.New("hours must be a positive integer")
)

// Item 单条转发消息
type Item struct {
	MessageID    int    `json:"message_id"`
	Text         string `json:"text"`
	Date         int64  `json:"date"`
	ReadableDate string `json:"readable_date"`
	Link         string `json:"link"`
	TextWithLink string `json:"text_with_link"`
}

// Result 逐条查询结果
type Result struct {
	Success        bool   `json:"success"`
	Messages       []Item `json:"messages"`
	MessageCount   int    `json:"message_count"`
	HoursRequested int    `json:"hours_requested"`
	TimeThreshold  string `json:"time_threshold"`
	ChannelID      string `json:"channel_id"`
}

// CombinedResult 合并查询结果
type CombinedResult struct {
	Success        bool   `json:"success"`
	CombinedText   string `json:"combined_text"`
	MessageCount   int    `json:"message_count"`
	Messages       []Item `json:"messages"`
	ProcessingDate string `json:"processing_date"`
}

// Service 查询服务
type Service struct {
	shared *state.Shared
	now    func() time.Time
}

// NewService 创建查询服务
func NewService(shared *state.Shared) *Service {
	return &Service{shared: shared, now: time.Now}
}

// Messages 返回最近 hours 小时内目标频道的文本消息，按时间从新到旧
func (s *Service) Messages(ctx context.Context, hours int) (*Result, error) {
	if hours < 1 {
		return nil, ErrInvalidWindow
	}

	snap := s.shared.Load()
	if !snap.Connected() {
		return nil, fmt.Errorf("%w: telegram client not connected", ErrServiceUnavailable)
	}
	if snap.Target == nil {
		return nil, fmt.Errorf("%w: target channel not configured", ErrServiceUnavailable)
	}
	target := *snap.Target

	ctx, span := tracing.Start(ctx, "query.messages",
		attribute.Int("hours", hours),
		attribute.Int64("channel.id", target.ID),
	)

	threshold := windowStart(s.now(), hours)
	history, err := snap.Reader.History(ctx, target, threshold, MaxMessages)
	tracing.End(span, err)
	if err != nil {
		logger.L().Errorf("API Error fetching messages: %v", err)
		return nil, fmt.Errorf("%w: %w", ErrUpstreamRead, err)
	}

	items := buildItems(history, target.ID, threshold)
	metrics.ObserveMessagesReturned(len(items))
	logger.L().Infof("API: Retrieved %d messages from last %d hours", len(items), hours)

	return &Result{
		Success:        true,
		Messages:       items,
		MessageCount:   len(items),
		HoursRequested: hours,
		TimeThreshold:  threshold.Format(time.RFC3339),
		ChannelID:      fmt.Sprintf("%d", target.ID),
	}, nil
}

// maxWindowHours time.Duration 可表示的最大小时数
const maxWindowHours = math.MaxInt64 / int64(time.Hour)

// windowStart 返回窗口起点；超出 Duration 范围时取零值，即不设下限
func windowStart(now time.Time, hours int) time.Time {
	if int64(hours) > maxWindowHours {
		return time.Time{}
	}
	return now.Add(-time.Duration(hours) * time.Hour)
}

// Combined 复用 Messages 的结果，拼接为单段文本供 AI 处理
func (s *Service) Combined(ctx context.Context, hours int) (*CombinedResult, error) {
	result, err := s.Messages(ctx, hours)
	if err != nil {
		return nil, err
	}

	combined := CombineText(result.Messages)
	logger.L().Infof("API: Created combined text from %d messages", result.MessageCount)

	return &CombinedResult{
		Success:        true,
		CombinedText:   combined,
		MessageCount:   result.MessageCount,
		Messages:       result.Messages,
		ProcessingDate: s.now().Format(time.DateOnly),
	}, nil
}

// CombineText 按原顺序以 Separator 拼接 text_with_link
func CombineText(items []Item) string {
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.TextWithLink)
	}
	return strings.Join(parts, Separator)
}

// buildItems 过滤空文本并派生链接字段
// 纯媒体消息没有文本，会被静默排除
func buildItems(history []platform.Message, channelID int64, threshold time.Time) []Item {
	if len(history) > MaxMessages {
		history = history[:MaxMessages]
	}

	items := make([]Item, 0, len(history))
	for _, msg := range history {
		text := strings.TrimSpace(msg.Text)
		if text == "" || msg.Date.Before(threshold) {
			continue
		}

		link := platform.MessageLink(channelID, msg.ID)
		items = append(items, Item{
			MessageID:    msg.ID,
			Text:         text,
			Date:         msg.Date.Unix(),
			ReadableDate: msg.Date.Format(time.RFC3339),
			Link:         link,
			TextWithLink: text + linkLabel + link,
		})
	}

	// 按时间倒序，时间相同保持历史读取顺序
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Date > items[j].Date
	})
	return items
}
