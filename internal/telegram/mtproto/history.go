package mtproto

import (
	"context"
	"fmt"
	"time"

	"tg_forwarder/internal/telegram/platform"

	"github.com/gotd/td/tg"
)

// historyPageSize messages.getHistory 单页上限
const historyPageSize = 100

// History 实现 platform.HistoryReader
// 从最新消息向前翻页，遇到早于 since 的消息或达到 limit 即停止
func (c *Client) History(ctx context.Context, channel platform.ChannelRef, since time.Time, limit int) ([]platform.Message, error) {
	if !c.Connected() {
		return nil, platform.ErrNotConnected
	}
	peer, ok := c.peer(channel.ID)
	if !ok {
		return nil, fmt.Errorf("%w: %d not resolved", platform.ErrChannelNotFound, channel.ID)
	}

	api := c.client.API()
	out := make([]platform.Message, 0, limit)
	offsetID := 0

	for len(out) < limit {
		batch := historyPageSize
		if remaining := limit - len(out); remaining < batch {
			batch = remaining
		}

		res, err := api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:     peer,
			OffsetID: offsetID,
			Limit:    batch,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to get history: %w", err)
		}

		page := historyMessages(res)
		if len(page) == 0 {
			return out, nil
		}

		var done bool
		out, offsetID, done = collectPage(out, page, since, limit)
		if done || len(page) < batch {
			return out, nil
		}
	}
	return out, nil
}

// collectPage 追加一页消息，返回新的偏移量以及是否应停止翻页
// 服务消息与空消息参与偏移计算但不计入结果
func collectPage(out []platform.Message, page []tg.MessageClass, since time.Time, limit int) ([]platform.Message, int, bool) {
	offsetID := 0
	for _, m := range page {
		offsetID = m.GetID()

		msg, ok := m.(*tg.Message)
		if !ok {
			continue
		}
		date := time.Unix(int64(msg.Date), 0).UTC()
		if date.Before(since) {
			return out, offsetID, true
		}

		out = append(out, platform.Message{ID: msg.ID, Text: msg.Message, Date: date})
		if len(out) >= limit {
			return out, offsetID, true
		}
	}
	return out, offsetID, false
}

func historyMessages(res tg.MessagesMessagesClass) []tg.MessageClass {
	switch r := res.(type) {
	case *tg.MessagesMessages:
		return r.Messages
	case *tg.MessagesMessagesSlice:
		return r.Messages
	case *tg.MessagesChannelMessages:
		return r.Messages
	default:
		return nil
	}
}
