// Package platform 定义消息平台客户端边界
// Relay 与查询服务只依赖这里的接口，具体实现见 mtproto 包
package platform

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

var (
	// ErrNotAuthorized 登录流程结束后仍未获得授权
	ErrNotAuthorized = errors.New("account is not authorized")
	// ErrChannelNotFound 频道不存在或账号无权访问
	ErrChannelNotFound = errors.New("channel not found")
	// ErrNotConnected 会话未建立
	ErrNotConnected = errors.New("client is not connected")
)

// LinkHost 消息深链接域名
const LinkHost = "t.me"

// channelIDOffset 频道 marked ID 前缀（-100）对应的偏移量
const channelIDOffset int64 = 1_000_000_000_000

// ChannelRef 已解析的频道
type ChannelRef struct {
	Name  string // 配置中的名称
	ID    int64  // marked ID，例如 -1002659193089
	Title string // 显示名称
}

// InboundEvent 源频道新消息事件
type InboundEvent struct {
	ChatID    int64
	MessageID int
	Text      string
	Date      time.Time
}

// Message 频道历史消息
type Message struct {
	ID   int
	Text string
	Date time.Time
}

// AuthResult 登录结果
type AuthResult struct {
	DisplayName   string
	NewCredential string // 仅在本次运行重新登录时非空
}

// HistoryReader 查询服务所需的最小能力
type HistoryReader interface {
	Connected() bool
	// History 返回 since 之后（含）的消息，按时间从新到旧，最多 limit 条
	History(ctx context.Context, channel ChannelRef, since time.Time, limit int) ([]Message, error)
}

// Client 消息平台客户端
type Client interface {
	HistoryReader

	// Run 建立连接并在连接期间执行 f，f 返回或连接断开时返回
	Run(ctx context.Context, f func(ctx context.Context) error) error

	// Authenticate 恢复会话，必要时执行交互式登录
	Authenticate(ctx context.Context) (AuthResult, error)

	// ResolveChannel 将配置的名称解析为频道
	ResolveChannel(ctx context.Context, ref string) (ChannelRef, error)

	// Subscribe 注册源频道新消息队列
	Subscribe(source ChannelRef) <-chan InboundEvent

	// Forward 将事件对应的消息转发到目标频道（保留转发来源）
	Forward(ctx context.Context, target ChannelRef, ev InboundEvent) error
}

// MarkChannelID 将频道裸 ID 转为 marked ID
func MarkChannelID(bareID int64) int64 {
	return -(channelIDOffset + bareID)
}

// BareChannelID 去除 -100 前缀，非频道 ID 原样返回绝对值
func BareChannelID(markedID int64) int64 {
	if markedID <= -channelIDOffset {
		return -markedID - channelIDOffset
	}
	if markedID < 0 {
		return -markedID
	}
	return markedID
}

// MessageLink 构造 https://t.me/c/<channel>/<message> 深链接
func MessageLink(channelID int64, messageID int) string {
	return fmt.Sprintf("https://%s/c/%s/%d", LinkHost, strconv.FormatInt(BareChannelID(channelID), 10), messageID)
}
