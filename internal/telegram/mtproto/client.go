package mtproto

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"tg_forwarder/internal/config"
	"tg_forwarder/internal/logger"
	"tg_forwarder/internal/telegram/platform"

	"github.com/gotd/td/crypto"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
)

// Config MTProto 客户端配置
type Config struct {
	APIID      int
	APIHash    string
	Phone      string
	Password   string
	Credential string
	QueueSize  int
	Prompt     CodePrompt
}

// ConfigFromApp 从应用配置构建客户端配置
func ConfigFromApp(cfg *config.Config, prompt CodePrompt) Config {
	return Config{
		APIID:      cfg.Telegram.APIID,
		APIHash:    cfg.Telegram.APIHash,
		Phone:      cfg.Telegram.AccountIdentifier,
		Password:   cfg.Telegram.AccountPassword,
		Credential: cfg.Telegram.SessionCredential,
		QueueSize:  cfg.Forward.EventQueueSize,
		Prompt:     prompt,
	}
}

// subscription 源频道事件队列
type subscription struct {
	sourceID int64
	events   chan platform.InboundEvent
}

// Client 基于 gotd 的 platform.Client 实现
type Client struct {
	cfg       Config
	client    *telegram.Client
	storage   *memoryStorage
	connected atomic.Bool

	peersMu sync.RWMutex
	peers   map[int64]tg.InputPeerClass

	subMu sync.Mutex
	sub   *subscription
}

// New 创建客户端（不建立连接）
func New(cfg Config) (*Client, error) {
	if cfg.APIID == 0 || cfg.APIHash == "" {
		return nil, fmt.Errorf("api id and api hash are required")
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 256
	}

	storage, restored := newMemoryStorage(cfg.Credential)
	switch {
	case restored:
		logger.L().Info("📱 Using existing session credential")
	case cfg.Credential != "":
		logger.L().Warn("SESSION_CREDENTIAL could not be decoded, creating a new session")
	default:
		logger.L().Info("🔑 Creating new session for first-time setup")
	}

	c := &Client{
		cfg:     cfg,
		storage: storage,
		peers:   make(map[int64]tg.InputPeerClass),
	}

	dispatcher := tg.NewUpdateDispatcher()
	dispatcher.OnNewChannelMessage(c.onNewChannelMessage)

	c.client = telegram.NewClient(cfg.APIID, cfg.APIHash, telegram.Options{
		SessionStorage: storage,
		UpdateHandler:  dispatcher,
	})
	return c, nil
}

// Run 实现 platform.Client
func (c *Client) Run(ctx context.Context, f func(ctx context.Context) error) error {
	defer c.closeSubscription()
	return c.client.Run(ctx, func(ctx context.Context) error {
		c.connected.Store(true)
		defer c.connected.Store(false)
		return f(ctx)
	})
}

// Connected 实现 platform.HistoryReader
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Authenticate 实现 platform.Client
// 会话无效时执行验证码登录，新会话字符串通过 AuthResult 返回一次
func (c *Client) Authenticate(ctx context.Context) (platform.AuthResult, error) {
	status, err := c.client.Auth().Status(ctx)
	if err != nil {
		return platform.AuthResult{}, fmt.Errorf("failed to check auth status: %w", err)
	}

	fresh := false
	if !status.Authorized {
		if c.cfg.Prompt == nil {
			return platform.AuthResult{}, fmt.Errorf("%w: no login code prompt configured", platform.ErrNotAuthorized)
		}

		flow := auth.NewFlow(
			auth.Constant(c.cfg.Phone, c.cfg.Password, auth.CodeAuthenticatorFunc(c.cfg.Prompt)),
			auth.SendCodeOptions{},
		)
		if err := c.client.Auth().IfNecessary(ctx, flow); err != nil {
			return platform.AuthResult{}, fmt.Errorf("%w: %w", platform.ErrNotAuthorized, err)
		}

		status, err = c.client.Auth().Status(ctx)
		if err != nil {
			return platform.AuthResult{}, fmt.Errorf("failed to check auth status: %w", err)
		}
		if !status.Authorized {
			return platform.AuthResult{}, platform.ErrNotAuthorized
		}
		fresh = true
	}

	result := platform.AuthResult{DisplayName: displayName(status.User)}
	if fresh {
		result.NewCredential = c.storage.Credential()
	}
	return result, nil
}

// ResolveChannel 实现 platform.Client
// 在账号已加入的会话中按用户名、ID 或标题匹配
func (c *Client) ResolveChannel(ctx context.Context, ref string) (platform.ChannelRef, error) {
	chats, err := c.client.API().MessagesGetAllChats(ctx, nil)
	if err != nil {
		return platform.ChannelRef{}, fmt.Errorf("failed to list chats: %w", err)
	}

	for _, chat := range chats.GetChats() {
		channel, ok := chat.(*tg.Channel)
		if !ok {
			continue
		}
		if !matchChannel(ref, channel.ID, channelUsernames(channel), channel.Title) {
			continue
		}

		resolved := platform.ChannelRef{
			Name:  ref,
			ID:    platform.MarkChannelID(channel.ID),
			Title: channel.Title,
		}
		c.peersMu.Lock()
		c.peers[resolved.ID] = &tg.InputPeerChannel{ChannelID: channel.ID, AccessHash: channel.AccessHash}
		c.peersMu.Unlock()
		return resolved, nil
	}

	return platform.ChannelRef{}, fmt.Errorf("%w: %s", platform.ErrChannelNotFound, ref)
}

// Subscribe 实现 platform.Client
func (c *Client) Subscribe(source platform.ChannelRef) <-chan platform.InboundEvent {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	sub := &subscription{
		sourceID: source.ID,
		events:   make(chan platform.InboundEvent, c.cfg.QueueSize),
	}
	c.sub = sub
	return sub.events
}

// Forward 实现 platform.Client
func (c *Client) Forward(ctx context.Context, target platform.ChannelRef, ev platform.InboundEvent) error {
	from, ok := c.peer(ev.ChatID)
	if !ok {
		return fmt.Errorf("%w: source %d not resolved", platform.ErrChannelNotFound, ev.ChatID)
	}
	to, ok := c.peer(target.ID)
	if !ok {
		return fmt.Errorf("%w: target %d not resolved", platform.ErrChannelNotFound, target.ID)
	}

	randomID, err := newRandomID()
	if err != nil {
		return fmt.Errorf("failed to generate random id: %w", err)
	}

	_, err = c.client.API().MessagesForwardMessages(ctx, &tg.MessagesForwardMessagesRequest{
		FromPeer: from,
		ID:       []int{ev.MessageID},
		RandomID: []int64{randomID},
		ToPeer:   to,
	})
	if err != nil {
		return fmt.Errorf("failed to forward message %d: %w", ev.MessageID, err)
	}
	return nil
}

// onNewChannelMessage 将源频道新消息推入队列，队列满时丢弃并记录
func (c *Client) onNewChannelMessage(_ context.Context, _ tg.Entities, update *tg.UpdateNewChannelMessage) error {
	msg, ok := update.Message.(*tg.Message)
	if !ok {
		return nil
	}
	peer, ok := msg.PeerID.(*tg.PeerChannel)
	if !ok {
		return nil
	}

	ev := platform.InboundEvent{
		ChatID:    platform.MarkChannelID(peer.ChannelID),
		MessageID: msg.ID,
		Text:      msg.Message,
		Date:      time.Unix(int64(msg.Date), 0).UTC(),
	}
	c.publish(ev)
	return nil
}

func (c *Client) publish(ev platform.InboundEvent) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	if c.sub == nil || c.sub.sourceID != ev.ChatID {
		return
	}
	select {
	case c.sub.events <- ev:
	default:
		logger.L().Warnf("Event queue full, dropping message %d", ev.MessageID)
	}
}

func (c *Client) closeSubscription() {
	c.subMu.Lock()
	defer c.subMu.Unlock()
	if c.sub != nil {
		close(c.sub.events)
		c.sub = nil
	}
}

// newRandomID 生成 MTProto 请求去重用的 random_id
func newRandomID() (int64, error) {
	return crypto.RandInt64(crypto.DefaultRand())
}

func (c *Client) peer(id int64) (tg.InputPeerClass, bool) {
	c.peersMu.RLock()
	defer c.peersMu.RUnlock()
	p, ok := c.peers[id]
	return p, ok
}

func channelUsernames(ch *tg.Channel) []string {
	names := make([]string, 0, 1+len(ch.Usernames))
	if ch.Username != "" {
		names = append(names, ch.Username)
	}
	for _, u := range ch.Usernames {
		names = append(names, u.Username)
	}
	return names
}

func displayName(user *tg.User) string {
	if user == nil {
		return "unknown"
	}
	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	if name == "" {
		name = user.Username
	}
	return name
}
