package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tg_forwarder/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// defaultTimeout 连接与首次 ping 的超时
const defaultTimeout = 10 * time.Second

var (
	errEmptyURI      = errors.New("MongoDB URI cannot be empty")
	errEmptyDatabase = errors.New("database name cannot be empty")
	errNotConnected  = errors.New("MongoDB client is not initialized")
)

// Client 持有会话凭据库的连接
type Client struct {
	conn   *mongo.Client
	dbName string
}

// Options 连接参数
type Options struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// InitFromConfig 按应用配置建立连接
func InitFromConfig(cfg *config.Config) (*Client, error) {
	return Connect(context.Background(), Options{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
	})
}

// Connect 建立连接并确认主节点可达
func Connect(ctx context.Context, opts Options) (*Client, error) {
	if opts.URI == "" {
		return nil, errEmptyURI
	}
	if opts.Database == "" {
		return nil, errEmptyDatabase
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	conn, err := mongo.Connect(ctx, options.Client().
		ApplyURI(opts.URI).
		SetAppName("tg_forwarder").
		SetServerSelectionTimeout(opts.Timeout))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := conn.Ping(ctx, readpref.Primary()); err != nil {
		_ = conn.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{conn: conn, dbName: opts.Database}, nil
}

// Close 断开连接，可对 nil 调用
func (c *Client) Close(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Disconnect(ctx)
}

// Database 返回配置的数据库
func (c *Client) Database() *mongo.Database {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Database(c.dbName)
}

func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return errNotConnected
	}
	return c.conn.Ping(ctx, readpref.Primary())
}
