package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ErrConfiguration 缺少必填配置或配置值非法（启动即失败）
var ErrConfiguration = errors.New("configuration error")

// DefaultTargetChannel 目标频道占位符，生产环境必须覆盖
const DefaultTargetChannel = "YourPrivateChannel"

// 转发重试策略
const (
	RetryPolicyNone         = "none"
	RetryPolicyFixedBackoff = "fixed-backoff"
)

// Config 应用程序配置
type Config struct {
	Telegram TelegramConfig
	Forward  ForwardConfig
	HTTP     HTTPConfig
	Mongo    MongoConfig
	Notify   NotifyConfig
	Tracing  TracingConfig
}

// TelegramConfig MTProto 账号与频道配置
type TelegramConfig struct {
	APIID             int    // 应用 ID
	APIHash           string // 应用 Hash
	AccountIdentifier string // 登录手机号
	AccountPassword   string // 两步验证密码（可选）
	SessionCredential string // 上次运行输出的会话字符串（可选）
	SourceChannel     string // 监听的源频道
	TargetChannel     string // 转发目标频道
}

// ForwardConfig 转发行为配置
type ForwardConfig struct {
	RetryPolicy     string        // none / fixed-backoff
	RetryAttempts   int           // fixed-backoff 下的总尝试次数
	RetryDelay      time.Duration // 两次尝试间隔
	RatePerSecond   float64       // 转发调用速率
	EventQueueSize  int           // 入站事件队列长度
	DisconnectPause time.Duration // 意外断线后退出前的等待时间
}

// HTTPConfig 查询服务配置
type HTTPConfig struct {
	Port   string
	APIKey string // 为空表示不校验（仅限可信网络）
}

// MongoConfig 会话凭据存储（可选）
type MongoConfig struct {
	URI      string
	Database string
}

// NotifyConfig 运维通知 Bot（可选）
type NotifyConfig struct {
	BotToken string
	ChatID   int64
}

// TracingConfig OpenTelemetry 配置
type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
	UseStdout    bool
	ServiceName  string
}

// Load 从环境变量加载配置
// 若当前目录存在 .env 会先加载（不覆盖已存在的环境变量）
func Load() (*Config, error) {
	_ = godotenv.Load()
	return loadFromEnv()
}

func loadFromEnv() (*Config, error) {
	var missing []string
	required := func(key string) string {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			missing = append(missing, key)
		}
		return value
	}

	cfg := &Config{
		Telegram: TelegramConfig{
			APIHash:           required("API_HASH"),
			AccountIdentifier: required("ACCOUNT_IDENTIFIER"),
			AccountPassword:   os.Getenv("ACCOUNT_PASSWORD"),
			SessionCredential: strings.TrimSpace(os.Getenv("SESSION_CREDENTIAL")),
			SourceChannel:     required("SOURCE_CHANNEL"),
			TargetChannel:     stringOr("TARGET_CHANNEL", DefaultTargetChannel),
		},
		HTTP: HTTPConfig{
			Port:   stringOr("PORT", "8000"),
			APIKey: strings.TrimSpace(os.Getenv("API_KEY")),
		},
		Mongo: MongoConfig{
			URI:      strings.TrimSpace(os.Getenv("MONGO_URI")),
			Database: stringOr("MONGO_DB_NAME", "tg_forwarder"),
		},
		Notify: NotifyConfig{
			BotToken: strings.TrimSpace(os.Getenv("NOTIFY_BOT_TOKEN")),
		},
		Tracing: TracingConfig{
			OTLPEndpoint: strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
			ServiceName:  stringOr("OTEL_SERVICE_NAME", "tg_forwarder"),
		},
	}

	apiIDStr := required("API_ID")
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing environment variables: %s", ErrConfiguration, strings.Join(missing, ", "))
	}

	apiID, err := strconv.Atoi(apiIDStr)
	if err != nil || apiID <= 0 {
		return nil, fmt.Errorf("%w: invalid API_ID %q", ErrConfiguration, apiIDStr)
	}
	cfg.Telegram.APIID = apiID

	if _, err := strconv.Atoi(cfg.HTTP.Port); err != nil {
		return nil, fmt.Errorf("%w: invalid PORT %q", ErrConfiguration, cfg.HTTP.Port)
	}

	forwardCfg, err := loadForwardConfig()
	if err != nil {
		return nil, err
	}
	cfg.Forward = forwardCfg

	// 解析NOTIFY_CHAT_ID（可选，配置 Bot Token 时必填）
	if chatIDStr := strings.TrimSpace(os.Getenv("NOTIFY_CHAT_ID")); chatIDStr != "" {
		chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to parse NOTIFY_CHAT_ID: %v", ErrConfiguration, err)
		}
		cfg.Notify.ChatID = chatID
	}
	if cfg.Notify.BotToken != "" && cfg.Notify.ChatID == 0 {
		return nil, fmt.Errorf("%w: NOTIFY_CHAT_ID is required when NOTIFY_BOT_TOKEN is set", ErrConfiguration)
	}

	if cfg.Tracing.Enabled, err = boolOr("OTEL_ENABLED", false); err != nil {
		return nil, err
	}
	if cfg.Tracing.UseStdout, err = boolOr("OTEL_STDOUT", false); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadForwardConfig() (ForwardConfig, error) {
	cfg := ForwardConfig{
		RetryPolicy: strings.ToLower(stringOr("FORWARD_RETRY_POLICY", RetryPolicyNone)),
	}

	switch cfg.RetryPolicy {
	case RetryPolicyNone, RetryPolicyFixedBackoff:
	default:
		return ForwardConfig{}, fmt.Errorf("%w: invalid FORWARD_RETRY_POLICY %q (want %s or %s)",
			ErrConfiguration, cfg.RetryPolicy, RetryPolicyNone, RetryPolicyFixedBackoff)
	}

	var err error
	if cfg.RetryAttempts, err = positiveIntOr("FORWARD_RETRY_ATTEMPTS", 3); err != nil {
		return ForwardConfig{}, err
	}
	if cfg.EventQueueSize, err = positiveIntOr("EVENT_QUEUE_SIZE", 256); err != nil {
		return ForwardConfig{}, err
	}

	delaySeconds, err := positiveIntOr("FORWARD_RETRY_DELAY_SECONDS", 2)
	if err != nil {
		return ForwardConfig{}, err
	}
	cfg.RetryDelay = time.Duration(delaySeconds) * time.Second

	pauseSeconds, err := positiveIntOr("DISCONNECT_PAUSE_SECONDS", 10)
	if err != nil {
		return ForwardConfig{}, err
	}
	cfg.DisconnectPause = time.Duration(pauseSeconds) * time.Second

	cfg.RatePerSecond = 20
	if rateStr := strings.TrimSpace(os.Getenv("FORWARD_RATE_PER_SECOND")); rateStr != "" {
		rate, err := strconv.ParseFloat(rateStr, 64)
		if err != nil || rate <= 0 {
			return ForwardConfig{}, fmt.Errorf("%w: invalid FORWARD_RATE_PER_SECOND %q", ErrConfiguration, rateStr)
		}
		cfg.RatePerSecond = rate
	}

	return cfg, nil
}

// UsesPlaceholderTarget 目标频道仍为占位符
func (c *Config) UsesPlaceholderTarget() bool {
	return c.Telegram.TargetChannel == DefaultTargetChannel
}

func stringOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func positiveIntOr(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer, got %q", ErrConfiguration, key, value)
	}
	return n, nil
}

func boolOr(key string, fallback bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: failed to parse %s: %v", ErrConfiguration, key, err)
	}
	return b, nil
}
