package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"tg_forwarder/internal/config"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromConfigWithoutToken(t *testing.T) {
	n, err := FromConfig(config.NotifyConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, n)
	assert.NoError(t, n.Notify(context.Background(), "ignored"))
}

func TestNewBotNotifierRequiresToken(t *testing.T) {
	_, err := NewBotNotifier("", 1)
	assert.Error(t, err)
}

func TestBotNotifierSendsMessage(t *testing.T) {
	var (
		mu   sync.Mutex
		path string
		body string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		mu.Lock()
		path = r.URL.Path
		body = string(raw)
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100500,"type":"private"}}}`))
	}))
	defer server.Close()

	n, err := NewBotNotifier("123456:TEST", -100500, bot.WithServerURL(server.URL))
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "relay failed"))

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, strings.HasSuffix(path, "/sendMessage"), "unexpected path %s", path)
	assert.Contains(t, body, "relay failed")
	assert.Contains(t, body, "-100500")
}

func TestBotNotifierPropagatesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
	}))
	defer server.Close()

	n, err := NewBotNotifier("123456:TEST", 42, bot.WithServerURL(server.URL))
	require.NoError(t, err)

	err = n.Notify(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "42")
}
