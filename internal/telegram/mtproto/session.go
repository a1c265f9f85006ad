package mtproto

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/gotd/td/session"
)

// memoryStorage 内存会话存储，导出的字节经 base64 编码即对外的会话字符串
type memoryStorage struct {
	*session.StorageMemory
}

// newMemoryStorage 从会话字符串恢复存储
// 字符串为空或无法解析时返回空存储，由调用方走交互式登录
func newMemoryStorage(credential string) (*memoryStorage, bool) {
	s := &memoryStorage{StorageMemory: new(session.StorageMemory)}
	if credential == "" {
		return s, false
	}

	data, err := base64.RawURLEncoding.DecodeString(credential)
	if err != nil || !json.Valid(data) {
		return s, false
	}
	if err := s.StoreSession(context.Background(), data); err != nil {
		return s, false
	}
	return s, true
}

// Credential 导出会话字符串，尚无会话时为空
func (s *memoryStorage) Credential() string {
	data, err := s.Bytes(nil)
	if err != nil || len(data) == 0 {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(data)
}
