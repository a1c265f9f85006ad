package mtproto

import (
	"strconv"
	"strings"

	"tg_forwarder/internal/telegram/platform"
)

// normalizeRef 去除链接前缀与 @，例如 https://t.me/name -> name
func normalizeRef(ref string) string {
	ref = strings.TrimSpace(ref)
	for _, prefix := range []string{"https://", "http://"} {
		ref = strings.TrimPrefix(ref, prefix)
	}
	for _, prefix := range []string{"t.me/", "telegram.me/"} {
		ref = strings.TrimPrefix(ref, prefix)
	}
	ref = strings.TrimPrefix(ref, "@")
	return strings.TrimSuffix(ref, "/")
}

// matchChannel 按 ID（marked 或裸 ID）、用户名（忽略大小写）或完整标题匹配
func matchChannel(ref string, bareID int64, usernames []string, title string) bool {
	name := normalizeRef(ref)
	if name == "" {
		return false
	}

	if n, err := strconv.ParseInt(name, 10, 64); err == nil {
		return n == bareID || n == platform.MarkChannelID(bareID)
	}

	for _, username := range usernames {
		if strings.EqualFold(username, name) {
			return true
		}
	}
	return strings.TrimSpace(ref) == title
}
