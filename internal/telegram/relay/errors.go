package relay

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthentication 会话建立失败，本进程不再转发
	ErrAuthentication = errors.New("authentication failed")
	// ErrChannelResolution 源或目标频道解析失败
	ErrChannelResolution = errors.New("channel resolution failed")
	// ErrDisconnected 转发生效后会话意外断开，交由进程守护重启
	ErrDisconnected = errors.New("session disconnected")
)

// ForwardError 单条消息转发失败（仅记录，不向上传播）
type ForwardError struct {
	MessageID int
	Attempts  int
	Err       error
}

func (e *ForwardError) Error() string {
	return fmt.Sprintf("forward message %d failed after %d attempt(s): %v", e.MessageID, e.Attempts, e.Err)
}

func (e *ForwardError) Unwrap() error {
	return e.Err
}

// IsFatal 判断 Relay.Run 返回的错误是否需要结束进程
// Active 之前的失败只影响 Relay，查询服务继续报告未就绪
func IsFatal(err error) bool {
	return errors.Is(err, ErrDisconnected)
}
