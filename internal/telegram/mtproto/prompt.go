package mtproto

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/tg"
)

// CodePrompt 交互式登录时获取验证码
type CodePrompt func(ctx context.Context, sentCode *tg.AuthSentCode) (string, error)

// ReaderPrompt 从 r 逐行读取验证码（默认为标准输入）
func ReaderPrompt(r io.Reader, w io.Writer) CodePrompt {
	reader := bufio.NewReader(r)
	return func(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
		fmt.Fprint(w, "Enter the login code sent by Telegram: ")

		type result struct {
			line string
			err  error
		}
		ch := make(chan result, 1)
		go func() {
			line, err := reader.ReadString('\n')
			ch <- result{line: line, err: err}
		}()

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-ch:
			code := strings.TrimSpace(res.line)
			if code == "" && res.err != nil {
				return "", fmt.Errorf("failed to read login code: %w", res.err)
			}
			return code, nil
		}
	}
}
