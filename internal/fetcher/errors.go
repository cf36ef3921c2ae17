package fetcher

import (
	"errors"
	"fmt"
)

// 错误哨兵覆盖抓取阶段的四类非状态码失败，供上层 errors.Is 判定。
var (
	// ErrInvalidURL 表示 URL 非法，请求从未发出。
	ErrInvalidURL = errors.New("invalid source url")
	// ErrTimeout 表示请求超出 FetchTimeout 被中止。
	ErrTimeout = errors.New("fetch timed out")
	// ErrRedirectLoop 表示重定向次数超过 MaxRedirects 上限。
	ErrRedirectLoop = errors.New("redirect limit exceeded")
	// ErrNetwork 表示连接级失败（DNS、拒绝连接、中断等）。
	ErrNetwork = errors.New("network error")
)

// StatusError 表示上游返回了既非 200 也非 304/3xx 的状态码。
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected upstream status %d", e.Code)
}
