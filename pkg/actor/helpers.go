package actor

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════
// Context 工具函数
// ═══════════════════════════════════════════════════════════════════════════

// MergeContextsWithCancel 合并 context 并返回取消函数
// 任一 context 取消则返回的 context 也取消；
// 调用者负责在不再需要时调用 cancel 以释放资源
func MergeContextsWithCancel(parent, child context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	if child == nil {
		return context.WithCancel(parent)
	}

	ctx, cancel := context.WithCancel(parent)
	stop := context.AfterFunc(child, cancel)

	return ctx, func() {
		stop()
		cancel()
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// 错误处理工具
// ═══════════════════════════════════════════════════════════════════════════

// IsContextError 检查错误是否为 context 相关错误
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// errorText 返回可读的异常描述
func errorText(err error, at time.Time) string {
	if err == nil || at.IsZero() {
		return "No exceptions recorded"
	}
	return fmt.Sprintf("%s occurred at %s: %s", errorTypeName(err), at.Local().Format(time.Kitchen), err.Error())
}

func errorTypeName(err error) string {
	name := fmt.Sprintf("%T", err)
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i+1:]
		}
	}
	return name
}

// ═══════════════════════════════════════════════════════════════════════════
// 时间格式化
// ═══════════════════════════════════════════════════════════════════════════

// relativeTime 返回形如 "5 minutes ago at 3:15PM" 的描述，零值返回 "Never"
func relativeTime(past, now time.Time) string {
	if past.IsZero() {
		return "Never"
	}

	span := now.Sub(past)
	var relative string
	switch {
	case span < 0:
		relative = "just now"
	case span < time.Minute:
		relative = plural(int(span/time.Second), "second")
	case span < time.Hour:
		relative = plural(int(span/time.Minute), "minute")
	case span < 24*time.Hour:
		relative = plural(int(span/time.Hour), "hour")
	default:
		relative = plural(int(span/(24*time.Hour)), "day")
	}

	return fmt.Sprintf("%s at %s", relative, past.Local().Format(time.Kitchen))
}

func plural(n int, unit string) string {
	if n >= 2 {
		return fmt.Sprintf("%d %ss ago", n, unit)
	}
	return fmt.Sprintf("%d %s ago", n, unit)
}
