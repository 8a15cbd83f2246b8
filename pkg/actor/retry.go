package actor

import (
	"context"
	"runtime/debug"
)

// RetryPolicy 包裹单次 Receive 调用的重试策略
//
// 总尝试次数为 1 + MaxRetries；context 取消从不重试。
type RetryPolicy struct {
	// MaxRetries 首次失败后的最大重试次数
	MaxRetries int
	// Retryable 判断错误是否可重试，为 nil 时除 context 错误外均可重试
	Retryable func(err error) bool
	// OnRetry 每次重试前回调，attempt 从 1 开始
	OnRetry func(attempt int, err error)
}

// Execute 按策略执行 fn，fn 内的 panic 转换为 *PanicError
func (p RetryPolicy) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := safeCall(ctx, fn)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if attempt >= p.MaxRetries || !p.retryable(err) {
			return err
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err)
		}
	}
}

func (p RetryPolicy) retryable(err error) bool {
	if IsContextError(err) {
		return false
	}
	if p.Retryable == nil {
		return true
	}
	return p.Retryable(err)
}

// safeCall 调用 fn 并恢复 panic
func safeCall(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn(ctx)
}
