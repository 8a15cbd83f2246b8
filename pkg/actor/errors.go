package actor

import (
	"errors"
	"fmt"
)

var (
	// ErrMailboxFull FailFast 策略下邮箱已满
	ErrMailboxFull = errors.New("mailbox is full")
	// ErrMailboxStopped 邮箱已停止接收消息
	ErrMailboxStopped = errors.New("mailbox is stopped")
	// ErrUnhandledOverflowPolicy 未识别的溢出策略（配置错误）
	ErrUnhandledOverflowPolicy = errors.New("overflow policy is not handled")
	// ErrUnhandledMailboxKind 未识别的邮箱类型（配置错误）
	ErrUnhandledMailboxKind = errors.New("mailbox kind is not handled")
	// ErrActorAlreadyRegistered Actor 标识重复注册
	ErrActorAlreadyRegistered = errors.New("actor is already registered")
	// ErrActorNotFound Actor 不存在且无法按消息类型创建
	ErrActorNotFound = errors.New("actor not found")
	// ErrActorPaused 目标 Actor 处于暂停状态，拒绝投递
	ErrActorPaused = errors.New("actor is paused")
	// ErrDirectorDisposed Director 已释放
	ErrDirectorDisposed = errors.New("director is disposed")
)

// PanicError Actor 处理消息时发生 panic
type PanicError struct {
	Value any
	Stack []byte
}

// Error 实现 error 接口
func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in actor: %v", e.Value)
}

func actorNotFound(actorID string) error {
	return fmt.Errorf("%w: %q", ErrActorNotFound, actorID)
}
