package actor

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// countingMailbox 计数信号量约束容量的队列
// 每条缓冲消息占用一个槽位，提交移除时释放；DropOldest 淘汰时槽位直接转给新消息
type countingMailbox struct {
	*queue
	policy OverflowPolicy
	slots  *semaphore.Weighted // nil 表示不限容量

	stopCtx    context.Context
	stopCancel context.CancelFunc
}

func newCountingMailbox(capacity int, policy OverflowPolicy, logger *slog.Logger) *countingMailbox {
	ctx, cancel := context.WithCancel(context.Background())
	m := &countingMailbox{
		queue:      newQueue(logger),
		policy:     policy,
		stopCtx:    ctx,
		stopCancel: cancel,
	}
	if capacity > 0 {
		m.slots = semaphore.NewWeighted(int64(capacity))
		m.released = func() { m.slots.Release(1) }
	}
	return m
}

// Stop 实现 Mailbox，同时唤醒阻塞在信号量上的生产者
func (m *countingMailbox) Stop() {
	m.queue.Stop()
	m.stopCancel()
}

// Enqueue 实现 Mailbox
func (m *countingMailbox) Enqueue(ctx context.Context, msg Message) error {
	if m.slots == nil {
		return m.push(msg)
	}

	for {
		if err := m.accept(); err != nil {
			return err
		}
		if m.slots.TryAcquire(1) {
			return m.pushAcquired(msg)
		}

		switch m.policy {
		case DropNewest:
			m.logger.Debug("mailbox full, dropping newest message", "kind", msg.Kind())
			return nil

		case FailFast:
			return ErrMailboxFull

		case DropOldest:
			m.mu.Lock()
			if err := m.acceptLocked(); err != nil {
				m.mu.Unlock()
				return err
			}
			if evicted, ok := m.evictOldestLocked(); ok {
				m.pushLocked(msg)
				m.mu.Unlock()
				m.signal()
				m.logger.Debug("mailbox full, dropped oldest message", "kind", evicted.Kind())
				return nil
			}
			m.mu.Unlock()
			// 槽位正在释放途中，稍后重试
			runtime.Gosched()

		case BlockProducer:
			m.logger.Debug("mailbox full, waiting for space", "kind", msg.Kind())
			waitCtx, cancel := MergeContextsWithCancel(ctx, m.stopCtx)
			err := m.slots.Acquire(waitCtx, 1)
			cancel()
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return ErrMailboxStopped
			}
			return m.pushAcquired(msg)

		default:
			return fmt.Errorf("%w: %s", ErrUnhandledOverflowPolicy, m.policy)
		}
	}
}

func (m *countingMailbox) accept() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acceptLocked()
}

// pushAcquired 写入已占用槽位的消息，写入被拒绝时归还槽位
func (m *countingMailbox) pushAcquired(msg Message) error {
	if err := m.push(msg); err != nil {
		m.slots.Release(1)
		return err
	}
	return nil
}

func (m *countingMailbox) push(msg Message) error {
	m.mu.Lock()
	if err := m.acceptLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.pushLocked(msg)
	m.mu.Unlock()
	m.signal()
	return nil
}
