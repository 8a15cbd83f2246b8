package actor

import (
	"context"
	"fmt"
	"log/slog"
)

// boundedMailbox 有界邮箱，写满时按 OverflowPolicy 处理
// capacity 为 0 时不限容量
type boundedMailbox struct {
	*queue
	capacity int
	policy   OverflowPolicy
}

func newBoundedMailbox(capacity int, policy OverflowPolicy, logger *slog.Logger) *boundedMailbox {
	return &boundedMailbox{
		queue:    newQueue(logger),
		capacity: capacity,
		policy:   policy,
	}
}

// Enqueue 实现 Mailbox
func (m *boundedMailbox) Enqueue(ctx context.Context, msg Message) error {
	for {
		m.mu.Lock()
		if err := m.acceptLocked(); err != nil {
			m.mu.Unlock()
			return err
		}

		if m.capacity <= 0 || m.items.Len() < m.capacity {
			m.pushLocked(msg)
			m.mu.Unlock()
			m.signal()
			return nil
		}

		switch m.policy {
		case DropNewest:
			m.mu.Unlock()
			m.logger.Debug("mailbox full, dropping newest message", "kind", msg.Kind())
			return nil

		case FailFast:
			m.mu.Unlock()
			return ErrMailboxFull

		case DropOldest:
			evicted, _ := m.evictOldestLocked()
			m.pushLocked(msg)
			m.mu.Unlock()
			m.signal()
			if evicted != nil {
				m.logger.Debug("mailbox full, dropped oldest message", "kind", evicted.Kind())
			}
			return nil

		case BlockProducer:
			space := m.space
			m.mu.Unlock()
			select {
			case <-space:
			case <-m.stopCh:
				return ErrMailboxStopped
			case <-ctx.Done():
				return ctx.Err()
			}

		default:
			m.mu.Unlock()
			return fmt.Errorf("%w: %s", ErrUnhandledOverflowPolicy, m.policy)
		}
	}
}

// unboundedMailbox 无界邮箱，写入永不阻塞
type unboundedMailbox struct {
	*queue
}

func newUnboundedMailbox(logger *slog.Logger) *unboundedMailbox {
	return &unboundedMailbox{queue: newQueue(logger)}
}

// Enqueue 实现 Mailbox
func (m *unboundedMailbox) Enqueue(_ context.Context, msg Message) error {
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
