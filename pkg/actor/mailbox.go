package actor

import (
	"container/list"
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Mailbox 线程安全的 Actor 消息邮箱
//
// 出队是事务性的：Dequeue 产出的 Transaction 并不立即移除消息，
// Commit 后才移除，Rollback 保留消息以便重新投递（至少一次语义）。
type Mailbox interface {
	// Start 启动邮箱，可重复调用
	Start()
	// Stop 停止接收新消息并唤醒等待中的消费者，已缓冲的消息仍可被取出
	Stop()
	// Enqueue 写入消息，按溢出策略处理背压
	Enqueue(ctx context.Context, msg Message) error
	// Dequeue 返回惰性事务序列，邮箱为空时挂起，Stop 后取尽或 ctx 取消时结束
	Dequeue(ctx context.Context) iter.Seq[*Transaction]
	// Count 待处理消息数（含已出队未确认的消息）
	Count() int
	// State 诊断快照
	State() MailboxState
}

// MailboxState 邮箱快照
type MailboxState struct {
	PendingMessageCount int       `json:"pending_message_count"`
	InFlight            bool      `json:"in_flight"`
	Messages            []Message `json:"messages"`
}

// NewMailbox 按配置创建邮箱
func NewMailbox(cfg *Config) (Mailbox, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.logger()

	switch cfg.MailboxKind {
	case Bounded:
		if err := checkPolicy(cfg.OverflowPolicy); err != nil {
			return nil, fmt.Errorf("bounded mailbox: %w", err)
		}
		return newBoundedMailbox(cfg.MailboxCapacity, cfg.OverflowPolicy, logger), nil
	case Unbounded:
		return newUnboundedMailbox(logger), nil
	case CountingQueue:
		if err := checkPolicy(cfg.OverflowPolicy); err != nil {
			return nil, fmt.Errorf("counting queue mailbox: %w", err)
		}
		return newCountingMailbox(cfg.MailboxCapacity, cfg.OverflowPolicy, logger), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnhandledMailboxKind, cfg.MailboxKind)
	}
}

func checkPolicy(p OverflowPolicy) error {
	switch p {
	case BlockProducer, DropOldest, DropNewest, FailFast:
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnhandledOverflowPolicy, p)
}

// ═══════════════════════════════════════════════════════════════════════════
// Transaction
// ═══════════════════════════════════════════════════════════════════════════

// Transaction 包装一条已出队消息的提交/回滚单元
type Transaction struct {
	q        *queue
	elem     *list.Element
	msg      Message
	finished atomic.Bool
}

// Message 返回事务中的消息
func (t *Transaction) Message() Message {
	return t.msg
}

// Commit 仅当消息仍位于队首时移除它
// 队首校验失败（例如已被 DropOldest 淘汰）时记录日志并视为消息已不存在，返回 false
func (t *Transaction) Commit() bool {
	if !t.finished.CompareAndSwap(false, true) {
		return false
	}
	return t.q.commit(t)
}

// Rollback 保留消息并重新唤醒消费者，后续出队会再次投递该消息
func (t *Transaction) Rollback() {
	if !t.finished.CompareAndSwap(false, true) {
		return
	}
	t.q.rollback()
}

// ═══════════════════════════════════════════════════════════════════════════
// queue 邮箱公共实现
// ═══════════════════════════════════════════════════════════════════════════

// queue 事务性 FIFO 缓冲区
// 同一时刻最多一个未完成事务（单消费者）
type queue struct {
	mu      sync.Mutex
	items   *list.List
	busy    bool          // 存在未完成的事务
	stopped bool          // 已停止接收
	space   chan struct{} // 有空间释放时关闭并替换，用于唤醒阻塞的生产者
	ready   chan struct{} // 容量为 1 的唤醒信号
	stopCh  chan struct{}

	// released 提交移除消息后回调（锁外调用）
	released func()
	// admit 写入准入检查，持有锁时调用，返回非 nil 时拒绝写入
	admit  func() error
	logger *slog.Logger
}

// admission 支持写入准入检查的邮箱
// 准入状态的变更通过 withLock 与写入串行化
type admission interface {
	setAdmit(fn func() error)
	withLock(fn func())
}

func (q *queue) setAdmit(fn func() error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.admit = fn
}

func (q *queue) withLock(fn func()) {
	q.mu.Lock()
	defer q.mu.Unlock()
	fn()
}

// acceptLocked 写入前检查，调用方持有锁
func (q *queue) acceptLocked() error {
	if q.stopped {
		return ErrMailboxStopped
	}
	if q.admit != nil {
		return q.admit()
	}
	return nil
}

func newQueue(logger *slog.Logger) *queue {
	return &queue{
		items:  list.New(),
		space:  make(chan struct{}),
		ready:  make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		logger: logger,
	}
}

// Start 实现 Mailbox，无额外启动逻辑
func (q *queue) Start() {}

// Stop 实现 Mailbox
func (q *queue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.stopped {
		return
	}
	q.stopped = true
	close(q.stopCh)
}

// Count 实现 Mailbox
func (q *queue) Count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}

// State 实现 Mailbox
func (q *queue) State() MailboxState {
	q.mu.Lock()
	defer q.mu.Unlock()

	msgs := make([]Message, 0, q.items.Len())
	for e := q.items.Front(); e != nil; e = e.Next() {
		msgs = append(msgs, e.Value.(Message))
	}
	return MailboxState{
		PendingMessageCount: len(msgs),
		InFlight:            q.busy,
		Messages:            msgs,
	}
}

// Dequeue 实现 Mailbox
func (q *queue) Dequeue(ctx context.Context) iter.Seq[*Transaction] {
	return func(yield func(*Transaction) bool) {
		for {
			tx, ok := q.next(ctx)
			if !ok || !yield(tx) {
				return
			}
		}
	}
}

func (q *queue) next(ctx context.Context) (*Transaction, bool) {
	for {
		if ctx.Err() != nil {
			return nil, false
		}

		q.mu.Lock()
		if !q.busy && q.items.Len() > 0 {
			e := q.items.Front()
			q.busy = true
			q.mu.Unlock()
			return &Transaction{q: q, elem: e, msg: e.Value.(Message)}, true
		}
		stopped := q.stopped
		if stopped && q.items.Len() == 0 {
			q.mu.Unlock()
			return nil, false
		}
		q.mu.Unlock()

		if stopped {
			// 已停止：只等待未完成事务结束
			select {
			case <-q.ready:
			case <-ctx.Done():
				return nil, false
			}
			continue
		}

		select {
		case <-q.ready:
		case <-q.stopCh:
		case <-ctx.Done():
			return nil, false
		}
	}
}

// pushLocked 追加消息，调用方持有锁
func (q *queue) pushLocked(msg Message) {
	q.items.PushBack(msg)
}

// evictOldestLocked 淘汰最早的消息，调用方持有锁
func (q *queue) evictOldestLocked() (Message, bool) {
	front := q.items.Front()
	if front == nil {
		return nil, false
	}
	return q.items.Remove(front).(Message), true
}

// freeSpaceLocked 唤醒所有等待空间的生产者，调用方持有锁
func (q *queue) freeSpaceLocked() {
	close(q.space)
	q.space = make(chan struct{})
}

func (q *queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *queue) commit(t *Transaction) bool {
	q.mu.Lock()
	q.busy = false
	ok := q.items.Front() == t.elem
	if ok {
		q.items.Remove(t.elem)
		q.freeSpaceLocked()
	}
	remaining := q.items.Len()
	q.mu.Unlock()

	if ok {
		if q.released != nil {
			q.released()
		}
	} else {
		q.logger.Warn("commit failed as message was not at head of queue", "kind", t.msg.Kind())
	}
	if remaining > 0 {
		q.signal()
	}
	return ok
}

func (q *queue) rollback() {
	q.mu.Lock()
	q.busy = false
	q.mu.Unlock()
	q.signal()
}
