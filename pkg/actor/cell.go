package actor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
)

// ResumeOutcome ResumeActor 的结果
type ResumeOutcome int

const (
	// ResumeNotFound Actor 不存在
	ResumeNotFound ResumeOutcome = iota
	// ResumeAlreadyProcessing Actor 未暂停，无需恢复
	ResumeAlreadyProcessing
	// Resumed Actor 已恢复
	Resumed
)

// String 返回结果名称
func (o ResumeOutcome) String() string {
	switch o {
	case ResumeNotFound:
		return "NotFound"
	case ResumeAlreadyProcessing:
		return "AlreadyProcessing"
	case Resumed:
		return "Resumed"
	default:
		return fmt.Sprintf("ResumeOutcome(%d)", int(o))
	}
}

// Text 返回面向用户的描述
func (o ResumeOutcome) Text(actorID string) string {
	switch o {
	case ResumeNotFound:
		return fmt.Sprintf("Actor '%s' not found.", actorID)
	case ResumeAlreadyProcessing:
		return "Actor already processing."
	case Resumed:
		return "Actor resumed."
	default:
		return o.String()
	}
}

// actorCell Actor 单元，包含 Actor 实例及其监督状态
//
// 状态机：Running → (重试耗尽) → Paused → (Resume) → Running，任意状态可进入 Disposed
type actorCell struct {
	id       string
	director *Director
	actor    Actor
	mailbox  Mailbox
	gate     *gate
	retry    RetryPolicy
	stats    *StatsCollector
	logger   *slog.Logger

	// 生命周期控制
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	loops    atomic.Uint64
	disposed atomic.Bool

	mu            sync.Mutex
	running       bool
	lastErr       error
	lastErrAt     time.Time
	pausedAt      time.Time
	lastMessageAt time.Time
}

func newActorCell(d *Director, id string, a Actor) (*actorCell, error) {
	mailbox, err := NewMailbox(d.cfg)
	if err != nil {
		return nil, err
	}
	mailbox.Start()

	ctx, cancel := context.WithCancel(d.ctx)
	c := &actorCell{
		id:       id,
		director: d,
		actor:    a,
		mailbox:  mailbox,
		gate:     newGate(),
		stats:    NewStatsCollector(),
		logger:   d.logger.With("actor", id),
		ctx:      ctx,
		cancel:   cancel,
	}
	c.retry = RetryPolicy{
		MaxRetries: d.cfg.RetryCount,
		OnRetry: func(attempt int, err error) {
			c.stats.RecordRetry()
			c.logger.Warn("retrying message", "attempt", attempt, "max", d.cfg.RetryCount, "error", err)
		},
	}
	if a, ok := mailbox.(admission); ok {
		a.setAdmit(c.admit)
	}
	return c, nil
}

// ============== 分发循环管理 ==============

// startLoop 启动分发循环，已在运行或已取消时不做任何事
func (c *actorCell) startLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running || c.ctx.Err() != nil {
		return
	}
	c.running = true
	loop := c.loops.Add(1)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		paused := c.director.dispatch(c, loop)

		c.mu.Lock()
		c.running = false
		// Resume 可能发生在暂停与循环退出之间
		restart := paused && c.gate.IsOpen() && c.ctx.Err() == nil
		c.mu.Unlock()

		if restart {
			c.startLoop()
		}
	}()
}

// ============== 状态转换 ==============

func (c *actorCell) onMessageReceived() {
	now := c.director.clock.Now()
	c.mu.Lock()
	c.lastMessageAt = now
	c.mu.Unlock()

	c.stats.RecordReceived()
	c.director.bus.Publish(eventbus.ActorReceivedMessage{ActorID: c.id, DirectorID: c.director.id, At: now})
}

func (c *actorCell) onMessageCommitted() {
	if c.mailbox.Count() == 0 {
		c.director.bus.Publish(eventbus.ActorIdle{ActorID: c.id, DirectorID: c.director.id, At: c.director.clock.Now()})
	}
}

func (c *actorCell) onMessageFailed(err error) {
	now := c.director.clock.Now()
	c.pause()

	c.mu.Lock()
	c.lastErr = err
	c.lastErrAt = now
	c.pausedAt = now
	c.mu.Unlock()

	c.director.bus.Publish(eventbus.ActorPaused{ActorID: c.id, DirectorID: c.director.id, Err: err, At: now})
}

// notifyError 调用 OnError 观察钩子，钩子自身的 panic 只记录日志
func (c *actorCell) notifyError(msg Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in actor error hook", "error", r, "stack", string(debug.Stack()))
		}
	}()
	c.actor.OnError(c.id, msg, err)
}

func (c *actorCell) resume() ResumeOutcome {
	if c.disposed.Load() {
		return ResumeNotFound
	}
	if !c.gate.Open() {
		return ResumeAlreadyProcessing
	}

	c.mu.Lock()
	c.lastErr = nil
	c.lastErrAt = time.Time{}
	c.pausedAt = time.Time{}
	c.mu.Unlock()

	c.logger.Info("actor resumed")
	c.director.bus.Publish(eventbus.ActorResumed{ActorID: c.id, DirectorID: c.director.id, At: c.director.clock.Now()})
	c.startLoop()
	return Resumed
}

// pause 关闭闸门，与邮箱写入串行化，暂停后不会再有消息越过准入检查
func (c *actorCell) pause() {
	if a, ok := c.mailbox.(admission); ok {
		a.withLock(func() { c.gate.Close() })
		return
	}
	c.gate.Close()
}

// admit 邮箱准入检查，暂停期间拒绝写入
func (c *actorCell) admit() error {
	if !c.gate.IsOpen() {
		return fmt.Errorf("%w: %q", ErrActorPaused, c.id)
	}
	return nil
}

func (c *actorCell) isPaused() bool {
	return !c.gate.IsOpen()
}

// newContext 构造本次投递的执行上下文
func (c *actorCell) newContext(ctx context.Context) *Context {
	c.mu.Lock()
	last := c.lastMessageAt
	c.mu.Unlock()

	return &Context{
		DirectorID:      c.director.id,
		ActorID:         c.id,
		IsPaused:        c.isPaused(),
		PendingMessages: c.mailbox.Count(),
		LastMessageAt:   last,
		ctx:             ctx,
		clock:           c.director.clock,
		director:        c.director,
	}
}

// ============== 释放 ==============

// signalCancel 释放第一阶段：取消分发循环
// 与 startLoop 共用锁，保证取消后不会再有新的循环加入 wg
func (c *actorCell) signalCancel() bool {
	if !c.disposed.CompareAndSwap(false, true) {
		return false
	}
	c.mu.Lock()
	c.cancel()
	c.mu.Unlock()
	return true
}

// drain 释放第二阶段：等待循环退出，停止邮箱，关闭 Actor
func (c *actorCell) drain() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("dispose actor %q: %w", c.id, &PanicError{Value: r, Stack: debug.Stack()})
		}
	}()

	c.wg.Wait()
	c.mailbox.Stop()

	if closer, ok := c.actor.(io.Closer); ok {
		if cerr := closer.Close(); cerr != nil {
			err = fmt.Errorf("close actor %q: %w", c.id, cerr)
		}
	}

	c.director.bus.Publish(eventbus.ActorDisposed{ActorID: c.id, DirectorID: c.director.id, At: c.director.clock.Now()})
	return err
}

// snapshot 返回 Actor 快照
func (c *actorCell) snapshot(now time.Time) ActorSnapshot {
	c.mu.Lock()
	lastErr, lastErrAt := c.lastErr, c.lastErrAt
	pausedAt, lastMessageAt := c.pausedAt, c.lastMessageAt
	c.mu.Unlock()

	return ActorSnapshot{
		ActorID:              c.id,
		IsPaused:             c.isPaused(),
		PendingMessagesCount: c.mailbox.Count(),
		LastMessageAt:        lastMessageAt,
		LastMessageReceived:  relativeTime(lastMessageAt, now),
		PausedAt:             pausedAt,
		LastError:            lastErr,
		LastException:        errorText(lastErr, lastErrAt),
		Stats:                c.stats.Stats(),
	}
}
