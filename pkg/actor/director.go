package actor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
)

// Director 管理一组 Actor 的注册表与分发循环
//
// Director 只是协调对象：每个 Actor 拥有独立的分发 goroutine，
// 同一 Director 下的 Actor 之间完全并行。
type Director struct {
	id           string
	cfg          *Config
	registration *Registration
	bus          *eventbus.Bus
	identity     IdentityFunc
	clock        clock.Clock
	logger       *slog.Logger
	// router Actor 内部 Context.Send 的投递入口，nil 时投递到本 Director
	router RouteFunc

	// Actor 注册表（actorID → *actorCell）
	cells sync.Map
	// 创建/释放互斥，保证同一 actorID 只创建一次
	createMu sync.Mutex

	// 生命周期控制
	ctx         context.Context
	cancel      context.CancelFunc
	disposed    atomic.Bool
	lastActive  atomic.Int64 // UnixNano
	unsubscribe func()
}

// DirectorOption Director 可选项
type DirectorOption func(*Director)

// WithIdentity 自定义 actorID 推导函数
func WithIdentity(fn IdentityFunc) DirectorOption {
	return func(d *Director) {
		if fn != nil {
			d.identity = fn
		}
	}
}

// WithClock 自定义时钟（测试使用 FakeClock）
func WithClock(c clock.Clock) DirectorOption {
	return func(d *Director) {
		if c != nil {
			d.clock = c
		}
	}
}

// RouteFunc 消息投递函数
type RouteFunc func(ctx context.Context, msg Message) error

// WithRouter 设置 Actor 通过 Context.Send 发出消息时的投递入口
//
// 多个 Director 组成的池需要经由同一个路由器投递，
// 否则目标 Actor 会在发送方所在的 Director 上被重复创建。
func WithRouter(fn RouteFunc) DirectorOption {
	return func(d *Director) {
		d.router = fn
	}
}

// WithDirectorID 指定 Director 标识，默认随机 UUID
func WithDirectorID(id string) DirectorOption {
	return func(d *Director) {
		if id != "" {
			d.id = id
		}
	}
}

// NewDirector 创建 Director
func NewDirector(cfg *Config, registration *Registration, bus *eventbus.Bus, opts ...DirectorOption) (*Director, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid actor config: %w", err)
	}
	if registration == nil {
		registration = NewRegistration()
	}
	if bus == nil {
		bus = eventbus.New(cfg.logger())
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Director{
		id:           uuid.NewString(),
		cfg:          cfg,
		registration: registration,
		bus:          bus,
		identity:     DefaultIdentity,
		clock:        clock.RealClock{},
		ctx:          ctx,
		cancel:       cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = cfg.logger().With("director", d.id)
	d.touch(d.clock.Now())

	// 最后活跃时间由本 Director 所属 Actor 的接收事件驱动
	d.unsubscribe = eventbus.Subscribe(bus, func(e eventbus.ActorReceivedMessage) {
		if e.DirectorID == d.id {
			d.touch(e.At)
		}
	})

	d.logger.Debug("director created")
	return d, nil
}

// ID 返回 Director 标识
func (d *Director) ID() string {
	return d.id
}

// ActorID 返回消息对应的 actorID
func (d *Director) ActorID(msg Message) string {
	return d.identity(msg)
}

// ============== 消息投递 ==============

// Send 将消息投递到目标 Actor 的邮箱
//
// Actor 不存在时按消息类型惰性创建；没有映射时返回 ErrActorNotFound。
// 目标 Actor 处于暂停状态时返回 ErrActorPaused，暂停检查与邮箱写入在同一把锁内完成，
// 包括 BlockProducer 策略下等待空间后的写入。
// BlockProducer 策略下邮箱满时阻塞，直到有空间或 ctx 取消。
func (d *Director) Send(ctx context.Context, msg Message) error {
	if d.disposed.Load() {
		return ErrDirectorDisposed
	}

	actorID := d.identity(msg)
	cell, err := d.getOrCreate(actorID, msg.Kind())
	if err != nil {
		return err
	}
	if cell.isPaused() {
		return fmt.Errorf("%w: %q", ErrActorPaused, actorID)
	}

	d.bus.Publish(eventbus.DirectorReceivedMessage{DirectorID: d.id, At: d.clock.Now()})

	if err := cell.mailbox.Enqueue(ctx, msg); err != nil {
		if errors.Is(err, ErrActorPaused) {
			return err
		}
		return fmt.Errorf("send to actor %q: %w", actorID, err)
	}
	return nil
}

// route Actor 内部发送入口
func (d *Director) route(ctx context.Context, msg Message) error {
	if d.router != nil {
		return d.router(ctx, msg)
	}
	return d.Send(ctx, msg)
}

// RegisterActor 显式注册 Actor
func (d *Director) RegisterActor(actorID string, factory Factory) error {
	d.createMu.Lock()
	defer d.createMu.Unlock()

	if d.disposed.Load() {
		return ErrDirectorDisposed
	}
	if _, exists := d.cells.Load(actorID); exists {
		return fmt.Errorf("%w: %q", ErrActorAlreadyRegistered, actorID)
	}
	_, err := d.createLocked(actorID, factory)
	return err
}

func (d *Director) getOrCreate(actorID, kind string) (*actorCell, error) {
	if v, ok := d.cells.Load(actorID); ok {
		return v.(*actorCell), nil
	}

	factory, ok := d.registration.Factory(kind)
	if !ok {
		return nil, actorNotFound(actorID)
	}

	d.createMu.Lock()
	defer d.createMu.Unlock()

	if d.disposed.Load() {
		return nil, ErrDirectorDisposed
	}
	if v, ok := d.cells.Load(actorID); ok {
		return v.(*actorCell), nil
	}
	return d.createLocked(actorID, factory)
}

// createLocked 创建并启动 Actor，调用方持有 createMu
func (d *Director) createLocked(actorID string, factory Factory) (*actorCell, error) {
	a := factory()
	if a == nil {
		return nil, fmt.Errorf("actor factory for %q returned nil", actorID)
	}

	cell, err := newActorCell(d, actorID, a)
	if err != nil {
		return nil, fmt.Errorf("create actor %q: %w", actorID, err)
	}
	d.cells.Store(actorID, cell)
	cell.startLoop()

	d.bus.Publish(eventbus.ActorRegistered{ActorID: actorID, DirectorID: d.id, At: d.clock.Now()})
	d.logger.Debug("actor registered", "actor", actorID)
	return cell, nil
}

// ============== 查询 ==============

// ContainsActor 是否已托管消息对应的 Actor
func (d *Director) ContainsActor(msg Message) bool {
	_, ok := d.cells.Load(d.identity(msg))
	return ok
}

// QueuedMessageCount 消息对应 Actor 的待处理消息数
func (d *Director) QueuedMessageCount(msg Message) (int, error) {
	actorID := d.identity(msg)
	v, ok := d.cells.Load(actorID)
	if !ok {
		return 0, actorNotFound(actorID)
	}
	return v.(*actorCell).mailbox.Count(), nil
}

// ActorCount 返回 Actor 数量
func (d *Director) ActorCount() int {
	n := 0
	d.cells.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// IsBusy 任一 Actor 暂停或邮箱非空
func (d *Director) IsBusy() bool {
	busy := false
	d.cells.Range(func(_, v any) bool {
		c := v.(*actorCell)
		if c.isPaused() || c.mailbox.Count() > 0 {
			busy = true
			return false
		}
		return true
	})
	return busy
}

// TotalQueuedMessageCount 所有 Actor 邮箱的待处理消息总数
func (d *Director) TotalQueuedMessageCount() int {
	total := 0
	d.cells.Range(func(_, v any) bool {
		total += v.(*actorCell).mailbox.Count()
		return true
	})
	return total
}

// LastActive 最后活跃时间
func (d *Director) LastActive() time.Time {
	return time.Unix(0, d.lastActive.Load())
}

func (d *Director) touch(at time.Time) {
	next := at.UnixNano()
	for {
		cur := d.lastActive.Load()
		if next <= cur || d.lastActive.CompareAndSwap(cur, next) {
			return
		}
	}
}

// State 返回诊断快照，Actor 按标识排序
func (d *Director) State() DirectorSnapshot {
	now := d.clock.Now()
	snap := DirectorSnapshot{
		DirectorID: d.id,
		LastActive: d.LastActive(),
	}
	snap.LastActiveText = relativeTime(snap.LastActive, now)

	d.cells.Range(func(_, v any) bool {
		a := v.(*actorCell).snapshot(now)
		snap.Actors = append(snap.Actors, a)
		snap.TotalQueuedMessages += a.PendingMessagesCount
		if a.IsPaused || a.PendingMessagesCount > 0 {
			snap.IsBusy = true
		}
		return true
	})
	slices.SortFunc(snap.Actors, func(a, b ActorSnapshot) int {
		switch {
		case a.ActorID < b.ActorID:
			return -1
		case a.ActorID > b.ActorID:
			return 1
		}
		return 0
	})
	snap.ActorCount = len(snap.Actors)
	return snap
}

// ============== 恢复 ==============

// ResumeActor 恢复暂停的 Actor，之前回滚的消息会被重新投递
func (d *Director) ResumeActor(actorID string) ResumeOutcome {
	v, ok := d.cells.Load(actorID)
	if !ok {
		return ResumeNotFound
	}
	return v.(*actorCell).resume()
}

// ResumeActors 恢复所有暂停的 Actor，返回恢复的数量
func (d *Director) ResumeActors() int {
	resumed := 0
	d.cells.Range(func(_, v any) bool {
		if v.(*actorCell).resume() == Resumed {
			resumed++
		}
		return true
	})
	return resumed
}

// ============== 释放 ==============

// Dispose 释放 Director 及其所有 Actor，可重复调用
//
// 分两个阶段：先取消所有 Actor，再并行等待分发循环退出并停止邮箱。
// 释放过程中的错误只记录日志，不会阻止关闭。
func (d *Director) Dispose() {
	if !d.disposed.CompareAndSwap(false, true) {
		return
	}

	d.createMu.Lock()
	cells := make([]*actorCell, 0)
	d.cells.Range(func(_, v any) bool {
		cells = append(cells, v.(*actorCell))
		return true
	})
	d.createMu.Unlock()

	d.logger.Info("shutting down director, cancelling actors", "actors", len(cells))
	d.cancel()
	for _, c := range cells {
		c.signalCancel()
	}

	d.logger.Info("dispatch loops cancelled, disposing mailboxes")
	var (
		mu   sync.Mutex
		errs error
		g    errgroup.Group
	)
	for _, c := range cells {
		g.Go(func() error {
			if err := c.drain(); err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, c := range cells {
		d.cells.Delete(c.id)
	}
	d.unsubscribe()

	if errs != nil {
		d.logger.Warn("director disposed with errors", "errors", len(multierr.Errors(errs)), "error", errs)
		return
	}
	d.logger.Info("director disposed")
}

// IsDisposed 是否已释放
func (d *Director) IsDisposed() bool {
	return d.disposed.Load()
}
