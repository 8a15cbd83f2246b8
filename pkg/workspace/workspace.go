// Package workspace 管理一组 Director 组成的有界池
//
// [Workspace] 在 MaxDegreeOfParallelism 上限内创建/移除 Director，
// [LoadBalancer] 为每条消息选择 Director（亲和优先，其次最空闲），并清理长时间空闲的 Director。
//
//	ws, err := workspace.New(workspace.DefaultConfig(), reg, bus)
//	defer ws.Dispose()
//	lb := ws.Balancer()
//	_, err = lb.Route(ctx, msg)
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"k8s.io/utils/clock"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
)

// Workspace Director 池
type Workspace struct {
	id           string
	cfg          *Config
	actorCfg     *actor.Config
	registration *actor.Registration
	bus          *eventbus.Bus
	identity     actor.IdentityFunc
	clock        clock.Clock
	logger       *slog.Logger

	// mu 保护 directors：容量检查与追加、遍历与移除必须原子完成
	mu        sync.Mutex
	directors []*actor.Director

	// balancer 共享的负载均衡器，所有 Director 内部发送也经由它路由
	balancer atomic.Pointer[LoadBalancer]

	disposed    atomic.Bool
	unsubscribe func()
}

// Option Workspace 可选项
type Option func(*Workspace)

// WithClock 自定义时钟，同时传递给所有 Director
func WithClock(c clock.Clock) Option {
	return func(w *Workspace) {
		if c != nil {
			w.clock = c
		}
	}
}

// WithIdentity 自定义 actorID 推导函数，同时传递给所有 Director
func WithIdentity(fn actor.IdentityFunc) Option {
	return func(w *Workspace) {
		if fn != nil {
			w.identity = fn
		}
	}
}

// WithID 指定 Workspace 标识，默认随机 UUID
func WithID(id string) Option {
	return func(w *Workspace) {
		if id != "" {
			w.id = id
		}
	}
}

// New 创建 Workspace，并引导创建第一个 Director
func New(cfg *Config, registration *actor.Registration, bus *eventbus.Bus, opts ...Option) (*Workspace, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workspace config: %w", err)
	}
	if registration == nil {
		registration = actor.NewRegistration()
	}
	logger := cfg.logger()
	if bus == nil {
		bus = eventbus.New(logger)
	}

	actorCfg := actor.DefaultConfig()
	if cfg.Actor != nil {
		c := *cfg.Actor
		actorCfg = &c
	}
	if actorCfg.Logger == nil {
		actorCfg.Logger = logger
	}

	w := &Workspace{
		id:           uuid.NewString(),
		cfg:          cfg,
		actorCfg:     actorCfg,
		registration: registration,
		bus:          bus,
		identity:     actor.DefaultIdentity,
		clock:        clock.RealClock{},
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logger.With("workspace", w.id)

	w.unsubscribe = eventbus.Subscribe(bus, func(e eventbus.ThreadInformation) {
		w.logger.Debug("thread information",
			"director", e.DirectorID,
			"actor", e.ActorID,
			"loop", e.Loop,
			"goroutines", e.Goroutines)
	})

	if _, ok := w.CreateDirector(); !ok {
		w.unsubscribe()
		return nil, fmt.Errorf("workspace %s: failed to create initial director", w.id)
	}

	w.logger.Info("workspace started", "max_parallelism", cfg.MaxDegreeOfParallelism)
	return w, nil
}

// ID 返回 Workspace 标识
func (w *Workspace) ID() string {
	return w.id
}

// Capacity 返回 Director 数量上限
func (w *Workspace) Capacity() int {
	return w.cfg.MaxDegreeOfParallelism
}

// Registration 返回共享的消息类型映射
func (w *Workspace) Registration() *actor.Registration {
	return w.registration
}

// ActorConfig 返回 Director 使用的 Actor 配置
func (w *Workspace) ActorConfig() *actor.Config {
	return w.actorCfg
}

// ActorID 返回消息对应的 actorID
func (w *Workspace) ActorID(msg actor.Message) string {
	return w.identity(msg)
}

// CreateDirector 创建 Director
// 已达上限时发布 WorkspaceCapacityReached 事件并返回 false，从不报错
func (w *Workspace) CreateDirector() (*actor.Director, bool) {
	w.mu.Lock()
	if w.disposed.Load() {
		w.mu.Unlock()
		return nil, false
	}
	if len(w.directors) >= w.cfg.MaxDegreeOfParallelism {
		w.mu.Unlock()
		w.logger.Debug("workspace capacity reached", "capacity", w.cfg.MaxDegreeOfParallelism)
		w.bus.Publish(eventbus.WorkspaceCapacityReached{
			WorkspaceID: w.id,
			Capacity:    w.cfg.MaxDegreeOfParallelism,
			At:          w.clock.Now(),
		})
		return nil, false
	}

	d, err := actor.NewDirector(w.actorCfg, w.registration, w.bus,
		actor.WithClock(w.clock),
		actor.WithIdentity(w.identity),
		actor.WithRouter(w.route))
	if err != nil {
		w.mu.Unlock()
		w.logger.Error("failed to create director", "error", err)
		return nil, false
	}
	w.directors = append(w.directors, d)
	count := len(w.directors)
	w.mu.Unlock()

	w.bus.Publish(eventbus.DirectorRegistered{DirectorID: d.ID(), WorkspaceID: w.id, At: w.clock.Now()})
	w.logger.Info("director registered", "director", d.ID(), "directors", count)
	return d, true
}

// Balancer 返回 Workspace 共享的负载均衡器，首次调用时创建
func (w *Workspace) Balancer() *LoadBalancer {
	if lb := w.balancer.Load(); lb != nil {
		return lb
	}
	lb := newLoadBalancer(w)
	if w.balancer.CompareAndSwap(nil, lb) {
		return lb
	}
	return w.balancer.Load()
}

// route Actor 内部发送经由共享负载均衡器，保证每个 actorID 只存在于一个 Director
func (w *Workspace) route(ctx context.Context, msg actor.Message) error {
	_, err := w.Balancer().Route(ctx, msg)
	return err
}

// RemoveDirector 从池中移除并释放 Director
func (w *Workspace) RemoveDirector(d *actor.Director) {
	if d == nil {
		return
	}
	if !w.detach(d) && d.IsDisposed() {
		return
	}
	w.disposeDirector(d)
}

// detach 从池中移除 Director 但不释放，返回是否存在
func (w *Workspace) detach(d *actor.Director) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	i := slices.Index(w.directors, d)
	if i < 0 {
		return false
	}
	w.directors = slices.Delete(w.directors, i, i+1)
	return true
}

func (w *Workspace) disposeDirector(d *actor.Director) {
	d.Dispose()
	w.bus.Publish(eventbus.DirectorDisposed{DirectorID: d.ID(), WorkspaceID: w.id, At: w.clock.Now()})
	w.logger.Info("director disposed", "director", d.ID())
}

// Directors 返回当前 Director 列表的副本
func (w *Workspace) Directors() []*actor.Director {
	w.mu.Lock()
	defer w.mu.Unlock()
	return slices.Clone(w.directors)
}

// Len 返回 Director 数量
func (w *Workspace) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.directors)
}

// Resume 恢复所有 Director 上暂停的 Actor，返回恢复的数量
func (w *Workspace) Resume() int {
	resumed := 0
	for _, d := range w.Directors() {
		resumed += d.ResumeActors()
	}
	if resumed > 0 {
		w.logger.Info("actors resumed", "count", resumed)
	}
	return resumed
}

// State 返回诊断快照
func (w *Workspace) State() Snapshot {
	directors := w.Directors()
	snap := Snapshot{
		WorkspaceID:            w.id,
		MaxDegreeOfParallelism: w.cfg.MaxDegreeOfParallelism,
		DirectorCount:          len(directors),
		Directors:              make([]actor.DirectorSnapshot, 0, len(directors)),
	}
	for _, d := range directors {
		ds := d.State()
		snap.TotalQueuedMessages += ds.TotalQueuedMessages
		snap.ActorCount += ds.ActorCount
		snap.Directors = append(snap.Directors, ds)
	}
	return snap
}

// Dispose 注销事件订阅并释放所有 Director，可重复调用
func (w *Workspace) Dispose() {
	if !w.disposed.CompareAndSwap(false, true) {
		return
	}
	w.unsubscribe()

	w.mu.Lock()
	directors := w.directors
	w.directors = nil
	w.mu.Unlock()

	w.logger.Info("workspace shutting down", "directors", len(directors))
	for _, d := range directors {
		w.disposeDirector(d)
	}
	w.logger.Info("workspace disposed")
}

// IsDisposed 是否已释放
func (w *Workspace) IsDisposed() bool {
	return w.disposed.Load()
}

// Snapshot Workspace 诊断快照
type Snapshot struct {
	WorkspaceID            string                   `json:"workspace_id"`
	MaxDegreeOfParallelism int                      `json:"max_degree_of_parallelism"`
	DirectorCount          int                      `json:"director_count"`
	ActorCount             int                      `json:"actor_count"`
	TotalQueuedMessages    int                      `json:"total_queued_messages"`
	Directors              []actor.DirectorSnapshot `json:"directors"`
}
