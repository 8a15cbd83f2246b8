// Package eventbus 提供进程内的发布/订阅总线，用于 Actor 运行时的生命周期遥测
//
// 总线由宿主显式创建并传递给各组件，不是全局单例：
//
//	bus := eventbus.New(nil)
//	unsubscribe := eventbus.Subscribe(bus, func(e eventbus.ActorPaused) {
//		log.Println("paused", e.ActorID, e.Err)
//	})
//	defer unsubscribe()
//
// 发布时遍历订阅者列表的不可变快照，订阅者在回调中注册/注销不会破坏遍历；
// 订阅者 panic 会被捕获并记录，不影响发布者和其他订阅者。
package eventbus

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// Listener 事件订阅者
type Listener interface {
	OnEvent(evt Event)
}

// ListenerFunc 函数式订阅者
type ListenerFunc func(evt Event)

// OnEvent 实现 Listener 接口
func (f ListenerFunc) OnEvent(evt Event) { f(evt) }

type subscription struct {
	id       uint64
	listener Listener
}

// Bus 进程内事件总线
type Bus struct {
	mu     sync.Mutex
	subs   []subscription // 写时复制，发布方只读取快照
	nextID atomic.Uint64
	logger *slog.Logger
}

// New 创建事件总线
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{logger: logger}
}

// Register 注册订阅者，返回注销函数（可重复调用）
func (b *Bus) Register(l Listener) (unregister func()) {
	id := b.nextID.Add(1)

	b.mu.Lock()
	next := make([]subscription, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, subscription{id: id, listener: l})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.unregister(id) })
	}
}

func (b *Bus) unregister(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.id != id {
			next = append(next, s)
		}
	}
	b.subs = next
}

// Len 返回当前订阅者数量
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Publish 同步发布事件
func (b *Bus) Publish(evt Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	snapshot := b.subs
	b.mu.Unlock()

	for _, s := range snapshot {
		b.deliver(s, evt)
	}
}

func (b *Bus) deliver(s subscription, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event listener panicked",
				"event", evt.EventName(),
				"error", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	s.listener.OnEvent(evt)
}

// Subscribe 订阅指定类型的事件
func Subscribe[E Event](b *Bus, fn func(E)) (unregister func()) {
	return b.Register(ListenerFunc(func(evt Event) {
		if e, ok := evt.(E); ok {
			fn(e)
		}
	}))
}
