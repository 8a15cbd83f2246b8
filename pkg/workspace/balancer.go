package workspace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/actor"
)

// LoadBalancer 为消息选择 Director
//
// 每个 actorID 在其生命周期内固定在一个 Director 上，保证单写者与顺序；
// 过载只记录日志，新的 actorID 才会被分配到其他 Director。
// 每个 Workspace 只有一个 LoadBalancer，Actor 通过 Context.Send 发出的消息同样经由它路由。
type LoadBalancer struct {
	ws     *Workspace
	logger *slog.Logger

	mu   sync.Mutex
	pins map[string]*actor.Director // actorID → Director
}

// NewLoadBalancer 返回 Workspace 共享的负载均衡器
func NewLoadBalancer(ws *Workspace) *LoadBalancer {
	return ws.Balancer()
}

func newLoadBalancer(ws *Workspace) *LoadBalancer {
	return &LoadBalancer{
		ws:     ws,
		logger: ws.logger.With("component", "load_balancer"),
		pins:   make(map[string]*actor.Director),
	}
}

// Route 选择 Director 并投递消息，返回被选中的 Director
func (lb *LoadBalancer) Route(ctx context.Context, msg actor.Message) (*actor.Director, error) {
	if lb.ws.IsDisposed() {
		return nil, ErrWorkspaceDisposed
	}
	if !lb.ws.registration.Has(msg.Kind()) {
		return nil, fmt.Errorf("%w: %q", ErrNoActorRegistered, msg.Kind())
	}

	// 选中的 Director 可能在投递前被清理，重新选择一次
	for attempt := 0; ; attempt++ {
		d, err := lb.selectDirector(msg)
		if err != nil {
			return nil, err
		}
		err = d.Send(ctx, msg)
		if errors.Is(err, actor.ErrDirectorDisposed) && attempt == 0 {
			continue
		}
		return d, err
	}
}

func (lb *LoadBalancer) selectDirector(msg actor.Message) (*actor.Director, error) {
	actorID := lb.ws.ActorID(msg)

	lb.mu.Lock()
	defer lb.mu.Unlock()

	if d, ok := lb.pins[actorID]; ok {
		if !d.IsDisposed() {
			lb.checkOverload(d, msg, actorID)
			return d, nil
		}
		delete(lb.pins, actorID)
	}

	directors := lb.ws.Directors()

	// 亲和：Actor 已存在于某个 Director（例如直接通过 Director.Send 创建）
	for _, d := range directors {
		if d.ContainsActor(msg) {
			lb.pins[actorID] = d
			return d, nil
		}
	}

	d := lb.pick(directors)
	if d == nil {
		return nil, ErrNoDirectorAvailable
	}
	lb.pins[actorID] = d
	return d, nil
}

// pick 第一个空闲 Director → 新建 Director → 最空闲的 Director
func (lb *LoadBalancer) pick(directors []*actor.Director) *actor.Director {
	for _, d := range directors {
		if !d.IsBusy() {
			return d
		}
	}
	if d, ok := lb.ws.CreateDirector(); ok {
		return d
	}
	return leastLoaded(lb.ws.Directors())
}

func (lb *LoadBalancer) checkOverload(d *actor.Director, msg actor.Message, actorID string) {
	capacity := lb.ws.actorCfg.MailboxCapacity
	if capacity <= 0 {
		return
	}
	queued, err := d.QueuedMessageCount(msg)
	if err != nil {
		return
	}
	if queued > capacity/2 {
		lb.logger.Warn("actor overloaded, keeping director affinity",
			"actor", actorID, "director", d.ID(), "queued", queued, "capacity", capacity)
	}
}

// leastLoaded 待处理消息最少的 Director，相同时选择最久未活跃的
func leastLoaded(directors []*actor.Director) *actor.Director {
	if len(directors) == 0 {
		return nil
	}
	return slices.MinFunc(directors, func(a, b *actor.Director) int {
		if qa, qb := a.TotalQueuedMessageCount(), b.TotalQueuedMessageCount(); qa != qb {
			return qa - qb
		}
		return a.LastActive().Compare(b.LastActive())
	})
}

// PruneIdleDirectors 移除超过空闲阈值未活跃的 Director，返回移除的数量
//
// 至少保留一个 Director；有暂停 Actor 或待处理消息的 Director 不会被移除。
// 选择与摘除在路由锁内完成，释放在锁外进行，Actor 内部的 Context.Send 不会与释放互相等待。
func (lb *LoadBalancer) PruneIdleDirectors() int {
	cutoff := lb.ws.clock.Now().Add(-lb.ws.cfg.DirectorIdleThreshold)

	lb.mu.Lock()
	directors := lb.ws.Directors()
	remaining := len(directors)
	var victims []*actor.Director
	for _, d := range directors {
		if remaining <= 1 {
			break
		}
		if !d.LastActive().Before(cutoff) || d.IsBusy() {
			continue
		}
		if !lb.ws.detach(d) {
			continue
		}
		for id, pinned := range lb.pins {
			if pinned == d {
				delete(lb.pins, id)
			}
		}
		remaining--
		victims = append(victims, d)
	}
	lb.mu.Unlock()

	for _, d := range victims {
		lb.ws.disposeDirector(d)
		lb.logger.Info("pruned idle director", "director", d.ID(), "last_active", d.LastActive())
	}
	return len(victims)
}
