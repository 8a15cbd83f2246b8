// Package metrics 将事件总线上的生命周期事件导出为 Prometheus 指标
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
)

const subsystem = "actorhub"

// Collector 订阅事件总线并维护 Prometheus 指标
type Collector struct {
	actorsActive     prometheus.Gauge
	actorsPaused     prometheus.Gauge
	actorsRegistered prometheus.Counter
	actorPauses      prometheus.Counter
	actorResumes     prometheus.Counter
	actorIdle        prometheus.Counter
	messagesReceived prometheus.Counter
	messagesRouted   prometheus.Counter
	directorsActive  prometheus.Gauge
	capacityReached  prometheus.Counter

	mu     sync.Mutex
	paused map[string]struct{} // directorID/actorID
}

// New 创建并注册指标
func New(reg prometheus.Registerer, namespace string) (*Collector, error) {
	c := &Collector{
		actorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "actors_active",
			Help: "Number of registered actors that have not been disposed.",
		}),
		actorsPaused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "actors_paused",
			Help: "Number of actors currently paused after a fault.",
		}),
		actorsRegistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "actors_registered_total",
			Help: "Count of actors registered on any director.",
		}),
		actorPauses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "actor_pauses_total",
			Help: "Count of actor pauses caused by exhausted retries.",
		}),
		actorResumes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "actor_resumes_total",
			Help: "Count of paused actors resumed.",
		}),
		actorIdle: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "actor_idle_total",
			Help: "Count of times an actor mailbox became empty.",
		}),
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "messages_received_total",
			Help: "Count of messages picked up by actor dispatch loops.",
		}),
		messagesRouted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "messages_routed_total",
			Help: "Count of messages accepted by directors for delivery.",
		}),
		directorsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "directors_active",
			Help: "Number of directors registered in workspaces.",
		}),
		capacityReached: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: subsystem,
			Name: "workspace_capacity_reached_total",
			Help: "Count of director creations rejected by the parallelism ceiling.",
		}),
		paused: make(map[string]struct{}),
	}

	for _, m := range []prometheus.Collector{
		c.actorsActive, c.actorsPaused, c.actorsRegistered, c.actorPauses, c.actorResumes,
		c.actorIdle, c.messagesReceived, c.messagesRouted, c.directorsActive, c.capacityReached,
	} {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Attach 订阅事件总线，返回取消订阅函数
func (c *Collector) Attach(bus *eventbus.Bus) (detach func()) {
	return bus.Register(eventbus.ListenerFunc(c.OnEvent))
}

// OnEvent 实现 eventbus.Listener
func (c *Collector) OnEvent(evt eventbus.Event) {
	switch e := evt.(type) {
	case eventbus.ActorRegistered:
		c.actorsRegistered.Inc()
		c.actorsActive.Inc()
	case eventbus.ActorDisposed:
		c.actorsActive.Dec()
		c.setPaused(e.DirectorID, e.ActorID, false)
	case eventbus.ActorPaused:
		c.actorPauses.Inc()
		c.setPaused(e.DirectorID, e.ActorID, true)
	case eventbus.ActorResumed:
		c.actorResumes.Inc()
		c.setPaused(e.DirectorID, e.ActorID, false)
	case eventbus.ActorIdle:
		c.actorIdle.Inc()
	case eventbus.ActorReceivedMessage:
		c.messagesReceived.Inc()
	case eventbus.DirectorReceivedMessage:
		c.messagesRouted.Inc()
	case eventbus.DirectorRegistered:
		c.directorsActive.Inc()
	case eventbus.DirectorDisposed:
		c.directorsActive.Dec()
	case eventbus.WorkspaceCapacityReached:
		c.capacityReached.Inc()
	}
}

func (c *Collector) setPaused(directorID, actorID string, paused bool) {
	key := directorID + "/" + actorID

	c.mu.Lock()
	defer c.mu.Unlock()

	_, was := c.paused[key]
	switch {
	case paused && !was:
		c.paused[key] = struct{}{}
	case !paused && was:
		delete(c.paused, key)
	}
	c.actorsPaused.Set(float64(len(c.paused)))
}
