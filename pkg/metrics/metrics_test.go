package metrics

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/actor"
	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/workspace"
)

func TestNew_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg, "test")
	require.NoError(t, err)

	_, err = New(reg, "test")
	require.Error(t, err)
}

func TestCollector_Events(t *testing.T) {
	c, err := New(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	bus := eventbus.New(nil)
	detach := c.Attach(bus)

	bus.Publish(eventbus.ActorRegistered{ActorID: "a", DirectorID: "d"})
	bus.Publish(eventbus.ActorRegistered{ActorID: "b", DirectorID: "d"})
	bus.Publish(eventbus.ActorPaused{ActorID: "a", DirectorID: "d"})
	bus.Publish(eventbus.ActorPaused{ActorID: "a", DirectorID: "d"})

	assert.Equal(t, 2.0, testutil.ToFloat64(c.actorsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actorsPaused))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.actorPauses))

	bus.Publish(eventbus.ActorResumed{ActorID: "a", DirectorID: "d"})
	bus.Publish(eventbus.ActorDisposed{ActorID: "b", DirectorID: "d"})
	assert.Equal(t, 0.0, testutil.ToFloat64(c.actorsPaused))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.actorsActive))

	detach()
	bus.Publish(eventbus.ActorRegistered{ActorID: "c", DirectorID: "d"})
	assert.Equal(t, 2.0, testutil.ToFloat64(c.actorsRegistered))
}

func TestCollector_Workspace(t *testing.T) {
	c, err := New(prometheus.NewRegistry(), "test")
	require.NoError(t, err)

	quiet := slog.New(slog.DiscardHandler)
	bus := eventbus.New(quiet)
	c.Attach(bus)

	var failing atomic.Bool
	failing.Store(true)
	reg := actor.NewRegistration().AddActor("job", func() actor.Actor {
		return actor.ReceiveFunc(func(_ *actor.Context, _ actor.Message) error {
			if failing.Load() {
				return errors.New("down")
			}
			return nil
		})
	})

	cfg := workspace.DefaultConfig()
	cfg.MaxDegreeOfParallelism = 1
	cfg.Actor.RetryCount = 0
	cfg.Logger = quiet

	ws, err := workspace.New(cfg, reg, bus)
	require.NoError(t, err)
	lb := workspace.NewLoadBalancer(ws)

	_, err = lb.Route(context.Background(), actor.NewSimpleMessage("job", "x", nil))
	require.NoError(t, err)
	_, _ = ws.CreateDirector()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.actorsPaused) == 1
	}, time.Second, 5*time.Millisecond)

	failing.Store(false)
	ws.Resume()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.actorIdle) == 1
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.directorsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.capacityReached))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.messagesRouted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.messagesReceived))

	ws.Dispose()
	assert.Equal(t, 0.0, testutil.ToFloat64(c.directorsActive))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.actorsActive))
	assert.Equal(t, 0.0, testutil.ToFloat64(c.actorsPaused))
}
