package actor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/lwmacct/251220-go-pkg-actorhub/pkg/eventbus"
)

var errBoom = errors.New("boom")

// ============== 测试 Actor ==============

// RecordingActor 记录收到的消息，可选地在指定序号上失败
type RecordingActor struct {
	mu        sync.Mutex
	received  []int
	attempts  map[int]int
	failOn    int // 0 表示不失败
	failTimes int // 失败次数，-1 表示一直失败
	onErrors  []error

	active    atomic.Int32
	maxActive atomic.Int32
	delay     time.Duration
}

func (a *RecordingActor) Receive(_ *Context, msg Message) error {
	n := a.active.Add(1)
	defer a.active.Add(-1)
	for {
		cur := a.maxActive.Load()
		if n <= cur || a.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}
	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	seq := msg.(*SimpleMessage).Payload.(int)

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.attempts == nil {
		a.attempts = make(map[int]int)
	}
	a.attempts[seq]++
	if seq == a.failOn && (a.failTimes < 0 || a.attempts[seq] <= a.failTimes) {
		return fmt.Errorf("message %d: %w", seq, errBoom)
	}
	a.received = append(a.received, seq)
	return nil
}

func (a *RecordingActor) OnError(_ string, _ Message, err error) {
	a.mu.Lock()
	a.onErrors = append(a.onErrors, err)
	a.mu.Unlock()
}

func (a *RecordingActor) Received() []int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]int(nil), a.received...)
}

func (a *RecordingActor) Attempts(seq int) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.attempts[seq]
}

func (a *RecordingActor) OnErrorCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.onErrors)
}

// Heal 之后不再失败
func (a *RecordingActor) Heal() {
	a.mu.Lock()
	a.failOn = 0
	a.mu.Unlock()
}

// ============== 测试辅助 ==============

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Logger = quietLogger()
	return cfg
}

func newTestDirector(t *testing.T, cfg *Config, reg *Registration, opts ...DirectorOption) (*Director, *eventbus.Bus) {
	t.Helper()
	bus := eventbus.New(quietLogger())
	d, err := NewDirector(cfg, reg, bus, opts...)
	require.NoError(t, err)
	t.Cleanup(d.Dispose)
	return d, bus
}

func seqMessage(key string, seq int) *SimpleMessage {
	return NewSimpleMessage("record", key, seq)
}

func singleActor(a Actor) *Registration {
	return NewRegistration().AddActor("record", func() Actor { return a })
}

// ============== 投递 ==============

func TestDirector_SendCreatesActorLazily(t *testing.T) {
	a := &RecordingActor{}
	d, bus := newTestDirector(t, testConfig(), singleActor(a))

	var registered atomic.Int32
	eventbus.Subscribe(bus, func(eventbus.ActorRegistered) { registered.Add(1) })

	msg := seqMessage("x", 1)
	assert.False(t, d.ContainsActor(msg))

	require.NoError(t, d.Send(context.Background(), msg))
	require.NoError(t, d.Send(context.Background(), seqMessage("x", 2)))

	assert.True(t, d.ContainsActor(msg))
	assert.Equal(t, "record|x", d.ActorID(msg))
	assert.Equal(t, 1, d.ActorCount())
	assert.Equal(t, int32(1), registered.Load())

	require.Eventually(t, func() bool { return len(a.Received()) == 2 }, time.Second, 5*time.Millisecond)
}

func TestDirector_SendUnknownKind(t *testing.T) {
	d, _ := newTestDirector(t, testConfig(), NewRegistration())

	err := d.Send(context.Background(), NewSimpleMessage("unknown", "x", 1))
	require.ErrorIs(t, err, ErrActorNotFound)
	assert.Equal(t, 0, d.ActorCount())
}

func TestDirector_FIFO(t *testing.T) {
	a := &RecordingActor{}
	d, _ := newTestDirector(t, testConfig(), singleActor(a))

	want := make([]int, 0, 50)
	for i := 1; i <= 50; i++ {
		require.NoError(t, d.Send(context.Background(), seqMessage("x", i)))
		want = append(want, i)
	}

	require.Eventually(t, func() bool { return len(a.Received()) == 50 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, want, a.Received())

	count, err := d.QueuedMessageCount(seqMessage("x", 0))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestDirector_SingleFlightPerActor(t *testing.T) {
	a := &RecordingActor{delay: 2 * time.Millisecond}
	d, _ := newTestDirector(t, testConfig(), singleActor(a))

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, d.Send(context.Background(), seqMessage("x", i)))
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return len(a.Received()) == 20 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), a.maxActive.Load())
}

func TestDirector_ActorsRunInParallel(t *testing.T) {
	started := make(chan string, 2)
	release := make(chan struct{})
	reg := NewRegistration().AddActor("block", func() Actor {
		return ReceiveFunc(func(ctx *Context, _ Message) error {
			started <- ctx.ActorID
			select {
			case <-release:
			case <-ctx.Context().Done():
			}
			return nil
		})
	})
	d, _ := newTestDirector(t, testConfig(), reg)

	require.NoError(t, d.Send(context.Background(), NewSimpleMessage("block", "a", nil)))
	require.NoError(t, d.Send(context.Background(), NewSimpleMessage("block", "b", nil)))

	seen := map[string]bool{}
	for range 2 {
		select {
		case id := <-started:
			seen[id] = true
		case <-time.After(time.Second):
			t.Fatal("actors did not run in parallel")
		}
	}
	close(release)
	assert.Equal(t, map[string]bool{"block|a": true, "block|b": true}, seen)
}

// ============== 故障处理 ==============

func TestDirector_RetryThenSucceed(t *testing.T) {
	a := &RecordingActor{failOn: 1, failTimes: 2}
	d, _ := newTestDirector(t, testConfig(), singleActor(a))

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))

	require.Eventually(t, func() bool { return len(a.Received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, a.Attempts(1))
	assert.Equal(t, 0, a.OnErrorCount())

	snap, ok := d.State().Actor("record|x")
	require.True(t, ok)
	assert.False(t, snap.IsPaused)
	assert.Equal(t, int64(2), snap.Stats.Retries)
	assert.Equal(t, int64(1), snap.Stats.MessagesHandled)
}

func TestDirector_PauseAndResume(t *testing.T) {
	a := &RecordingActor{failOn: 4, failTimes: -1}
	d, bus := newTestDirector(t, testConfig(), singleActor(a))

	var paused atomic.Int32
	eventbus.Subscribe(bus, func(eventbus.ActorPaused) { paused.Add(1) })

	for i := 1; i <= 4; i++ {
		require.NoError(t, d.Send(context.Background(), seqMessage("x", i)))
	}

	require.Eventually(t, func() bool {
		snap, ok := d.State().Actor("record|x")
		return ok && snap.IsPaused
	}, time.Second, 5*time.Millisecond)

	snap, _ := d.State().Actor("record|x")
	assert.GreaterOrEqual(t, snap.PendingMessagesCount, 1)
	assert.ErrorIs(t, snap.LastError, errBoom)
	assert.Contains(t, snap.LastException, "message 4: boom")
	assert.False(t, snap.PausedAt.IsZero())
	assert.Equal(t, []int{1, 2, 3}, a.Received())
	assert.Equal(t, 1+DefaultRetryCount, a.Attempts(4))
	assert.Equal(t, 1, a.OnErrorCount())
	assert.Equal(t, int32(1), paused.Load())
	assert.True(t, d.IsBusy())

	// 暂停期间拒绝投递
	err := d.Send(context.Background(), seqMessage("x", 5))
	require.ErrorIs(t, err, ErrActorPaused)

	a.Heal()
	assert.Equal(t, 1, d.ResumeActors())

	require.Eventually(t, func() bool {
		snap, _ := d.State().Actor("record|x")
		return snap.PendingMessagesCount == 0 && len(a.Received()) == 4
	}, time.Second, 5*time.Millisecond)

	snap, _ = d.State().Actor("record|x")
	assert.False(t, snap.IsPaused)
	assert.Equal(t, "No exceptions recorded", snap.LastException)
	assert.Equal(t, []int{1, 2, 3, 4}, a.Received())
	assert.False(t, d.IsBusy())
}

func TestDirector_SkipOnError(t *testing.T) {
	cfg := testConfig()
	cfg.StopOnUnhandledError = false
	cfg.RetryCount = 1

	a := &RecordingActor{failOn: 2, failTimes: -1}
	d, _ := newTestDirector(t, cfg, singleActor(a))

	for i := 1; i <= 3; i++ {
		require.NoError(t, d.Send(context.Background(), seqMessage("x", i)))
	}

	require.Eventually(t, func() bool { return len(a.Received()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int{1, 3}, a.Received())
	assert.Equal(t, 2, a.Attempts(2))
	assert.Equal(t, 1, a.OnErrorCount())

	snap, _ := d.State().Actor("record|x")
	assert.False(t, snap.IsPaused)
	assert.Equal(t, 0, snap.PendingMessagesCount)
	assert.Equal(t, int64(1), snap.Stats.MessagesFailed)
}

func TestDirector_CustomDecider(t *testing.T) {
	errTransient := errors.New("transient")
	cfg := testConfig()
	cfg.RetryCount = 0
	cfg.Decider = NewCompositeDecider(PausingDecider).
		Register(errTransient, SkippingDecider).
		Decide

	var calls atomic.Int32
	reg := NewRegistration().AddActor("record", func() Actor {
		return ReceiveFunc(func(_ *Context, _ Message) error {
			calls.Add(1)
			return errTransient
		})
	})
	d, _ := newTestDirector(t, cfg, reg)

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))
	require.NoError(t, d.Send(context.Background(), seqMessage("x", 2)))

	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !d.IsBusy() }, time.Second, 5*time.Millisecond)
}

func TestDirector_PanicIsRecovered(t *testing.T) {
	cfg := testConfig()
	cfg.RetryCount = 0

	hook := make(chan error, 1)
	reg := NewRegistration().AddActor("record", func() Actor {
		return &panicActor{hook: hook}
	})
	d, _ := newTestDirector(t, cfg, reg)

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))

	select {
	case err := <-hook:
		var pe *PanicError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "intentional panic", pe.Value)
		assert.NotEmpty(t, pe.Stack)
	case <-time.After(time.Second):
		t.Fatal("OnError was not called")
	}

	require.Eventually(t, func() bool {
		snap, _ := d.State().Actor("record|x")
		return snap.IsPaused
	}, time.Second, 5*time.Millisecond)
}

type panicActor struct {
	BaseActor
	hook chan error
}

func (a *panicActor) Receive(_ *Context, _ Message) error {
	panic("intentional panic")
}

func (a *panicActor) OnError(_ string, _ Message, err error) {
	a.hook <- err
	panic("error hook panics too")
}

// ============== 恢复 ==============

func TestDirector_ResumeOutcomes(t *testing.T) {
	a := &RecordingActor{failOn: 1, failTimes: -1}
	cfg := testConfig()
	cfg.RetryCount = 0
	d, _ := newTestDirector(t, cfg, singleActor(a))

	assert.Equal(t, ResumeNotFound, d.ResumeActor("record|nobody"))
	assert.Equal(t, "Actor 'record|nobody' not found.", ResumeNotFound.Text("record|nobody"))

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 2)))
	require.Eventually(t, func() bool { return len(a.Received()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, ResumeAlreadyProcessing, d.ResumeActor("record|x"))
	assert.Equal(t, "Actor already processing.", ResumeAlreadyProcessing.Text("record|x"))

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))
	require.Eventually(t, func() bool {
		snap, _ := d.State().Actor("record|x")
		return snap.IsPaused
	}, time.Second, 5*time.Millisecond)

	a.Heal()
	assert.Equal(t, Resumed, d.ResumeActor("record|x"))
	assert.Equal(t, "Actor resumed.", Resumed.Text("record|x"))
	require.Eventually(t, func() bool { return len(a.Received()) == 2 }, time.Second, 5*time.Millisecond)
}

// ============== 注册与查询 ==============

func TestDirector_RegisterActor(t *testing.T) {
	d, _ := newTestDirector(t, testConfig(), NewRegistration())
	factory := func() Actor { return &BaseActor{} }

	require.NoError(t, d.RegisterActor("manual", factory))
	err := d.RegisterActor("manual", factory)
	require.ErrorIs(t, err, ErrActorAlreadyRegistered)
	assert.Equal(t, 1, d.ActorCount())
}

func TestDirector_QueuedMessageCountUnknown(t *testing.T) {
	d, _ := newTestDirector(t, testConfig(), NewRegistration())

	_, err := d.QueuedMessageCount(seqMessage("x", 1))
	require.ErrorIs(t, err, ErrActorNotFound)
}

func TestDirector_TotalQueuedMessageCount(t *testing.T) {
	release := make(chan struct{})
	reg := NewRegistration().AddActor("record", func() Actor {
		return ReceiveFunc(func(ctx *Context, _ Message) error {
			select {
			case <-release:
			case <-ctx.Context().Done():
			}
			return nil
		})
	})
	d, _ := newTestDirector(t, testConfig(), reg)

	for i := range 3 {
		require.NoError(t, d.Send(context.Background(), seqMessage("a", i)))
		require.NoError(t, d.Send(context.Background(), seqMessage("b", i)))
	}
	assert.Equal(t, 6, d.TotalQueuedMessageCount())
	assert.True(t, d.IsBusy())

	close(release)
	require.Eventually(t, func() bool { return d.TotalQueuedMessageCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestDirector_LastActiveFollowsReceivedEvents(t *testing.T) {
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	fake := clocktesting.NewFakeClock(start)

	a := &RecordingActor{}
	d, _ := newTestDirector(t, testConfig(), singleActor(a), WithClock(fake))
	assert.True(t, d.LastActive().Equal(start))

	fake.Step(10 * time.Second)
	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))
	require.Eventually(t, func() bool { return len(a.Received()) == 1 }, time.Second, 5*time.Millisecond)

	assert.True(t, d.LastActive().Equal(start.Add(10*time.Second)))
	assert.Equal(t, fmt.Sprintf("0 second ago at %s", d.LastActive().Local().Format(time.Kitchen)), d.State().LastActiveText)
}

// ============== Context ==============

func TestContext_FieldsAndSend(t *testing.T) {
	forwarded := make(chan *Context, 1)
	reg := NewRegistration().
		AddActor("first", func() Actor {
			return ReceiveFunc(func(ctx *Context, msg Message) error {
				return ctx.Send(NewSimpleMessage("second", msg.PartitionKey(), nil))
			})
		}).
		AddActor("second", func() Actor {
			return ReceiveFunc(func(ctx *Context, _ Message) error {
				forwarded <- ctx
				return nil
			})
		})
	d, _ := newTestDirector(t, testConfig(), reg, WithDirectorID("director-1"))

	require.NoError(t, d.Send(context.Background(), NewSimpleMessage("first", "k", nil)))

	select {
	case ctx := <-forwarded:
		assert.Equal(t, "director-1", ctx.DirectorID)
		assert.Equal(t, "second|k", ctx.ActorID)
		assert.False(t, ctx.IsPaused)
		assert.Equal(t, 1, ctx.PendingMessages)
		assert.True(t, ctx.HasReceivedMessageWithin(time.Minute))
		assert.True(t, ctx.ContainsActor(NewSimpleMessage("first", "k", nil)))
	case <-time.After(time.Second):
		t.Fatal("message was not forwarded")
	}
}

func TestContext_HasReceivedMessageWithinUsesDirectorClock(t *testing.T) {
	fake := clocktesting.NewFakeClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	results := make(chan []bool, 1)
	reg := NewRegistration().AddActor("k", func() Actor {
		return ReceiveFunc(func(ctx *Context, _ Message) error {
			fresh := ctx.HasReceivedMessageWithin(time.Second)
			fake.Step(2 * time.Second)
			results <- []bool{fresh, ctx.HasReceivedMessageWithin(time.Second), ctx.HasReceivedMessageWithin(time.Minute)}
			return nil
		})
	})
	d, _ := newTestDirector(t, testConfig(), reg, WithClock(fake))

	require.NoError(t, d.Send(context.Background(), NewSimpleMessage("k", "x", nil)))

	select {
	case got := <-results:
		assert.Equal(t, []bool{true, false, true}, got)
	case <-time.After(time.Second):
		t.Fatal("message was not received")
	}
}

func TestDirector_CustomIdentity(t *testing.T) {
	a := &RecordingActor{}
	byKind := func(msg Message) string { return msg.Kind() }
	d, _ := newTestDirector(t, testConfig(), singleActor(a), WithIdentity(byKind))

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))
	require.NoError(t, d.Send(context.Background(), seqMessage("y", 2)))

	assert.Equal(t, 1, d.ActorCount())
	require.Eventually(t, func() bool { return len(a.Received()) == 2 }, time.Second, 5*time.Millisecond)
}

// ============== 释放 ==============

func TestDirector_DisposeIdempotent(t *testing.T) {
	reg := NewRegistration().AddActor("record", func() Actor { return &RecordingActor{} })
	d, bus := newTestDirector(t, testConfig(), reg)

	var disposed atomic.Int32
	eventbus.Subscribe(bus, func(eventbus.ActorDisposed) { disposed.Add(1) })

	require.NoError(t, d.Send(context.Background(), seqMessage("a", 1)))
	require.NoError(t, d.Send(context.Background(), seqMessage("b", 1)))

	d.Dispose()
	d.Dispose()

	assert.Equal(t, int32(2), disposed.Load())
	assert.True(t, d.IsDisposed())
	assert.Equal(t, 0, d.ActorCount())
	require.ErrorIs(t, d.Send(context.Background(), seqMessage("a", 2)), ErrDirectorDisposed)
	require.ErrorIs(t, d.RegisterActor("late", func() Actor { return &BaseActor{} }), ErrDirectorDisposed)
}

func TestDirector_DisposeCancelsInFlightWork(t *testing.T) {
	entered := make(chan struct{})
	reg := NewRegistration().AddActor("record", func() Actor {
		return ReceiveFunc(func(ctx *Context, _ Message) error {
			close(entered)
			<-ctx.Context().Done()
			return ctx.Context().Err()
		})
	})
	d, _ := newTestDirector(t, testConfig(), reg)

	require.NoError(t, d.Send(context.Background(), seqMessage("x", 1)))
	<-entered

	done := make(chan struct{})
	go func() {
		d.Dispose()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispose did not cancel in-flight receive")
	}
}

type closingActor struct {
	BaseActor
	closed atomic.Bool
}

func (a *closingActor) Close() error {
	a.closed.Store(true)
	return errors.New("close failed")
}

func TestDirector_DisposeClosesActors(t *testing.T) {
	a := &closingActor{}
	d, _ := newTestDirector(t, testConfig(), NewRegistration())
	require.NoError(t, d.RegisterActor("closer", func() Actor { return a }))

	d.Dispose()
	assert.True(t, a.closed.Load())
}

func TestNewDirector_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.RetryCount = -1
	_, err := NewDirector(cfg, nil, nil)
	require.Error(t, err)
}
