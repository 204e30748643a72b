package loop

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fixkme/evloop/clock"
	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLoop(t *testing.T, mod func(*Options)) (*Loop, *clock.Manual) {
	t.Helper()
	mc := clock.NewManual(10_000)
	opt := DefaultOptions()
	opt.Clock = mc
	opt.Name = t.Name()
	if mod != nil {
		mod(&opt)
	}
	l, err := New(opt)
	require.NoError(t, err)
	return l, mc
}

type recorder struct {
	fired []string
}

func (r *recorder) handler(ev *event.Event) {
	tag := ev.Name
	if ev.Timedout {
		tag += ":timeout"
		ev.Timedout = false
	}
	r.fired = append(r.fired, tag)
}

func TestTimerFires(t *testing.T) {
	l, mc := newTestLoop(t, nil)
	rec := &recorder{}
	a := l.NewEvent("a", rec.handler, nil)
	b := l.NewEvent("b", rec.handler, nil)
	require.NoError(t, l.AddTimer(b, 200*time.Millisecond))
	require.NoError(t, l.AddTimer(a, 100*time.Millisecond))

	ev, _ := l.Event(a)
	assert.True(t, ev.TimerSet())
	assert.Equal(t, int64(10_100), ev.Deadline())

	assert.Equal(t, 0, l.RunOnce())
	mc.Advance(150 * time.Millisecond)
	assert.Equal(t, 1, l.RunOnce())
	assert.False(t, ev.TimerSet())
	mc.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, l.RunOnce())
	assert.Equal(t, []string{"a:timeout", "b:timeout"}, rec.fired)

	st := l.Stats()
	assert.Equal(t, uint64(2), st.Timers.Expired)
	assert.Equal(t, uint64(2), st.Handled)
	assert.Equal(t, 0, st.Timers.Pending)
}

func TestAddTimerCoalesced(t *testing.T) {
	l, mc := newTestLoop(t, nil)
	h := l.NewEvent("conn", nil, nil)
	require.NoError(t, l.AddTimer(h, 5*time.Second))
	ev, _ := l.Event(h)
	first := ev.Deadline()

	mc.Advance(100 * time.Millisecond)
	l.RunOnce()
	require.NoError(t, l.AddTimer(h, 5*time.Second))
	assert.Equal(t, first, ev.Deadline())
	assert.Equal(t, uint64(1), l.Stats().Timers.Coalesced)

	mc.Advance(time.Second)
	l.RunOnce()
	require.NoError(t, l.AddTimer(h, 5*time.Second))
	assert.Equal(t, first+1100, ev.Deadline())
}

func TestDelTimer(t *testing.T) {
	l, mc := newTestLoop(t, nil)
	rec := &recorder{}
	h := l.NewEvent("a", rec.handler, nil)
	require.NoError(t, l.AddTimer(h, time.Millisecond))
	assert.True(t, l.DelTimer(h))
	assert.False(t, l.DelTimer(h))
	mc.Advance(time.Hour)
	assert.Equal(t, 0, l.RunOnce())
	assert.Empty(t, rec.fired)
}

func TestPostedFIFO(t *testing.T) {
	l, _ := newTestLoop(t, nil)
	rec := &recorder{}
	h1 := l.NewEvent("h1", rec.handler, nil)
	h2 := l.NewEvent("h2", rec.handler, nil)
	h3 := l.NewEvent("h3", rec.handler, nil)
	for _, h := range []event.Handle{h1, h2, h1, h3} {
		require.NoError(t, l.PostEvent(h))
	}
	assert.Equal(t, time.Duration(0), l.NextWait())
	assert.Equal(t, 3, l.RunOnce())
	assert.Equal(t, []string{"h1", "h2", "h3"}, rec.fired)
}

func TestDeletePosted(t *testing.T) {
	l, _ := newTestLoop(t, nil)
	rec := &recorder{}
	h1 := l.NewEvent("h1", rec.handler, nil)
	h2 := l.NewEvent("h2", rec.handler, nil)
	l.PostEvent(h1)
	l.PostEvent(h2)
	assert.True(t, l.DeletePostedEvent(h1))
	assert.False(t, l.DeletePostedEvent(h1))
	l.RunOnce()
	assert.Equal(t, []string{"h2"}, rec.fired)
}

func TestRepostFromHandlerRunsNextRound(t *testing.T) {
	l, _ := newTestLoop(t, nil)
	count := 0
	var h event.Handle
	h = l.NewEvent("again", func(ev *event.Event) {
		count++
		if count < 3 {
			l.PostEvent(ev.Handle())
		}
	}, nil)
	l.PostEvent(h)
	assert.Equal(t, 1, l.RunOnce())
	assert.Equal(t, 1, l.RunOnce())
	assert.Equal(t, 1, l.RunOnce())
	assert.Equal(t, 0, l.RunOnce())
	assert.Equal(t, 3, count)
}

func TestFreeEventAndStaleHandle(t *testing.T) {
	l, mc := newTestLoop(t, nil)
	rec := &recorder{}
	h := l.NewEvent("gone", rec.handler, nil)
	l.AddTimer(h, time.Millisecond)
	l.PostEvent(h)
	require.True(t, l.FreeEvent(h))
	assert.False(t, l.FreeEvent(h))

	err := l.AddTimer(h, time.Second)
	assert.True(t, errors.Is(err, errs.StaleHandle))
	assert.True(t, errors.Is(l.PostEvent(h), errs.StaleHandle))
	assert.False(t, l.DelTimer(h))
	assert.False(t, l.DeletePostedEvent(h))

	// 复用槽位的新事件不受旧Handle影响
	h2 := l.NewEvent("new", rec.handler, nil)
	assert.Equal(t, h.Index, h2.Index)
	mc.Advance(time.Second)
	assert.Equal(t, 0, l.RunOnce())
	assert.Empty(t, rec.fired)
	assert.Equal(t, 1, l.Stats().Events)
}

func TestHandlerPanicRecovered(t *testing.T) {
	l, _ := newTestLoop(t, nil)
	rec := &recorder{}
	bad := l.NewEvent("bad", func(*event.Event) { panic("boom") }, nil)
	good := l.NewEvent("good", rec.handler, nil)
	l.PostEvent(bad)
	l.PostEvent(good)
	assert.NotPanics(t, func() { l.RunOnce() })
	assert.Equal(t, []string{"good"}, rec.fired)
	assert.Equal(t, uint64(1), l.Stats().Panics)
}

func TestNextWait(t *testing.T) {
	l, _ := newTestLoop(t, func(o *Options) { o.MaxWait = time.Second })
	assert.Equal(t, time.Second, l.NextWait())
	h := l.NewEvent("a", nil, nil)
	l.AddTimer(h, 250*time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, l.NextWait())
	l.AddTimer(h, 2*time.Second)
	assert.Equal(t, time.Second, l.NextWait())
}

func TestNoTimersLeft(t *testing.T) {
	l, _ := newTestLoop(t, nil)
	assert.True(t, l.NoTimersLeft())
	a := l.NewEvent("keepalive", nil, nil)
	ev, _ := l.Event(a)
	ev.Cancelable = true
	l.AddTimer(a, time.Minute)
	assert.True(t, l.NoTimersLeft())

	b := l.NewEvent("request", nil, nil)
	l.AddTimer(b, time.Minute)
	assert.False(t, l.NoTimersLeft())
	l.DelTimer(b)
	assert.True(t, l.NoTimersLeft())
}

func TestSubmitAndRun(t *testing.T) {
	opt := DefaultOptions()
	opt.Name = "run"
	opt.MaxWait = 5 * time.Millisecond
	l, err := New(opt)
	require.NoError(t, err)
	quit := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		l.Run(quit)
		close(stopped)
	}()

	var fired atomic.Int32
	err = l.Submit(func() {
		h := l.NewEvent("t", func(*event.Event) { fired.Add(1) }, nil)
		l.AddTimer(h, 10*time.Millisecond)
	})
	require.NoError(t, err)
	require.Eventually(t, func() bool { return fired.Load() == 1 }, time.Second, 5*time.Millisecond)

	var ran atomic.Bool
	assert.True(t, l.TrySubmit(func() { ran.Store(true) }))
	require.Eventually(t, ran.Load, time.Second, time.Millisecond)

	close(quit)
	<-stopped
	assert.True(t, errors.Is(l.Submit(func() {}), errs.LoopClosed))
	assert.False(t, l.TrySubmit(func() {}))
	assert.NotEmpty(t, l.ID())
	assert.GreaterOrEqual(t, l.Stats().Tasks, uint64(2))
}

func runLoop(t *testing.T, l *Loop) {
	t.Helper()
	quit := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		l.Run(quit)
		close(stopped)
	}()
	t.Cleanup(func() {
		close(quit)
		<-stopped
	})
}

func TestSubmittedTimerUsesWakeupTime(t *testing.T) {
	l, mc := newTestLoop(t, func(o *Options) { o.MaxWait = time.Second })
	runLoop(t, l)
	// 确认循环已经在等待
	require.NoError(t, l.Submit(func() {}))

	mc.Advance(400 * time.Millisecond)
	var deadline int64
	require.NoError(t, l.Submit(func() {
		h := l.NewEvent("late", nil, nil)
		l.AddTimer(h, time.Second)
		ev, _ := l.Event(h)
		deadline = ev.Deadline()
	}))
	assert.Equal(t, int64(11_400), deadline)
}

func TestSubmitFromLoopGoroutine(t *testing.T) {
	l, _ := newTestLoop(t, func(o *Options) { o.MaxWait = 5 * time.Millisecond })
	runLoop(t, l)

	result := make(chan error, 2)
	var order []string
	err := l.Submit(func() {
		result <- l.Submit(func() { order = append(order, "nested task") })
		h := l.NewEvent("handler", func(*event.Event) {
			result <- l.Submit(func() { order = append(order, "from handler") })
		}, nil)
		l.PostEvent(h)
	})
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		select {
		case err := <-result:
			assert.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("nested Submit blocked the loop")
		}
	}
	require.NoError(t, l.Submit(func() {
		assert.Equal(t, []string{"nested task", "from handler"}, order)
	}))
}

func TestSubmitQueueFull(t *testing.T) {
	l, _ := newTestLoop(t, func(o *Options) { o.TaskQueueSize = 1 })
	// 没有Run，队列不会被消费
	assert.True(t, l.TrySubmit(func() {}))
	assert.False(t, l.TrySubmit(func() {}))
	assert.True(t, errors.Is(l.Submit(func() {}), errs.TaskQueueFull))
}

func TestAsync(t *testing.T) {
	l, mc := newTestLoop(t, func(o *Options) { o.AsyncPollInterval = 10 * time.Millisecond })
	var result *AsyncResult
	h := l.NewEvent("job", func(ev *event.Event) {
		result = ev.Data.(*AsyncResult)
	}, "payload")

	release := make(chan struct{})
	workErr := errors.New("work failed")
	require.NoError(t, l.Async(h, func() error {
		<-release
		return workErr
	}))
	assert.False(t, l.NoTimersLeft())

	// 未完成时检查定时器会不断重设
	for i := 0; i < 3; i++ {
		mc.Advance(10 * time.Millisecond)
		l.RunOnce()
		assert.Nil(t, result)
	}

	close(release)
	require.Eventually(t, func() bool {
		mc.Advance(10 * time.Millisecond)
		l.RunOnce()
		return result != nil
	}, time.Second, time.Millisecond)
	assert.Same(t, workErr, result.Err)
	assert.Equal(t, "payload", result.Data)
	assert.Equal(t, 1, l.Stats().Events, "poll event freed")
}

func TestAsyncPanic(t *testing.T) {
	l, mc := newTestLoop(t, nil)
	var result *AsyncResult
	h := l.NewEvent("job", func(ev *event.Event) { result = ev.Data.(*AsyncResult) }, nil)
	require.NoError(t, l.Async(h, func() error { panic("bad work") }))
	require.Eventually(t, func() bool {
		mc.Advance(DefaultAsyncPollInterval)
		l.RunOnce()
		return result != nil
	}, time.Second, time.Millisecond)
	assert.True(t, errors.Is(result.Err, errs.Unknown))
}
