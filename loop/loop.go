package loop

import (
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/fixkme/evloop/clock"
	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/event"
	"github.com/fixkme/evloop/mlog"
	"github.com/fixkme/evloop/posted"
	"github.com/fixkme/evloop/timer"
	"github.com/panjf2000/ants/v2"
	"github.com/rs/xid"
)

// Loop 单协程事件循环：定时器、投递队列、跨协程任务
// 除了 Submit/TrySubmit/Stats/ID，其余方法只能在事件循环协程(Run所在协程或事件Handler里)调用
type Loop struct {
	id     string
	opt    Options
	clock  clock.Source
	now    int64 // 每轮开始时缓存的时间 毫秒
	events *event.Pool
	timers *timer.Set[event.Handle]
	posted *posted.Queue[event.Handle]

	taskch  chan *task
	gid     atomic.Int64 // Run所在协程，未运行时为0
	running atomic.Bool
	closed  atomic.Bool
	exited  chan struct{}

	async *ants.Pool

	handled uint64
	panics  uint64
	tasks   uint64
	stats   atomic.Pointer[Stats]
}

func New(opt Options) (*Loop, error) {
	opt.init()
	l := &Loop{
		id:     xid.New().String(),
		opt:    opt,
		clock:  opt.Clock,
		events: event.NewPool(opt.EventPoolSize),
		timers: timer.NewSet[event.Handle](timer.WithLazyDelay(opt.LazyDelay.Milliseconds())),
		posted: posted.NewQueue[event.Handle](opt.EventPoolSize),
		taskch: make(chan *task, opt.TaskQueueSize),
		exited: make(chan struct{}),
	}
	pool, err := ants.NewPool(opt.AsyncPoolSize,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(r any) {
			mlog.Errorf("loop %s async work panic: %v", l.id, r)
		}),
	)
	if err != nil {
		return nil, err
	}
	l.async = pool
	l.now = l.clock.NowMs()
	l.publishStats()
	return l, nil
}

func (l *Loop) ID() string {
	return l.id
}

func (l *Loop) Name() string {
	return l.opt.Name
}

// Now 本轮缓存的时间
func (l *Loop) Now() int64 {
	return l.now
}

// UpdateTime 刷新缓存时间
func (l *Loop) UpdateTime() int64 {
	l.now = l.clock.NowMs()
	return l.now
}

// NewEvent 创建事件
func (l *Loop) NewEvent(name string, handler event.Handler, data any) event.Handle {
	h := l.events.New(name, handler, data)
	mlog.DebugMaskf(mlog.DebugAlloc, "event new: %s %s", name, h)
	return h
}

// Event 校验Handle并返回事件
func (l *Loop) Event(h event.Handle) (*event.Event, bool) {
	return l.events.Get(h)
}

// FreeEvent 删除定时器和投递后释放事件
func (l *Loop) FreeEvent(h event.Handle) bool {
	ev, ok := l.events.Get(h)
	if !ok {
		return false
	}
	if ev.TimerSet() {
		l.delTimer(h, ev)
	}
	if ev.Posted() {
		l.deletePosted(h, ev)
	}
	mlog.DebugMaskf(mlog.DebugAlloc, "event free: %s", ev)
	return l.events.Free(h)
}

// AddTimer 设置事件超时，新旧到期时间相差小于LazyDelay时保留旧的
func (l *Loop) AddTimer(h event.Handle, delay time.Duration) error {
	ev, ok := l.events.Get(h)
	if !ok {
		return errs.StaleHandle.Printf("add timer %s", h)
	}
	deadline, coalesced := l.timers.Arm(h, l.now, delay.Milliseconds())
	ev.SetTimer(true, deadline)
	mlog.DebugMaskf(mlog.DebugEvent, "event timer add: %s %v:%d coalesced:%v", ev, delay, deadline, coalesced)
	return nil
}

// DelTimer 删除事件超时，没有设置时什么也不做
func (l *Loop) DelTimer(h event.Handle) bool {
	ev, ok := l.events.Get(h)
	if !ok || !ev.TimerSet() {
		return false
	}
	return l.delTimer(h, ev)
}

func (l *Loop) delTimer(h event.Handle, ev *event.Event) bool {
	mlog.DebugMaskf(mlog.DebugEvent, "event timer del: %s %d", ev, ev.Deadline())
	ev.SetTimer(false, 0)
	return l.timers.Cancel(h)
}

// PostEvent 投递事件，下一次处理投递队列时调用Handler，重复投递无效
func (l *Loop) PostEvent(h event.Handle) error {
	ev, ok := l.events.Get(h)
	if !ok {
		return errs.StaleHandle.Printf("post %s", h)
	}
	l.postEvent(h, ev)
	return nil
}

func (l *Loop) postEvent(h event.Handle, ev *event.Event) {
	if l.posted.Post(h) {
		ev.SetPosted(true)
		mlog.DebugMaskf(mlog.DebugEvent, "post event %s", ev)
	}
}

// DeletePostedEvent 从投递队列删除，不在队列中时什么也不做
func (l *Loop) DeletePostedEvent(h event.Handle) bool {
	ev, ok := l.events.Get(h)
	if !ok || !ev.Posted() {
		return false
	}
	return l.deletePosted(h, ev)
}

func (l *Loop) deletePosted(h event.Handle, ev *event.Event) bool {
	mlog.DebugMaskf(mlog.DebugEvent, "delete posted event %s", ev)
	ev.SetPosted(false)
	return l.posted.Unpost(h)
}

// RunOnce 处理一轮：到期的定时器置Timedout并投递，然后分发投递队列，返回调用Handler的次数
func (l *Loop) RunOnce() int {
	l.UpdateTime()
	l.expireTimers()
	n := l.processPosted()
	l.publishStats()
	return n
}

func (l *Loop) expireTimers() {
	for h := range l.timers.PopExpired(l.now) {
		ev, ok := l.events.Get(h)
		if !ok {
			continue
		}
		mlog.DebugMaskf(mlog.DebugEvent, "event timer del: %s %d expired", ev, ev.Deadline())
		ev.SetTimer(false, 0)
		ev.Timedout = true
		l.postEvent(h, ev)
	}
}

func (l *Loop) processPosted() int {
	n := 0
	for h := range l.posted.Drain() {
		ev, ok := l.events.Get(h)
		if !ok {
			continue
		}
		ev.SetPosted(false)
		l.dispatch(ev)
		n++
	}
	l.handled += uint64(n)
	return n
}

func (l *Loop) dispatch(ev *event.Event) {
	defer func() {
		if r := recover(); r != nil {
			l.panics++
			mlog.Errorf("loop %s event %s handler panic: %v\n%s", l.id, ev, r, debug.Stack())
		}
	}()
	if ev.Handler != nil {
		ev.Handler(ev)
	}
}

// NextWait 下一轮之前最多等待多久，有投递事件时为0
func (l *Loop) NextWait() time.Duration {
	if l.posted.Len() > 0 {
		return 0
	}
	wait := l.opt.MaxWait
	if ms, ok := l.timers.Until(l.clock.NowMs()); ok {
		if d := time.Duration(ms) * time.Millisecond; d < wait {
			wait = d
		}
	}
	return wait
}

// NoTimersLeft 剩下的定时器是否全部属于Cancelable事件，用于优雅退出
func (l *Loop) NoTimersLeft() bool {
	left := true
	l.timers.Range(func(e timer.Entry[event.Handle]) bool {
		if ev, ok := l.events.Get(e.Handle); ok && !ev.Cancelable {
			left = false
			return false
		}
		return true
	})
	return left
}

// Run 阻塞运行直到quit被关闭
func (l *Loop) Run(quit <-chan struct{}) {
	if !l.running.CompareAndSwap(false, true) {
		mlog.Errorf("loop %s is already running", l.id)
		return
	}
	l.gid.Store(goroutineID())
	defer l.shutdown()
	mlog.Infof("loop %s(%s) started, lazy delay %v", l.opt.Name, l.id, l.opt.LazyDelay)

	wait := time.NewTimer(l.opt.MaxWait)
	defer wait.Stop()
	for {
		l.RunOnce()
		wait.Reset(l.NextWait())
		select {
		case <-quit:
			return
		case t := <-l.taskch:
			// 任务里的AddTimer以唤醒时刻为基准
			l.UpdateTime()
			l.execTask(t)
			l.execPendingTasks()
		case <-wait.C:
		}
	}
}

func (l *Loop) shutdown() {
	l.closed.Store(true)
	l.gid.Store(0)
	close(l.exited)
	// 未执行的任务直接丢弃，等待方从exited得到LoopClosed
	for {
		select {
		case <-l.taskch:
		default:
			l.async.Release()
			l.publishStats()
			mlog.Infof("loop %s(%s) stopped", l.opt.Name, l.id)
			return
		}
	}
}
