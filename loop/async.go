package loop

import (
	"sync/atomic"

	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/event"
	"github.com/fixkme/evloop/mlog"
)

// AsyncResult 后台任务完成后替换事件的Data
type AsyncResult struct {
	Err  error
	Data any // 原来的Data
}

type asyncState struct {
	target event.Handle
	orig   any
	err    error
	done   atomic.Bool
}

// Async 在协程池里执行work，work不能访问Loop
// 后台协程只设置完成标志，事件循环通过一个周期性的检查定时器观察到完成后，
// 把目标事件的Data换成*AsyncResult并投递
func (l *Loop) Async(h event.Handle, work func() error) error {
	ev, ok := l.events.Get(h)
	if !ok {
		return errs.StaleHandle.Printf("async %s", h)
	}
	st := &asyncState{target: h, orig: ev.Data}
	poll := l.NewEvent("async-poll:"+ev.Name, l.checkAsyncDone, st)
	err := l.async.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				st.err = errs.Unknown.Printf("async work panic: %v", r)
			}
			st.done.Store(true)
		}()
		st.err = work()
	})
	if err != nil {
		l.FreeEvent(poll)
		return err
	}
	return l.AddTimer(poll, l.opt.AsyncPollInterval)
}

func (l *Loop) checkAsyncDone(pev *event.Event) {
	st := pev.Data.(*asyncState)
	if !st.done.Load() {
		if err := l.AddTimer(pev.Handle(), l.opt.AsyncPollInterval); err != nil {
			mlog.Warnf("loop %s async poll %s: %v", l.id, pev, err)
		}
		return
	}
	l.FreeEvent(pev.Handle())
	ev, ok := l.events.Get(st.target)
	if !ok {
		return // 目标事件已经释放
	}
	ev.Data = &AsyncResult{Err: st.err, Data: st.orig}
	l.postEvent(st.target, ev)
}
