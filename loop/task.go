package loop

import (
	"runtime/debug"

	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/mlog"
)

type task struct {
	fn   func()
	done chan struct{} // nil表示不等待
}

// 每次唤醒最多连续执行的任务数，避免饿死定时器
const maxTasksPerWake = 256

// Submit 在事件循环协程里执行f并等待执行完成，任何协程都可以调用
// 在事件循环协程里(Handler或任务中)调用时直接执行f
func (l *Loop) Submit(f func()) error {
	if l.closed.Load() {
		return errs.LoopClosed
	}
	if l.inLoop() {
		l.execTask(&task{fn: f})
		return nil
	}
	t := &task{fn: f, done: make(chan struct{})}
	select {
	case l.taskch <- t:
	default:
		return errs.TaskQueueFull.Printf("loop %s", l.id)
	}
	select {
	case <-t.done:
		return nil
	case <-l.exited:
		select {
		case <-t.done:
			return nil
		default:
			return errs.LoopClosed
		}
	}
}

// TrySubmit 投递f到事件循环协程，不等待，队列满或已关闭返回false
func (l *Loop) TrySubmit(f func()) bool {
	if l.closed.Load() {
		return false
	}
	select {
	case l.taskch <- &task{fn: f}:
		return true
	default:
		return false
	}
}

func (l *Loop) inLoop() bool {
	gid := l.gid.Load()
	return gid != 0 && gid == goroutineID()
}

func (l *Loop) execTask(t *task) {
	defer func() {
		if r := recover(); r != nil {
			l.panics++
			mlog.Errorf("loop %s task panic: %v\n%s", l.id, r, debug.Stack())
		}
		if t.done != nil {
			close(t.done)
		}
	}()
	l.tasks++
	t.fn()
}

func (l *Loop) execPendingTasks() {
	for i := 0; i < maxTasksPerWake; i++ {
		select {
		case t := <-l.taskch:
			l.execTask(t)
		default:
			return
		}
	}
}
