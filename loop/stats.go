package loop

import (
	"github.com/fixkme/evloop/posted"
	"github.com/fixkme/evloop/timer"
)

// Stats 每轮结束时发布的快照
type Stats struct {
	ID           string
	Name         string
	Timers       timer.Stats
	Posted       posted.Stats
	Events       int
	Handled      uint64
	Panics       uint64
	Tasks        uint64
	TaskBacklog  int
	AsyncRunning int
}

func (l *Loop) publishStats() {
	l.stats.Store(&Stats{
		ID:           l.id,
		Name:         l.opt.Name,
		Timers:       l.timers.Stats(),
		Posted:       l.posted.Stats(),
		Events:       l.events.Len(),
		Handled:      l.handled,
		Panics:       l.panics,
		Tasks:        l.tasks,
		TaskBacklog:  len(l.taskch),
		AsyncRunning: l.async.Running(),
	})
}

// Stats 任何协程都可以调用
func (l *Loop) Stats() Stats {
	return *l.stats.Load()
}
