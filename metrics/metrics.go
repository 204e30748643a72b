package metrics

import (
	"net/http"
	"sync"

	"github.com/fixkme/evloop/loop"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsSource 提供统计快照，*loop.Loop 实现了它
type StatsSource interface {
	Stats() loop.Stats
}

type metric struct {
	desc  *prometheus.Desc
	vtype prometheus.ValueType
	value func(*loop.Stats) float64
}

// Collector 采集时读取每个事件循环的快照，不持有锁等待事件循环
type Collector struct {
	mu      sync.RWMutex
	loops   []StatsSource
	metrics []metric
}

var labels = []string{"loop_id", "loop_name"}

func NewCollector(namespace string, loops ...StatsSource) *Collector {
	c := &Collector{loops: loops}
	add := func(subsystem, name, help string, vtype prometheus.ValueType, value func(*loop.Stats) float64) {
		c.metrics = append(c.metrics, metric{
			desc:  prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil),
			vtype: vtype,
			value: value,
		})
	}
	counter, gauge := prometheus.CounterValue, prometheus.GaugeValue

	add("timer", "armed_total", "Timers inserted into the timer set.", counter,
		func(s *loop.Stats) float64 { return float64(s.Timers.Armed) })
	add("timer", "coalesced_total", "Timer re-arms absorbed by the lazy delay.", counter,
		func(s *loop.Stats) float64 { return float64(s.Timers.Coalesced) })
	add("timer", "canceled_total", "Timers removed before expiry.", counter,
		func(s *loop.Stats) float64 { return float64(s.Timers.Canceled) })
	add("timer", "expired_total", "Timers popped as expired.", counter,
		func(s *loop.Stats) float64 { return float64(s.Timers.Expired) })
	add("timer", "pending", "Timers currently armed.", gauge,
		func(s *loop.Stats) float64 { return float64(s.Timers.Pending) })

	add("posted", "posted_total", "Events appended to the posted queue.", counter,
		func(s *loop.Stats) float64 { return float64(s.Posted.Posted) })
	add("posted", "dropped_total", "Posts ignored because the event was already queued.", counter,
		func(s *loop.Stats) float64 { return float64(s.Posted.Dropped) })
	add("posted", "unposted_total", "Events removed from the posted queue before dispatch.", counter,
		func(s *loop.Stats) float64 { return float64(s.Posted.Unposted) })
	add("posted", "drained_total", "Events yielded by posted queue drains.", counter,
		func(s *loop.Stats) float64 { return float64(s.Posted.Drained) })
	add("posted", "pending", "Events waiting in the posted queue.", gauge,
		func(s *loop.Stats) float64 { return float64(s.Posted.Pending) })

	add("loop", "events", "Live events in the event pool.", gauge,
		func(s *loop.Stats) float64 { return float64(s.Events) })
	add("loop", "handled_total", "Event handlers dispatched.", counter,
		func(s *loop.Stats) float64 { return float64(s.Handled) })
	add("loop", "panics_total", "Recovered handler and task panics.", counter,
		func(s *loop.Stats) float64 { return float64(s.Panics) })
	add("loop", "tasks_total", "Cross-goroutine tasks executed.", counter,
		func(s *loop.Stats) float64 { return float64(s.Tasks) })
	add("loop", "task_backlog", "Tasks waiting in the submit queue.", gauge,
		func(s *loop.Stats) float64 { return float64(s.TaskBacklog) })
	add("loop", "async_running", "Async workers currently running.", gauge,
		func(s *loop.Stats) float64 { return float64(s.AsyncRunning) })
	return c
}

// Add 追加事件循环，可以在注册之后调用
func (c *Collector) Add(src StatsSource) {
	c.mu.Lock()
	c.loops = append(c.loops, src)
	c.mu.Unlock()
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for i := range c.metrics {
		ch <- c.metrics[i].desc
	}
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	loops := c.loops
	c.mu.RUnlock()
	for _, src := range loops {
		st := src.Stats()
		for i := range c.metrics {
			m := &c.metrics[i]
			ch <- prometheus.MustNewConstMetric(m.desc, m.vtype, m.value(&st), st.ID, st.Name)
		}
	}
}

// Handler 返回reg的 /metrics 处理器
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
