package loop

import (
	"time"

	"github.com/fixkme/evloop/clock"
	"github.com/fixkme/evloop/timer"
)

type Options struct {
	Name              string
	LazyDelay         time.Duration // 定时器合并阈值，0表示不合并，负数取默认值，DefaultOptions里是300ms
	TaskQueueSize     int           // 跨协程任务队列长度
	MaxWait           time.Duration // 没有定时器时最长等待
	Clock             clock.Source
	EventPoolSize     int
	AsyncPoolSize     int           // 后台任务协程池大小
	AsyncPollInterval time.Duration // 后台任务完成状态的检查间隔
}

const (
	DefaultTaskQueueSize     = 10240
	DefaultMaxWait           = 500 * time.Millisecond
	DefaultEventPoolSize     = 1024
	DefaultAsyncPoolSize     = 64
	DefaultAsyncPollInterval = 10 * time.Millisecond
)

func (o *Options) init() {
	if o.Name == "" {
		o.Name = "loop"
	}
	if o.LazyDelay < 0 {
		o.LazyDelay = time.Duration(timer.DefaultLazyDelay) * time.Millisecond
	}
	if o.TaskQueueSize <= 0 {
		o.TaskQueueSize = DefaultTaskQueueSize
	}
	if o.MaxWait <= 0 {
		o.MaxWait = DefaultMaxWait
	}
	if o.Clock == nil {
		o.Clock = clock.System()
	}
	if o.EventPoolSize <= 0 {
		o.EventPoolSize = DefaultEventPoolSize
	}
	if o.AsyncPoolSize <= 0 {
		o.AsyncPoolSize = DefaultAsyncPoolSize
	}
	if o.AsyncPollInterval <= 0 {
		o.AsyncPollInterval = DefaultAsyncPollInterval
	}
}

// DefaultOptions LazyDelay取nginx的300ms
func DefaultOptions() Options {
	return Options{
		LazyDelay: time.Duration(timer.DefaultLazyDelay) * time.Millisecond,
	}
}
