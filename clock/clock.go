package clock

import (
	"sync/atomic"
	"time"
)

// Source 毫秒时间源
type Source interface {
	NowMs() int64
}

// systemClock 进程启动后的单调毫秒数，加上可调的偏移
type systemClock struct {
	start  time.Time
	offset atomic.Int64 // 时间偏移 毫秒
}

var system = &systemClock{start: time.Now()}

// System 默认时间源，单调递增，不受系统时间调整影响
func System() Source {
	return system
}

func (c *systemClock) NowMs() int64 {
	return time.Since(c.start).Milliseconds() + c.offset.Load()
}

// SetOffset 设置时间偏移量，用于调试时快进
func SetOffset(d time.Duration) {
	system.offset.Store(d.Milliseconds())
}

// GetOffset 获取时间偏移量
func GetOffset() time.Duration {
	return time.Duration(system.offset.Load()) * time.Millisecond
}

// Manual 手动推进的时间源，测试用
type Manual struct {
	now atomic.Int64
}

func NewManual(startMs int64) *Manual {
	m := &Manual{}
	m.now.Store(startMs)
	return m
}

func (m *Manual) NowMs() int64 {
	return m.now.Load()
}

// Advance 推进d，返回推进后的时间
func (m *Manual) Advance(d time.Duration) int64 {
	return m.now.Add(d.Milliseconds())
}

func (m *Manual) Set(ms int64) {
	m.now.Store(ms)
}
