package event

import (
	"fmt"

	"github.com/fixkme/evloop/ds/staticlist"
)

// Handle 事件引用，槽位被释放并复用后旧的Handle不会再解析到新事件
type Handle staticlist.Ref

func (h Handle) IsNil() bool {
	return staticlist.Ref(h).IsNil()
}

func (h Handle) String() string {
	return fmt.Sprintf("ev#%d.%d", h.Index, h.Gen)
}

type Handler func(ev *Event)

// Event 事件，Handler在事件循环协程里被调用
type Event struct {
	Name    string
	Handler Handler
	Data    any

	// Timedout 由定时器触发时置true，Handler自己清除
	Timedout bool
	// Cancelable 优雅退出时不需要等待这个事件的定时器
	Cancelable bool

	handle   Handle
	timerSet bool
	posted   bool
	deadline int64
}

func (ev *Event) Handle() Handle {
	return ev.handle
}

// TimerSet 定时器是否已设置
func (ev *Event) TimerSet() bool {
	return ev.timerSet
}

func (ev *Event) Posted() bool {
	return ev.posted
}

// Deadline 定时器到期时间，TimerSet为false时无意义
func (ev *Event) Deadline() int64 {
	return ev.deadline
}

func (ev *Event) String() string {
	return fmt.Sprintf("%s(%s)", ev.Name, ev.handle)
}

// SetTimer 由事件循环维护定时器状态
func (ev *Event) SetTimer(set bool, deadline int64) {
	ev.timerSet = set
	ev.deadline = deadline
}

// SetPosted 由事件循环维护投递状态
func (ev *Event) SetPosted(posted bool) {
	ev.posted = posted
}
