package timer

import (
	"iter"
	"math"

	"github.com/fixkme/evloop/ds/skiplist"
)

// DefaultLazyDelay 新旧到期时间相差小于该值(毫秒)时不重新插入，减少快连接反复刷新超时带来的树操作
const DefaultLazyDelay int64 = 300

// Entry 定时器
type Entry[H comparable] struct {
	Handle   H
	Deadline int64 // 到期时间戳 毫秒
}

type item[H comparable] struct {
	Entry[H]
	seq uint64 // 插入序号，到期时间相同时先插入的先触发
}

func (a *item[H]) Compare(b *item[H]) int {
	if a.Deadline < b.Deadline {
		return -1
	} else if a.Deadline > b.Deadline {
		return 1
	}
	if a.seq < b.seq {
		return -1
	} else if a.seq > b.seq {
		return 1
	}
	return 0
}

// Stats 计数
type Stats struct {
	Armed     uint64 // 实际插入次数
	Coalesced uint64 // 被合并掉的Arm
	Canceled  uint64
	Expired   uint64
	Pending   int
}

type Option func(*options)

type options struct {
	lazyDelay int64
}

// WithLazyDelay 设置合并阈值，0表示不合并
func WithLazyDelay(ms int64) Option {
	return func(o *options) {
		if ms < 0 {
			ms = 0
		}
		o.lazyDelay = ms
	}
}

// Set 按到期时间排序的定时器集合，每个Handle同时最多只有一个到期时间
// 不是并发安全的，只能在事件循环协程里使用
type Set[H comparable] struct {
	list      *skiplist.SkipList[*item[H]]
	locs      map[H]*item[H] //记录位置
	seq       uint64
	lazyDelay int64
	stats     Stats
}

func NewSet[H comparable](opts ...Option) *Set[H] {
	o := options{lazyDelay: DefaultLazyDelay}
	for _, opt := range opts {
		opt(&o)
	}
	return &Set[H]{
		list:      skiplist.NewSkipList[*item[H]](),
		locs:      make(map[H]*item[H]),
		lazyDelay: o.lazyDelay,
	}
}

// addMs 饱和加法，负的delay按0处理
func addMs(now, delay int64) int64 {
	if delay < 0 {
		delay = 0
	}
	if now > math.MaxInt64-delay {
		return math.MaxInt64
	}
	return now + delay
}

func absDiff(a, b int64) uint64 {
	if a > b {
		return uint64(a) - uint64(b)
	}
	return uint64(b) - uint64(a)
}

// Arm 设置h的到期时间为nowMs+delayMs
// 已经设置过且新旧到期时间相差小于lazyDelay时沿用旧的到期时间，coalesced=true
func (s *Set[H]) Arm(h H, nowMs, delayMs int64) (deadline int64, coalesced bool) {
	deadline = addMs(nowMs, delayMs)
	if old, ok := s.locs[h]; ok {
		if absDiff(deadline, old.Deadline) < uint64(s.lazyDelay) {
			s.stats.Coalesced++
			return old.Deadline, true
		}
		s.list.Remove(old)
		delete(s.locs, h)
	}
	s.seq++
	it := &item[H]{Entry: Entry[H]{Handle: h, Deadline: deadline}, seq: s.seq}
	s.list.Insert(it)
	s.locs[h] = it
	s.stats.Armed++
	return deadline, false
}

// Cancel 删除h的定时器，不存在时什么也不做
func (s *Set[H]) Cancel(h H) bool {
	it, ok := s.locs[h]
	if !ok {
		return false
	}
	s.list.Remove(it)
	delete(s.locs, h)
	s.stats.Canceled++
	return true
}

// PeekEarliest 最早到期的定时器
func (s *Set[H]) PeekEarliest() (Entry[H], bool) {
	it, ok := s.list.First()
	if !ok {
		return Entry[H]{}, false
	}
	return it.Entry, true
}

// PopExpired 按到期时间顺序删除并返回所有到期(Deadline<=nowMs)的Handle
// 提前结束遍历时剩余的定时器保留
func (s *Set[H]) PopExpired(nowMs int64) iter.Seq[H] {
	return func(yield func(H) bool) {
		for {
			it, ok := s.list.First()
			if !ok || it.Deadline > nowMs {
				return
			}
			s.list.PopFirst()
			delete(s.locs, it.Handle)
			s.stats.Expired++
			if !yield(it.Handle) {
				return
			}
		}
	}
}

// Until 距离最早到期还有多少毫秒，已到期返回0，没有定时器返回false
func (s *Set[H]) Until(nowMs int64) (int64, bool) {
	it, ok := s.list.First()
	if !ok {
		return 0, false
	}
	if it.Deadline <= nowMs {
		return 0, true
	}
	return it.Deadline - nowMs, true
}

func (s *Set[H]) Deadline(h H) (int64, bool) {
	it, ok := s.locs[h]
	if !ok {
		return 0, false
	}
	return it.Deadline, true
}

func (s *Set[H]) Armed(h H) bool {
	_, ok := s.locs[h]
	return ok
}

func (s *Set[H]) Len() int {
	return s.list.Len()
}

func (s *Set[H]) LazyDelay() int64 {
	return s.lazyDelay
}

// Range 按到期顺序遍历，fn不能修改集合
func (s *Set[H]) Range(fn func(Entry[H]) bool) {
	s.list.Foreach(func(it *item[H]) bool {
		return fn(it.Entry)
	})
}

func (s *Set[H]) Stats() Stats {
	st := s.stats
	st.Pending = s.list.Len()
	return st
}
