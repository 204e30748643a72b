package posted

import (
	"iter"

	"github.com/fixkme/evloop/ds/staticlist"
)

type node[H comparable] struct {
	h     H
	cycle uint64 // 投递时所处的drain轮次
}

// Stats 计数
type Stats struct {
	Posted   uint64
	Dropped  uint64 // 已在队列中的重复投递
	Unposted uint64
	Drained  uint64
	Pending  int
}

// Queue 待分发事件队列，FIFO，同一个Handle同时最多出现一次
// 不是并发安全的，只能在事件循环协程里使用
type Queue[H comparable] struct {
	q     *staticlist.Queue[node[H]]
	refs  map[H]staticlist.Ref // 存在即posted
	cycle uint64
	stats Stats
}

func NewQueue[H comparable](capHint int) *Queue[H] {
	return &Queue[H]{
		q:    staticlist.NewQueue[node[H]](capHint),
		refs: make(map[H]staticlist.Ref, capHint),
	}
}

// Post 追加到队尾，已经在队列中时什么也不做并返回false
func (pq *Queue[H]) Post(h H) bool {
	if _, ok := pq.refs[h]; ok {
		pq.stats.Dropped++
		return false
	}
	pq.refs[h] = pq.q.PushBack(node[H]{h: h, cycle: pq.cycle})
	pq.stats.Posted++
	return true
}

// Unpost 从队列任意位置删除，不在队列中时什么也不做
func (pq *Queue[H]) Unpost(h H) bool {
	ref, ok := pq.refs[h]
	if !ok {
		return false
	}
	pq.q.Remove(ref)
	delete(pq.refs, h)
	pq.stats.Unposted++
	return true
}

func (pq *Queue[H]) Posted(h H) bool {
	_, ok := pq.refs[h]
	return ok
}

func (pq *Queue[H]) Len() int {
	return pq.q.Len()
}

// Range FIFO遍历，fn不能修改队列
func (pq *Queue[H]) Range(fn func(H) bool) {
	pq.q.Range(func(_ staticlist.Ref, n *node[H]) bool {
		return fn(n.h)
	})
}

// Drain 按FIFO删除并返回开始时已在队列中的Handle
// 遍历过程中新投递的Handle留到下一轮，被Unpost的不会返回，提前结束时剩余的保留在队列中
func (pq *Queue[H]) Drain() iter.Seq[H] {
	return func(yield func(H) bool) {
		pq.cycle++
		cycle := pq.cycle
		for {
			ref, ok := pq.q.Front()
			if !ok {
				return
			}
			n, _ := pq.q.Value(ref)
			if n.cycle >= cycle {
				return // 本轮开始之后投递的
			}
			h := n.h
			pq.q.Remove(ref)
			delete(pq.refs, h)
			pq.stats.Drained++
			if !yield(h) {
				return
			}
		}
	}
}

func (pq *Queue[H]) Stats() Stats {
	st := pq.stats
	st.Pending = pq.q.Len()
	return st
}
