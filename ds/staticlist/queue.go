package staticlist

// Queue 双向链表实现队列，链接字段是槽位下标而不是指针，支持O(1)删除任意元素
// 同一个StaticList上可以挂多个Queue（SplitAt/Append）
type Queue[T any] struct {
	pool *StaticList[QNode[T]]
	root int32 //哨兵
	len  int
}

type QNode[T any] struct {
	Value      T
	prev, next int32
	root       int32 // 所属队列的哨兵
}

func NewQueue[T any](capHint int) *Queue[T] {
	return newQueueIn(NewStaticList[QNode[T]](1 + capHint))
}

func newQueueIn[T any](pool *StaticList[QNode[T]]) *Queue[T] {
	q := &Queue[T]{pool: pool}
	r := pool.Malloc()
	q.root = r.Index
	root := q.node(q.root)
	root.prev = q.root
	root.next = q.root
	root.root = q.root
	return q
}

func (q *Queue[T]) node(p int32) *QNode[T] {
	return q.pool.at(p)
}

// owned 引用有效且属于当前队列
func (q *Queue[T]) owned(r Ref) bool {
	if r.Index == q.root || !q.pool.valid(r) {
		return false
	}
	return q.node(r.Index).root == q.root
}

// insertAfter 把已分配的x接到at后面
func (q *Queue[T]) insertAfter(at, x int32) {
	an := q.node(at)
	xn := q.node(x)
	xn.next = an.next
	xn.prev = at
	xn.root = q.root
	q.node(an.next).prev = x
	an.next = x
	q.len++
}

func (q *Queue[T]) PushBack(v T) Ref {
	r := q.pool.Malloc() // 可能扩容，先分配再取指针
	q.node(r.Index).Value = v
	q.insertAfter(q.node(q.root).prev, r.Index)
	return r
}

func (q *Queue[T]) PushFront(v T) Ref {
	r := q.pool.Malloc()
	q.node(r.Index).Value = v
	q.insertAfter(q.root, r.Index)
	return r
}

func (q *Queue[T]) unlink(p int32) {
	n := q.node(p)
	q.node(n.prev).next = n.next
	q.node(n.next).prev = n.prev
	n.prev, n.next = Null, Null
	q.len--
}

// Remove 删除节点，引用无效或不属于本队列时返回false
func (q *Queue[T]) Remove(r Ref) bool {
	if !q.owned(r) {
		return false
	}
	q.unlink(r.Index)
	q.pool.Free(r)
	return true
}

// Value 返回节点值的指针，只在下一次PushBack/PushFront之前有效
func (q *Queue[T]) Value(r Ref) (*T, bool) {
	if !q.owned(r) {
		return nil, false
	}
	return &q.node(r.Index).Value, true
}

func (q *Queue[T]) Front() (Ref, bool) {
	if q.IsEmpty() {
		return Ref{}, false
	}
	return q.pool.refOf(q.node(q.root).next), true
}

func (q *Queue[T]) Back() (Ref, bool) {
	if q.IsEmpty() {
		return Ref{}, false
	}
	return q.pool.refOf(q.node(q.root).prev), true
}

func (q *Queue[T]) PopFront() (data T, ok bool) {
	r, ok := q.Front()
	if !ok {
		return
	}
	data = q.node(r.Index).Value
	q.Remove(r)
	return data, true
}

func (q *Queue[T]) IsEmpty() bool {
	return q.node(q.root).next == q.root
}

func (q *Queue[T]) Len() int {
	return q.len
}

// Clear 释放所有节点，哨兵保留
func (q *Queue[T]) Clear() {
	for !q.IsEmpty() {
		r, _ := q.Front()
		q.Remove(r)
	}
}

// Range 正向遍历，fn不能修改链表
func (q *Queue[T]) Range(fn func(Ref, *T) bool) {
	root := q.root
	for p := q.node(root).next; p != root; p = q.node(p).next {
		if !fn(q.pool.refOf(p), &q.node(p).Value) {
			break
		}
	}
}

// Backward 反向遍历，fn不能修改链表
func (q *Queue[T]) Backward(fn func(Ref, *T) bool) {
	root := q.root
	for p := q.node(root).prev; p != root; p = q.node(p).prev {
		if !fn(q.pool.refOf(p), &q.node(p).Value) {
			break
		}
	}
}

// SplitAt 从r开始(含r)到队尾的节点移到一个新队列，新队列与本队列共享对象池
// 移动部分需要逐个修改归属，复杂度O(k)
func (q *Queue[T]) SplitAt(r Ref) (*Queue[T], bool) {
	if !q.owned(r) {
		return nil, false
	}
	n := newQueueIn(q.pool)
	h := q.node(q.root)
	tail := h.prev
	first := r.Index
	before := q.node(first).prev

	moved := 0
	for p := first; ; p = q.node(p).next {
		q.node(p).root = n.root
		moved++
		if p == tail {
			break
		}
	}

	// 原队列收尾
	q.node(before).next = q.root
	q.node(q.root).prev = before
	// 新队列挂上 [first, tail]
	nr := q.node(n.root)
	nr.next = first
	nr.prev = tail
	q.node(first).prev = n.root
	q.node(tail).next = n.root

	q.len -= moved
	n.len = moved
	return n, true
}

// Append 把other的所有节点接到本队列尾部，other必须与本队列共享对象池，完成后other为空
func (q *Queue[T]) Append(other *Queue[T]) bool {
	if other == nil || other == q || other.pool != q.pool {
		return false
	}
	if other.IsEmpty() {
		return true
	}
	or := q.node(other.root)
	first, last := or.next, or.prev
	for p := first; p != other.root; p = q.node(p).next {
		q.node(p).root = q.root
	}
	tail := q.node(q.root).prev
	q.node(tail).next = first
	q.node(first).prev = tail
	q.node(last).next = q.root
	q.node(q.root).prev = last

	or.next = other.root
	or.prev = other.root
	q.len += other.len
	other.len = 0
	return true
}
