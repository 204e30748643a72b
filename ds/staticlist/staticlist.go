package staticlist

import "fmt"

// Ref 槽位引用，Gen用于识别槽位被释放后重新分配的情况
// 零值Ref永远无效
type Ref struct {
	Index int32
	Gen   uint32
}

func (r Ref) IsNil() bool {
	return r.Gen == 0
}

func (r Ref) String() string {
	return fmt.Sprintf("%d.%d", r.Index, r.Gen)
}

type Node[T any] struct {
	Data T
	next int32 // 空闲链表
	gen  uint32
	used bool
}

// StaticList 静态链表实现的对象池，按下标引用，容量不足时自动扩容
// 注意：Malloc可能扩容，之前通过Get拿到的指针随之失效，Ref不受影响
type StaticList[T any] struct {
	datas []Node[T]
	free  int32
	used  int
	zero  T // 零值
}

const Null int32 = -1

func NewStaticList[T any](size int) *StaticList[T] {
	if size < 0 {
		size = 0
	}
	list := &StaticList[T]{
		datas: make([]Node[T], size),
	}
	list.Reset()
	return list
}

// Malloc 分配一个槽位
func (list *StaticList[T]) Malloc() Ref {
	p := list.free
	if p == Null {
		list.datas = append(list.datas, Node[T]{next: Null})
		p = int32(len(list.datas) - 1)
	} else {
		list.free = list.datas[p].next
	}
	slot := &list.datas[p]
	slot.next = Null
	slot.used = true
	if slot.gen == 0 {
		slot.gen = 1
	}
	list.used++
	return Ref{Index: p, Gen: slot.gen}
}

// Free 释放槽位，代数加一，旧的Ref全部失效
func (list *StaticList[T]) Free(r Ref) bool {
	if !list.valid(r) {
		return false
	}
	slot := &list.datas[r.Index]
	slot.Data = list.zero
	slot.used = false
	slot.gen++
	if slot.gen == 0 {
		slot.gen = 1
	}
	slot.next = list.free
	list.free = r.Index
	list.used--
	return true
}

func (list *StaticList[T]) valid(r Ref) bool {
	if r.Gen == 0 || r.Index < 0 || int(r.Index) >= len(list.datas) {
		return false
	}
	slot := &list.datas[r.Index]
	return slot.used && slot.gen == r.Gen
}

// Valid 引用是否仍然指向已分配的槽位
func (list *StaticList[T]) Valid(r Ref) bool {
	return list.valid(r)
}

func (list *StaticList[T]) Get(r Ref) (*T, bool) {
	if !list.valid(r) {
		return nil, false
	}
	return &list.datas[r.Index].Data, true
}

// refOf 由下标构造当前代数的引用，调用方保证下标已分配
func (list *StaticList[T]) refOf(p int32) Ref {
	return Ref{Index: p, Gen: list.datas[p].gen}
}

// at 不做校验，仅供内部链表使用
func (list *StaticList[T]) at(p int32) *T {
	return &list.datas[p].Data
}

func (list *StaticList[T]) Len() int {
	return list.used
}

func (list *StaticList[T]) Cap() int {
	return len(list.datas)
}

// Reset 释放所有槽位，所有已发出的Ref失效
func (list *StaticList[T]) Reset() {
	size := len(list.datas)
	for i := 0; i < size; i++ {
		slot := &list.datas[i]
		if slot.used {
			slot.gen++
			if slot.gen == 0 {
				slot.gen = 1
			}
		}
		slot.Data = list.zero
		slot.used = false
		slot.next = int32(i + 1)
	}
	if size > 0 {
		list.datas[size-1].next = Null
		list.free = 0
	} else {
		list.free = Null
	}
	list.used = 0
}
