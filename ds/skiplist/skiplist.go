package skiplist

import (
	"math/rand"
	"time"
)

const (
	maxLevel  = 32   // 跳跃表最大层数
	skipListP = 0.25 // 随机概率
)

// ElemType 元素需要能够比较大小，Compare返回0视为同一个元素
type ElemType[T any] interface {
	Compare(T) int
}

func randomLevel(r *rand.Rand) int {
	level := 1
	for r.Float32() < skipListP && level < maxLevel {
		level++
	}
	return level
}

type Node[T ElemType[T]] struct {
	Data T
	next []*Node[T]
}

// SkipList 有序集合，按Compare升序
type SkipList[T ElemType[T]] struct {
	header *Node[T]
	level  int
	length int
	rand   *rand.Rand
}

func NewSkipList[T ElemType[T]]() *SkipList[T] {
	return &SkipList[T]{
		header: &Node[T]{next: make([]*Node[T], maxLevel)},
		level:  1,
		length: 0,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// 查找每一层中最后一个小于data的节点
func (sl *SkipList[T]) findUpdate(data T, update *[maxLevel]*Node[T]) *Node[T] {
	x := sl.header
	for i := sl.level - 1; i >= 0; i-- {
		for x.next[i] != nil && x.next[i].Data.Compare(data) < 0 {
			x = x.next[i]
		}
		update[i] = x
	}
	return x
}

// Insert 插入新的元素
// 这里假设data不在表中，由上层保证data不重复
func (sl *SkipList[T]) Insert(data T) {
	var update [maxLevel]*Node[T]
	sl.findUpdate(data, &update)

	level := randomLevel(sl.rand)
	if level > sl.level {
		for i := sl.level; i < level; i++ {
			update[i] = sl.header
		}
		sl.level = level
	}
	x := &Node[T]{Data: data, next: make([]*Node[T], level)}
	for i := 0; i < level; i++ {
		x.next[i] = update[i].next[i]
		update[i].next[i] = x
	}
	sl.length++
}

func (sl *SkipList[T]) deleteNode(x *Node[T], update *[maxLevel]*Node[T]) {
	for i := 0; i < sl.level; i++ {
		if update[i].next[i] == x {
			update[i].next[i] = x.next[i]
		}
	}
	for sl.level > 1 && sl.header.next[sl.level-1] == nil {
		sl.level--
	}
	sl.length--
}

func (sl *SkipList[T]) Remove(data T) bool {
	var update [maxLevel]*Node[T]
	x := sl.findUpdate(data, &update).next[0]
	if x != nil && x.Data.Compare(data) == 0 {
		sl.deleteNode(x, &update)
		return true
	}
	return false /* not found */
}

func (sl *SkipList[T]) Contains(data T) bool {
	var update [maxLevel]*Node[T]
	x := sl.findUpdate(data, &update).next[0]
	return x != nil && x.Data.Compare(data) == 0
}

// First 最小元素
func (sl *SkipList[T]) First() (T, bool) {
	x := sl.header.next[0]
	if x == nil {
		return *new(T), false
	}
	return x.Data, true
}

// PopFirst 删除并返回最小元素
func (sl *SkipList[T]) PopFirst() (T, bool) {
	x := sl.header.next[0]
	if x == nil {
		return *new(T), false
	}
	// 第一个节点在每一层的前驱都是header
	for i := 0; i < len(x.next); i++ {
		sl.header.next[i] = x.next[i]
	}
	for sl.level > 1 && sl.header.next[sl.level-1] == nil {
		sl.level--
	}
	sl.length--
	return x.Data, true
}

// Foreach 升序遍历，f不能修改跳表
func (sl *SkipList[T]) Foreach(f func(T) bool) {
	for x := sl.header.next[0]; x != nil; x = x.next[0] {
		if !f(x.Data) {
			break
		}
	}
}

func (sl *SkipList[T]) Clear() {
	for i := 0; i < maxLevel; i++ {
		sl.header.next[i] = nil
	}
	sl.level = 1
	sl.length = 0
}

func (sl *SkipList[T]) Len() int {
	return sl.length
}
