package event

import (
	"github.com/fixkme/evloop/ds/staticlist"
)

// Pool 事件对象池，事件的生命周期由池管理，定时器和投递队列只持有Handle
type Pool struct {
	list *staticlist.StaticList[*Event]
}

func NewPool(size int) *Pool {
	return &Pool{list: staticlist.NewStaticList[*Event](size)}
}

func (p *Pool) New(name string, handler Handler, data any) Handle {
	r := p.list.Malloc()
	slot, _ := p.list.Get(r)
	*slot = &Event{
		Name:    name,
		Handler: handler,
		Data:    data,
		handle:  Handle(r),
	}
	return Handle(r)
}

// Get 校验代数，已释放的Handle返回false
func (p *Pool) Get(h Handle) (*Event, bool) {
	slot, ok := p.list.Get(staticlist.Ref(h))
	if !ok {
		return nil, false
	}
	return *slot, true
}

// Free 只释放对象，调用方负责先删除定时器和投递
func (p *Pool) Free(h Handle) bool {
	ev, ok := p.Get(h)
	if !ok {
		return false
	}
	ev.handle = Handle{}
	return p.list.Free(staticlist.Ref(h))
}

func (p *Pool) Len() int {
	return p.list.Len()
}
