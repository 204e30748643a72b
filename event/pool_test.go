package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool(t *testing.T) {
	p := NewPool(1)
	var fired []string
	h1 := p.New("read", func(ev *Event) { fired = append(fired, ev.Name) }, 42)
	h2 := p.New("write", nil, nil)
	require.Equal(t, 2, p.Len())

	ev, ok := p.Get(h1)
	require.True(t, ok)
	assert.Equal(t, h1, ev.Handle())
	assert.Equal(t, 42, ev.Data)
	assert.False(t, ev.TimerSet())
	assert.False(t, ev.Posted())
	ev.Handler(ev)
	assert.Equal(t, []string{"read"}, fired)

	require.True(t, p.Free(h1))
	assert.False(t, p.Free(h1))
	_, ok = p.Get(h1)
	assert.False(t, ok)

	// 复用槽位
	h3 := p.New("accept", nil, nil)
	assert.Equal(t, h1.Index, h3.Index)
	assert.NotEqual(t, h1, h3)
	_, ok = p.Get(h1)
	assert.False(t, ok)
	ev3, ok := p.Get(h3)
	require.True(t, ok)
	assert.Equal(t, "accept", ev3.Name)

	_, ok = p.Get(Handle{})
	assert.False(t, ok)
	assert.True(t, Handle{}.IsNil())
	assert.Equal(t, "ev#1.1", h2.String())
}
