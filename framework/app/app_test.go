package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModule struct {
	name    string
	initErr error
	log     *[]string
	mu      *sync.Mutex
	quit    chan struct{}
}

func newFake(name string, log *[]string, mu *sync.Mutex) *fakeModule {
	return &fakeModule{name: name, log: log, mu: mu, quit: make(chan struct{})}
}

func (m *fakeModule) record(s string) {
	m.mu.Lock()
	*m.log = append(*m.log, s)
	m.mu.Unlock()
}

func (m *fakeModule) OnInit() error {
	m.record("init " + m.name)
	return m.initErr
}

func (m *fakeModule) Run() {
	<-m.quit
}

func (m *fakeModule) Destroy() {
	m.record("destroy " + m.name)
	close(m.quit)
}

func (m *fakeModule) Name() string { return m.name }

func TestRunStop(t *testing.T) {
	var log []string
	var mu sync.Mutex
	a, b := newFake("a", &log, &mu), newFake("b", &log, &mu)
	app := New()
	done := make(chan error, 1)
	go func() { done <- app.Run(a, b) }()

	require.Eventually(t, func() bool { return app.GetState() == AppStateRun }, time.Second, time.Millisecond)
	app.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("app did not stop")
	}
	assert.Equal(t, []string{"init a", "init b", "destroy b", "destroy a"}, log)
	assert.EqualValues(t, AppStateNone, app.GetState())
}

func TestInitFailure(t *testing.T) {
	var log []string
	var mu sync.Mutex
	a, b := newFake("a", &log, &mu), newFake("b", &log, &mu)
	b.initErr = errors.New("listen failed")
	app := New()
	err := app.Run(a, b)
	assert.Same(t, b.initErr, err)
	assert.Equal(t, []string{"init a", "init b", "destroy a"}, log)
	assert.EqualValues(t, AppStateNone, app.GetState())
}
