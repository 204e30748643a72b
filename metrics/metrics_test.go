package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/fixkme/evloop/loop"
	"github.com/fixkme/evloop/posted"
	"github.com/fixkme/evloop/timer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource loop.Stats

func (f *fakeSource) Stats() loop.Stats {
	return loop.Stats(*f)
}

func TestCollector(t *testing.T) {
	a := &fakeSource{ID: "a1", Name: "main",
		Timers: timer.Stats{Armed: 7, Coalesced: 3, Pending: 2},
		Posted: posted.Stats{Posted: 5, Pending: 1},
		Events: 4,
	}
	c := NewCollector("evloop", a)

	expected := `
# HELP evloop_timer_coalesced_total Timer re-arms absorbed by the lazy delay.
# TYPE evloop_timer_coalesced_total counter
evloop_timer_coalesced_total{loop_id="a1",loop_name="main"} 3
# HELP evloop_timer_pending Timers currently armed.
# TYPE evloop_timer_pending gauge
evloop_timer_pending{loop_id="a1",loop_name="main"} 2
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"evloop_timer_coalesced_total", "evloop_timer_pending"))

	c.Add(&fakeSource{ID: "b2", Name: "worker"})
	assert.Equal(t, 2, testutil.CollectAndCount(c, "evloop_posted_pending"))
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	l, err := loop.New(loop.DefaultOptions())
	require.NoError(t, err)
	reg.MustRegister(NewCollector("evloop", l))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `evloop_loop_events{loop_id="`+l.ID()+`"`)
}
