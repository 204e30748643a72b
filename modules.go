package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/fixkme/evloop/framework/config"
	"github.com/fixkme/evloop/gate"
	"github.com/fixkme/evloop/loop"
	"github.com/fixkme/evloop/metrics"
	"github.com/fixkme/evloop/mlog"
	"github.com/panjf2000/gnet/v2"
	"github.com/prometheus/client_golang/prometheus"
)

type loopModule struct {
	l    *loop.Loop
	quit chan struct{}
}

func newLoopModule(l *loop.Loop) *loopModule {
	return &loopModule{l: l, quit: make(chan struct{})}
}

func (m *loopModule) OnInit() error { return nil }
func (m *loopModule) Run()          { m.l.Run(m.quit) }
func (m *loopModule) Destroy()      { close(m.quit) }
func (m *loopModule) Name() string  { return "loop" }

type gateModule struct {
	s *gate.Server
}

func newGateModule(l *loop.Loop, conf *config.AppConfig) *gateModule {
	opt := &gate.ServerOptions{
		Options:     gnet.Options{Multicore: conf.Gate.Multicore, ReusePort: true},
		Addr:        conf.Gate.Addr,
		IdleTimeout: conf.IdleTimeout(),
	}
	return &gateModule{s: gate.NewServer(opt, l)}
}

func (m *gateModule) OnInit() error { return nil }

func (m *gateModule) Run() {
	if err := m.s.Run(); err != nil {
		mlog.Errorf("gate exited: %v", err)
	}
}

func (m *gateModule) Destroy() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.s.Stop(ctx); err != nil {
		mlog.Errorf("gate stop: %v", err)
	}
}

func (m *gateModule) Name() string { return "gate" }

type metricsModule struct {
	srv *http.Server
}

func newMetricsModule(addr string, reg *prometheus.Registry) *metricsModule {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	return &metricsModule{srv: &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}}
}

func (m *metricsModule) OnInit() error { return nil }

func (m *metricsModule) Run() {
	mlog.Infof("metrics listening on %s", m.srv.Addr)
	if err := m.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		mlog.Errorf("metrics server: %v", err)
	}
}

func (m *metricsModule) Destroy() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m.srv.Shutdown(ctx)
}

func (m *metricsModule) Name() string { return "metrics" }
