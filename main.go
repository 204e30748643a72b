package main

import (
	"context"
	"flag"
	"log"
	"sync"

	"github.com/fixkme/evloop/framework/app"
	"github.com/fixkme/evloop/framework/config"
	"github.com/fixkme/evloop/loop"
	"github.com/fixkme/evloop/metrics"
	"github.com/fixkme/evloop/mlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	configFile := flag.String("config", "", "yaml config file")
	envFile := flag.String("env", ".env", "dotenv file, skipped when missing")
	flag.Parse()

	if err := config.LoadConfig(*configFile, *envFile); err != nil {
		log.Fatalf("load config: %v", err)
	}
	conf := config.Config

	ctx, cancel := context.WithCancel(context.Background())
	wg := &sync.WaitGroup{}
	if err := setupLogger(ctx, wg, &conf.Log); err != nil {
		log.Fatalf("setup logger: %v", err)
	}
	mlog.Infof("config: %s", conf.JsonFormat())

	l, err := loop.New(conf.LoopOptions("main"))
	if err != nil {
		log.Fatalf("create loop: %v", err)
	}

	mods := []app.Module{newLoopModule(l)}
	if conf.Gate.Addr != "" {
		mods = append(mods, newGateModule(l, conf))
	}
	if conf.Metrics.ListenAddr != "" {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), metrics.NewCollector("evloop", l))
		mods = append(mods, newMetricsModule(conf.Metrics.ListenAddr, reg))
	}
	if err = app.DefaultApp().Run(mods...); err != nil {
		mlog.Errorf("app run: %v", err)
	}

	cancel()
	wg.Wait()
}

func setupLogger(ctx context.Context, wg *sync.WaitGroup, lc *config.LogConfig) error {
	level := mlog.ParseLevel(lc.Level)
	mask, err := mlog.ParseDebugMask(lc.DebugMask)
	if err != nil {
		return err
	}
	mlog.SetDebugMask(mask)
	switch lc.Backend {
	case "file":
		return mlog.UseDefaultLogger(ctx, wg, lc.Path, lc.Name, level, lc.StdOut)
	case "zap":
		zl, err := mlog.NewZapProduction(level)
		if err != nil {
			return err
		}
		mlog.UseZapLogger(zl, level)
		go func() {
			<-ctx.Done()
			zl.Sync()
		}()
		return nil
	default:
		return mlog.UseStdLogger(level)
	}
}
