package app

import (
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/mlog"
)

// 节点全局状态
const (
	AppStateNone = iota // 未开始或已停止
	AppStateInit        // 正在初始化中
	AppStateRun         // 正在运行中
	AppStateStop        // 正在停止中
)

// 单例
var defaultApp = New()

type Module interface {
	OnInit() error // 初始化
	Destroy()      // 销毁，需要让Run返回
	Run()          // 启动，阻塞直到Destroy
	Name() string  // 名字
}

// DefaultApp 默认单例
func DefaultApp() *App {
	return defaultApp
}

// App 中的 modules 在初始化之后不能变更
type App struct {
	mods  []Module
	state atomic.Int32
	sig   chan os.Signal
	wg    sync.WaitGroup
}

func New() *App {
	return &App{sig: make(chan os.Signal, 1)}
}

func (app *App) GetState() int32 {
	return app.state.Load()
}

// start 按顺序初始化，任何一个失败时销毁已经初始化的模块
func (app *App) start(mods ...Module) error {
	if !app.state.CompareAndSwap(AppStateNone, AppStateInit) {
		return errs.Unknown.Print("app cannot start twice")
	}
	mlog.Info("app starting up")
	for i, m := range mods {
		if err := m.OnInit(); err != nil {
			mlog.Errorf("module %s init error %v", m.Name(), err)
			for j := i - 1; j >= 0; j-- {
				destroy(mods[j])
			}
			app.state.Store(AppStateNone)
			return err
		}
	}
	app.mods = mods
	for _, m := range app.mods {
		app.wg.Add(1)
		go run(m, &app.wg)
	}
	app.state.Store(AppStateRun)
	mlog.Info("app started")
	return nil
}

func (app *App) stop() {
	if !app.state.CompareAndSwap(AppStateRun, AppStateStop) {
		return
	}
	mlog.Info("app stop begin")
	// 先进后出
	for i := len(app.mods) - 1; i >= 0; i-- {
		m := app.mods[i]
		mlog.Infof("app stop module %s", m.Name())
		destroy(m)
	}
	app.wg.Wait()
	app.mods = nil
	app.state.Store(AppStateNone)
	mlog.Info("app stoped")
}

func run(m Module, wg *sync.WaitGroup) {
	defer wg.Done()
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module run panic: %v\n%s", m.Name(), r, debug.Stack())
		}
	}()
	m.Run()
}

func destroy(m Module) {
	defer func() {
		if r := recover(); r != nil {
			mlog.Errorf("%s module destroy panic: %v\n%s", m.Name(), r, debug.Stack())
		}
	}()
	m.Destroy()
}

// Run 启动模块并阻塞到收到退出信号，SIGHUP忽略
func (app *App) Run(mods ...Module) error {
	if err := app.start(mods...); err != nil {
		return err
	}
	signal.Notify(app.sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(app.sig)
	for {
		sig := <-app.sig
		mlog.Infof("server closing down (signal: %v)", sig)
		if sig != syscall.SIGHUP {
			break
		}
	}
	app.stop()
	return nil
}

func (app *App) Stop() {
	select {
	case app.sig <- syscall.SIGTERM:
	default:
	}
}
