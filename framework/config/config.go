package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fixkme/evloop/errs"
	"github.com/fixkme/evloop/loop"
	"github.com/fixkme/evloop/mlog"
	"github.com/fixkme/evloop/timer"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var Config *AppConfig

// 环境变量前缀，例如 EVLOOP_LOOP_LAZY_DELAY_MS
const EnvPrefix = "EVLOOP_"

type AppConfig struct {
	Loop    LoopConfig    `json:"loop" yaml:"loop"`
	Log     LogConfig     `json:"log" yaml:"log"`
	Gate    GateConfig    `json:"gate" yaml:"gate"`
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`
}

type LoopConfig struct {
	LazyDelayMs   int64 `json:"lazy_delay_ms" yaml:"lazy_delay_ms"`     //定时器合并阈值 毫秒，0表示不合并
	TaskQueueSize int   `json:"task_queue_size" yaml:"task_queue_size"` //跨协程任务队列长度
	MaxWaitMs     int64 `json:"max_wait_ms" yaml:"max_wait_ms"`         //没有定时器时最长等待 毫秒
	AsyncPoolSize int   `json:"async_pool_size" yaml:"async_pool_size"` //后台任务协程数
	AsyncPollMs   int64 `json:"async_poll_ms" yaml:"async_poll_ms"`     //后台任务完成检查间隔 毫秒
}

type LogConfig struct {
	Path      string `json:"path" yaml:"path"`
	Name      string `json:"name" yaml:"name"`
	Level     string `json:"level" yaml:"level"`
	StdOut    bool   `json:"std_out" yaml:"std_out"`
	Backend   string `json:"backend" yaml:"backend"`       //std, file, zap
	DebugMask string `json:"debug_mask" yaml:"debug_mask"` //逗号分隔，例如 event,alloc
}

type GateConfig struct {
	Addr          string `json:"addr" yaml:"addr"`                       //为空不启动
	IdleTimeoutMs int64  `json:"idle_timeout_ms" yaml:"idle_timeout_ms"` //连接空闲超时 毫秒
	Multicore     bool   `json:"multicore" yaml:"multicore"`
}

type MetricsConfig struct {
	ListenAddr string `json:"listen_addr" yaml:"listen_addr"` //为空不启动
}

func Default() *AppConfig {
	return &AppConfig{
		Loop: LoopConfig{
			LazyDelayMs:   timer.DefaultLazyDelay,
			TaskQueueSize: loop.DefaultTaskQueueSize,
			MaxWaitMs:     loop.DefaultMaxWait.Milliseconds(),
			AsyncPoolSize: loop.DefaultAsyncPoolSize,
			AsyncPollMs:   loop.DefaultAsyncPollInterval.Milliseconds(),
		},
		Log: LogConfig{
			Path:    "./logs",
			Name:    "evloop",
			Level:   "info",
			Backend: "std",
		},
		Gate: GateConfig{
			IdleTimeoutMs: 60_000,
		},
	}
}

// LoadConfig 依次加载默认值、yaml文件、.env文件、环境变量，后面的覆盖前面的
// configFile 和 envFile 为空时跳过
func LoadConfig(configFile, envFile string) error {
	conf := Default()
	if len(configFile) != 0 {
		if err := conf.loadFile(configFile); err != nil {
			return err
		}
	}
	if len(envFile) != 0 {
		// godotenv 不覆盖已存在的环境变量
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return errs.BadConfig.Printf("load env file %s: %v", envFile, err)
		}
	}
	if err := conf.LoadEnv(os.LookupEnv); err != nil {
		return err
	}
	if err := conf.Validate(); err != nil {
		return err
	}
	Config = conf
	return nil
}

func (conf *AppConfig) loadFile(configFile string) error {
	data, err := os.ReadFile(configFile)
	if err != nil {
		return errs.BadConfig.Printf("read %s: %v", configFile, err)
	}
	if err = yaml.Unmarshal(data, conf); err != nil {
		return errs.BadConfig.Printf("parse %s: %v", configFile, err)
	}
	return nil
}

type envBinding struct {
	key string
	set func(string) error
}

func intVar(p *int) func(string) error {
	return func(s string) error {
		v, err := strconv.Atoi(s)
		if err == nil {
			*p = v
		}
		return err
	}
}

func int64Var(p *int64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseInt(s, 10, 64)
		if err == nil {
			*p = v
		}
		return err
	}
}

func boolVar(p *bool) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseBool(s)
		if err == nil {
			*p = v
		}
		return err
	}
}

func stringVar(p *string) func(string) error {
	return func(s string) error {
		*p = s
		return nil
	}
}

func (conf *AppConfig) bindings() []envBinding {
	return []envBinding{
		{"LOOP_LAZY_DELAY_MS", int64Var(&conf.Loop.LazyDelayMs)},
		{"LOOP_TASK_QUEUE_SIZE", intVar(&conf.Loop.TaskQueueSize)},
		{"LOOP_MAX_WAIT_MS", int64Var(&conf.Loop.MaxWaitMs)},
		{"LOOP_ASYNC_POOL_SIZE", intVar(&conf.Loop.AsyncPoolSize)},
		{"LOOP_ASYNC_POLL_MS", int64Var(&conf.Loop.AsyncPollMs)},
		{"LOG_PATH", stringVar(&conf.Log.Path)},
		{"LOG_NAME", stringVar(&conf.Log.Name)},
		{"LOG_LEVEL", stringVar(&conf.Log.Level)},
		{"LOG_STD_OUT", boolVar(&conf.Log.StdOut)},
		{"LOG_BACKEND", stringVar(&conf.Log.Backend)},
		{"LOG_DEBUG_MASK", stringVar(&conf.Log.DebugMask)},
		{"GATE_ADDR", stringVar(&conf.Gate.Addr)},
		{"GATE_IDLE_TIMEOUT_MS", int64Var(&conf.Gate.IdleTimeoutMs)},
		{"GATE_MULTICORE", boolVar(&conf.Gate.Multicore)},
		{"METRICS_LISTEN_ADDR", stringVar(&conf.Metrics.ListenAddr)},
	}
}

// LoadEnv 用 EVLOOP_ 前缀的变量覆盖配置，lookup 一般是 os.LookupEnv
func (conf *AppConfig) LoadEnv(lookup func(string) (string, bool)) error {
	for _, b := range conf.bindings() {
		s, ok := lookup(EnvPrefix + b.key)
		if !ok {
			continue
		}
		if err := b.set(strings.TrimSpace(s)); err != nil {
			return errs.BadConfig.Printf("env %s%s=%q: %v", EnvPrefix, b.key, s, err)
		}
	}
	return nil
}

func (conf *AppConfig) Validate() error {
	switch {
	case conf.Loop.LazyDelayMs < 0:
		return errs.BadConfig.Print("loop.lazy_delay_ms must not be negative")
	case conf.Loop.TaskQueueSize <= 0:
		return errs.BadConfig.Print("loop.task_queue_size must be positive")
	case conf.Loop.MaxWaitMs <= 0:
		return errs.BadConfig.Print("loop.max_wait_ms must be positive")
	case conf.Loop.AsyncPoolSize <= 0:
		return errs.BadConfig.Print("loop.async_pool_size must be positive")
	case conf.Loop.AsyncPollMs <= 0:
		return errs.BadConfig.Print("loop.async_poll_ms must be positive")
	case conf.Gate.Addr != "" && conf.Gate.IdleTimeoutMs <= 0:
		return errs.BadConfig.Print("gate.idle_timeout_ms must be positive")
	}
	switch conf.Log.Backend {
	case "", "std", "file", "zap":
	default:
		return errs.BadConfig.Printf("unknown log.backend %q", conf.Log.Backend)
	}
	if _, err := mlog.ParseDebugMask(conf.Log.DebugMask); err != nil {
		return errs.BadConfig.Printf("log.debug_mask: %v", err)
	}
	return nil
}

func (conf *AppConfig) LoopOptions(name string) loop.Options {
	return loop.Options{
		Name:              name,
		LazyDelay:         time.Duration(conf.Loop.LazyDelayMs) * time.Millisecond,
		TaskQueueSize:     conf.Loop.TaskQueueSize,
		MaxWait:           time.Duration(conf.Loop.MaxWaitMs) * time.Millisecond,
		AsyncPoolSize:     conf.Loop.AsyncPoolSize,
		AsyncPollInterval: time.Duration(conf.Loop.AsyncPollMs) * time.Millisecond,
	}
}

func (conf *AppConfig) IdleTimeout() time.Duration {
	return time.Duration(conf.Gate.IdleTimeoutMs) * time.Millisecond
}

func (conf *AppConfig) JsonFormat() string {
	if conf == nil {
		return "{}"
	}
	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return fmt.Sprintf("<%v>", err)
	}
	return string(data)
}
