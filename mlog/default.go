package mlog

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	defaultMaxSizeMB  = 100 // 单个文件上限 MB
	defaultMaxBackups = 10
	defaultMaxAgeDays = 7
)

type loggerImp struct {
	path   string
	file   *lumberjack.Logger
	ll     *log.Logger
	buff   chan string
	level  Level
	stdOut bool
}

func newDefaultLogger(logpath, logName string, level Level, stdOut bool) (*loggerImp, error) {
	// 默认使用当前路径
	if len(logpath) == 0 {
		logpath = "."
	}
	if err := os.MkdirAll(logpath, 0755); err != nil {
		return nil, err
	}
	// 滚动交给lumberjack
	logfile := &lumberjack.Logger{
		Filename:   filepath.Join(logpath, genLogName(logName)),
		MaxSize:    defaultMaxSizeMB,
		MaxBackups: defaultMaxBackups,
		MaxAge:     defaultMaxAgeDays,
		LocalTime:  true,
	}
	fileLogger := log.New(logfile, "", log.Ldate|log.Lmicroseconds)
	if stdOut {
		log.SetFlags(log.Ldate | log.Lmicroseconds)
	}
	mlog := &loggerImp{
		path:   logpath,
		ll:     fileLogger,
		file:   logfile,
		buff:   make(chan string, 0x10000),
		level:  level,
		stdOut: stdOut,
	}
	return mlog, nil
}

func (me *loggerImp) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("log recover error %v\n", r)
			}
			me.file.Close()
			wg.Done()
		}()

		for {
			select {
			case <-ctx.Done():
				// 退出前写完缓冲
				for {
					select {
					case str := <-me.buff:
						me.write(str)
					default:
						return
					}
				}
			case str := <-me.buff:
				me.write(str)
			}
		}
	}()
}

func (me *loggerImp) write(str string) {
	if me.stdOut {
		log.Println(str)
	}
	me.ll.Println(str)
}

func (me *loggerImp) output(level Level, s string) {
	select {
	case me.buff <- getLevelTag(level) + s:
	default:
		// 缓冲满了直接丢弃，不阻塞事件循环
	}
}

func (me *loggerImp) Trace(args ...interface{}) {
	if me.IsLevelEnabled(TraceLevel) {
		me.output(TraceLevel, fmt.Sprint(args...))
	}
}

func (me *loggerImp) Tracef(format string, args ...interface{}) {
	if me.IsLevelEnabled(TraceLevel) {
		me.output(TraceLevel, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Debug(args ...interface{}) {
	if me.IsLevelEnabled(DebugLevel) {
		me.output(DebugLevel, fmt.Sprint(args...))
	}
}

func (me *loggerImp) Debugf(format string, args ...interface{}) {
	if me.IsLevelEnabled(DebugLevel) {
		me.output(DebugLevel, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Info(args ...interface{}) {
	if me.IsLevelEnabled(InfoLevel) {
		me.output(InfoLevel, fmt.Sprint(args...))
	}
}

func (me *loggerImp) Infof(format string, args ...interface{}) {
	if me.IsLevelEnabled(InfoLevel) {
		me.output(InfoLevel, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Notice(args ...interface{}) {
	if me.IsLevelEnabled(NoticeLevel) {
		me.output(NoticeLevel, fmt.Sprint(args...))
	}
}

func (me *loggerImp) Noticef(format string, args ...interface{}) {
	if me.IsLevelEnabled(NoticeLevel) {
		me.output(NoticeLevel, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Warn(args ...interface{}) {
	if me.IsLevelEnabled(WarnLevel) {
		me.output(WarnLevel, fmt.Sprint(args...))
	}
}

func (me *loggerImp) Warnf(format string, args ...interface{}) {
	if me.IsLevelEnabled(WarnLevel) {
		me.output(WarnLevel, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Error(args ...interface{}) {
	if me.IsLevelEnabled(ErrorLevel) {
		me.output(ErrorLevel, fmt.Sprint(args...))
	}
}

func (me *loggerImp) Errorf(format string, args ...interface{}) {
	if me.IsLevelEnabled(ErrorLevel) {
		me.output(ErrorLevel, fmt.Sprintf(format, args...))
	}
}

func (me *loggerImp) Fatal(args ...interface{}) {
	if me.IsLevelEnabled(FatalLevel) {
		me.output(FatalLevel, fmt.Sprint(args...))
		time.Sleep(time.Second)
		os.Exit(1)
	}
}

func (me *loggerImp) Fatalf(format string, args ...interface{}) {
	if me.IsLevelEnabled(FatalLevel) {
		me.output(FatalLevel, fmt.Sprintf(format, args...))
		time.Sleep(time.Second)
		os.Exit(1)
	}
}

func (me *loggerImp) IsLevelEnabled(level Level) bool {
	return me.level >= level
}

func getLevelTag(level Level) string {
	if s := level.String(); s != "" {
		return "[" + s + "] "
	}
	return ""
}

func genLogName(logName string) string {
	if logName == "" {
		logName = "evloop"
	}
	return logName + ".log"
}
