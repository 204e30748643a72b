package mlog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// zapLogger zap没有trace和notice，分别降到debug和info
type zapLogger struct {
	level Level
	sl    *zap.SugaredLogger
}

// UseZapLogger 使用zap输出，json或console由调用方构造zap.Logger决定
func UseZapLogger(zl *zap.Logger, level Level) {
	SetLogger(NewZapLogger(zl, level))
}

func NewZapLogger(zl *zap.Logger, level Level) Logger {
	return &zapLogger{level: level, sl: zl.WithOptions(zap.AddCallerSkip(2)).Sugar()}
}

// NewZapProduction json格式输出到stderr
func NewZapProduction(level Level) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapLevel(level))
	return cfg.Build()
}

func zapLevel(level Level) zapcore.Level {
	switch level {
	case FatalLevel:
		return zapcore.FatalLevel
	case ErrorLevel:
		return zapcore.ErrorLevel
	case WarnLevel:
		return zapcore.WarnLevel
	case NoticeLevel, InfoLevel:
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

func (l *zapLogger) IsLevelEnabled(level Level) bool {
	return l.level >= level
}

func (l *zapLogger) Trace(v ...any) {
	if l.IsLevelEnabled(TraceLevel) {
		l.sl.Debug(v...)
	}
}

func (l *zapLogger) Tracef(format string, v ...any) {
	if l.IsLevelEnabled(TraceLevel) {
		l.sl.Debugf(format, v...)
	}
}

func (l *zapLogger) Debug(v ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		l.sl.Debug(v...)
	}
}

func (l *zapLogger) Debugf(format string, v ...any) {
	if l.IsLevelEnabled(DebugLevel) {
		l.sl.Debugf(format, v...)
	}
}

func (l *zapLogger) Info(v ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		l.sl.Info(v...)
	}
}

func (l *zapLogger) Infof(format string, v ...any) {
	if l.IsLevelEnabled(InfoLevel) {
		l.sl.Infof(format, v...)
	}
}

func (l *zapLogger) Notice(v ...any) {
	if l.IsLevelEnabled(NoticeLevel) {
		l.sl.Info(v...)
	}
}

func (l *zapLogger) Noticef(format string, v ...any) {
	if l.IsLevelEnabled(NoticeLevel) {
		l.sl.Infof(format, v...)
	}
}

func (l *zapLogger) Warn(v ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		l.sl.Warn(v...)
	}
}

func (l *zapLogger) Warnf(format string, v ...any) {
	if l.IsLevelEnabled(WarnLevel) {
		l.sl.Warnf(format, v...)
	}
}

func (l *zapLogger) Error(v ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		l.sl.Error(v...)
	}
}

func (l *zapLogger) Errorf(format string, v ...any) {
	if l.IsLevelEnabled(ErrorLevel) {
		l.sl.Errorf(format, v...)
	}
}

func (l *zapLogger) Fatal(v ...any) {
	l.sl.Fatal(v...)
}

func (l *zapLogger) Fatalf(format string, v ...any) {
	l.sl.Fatalf(format, v...)
}
