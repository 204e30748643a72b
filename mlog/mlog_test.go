package mlog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseDebugMask(t *testing.T) {
	m, err := ParseDebugMask("event, http")
	require.NoError(t, err)
	assert.Equal(t, DebugEvent|DebugHttp, m)
	assert.Equal(t, "event,http", m.String())

	m, err = ParseDebugMask("all")
	require.NoError(t, err)
	assert.Equal(t, DebugAll, m)

	m, err = ParseDebugMask("")
	require.NoError(t, err)
	assert.Equal(t, DebugMask(0), m)

	_, err = ParseDebugMask("event|bogus")
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, WarnLevel, ParseLevel("warning"))
	assert.Equal(t, InfoLevel, ParseLevel("whatever"))
	assert.Equal(t, "trace", TraceLevel.String())
}

func TestDebugMaskf(t *testing.T) {
	old := GetLogger()
	defer SetLogger(old)
	defer SetDebugMask(0)

	var buf bytes.Buffer
	UseWriterLogger(&buf, DebugLevel)

	SetDebugMask(DebugHttp)
	DebugMaskf(DebugEvent, "timer %d", 1)
	assert.Empty(t, buf.String())

	SetDebugMask(DebugEvent | DebugHttp)
	DebugMaskf(DebugEvent, "timer %d", 2)
	assert.Contains(t, buf.String(), "[debug] [event] timer 2")

	buf.Reset()
	UseWriterLogger(&buf, InfoLevel)
	DebugMaskf(DebugEvent, "timer %d", 3)
	Infof("hello %s", "x")
	assert.NotContains(t, buf.String(), "timer 3")
	assert.Contains(t, buf.String(), "[info] hello x")
}

func TestNilLogger(t *testing.T) {
	old := GetLogger()
	defer SetLogger(old)
	SetLogger(nil)
	assert.NotPanics(t, func() {
		Debugf("x")
		Infof("x")
		Errorf("x")
		DebugMaskf(DebugAll, "x")
	})
	assert.False(t, IsLevelEnabled(ErrorLevel))
}

func TestZapLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewZapLogger(zap.New(core), InfoLevel)
	l.Debugf("hidden %d", 1)
	l.Infof("shown %d", 2)
	l.Noticef("notice %d", 3)
	l.Warn("warn")
	require.Equal(t, 3, logs.Len())
	assert.Equal(t, "shown 2", logs.All()[0].Message)
	assert.Equal(t, "notice 3", logs.All()[1].Message)
}

func TestDefaultLogger(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	l, err := newDefaultLogger(dir, "test", InfoLevel, false)
	require.NoError(t, err)
	l.Start(ctx, &wg)
	l.Infof("line %d", 1)
	l.Debugf("line %d", 2)
	cancel()
	wg.Wait()

	data, err := os.ReadFile(filepath.Join(dir, "test.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "[info] line 1")
	assert.NotContains(t, string(data), "line 2")
}
