package mlog

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// DebugMask debug日志按子系统开关
type DebugMask uint32

const (
	DebugCore DebugMask = 1 << iota
	DebugAlloc
	DebugMutex
	DebugEvent
	DebugHttp
	DebugMail
	DebugStream

	DebugAll = DebugCore | DebugAlloc | DebugMutex | DebugEvent | DebugHttp | DebugMail | DebugStream
)

var maskNames = []struct {
	mask DebugMask
	name string
}{
	{DebugCore, "core"},
	{DebugAlloc, "alloc"},
	{DebugMutex, "mutex"},
	{DebugEvent, "event"},
	{DebugHttp, "http"},
	{DebugMail, "mail"},
	{DebugStream, "stream"},
}

var debugMask atomic.Uint32

func SetDebugMask(m DebugMask) {
	debugMask.Store(uint32(m))
}

func GetDebugMask() DebugMask {
	return DebugMask(debugMask.Load())
}

// ParseDebugMask 解析 "event,http" 这样的配置，"all"表示全部
func ParseDebugMask(s string) (DebugMask, error) {
	var m DebugMask
	for _, f := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ' ' }) {
		f = strings.ToLower(f)
		if f == "all" {
			m |= DebugAll
			continue
		}
		found := false
		for _, mn := range maskNames {
			if mn.name == f {
				m |= mn.mask
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("unknown debug mask %q", f)
		}
	}
	return m, nil
}

func (m DebugMask) String() string {
	var names []string
	for _, mn := range maskNames {
		if m&mn.mask != 0 {
			names = append(names, mn.name)
		}
	}
	return strings.Join(names, ",")
}

// DebugMaskEnabled debug级别打开并且mask对应的位打开
func DebugMaskEnabled(m DebugMask) bool {
	return GetDebugMask()&m != 0 && IsLevelEnabled(DebugLevel)
}

func DebugMaskf(m DebugMask, format string, a ...any) {
	if !DebugMaskEnabled(m) {
		return
	}
	logger.Debugf("["+m.String()+"] "+format, a...)
}
