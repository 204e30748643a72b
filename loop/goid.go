package loop

import (
	"runtime"
	"strconv"
	"strings"
)

// goroutineID 从调用栈第一行 "goroutine 18 [running]:" 解析
func goroutineID() int64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	idField := strings.Fields(strings.TrimPrefix(string(buf[:n]), "goroutine "))[0]
	id, _ := strconv.ParseInt(idField, 10, 64)
	return id
}
