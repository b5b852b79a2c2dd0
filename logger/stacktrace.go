package logger

import (
	"fmt"
	"runtime"
	"strings"
)

// CaptureStacktrace 捕获调用栈
// skip 跳过的栈帧数，depth 最大深度（<=0 时 32 层）
func CaptureStacktrace(skip int, depth int) string {
	if depth <= 0 {
		depth = 32
	}

	pcs := make([]uintptr, depth)
	n := runtime.Callers(skip, pcs)
	if n == 0 {
		return ""
	}

	frames := runtime.CallersFrames(pcs[:n])
	lines := make([]string, 0, n)
	for {
		frame, more := frames.Next()
		lines = append(lines, fmt.Sprintf("%s\n\t%s:%d", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}
	return strings.Join(lines, "\n")
}

// shouldCaptureStacktrace level 是否达到配置的堆栈阈值
func shouldCaptureStacktrace(level string, cfg ManagerConfig) bool {
	if !cfg.EnableStacktrace {
		return false
	}
	return ParseLevel(level) >= ParseLevel(cfg.StacktraceLevel)
}
