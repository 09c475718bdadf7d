package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// callerHook reports the first frame outside the logging packages as the
// caller, so lines logged through Entry wrappers point at fareflow code.
type callerHook struct {
	skip []string
}

func newCallerHook() *callerHook {
	return &callerHook{skip: []string{"sirupsen/logrus", "fareflow/logger."}}
}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	if frame, ok := h.caller(); ok {
		entry.Caller = &frame
	}
	return nil
}

func (h *callerHook) caller() (runtime.Frame, bool) {
	pcs := make([]uintptr, 24)
	frames := runtime.CallersFrames(pcs[:runtime.Callers(4, pcs)])
	for {
		frame, more := frames.Next()
		if !h.skipped(frame.Function) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func (h *callerHook) skipped(fn string) bool {
	for _, s := range h.skip {
		if strings.Contains(fn, s) {
			return true
		}
	}
	return false
}
