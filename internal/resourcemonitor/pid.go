package resourcemonitor

import (
	"os"
	"runtime"
)

func currentPID() int { return os.Getpid() }

func (m *Monitor) numGoroutines() int { return runtime.NumGoroutine() }
