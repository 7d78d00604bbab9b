// Package resourcemonitor watches this agent's own process resource
// usage. Since AgentRuntime never does its own I/O or allocation beyond
// what HistoryStore retains, the one resource leak this engine can itself
// cause is an unbounded HistoryStore — so this monitor samples process RSS
// and goroutine count, and cross-checks them against the store's own
// entry count.
package resourcemonitor

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"github.com/sirupsen/logrus"

	"fieldwatch-agent/internal/metrics"
)

// SizeFunc reports how many entries HistoryStore currently retains, used
// to flag runaway growth alongside RSS/goroutine thresholds.
type SizeFunc func() int

// Config configures the monitor's polling cadence and alert thresholds.
type Config struct {
	PollInterval      time.Duration
	MaxRSSBytes       uint64
	MaxGoroutines     int
	MaxHistoryEntries int
}

// Monitor polls process resource usage on a ticker and reports it to
// internal/metrics, logging a warning whenever a configured threshold is
// crossed.
type Monitor struct {
	cfg      Config
	log      *logrus.Logger
	sizeFn   SizeFunc
	proc     *process.Process

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New constructs a Monitor for the current process.
func New(cfg Config, log *logrus.Logger, sizeFn SizeFunc) (*Monitor, error) {
	proc, err := process.NewProcess(int32(currentPID()))
	if err != nil {
		return nil, err
	}
	return &Monitor{cfg: cfg, log: log, sizeFn: sizeFn, proc: proc}, nil
}

// Start begins the polling loop in a background goroutine. Calling Start
// twice without an intervening Stop is a no-op.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true

	m.wg.Add(1)
	go m.loop(ctx)
}

// Stop cancels the polling loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.cancel()
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.sample()
		case <-ctx.Done():
			return
		}
	}
}

func (m *Monitor) sample() {
	memInfo, err := m.proc.MemoryInfo()
	if err != nil {
		m.log.WithError(err).Debug("resource monitor: failed to read process memory info")
		return
	}
	goroutines := m.numGoroutines()

	metrics.ResourceMonitorRSSBytes.Set(float64(memInfo.RSS))
	metrics.ResourceMonitorGoroutines.Set(float64(goroutines))

	if m.cfg.MaxRSSBytes > 0 && memInfo.RSS > m.cfg.MaxRSSBytes {
		m.log.WithFields(logrus.Fields{"rss_bytes": memInfo.RSS, "threshold": m.cfg.MaxRSSBytes}).
			Warn("resource monitor: process RSS exceeds configured threshold")
	}
	if m.cfg.MaxGoroutines > 0 && goroutines > m.cfg.MaxGoroutines {
		m.log.WithFields(logrus.Fields{"goroutines": goroutines, "threshold": m.cfg.MaxGoroutines}).
			Warn("resource monitor: goroutine count exceeds configured threshold")
	}

	if m.sizeFn == nil {
		return
	}
	size := m.sizeFn()
	metrics.SetActiveTrackedContainers(size)
	if m.cfg.MaxHistoryEntries > 0 && size > m.cfg.MaxHistoryEntries {
		m.log.WithFields(logrus.Fields{"history_entries": size, "threshold": m.cfg.MaxHistoryEntries}).
			Warn("resource monitor: HistoryStore entry count exceeds configured threshold")
	}
}
