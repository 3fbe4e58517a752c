package server

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsReporter periodically logs the number of registered peers together
// with the CPU and memory usage of the relay process.
type StatsReporter struct {
	registry *Registry
	interval time.Duration
	log      *slog.Logger
}

// NewStatsReporter creates a reporter for registry. A non-positive interval
// disables it.
func NewStatsReporter(registry *Registry, interval time.Duration, log *slog.Logger) *StatsReporter {
	if log == nil {
		log = slog.Default()
	}
	return &StatsReporter{registry: registry, interval: interval, log: log}
}

// Run logs a stats line every interval until ctx is done.
func (w *StatsReporter) Run(ctx context.Context) error {
	if w.interval <= 0 {
		w.log.Debug("Stats reporting disabled")
		return nil
	}

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping stats reporting")
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *StatsReporter) report(p *process.Process) {
	peers := w.registry.Len()

	memInfo, err := p.MemoryInfo()
	if err != nil {
		w.log.Error("Failed to collect memory usage", "error", err, "peers", peers)
		return
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		w.log.Error("Failed to collect cpu usage", "error", err, "peers", peers)
		return
	}

	w.log.Info("Relay stats", "peers", peers, "cpu_percent", cpuPercent, "rss_bytes", memInfo.RSS)
}
