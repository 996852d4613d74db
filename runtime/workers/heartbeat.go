package workers

import (
	"context"
	"group-chat/runtime"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"
)

// StatsSource reports the live state of the connection registry.
type StatsSource interface {
	Stats() runtime.Stats
}

// HeartbeatWorker periodically logs the gateway load next to the process resources.
type HeartbeatWorker struct {
	log            *slog.Logger
	registry       StatsSource
	metricInterval time.Duration
}

func NewHeartbeatWorker(log *slog.Logger, registry StatsSource, metricInterval time.Duration) *HeartbeatWorker {
	return &HeartbeatWorker{log: log, registry: registry, metricInterval: metricInterval}
}

// Run reports every metricInterval until ctx is done.
func (w *HeartbeatWorker) Run(ctx context.Context) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.report(p)
		}
	}
}

func (w *HeartbeatWorker) report(p *process.Process) {
	stats := w.registry.Stats()
	attrs := []any{
		"groups", stats.Groups,
		"connections", stats.Connections,
		"bindings", stats.Bindings,
	}

	rss, cpu, status, err := selfStats(p)
	if err != nil {
		w.log.Warn("Failed to collect self stats", "error", err)
	} else {
		attrs = append(attrs, "rss_bytes", rss, "cpu_percent", cpu, "status", status)
	}
	w.log.Info("Heartbeat", attrs...)
}

// selfStats retrieves memory, CPU and OS status of the given process.
func selfStats(p *process.Process) (uint64, float64, string, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, "", err
	}

	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, "", err
	}

	status, err := p.Status()
	if err != nil {
		return 0, 0, "", err
	}
	return memInfo.RSS, cpuPercent, status, nil
}
