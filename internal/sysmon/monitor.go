package sysmon

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"routectl/internal/config"
	"routectl/internal/model"
	"routectl/internal/registry"
)

// MetricsSink receives partial metric updates for a node. The engine
// satisfies this.
type MetricsSink interface {
	UpdateMetrics(id string, upd registry.MetricsUpdate) error
}

// Monitor periodically samples host cpu/memory and pushes a metric update
// for one node. It is the in-process stand-in for an external monitoring
// feed: the engine only ever sees UpdateMetrics calls.
type Monitor struct {
	cfg  config.MonitorConfig
	sink MetricsSink
}

// New creates a monitor for the node named in cfg.
func New(cfg config.MonitorConfig, sink MetricsSink) *Monitor {
	return &Monitor{cfg: cfg, sink: sink}
}

// Run samples once immediately, then on every tick until the context is
// done.
func (m *Monitor) Run(ctx context.Context) error {
	if m.cfg.NodeID == "" {
		return fmt.Errorf("monitor node_id is required")
	}
	interval := time.Duration(m.cfg.IntervalSec) * time.Second
	if interval <= 0 {
		interval = config.DefaultMonitorIntervalSec * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.sampleOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.sampleOnce(ctx)
		}
	}
}

func (m *Monitor) sampleOnce(ctx context.Context) {
	cpuPct, memPct, err := readHostLoad(ctx)
	if err != nil {
		log.Printf("host sample failed: %v", err)
		return
	}
	upd := MapSample(cpuPct, memPct, m.cfg)
	if err := m.sink.UpdateMetrics(m.cfg.NodeID, upd); err != nil {
		// Recoverable: the node may not be registered yet.
		log.Printf("metric update failed node=%s: %v", m.cfg.NodeID, err)
	}
}

// MapSample converts a host load sample into a partial metric update. Load
// is the worse of cpu and memory pressure; it scales the node's runtime
// estimate linearly and flips the node to BUSY above the threshold.
func MapSample(cpuPct, memPct float64, cfg config.MonitorConfig) registry.MetricsUpdate {
	load := cpuPct
	if memPct > load {
		load = memPct
	}
	if load < 0 {
		load = 0
	}
	if load > 100 {
		load = 100
	}

	base := cfg.BaseRuntimeSec
	if base <= 0 {
		base = config.DefaultBaseRuntimeSec
	}
	threshold := cfg.BusyThresholdPct
	if threshold <= 0 {
		threshold = config.DefaultBusyThresholdPct
	}

	estimated := base * (1 + load/100)
	status := model.StatusAvailable
	if load >= threshold {
		status = model.StatusBusy
	}
	return registry.MetricsUpdate{
		EstimatedRuntime: &estimated,
		Status:           &status,
	}
}

func readHostLoad(ctx context.Context) (cpuPct, memPct float64, err error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, 0, fmt.Errorf("cpu sample: %w", err)
	}
	if len(pcts) > 0 {
		cpuPct = pcts[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("memory sample: %w", err)
	}
	return cpuPct, vm.UsedPercent, nil
}
