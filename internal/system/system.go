package system

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time view of the process and host resources.
type Stats struct {
	PID            int32   `json:"pid" yaml:"pid"`
	Goroutines     int     `json:"goroutines" yaml:"goroutines"`
	RSSBytes       uint64  `json:"rss_bytes" yaml:"rss_bytes"`
	CPUPercent     float64 `json:"cpu_percent" yaml:"cpu_percent"`
	LogicalCPUs    int     `json:"logical_cpus" yaml:"logical_cpus"`
	HostMemTotal   uint64  `json:"host_mem_total" yaml:"host_mem_total"`
	HostMemUsedPct float64 `json:"host_mem_used_percent" yaml:"host_mem_used_percent"`
}

// Snapshot collects Stats for the current process. Fields that cannot be read on
// this platform are left zero; only a failure to find our own process is an error.
func Snapshot(ctx context.Context) (Stats, error) {
	pid := int32(os.Getpid())
	stats := Stats{
		PID:        pid,
		Goroutines: runtime.NumGoroutine(),
	}

	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return stats, fmt.Errorf("looking up process %d: %w", pid, err)
	}

	if mi, err := p.MemoryInfoWithContext(ctx); err == nil {
		stats.RSSBytes = mi.RSS
	}
	if pct, err := p.CPUPercentWithContext(ctx); err == nil {
		stats.CPUPercent = pct
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		stats.LogicalCPUs = n
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		stats.HostMemTotal = vm.Total
		stats.HostMemUsedPct = vm.UsedPercent
	}

	return stats, nil
}

// HumanBytes formats a byte count as MiB with one decimal.
func HumanBytes(b uint64) string {
	return fmt.Sprintf("%.1f MiB", float64(b)/(1<<20))
}
