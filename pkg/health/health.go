package health

import (
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// Status represents the health status of the server
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
)

// HostStats carries host-level resource usage
type HostStats struct {
	CPUCount       int     `json:"cpu_count"`
	MemoryTotalMB  uint64  `json:"memory_total_mb"`
	MemoryUsedPct  float64 `json:"memory_used_pct"`
	ProcessAllocMB uint64  `json:"process_alloc_mb"`
}

// ServerHealth represents overall server health
type ServerHealth struct {
	Status            Status    `json:"status"`
	Uptime            int64     `json:"uptime_seconds"`
	Timestamp         time.Time `json:"timestamp"`
	ActiveConnections int       `json:"active_connections"`
	Goroutines        int       `json:"goroutines"`
	Host              HostStats `json:"host"`
}

// Monitor tracks server health metrics
type Monitor struct {
	startTime time.Time
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		startTime: time.Now(),
	}
}

// GetHealth returns the current server health snapshot
func (m *Monitor) GetHealth(activeConnections int) *ServerHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	host := HostStats{
		ProcessAllocMB: memStats.Alloc / 1024 / 1024,
	}

	status := StatusHealthy
	if counts, err := cpu.Counts(true); err == nil {
		host.CPUCount = counts
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		host.MemoryTotalMB = vm.Total / 1024 / 1024
		host.MemoryUsedPct = vm.UsedPercent
		if vm.UsedPercent > 95 {
			status = StatusDegraded
		}
	}

	return &ServerHealth{
		Status:            status,
		Uptime:            int64(time.Since(m.startTime).Seconds()),
		Timestamp:         time.Now(),
		ActiveConnections: activeConnections,
		Goroutines:        runtime.NumGoroutine(),
		Host:              host,
	}
}
