package procmgr

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats is a point-in-time snapshot of a running process
type ProcessStats struct {
	PID        int32    `json:"pid"`
	Name       string   `json:"name"`
	Cmdline    []string `json:"cmdline"`
	Status     []string `json:"status"`
	CPUPercent float64  `json:"cpuPercent"`
	RSS        uint64   `json:"rss"`
	NumThreads int32    `json:"numThreads"`
	// milliseconds since the process started
	Uptime int64 `json:"uptime"`
}

func Stats(pid int32) (*ProcessStats, error) {
	p, err := process.NewProcess(pid)
	if err != nil {
		return nil, fmt.Errorf("process %d: %w", pid, err)
	}

	name, err := p.Name()
	if err != nil {
		return nil, fmt.Errorf("failed to get process name: %w", err)
	}

	stats := &ProcessStats{PID: pid, Name: name}

	if cmdline, err := p.CmdlineSlice(); err == nil {
		stats.Cmdline = cmdline
	} else {
		stats.Cmdline = []string{}
	}

	if status, err := p.Status(); err == nil {
		stats.Status = status
	} else {
		stats.Status = []string{}
	}

	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}

	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSS = mem.RSS
	}

	if threads, err := p.NumThreads(); err == nil {
		stats.NumThreads = threads
	}

	if created, err := p.CreateTime(); err == nil {
		stats.Uptime = time.Now().UnixMilli() - created
	}

	return stats, nil
}
