// Package proc samples resource usage of session processes. All lookups are
// best-effort: a process that exited between sampling and lookup yields an
// error, not a panic.
package proc

import (
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a point-in-time sample for one process.
type Stats struct {
	PID        int32   `json:"pid"`
	CPUPercent float64 `json:"cpu_percent"`
	MemoryRSS  uint64  `json:"memory_rss"`
	NumThreads int32   `json:"num_threads"`
}

// Sample reads current usage for the given pid.
func Sample(pid int) (*Stats, error) {
	if pid <= 0 {
		return nil, fmt.Errorf("invalid pid %d", pid)
	}
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("looking up pid %d: %w", pid, err)
	}

	st := &Stats{PID: p.Pid}

	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		st.MemoryRSS = mem.RSS
	}
	if n, err := p.NumThreads(); err == nil {
		st.NumThreads = n
	}
	return st, nil
}

// Alive reports whether a process with the given pid still exists.
func Alive(pid int) bool {
	if pid <= 0 {
		return false
	}
	ok, err := process.PidExists(int32(pid))
	return err == nil && ok
}
