// internal/metrics/probe.go
package metrics

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	gopsutil "github.com/shirou/gopsutil/v3/process"
)

// ResourceSample is one point-in-time reading of process resource usage.
type ResourceSample struct {
	At          time.Time
	CPUPercent  float64
	MemoryBytes uint64
}

// Probe reads current process resource usage. A single read may fail.
type Probe interface {
	Sample() (ResourceSample, error)
}

// ProbeFunc adapts a function to the Probe interface.
type ProbeFunc func() (ResourceSample, error)

// Sample calls f.
func (f ProbeFunc) Sample() (ResourceSample, error) { return f() }

// ProcessProbe samples the current process through gopsutil.
//
// CPU percentage is the CPU time consumed since the previous sample divided by
// the wall time elapsed and the number of logical CPUs, so a fully busy
// machine reads 100.
type ProcessProbe struct {
	cpuTimes func() (float64, error)
	rss      func() (uint64, error)
	numCPU   int
	now      func() time.Time

	// mu serializes reading the counters with moving the baseline, since one
	// probe is shared by every concurrent session.
	mu       sync.Mutex
	lastCPU  float64
	lastWall time.Time
}

// NewProcessProbe creates a probe for this process and records the CPU baseline.
func NewProcessProbe() (*ProcessProbe, error) {
	proc, err := gopsutil.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("open process: %w", err)
	}
	cpuTimes := func() (float64, error) {
		times, err := proc.Times()
		if err != nil {
			return 0, err
		}
		return times.User + times.System, nil
	}
	rss := func() (uint64, error) {
		mem, err := proc.MemoryInfo()
		if err != nil {
			return 0, err
		}
		return mem.RSS, nil
	}
	return newProcessProbe(cpuTimes, rss, runtime.NumCPU(), time.Now)
}

func newProcessProbe(cpuTimes func() (float64, error), rss func() (uint64, error), numCPU int, now func() time.Time) (*ProcessProbe, error) {
	p := &ProcessProbe{cpuTimes: cpuTimes, rss: rss, numCPU: numCPU, now: now}
	cpuSeconds, err := cpuTimes()
	if err != nil {
		return nil, fmt.Errorf("read cpu times: %w", err)
	}
	p.lastCPU = cpuSeconds
	p.lastWall = now()
	return p, nil
}

// Sample returns CPU usage since the last successful sample and current RSS.
func (p *ProcessProbe) Sample() (ResourceSample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cpuSeconds, err := p.cpuTimes()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("read cpu times: %w", err)
	}
	rss, err := p.rss()
	if err != nil {
		return ResourceSample{}, fmt.Errorf("read memory info: %w", err)
	}

	now := p.now()
	pct := cpuPercent(cpuSeconds-p.lastCPU, now.Sub(p.lastWall), p.numCPU)
	p.lastCPU = cpuSeconds
	p.lastWall = now

	return ResourceSample{At: now, CPUPercent: pct, MemoryBytes: rss}, nil
}

// cpuPercent normalizes a CPU-time delta to a 0-100 share of total machine capacity.
func cpuPercent(cpuDelta float64, wall time.Duration, numCPU int) float64 {
	if wall <= 0 || cpuDelta <= 0 {
		return 0
	}
	if numCPU < 1 {
		numCPU = 1
	}
	return cpuDelta / wall.Seconds() / float64(numCPU) * 100
}
