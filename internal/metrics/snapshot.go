// internal/metrics/snapshot.go
package metrics

import (
	"encoding/json"
	"time"
)

// Measurements are the raw observations of one session. NewPerformanceMetrics
// derives every computed field of the snapshot from them.
type Measurements struct {
	Timestamp         time.Time
	TotalResponseTime time.Duration
	// FirstTokenLatency is nil when no unit was ever produced.
	FirstTokenLatency *time.Duration
	// TokenOffsets are token event times relative to the session start.
	TokenOffsets []time.Duration
	Samples      []ResourceSample
	TokenCount   int
	ErrorCount   int
	Mode         ExecutionMode
	ModelName    string
}

// PerformanceMetrics is the read-only snapshot produced once at the end of a
// session. Values are copied on construction so a snapshot can be shared freely.
type PerformanceMetrics struct {
	timestamp           time.Time
	totalResponseTime   time.Duration
	firstTokenLatency   time.Duration
	hasFirstToken       bool
	averageTokenLatency time.Duration
	hasTokenLatency     bool
	peakCPU             float64
	averageCPU          float64
	peakMemory          uint64
	averageMemory       uint64
	sampleCount         int
	tokenCount          int
	tokensPerSecond     float64
	errorCount          int
	successRate         float64
	mode                ExecutionMode
	modelName           string
}

// NewPerformanceMetrics builds a snapshot from raw measurements.
func NewPerformanceMetrics(m Measurements) PerformanceMetrics {
	tokenCount := m.TokenCount
	if tokenCount < 0 {
		tokenCount = 0
	}
	pm := PerformanceMetrics{
		timestamp:         m.Timestamp,
		totalResponseTime: m.TotalResponseTime,
		tokenCount:        tokenCount,
		errorCount:        m.ErrorCount,
		mode:              m.Mode,
		modelName:         m.ModelName,
	}

	if m.FirstTokenLatency != nil {
		pm.firstTokenLatency = *m.FirstTokenLatency
		pm.hasFirstToken = true
	}

	if len(m.TokenOffsets) > 0 {
		var sum time.Duration
		for _, off := range m.TokenOffsets {
			sum += off
		}
		pm.averageTokenLatency = sum / time.Duration(len(m.TokenOffsets))
		pm.hasTokenLatency = true
	}

	pm.peakCPU, pm.averageCPU, pm.peakMemory, pm.averageMemory = aggregateSamples(m.Samples)
	pm.sampleCount = len(m.Samples)

	if m.TotalResponseTime > 0 {
		pm.tokensPerSecond = float64(tokenCount) / m.TotalResponseTime.Seconds()
	}
	if tokenCount > 0 {
		pm.successRate = float64(tokenCount-m.ErrorCount) / float64(tokenCount)
	}
	return pm
}

func aggregateSamples(samples []ResourceSample) (peakCPU, avgCPU float64, peakMem, avgMem uint64) {
	if len(samples) == 0 {
		return 0, 0, 0, 0
	}
	var cpuSum float64
	var memSum float64
	for _, s := range samples {
		if s.CPUPercent > peakCPU {
			peakCPU = s.CPUPercent
		}
		if s.MemoryBytes > peakMem {
			peakMem = s.MemoryBytes
		}
		cpuSum += s.CPUPercent
		memSum += float64(s.MemoryBytes)
	}
	n := float64(len(samples))
	return peakCPU, cpuSum / n, peakMem, uint64(memSum / n)
}

// Timestamp is when the snapshot was finalized.
func (p PerformanceMetrics) Timestamp() time.Time { return p.timestamp }

// TotalResponseTime is the elapsed time from session start to finish.
func (p PerformanceMetrics) TotalResponseTime() time.Duration { return p.totalResponseTime }

// FirstTokenLatency reports the time to the first produced unit, if any was produced.
func (p PerformanceMetrics) FirstTokenLatency() (time.Duration, bool) {
	return p.firstTokenLatency, p.hasFirstToken
}

// AverageTokenLatency reports the mean offset of recorded token events, if any were recorded.
func (p PerformanceMetrics) AverageTokenLatency() (time.Duration, bool) {
	return p.averageTokenLatency, p.hasTokenLatency
}

// PeakCPUUsage is the highest sampled CPU percentage, 0 without samples.
func (p PerformanceMetrics) PeakCPUUsage() float64 { return p.peakCPU }

// AverageCPUUsage is the mean sampled CPU percentage, 0 without samples.
func (p PerformanceMetrics) AverageCPUUsage() float64 { return p.averageCPU }

// PeakMemoryUsage is the highest sampled resident memory in bytes.
func (p PerformanceMetrics) PeakMemoryUsage() uint64 { return p.peakMemory }

// AverageMemoryUsage is the mean sampled resident memory in bytes.
func (p PerformanceMetrics) AverageMemoryUsage() uint64 { return p.averageMemory }

// SampleCount is the number of successful resource samples behind the CPU and memory figures.
func (p PerformanceMetrics) SampleCount() int { return p.sampleCount }

// TokenCount is the estimated number of processed units.
func (p PerformanceMetrics) TokenCount() int { return p.tokenCount }

// TokensPerSecond is TokenCount over TotalResponseTime, 0 when no time elapsed.
func (p PerformanceMetrics) TokensPerSecond() float64 { return p.tokensPerSecond }

// ErrorCount is the number of failures recorded during the session.
func (p PerformanceMetrics) ErrorCount() int { return p.errorCount }

// SuccessRate is (TokenCount-ErrorCount)/TokenCount, 0 when TokenCount is 0.
func (p PerformanceMetrics) SuccessRate() float64 { return p.successRate }

// ExecutionMode is the mode the session ran in.
func (p PerformanceMetrics) ExecutionMode() ExecutionMode { return p.mode }

// ModelName is the model the session addressed.
func (p PerformanceMetrics) ModelName() string { return p.modelName }

type snapshotJSON struct {
	Timestamp             time.Time     `json:"timestamp"`
	TotalResponseTimeMs   float64       `json:"total_response_time_ms"`
	FirstTokenLatencyMs   *float64      `json:"first_token_latency_ms,omitempty"`
	AverageTokenLatencyMs *float64      `json:"average_token_latency_ms,omitempty"`
	PeakCPUUsage          float64       `json:"peak_cpu_usage"`
	AverageCPUUsage       float64       `json:"average_cpu_usage"`
	PeakMemoryBytes       uint64        `json:"peak_memory_bytes"`
	AverageMemoryBytes    uint64        `json:"average_memory_bytes"`
	SampleCount           int           `json:"sample_count"`
	TokenCount            int           `json:"token_count"`
	TokensPerSecond       float64       `json:"tokens_per_second"`
	ErrorCount            int           `json:"error_count"`
	SuccessRate           float64       `json:"success_rate"`
	ExecutionMode         ExecutionMode `json:"execution_mode"`
	ModelName             string        `json:"model_name"`
}

// MarshalJSON exports the snapshot with durations in milliseconds.
func (p PerformanceMetrics) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Timestamp:           p.timestamp,
		TotalResponseTimeMs: millis(p.totalResponseTime),
		PeakCPUUsage:        p.peakCPU,
		AverageCPUUsage:     p.averageCPU,
		PeakMemoryBytes:     p.peakMemory,
		AverageMemoryBytes:  p.averageMemory,
		SampleCount:         p.sampleCount,
		TokenCount:          p.tokenCount,
		TokensPerSecond:     p.tokensPerSecond,
		ErrorCount:          p.errorCount,
		SuccessRate:         p.successRate,
		ExecutionMode:       p.mode,
		ModelName:           p.modelName,
	}
	if p.hasFirstToken {
		v := millis(p.firstTokenLatency)
		out.FirstTokenLatencyMs = &v
	}
	if p.hasTokenLatency {
		v := millis(p.averageTokenLatency)
		out.AverageTokenLatencyMs = &v
	}
	return json.Marshal(out)
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
