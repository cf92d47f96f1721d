// internal/metrics/types.go
package metrics

import (
	"encoding/json"
	"math"
	"time"
)

// HistoryEntry is the aggregated record for one (model, mode) pair.
type HistoryEntry struct {
	ModelName      string                 `json:"model_name"`
	Mode           ExecutionMode          `json:"execution_mode"`
	LastUpdatedUTC time.Time              `json:"last_updated_utc"`
	Stats          RunningAggregatedStats `json:"stats"`
}

// RunningAggregatedStats stores the running statistical values for a set of sessions.
// It uses Welford's online algorithm for calculating mean and standard deviation.
type RunningAggregatedStats struct {
	TotalSessions  int64 `json:"total_sessions"`
	FailedSessions int64 `json:"failed_sessions"`

	ResponseTimeMillis RunningStat `json:"response_time_ms"`
	FirstTokenMillis   RunningStat `json:"first_token_ms"`
	TokensPerSecond    RunningStat `json:"tokens_per_second"`
	PeakCPUPercent     RunningStat `json:"peak_cpu_percent"`
	PeakMemoryMB       RunningStat `json:"peak_memory_mb"`
}

// RunningStat holds the necessary values for online calculation of mean, variance, and stddev.
type RunningStat struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	M2    float64 `json:"m2"` // Sum of squares of differences from the current mean
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Add folds value into the statistic using Welford's online algorithm.
func (rs *RunningStat) Add(value float64) {
	rs.Count++
	if rs.Count == 1 {
		rs.Min = value
		rs.Max = value
	} else {
		if value < rs.Min {
			rs.Min = value
		}
		if value > rs.Max {
			rs.Max = value
		}
	}

	delta := value - rs.Mean
	rs.Mean += delta / float64(rs.Count)
	delta2 := value - rs.Mean
	rs.M2 += delta * delta2
}

// StdDev is the sample standard deviation, 0 with fewer than two values.
func (rs RunningStat) StdDev() float64 {
	if rs.Count < 2 {
		return 0
	}
	return math.Sqrt(rs.M2 / float64(rs.Count-1))
}

// MarshalJSON adds the derived standard deviation to the stored fields.
func (rs RunningStat) MarshalJSON() ([]byte, error) {
	type plain RunningStat
	return json.Marshal(struct {
		plain
		StdDev float64 `json:"stddev"`
	}{plain: plain(rs), StdDev: rs.StdDev()})
}
