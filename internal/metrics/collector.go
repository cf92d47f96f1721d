// internal/metrics/collector.go
package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/mwiater/parachat/internal/logging"
)

type collectorState int

const (
	stateIdle collectorState = iota
	stateCollecting
	stateFinalized
)

func (s collectorState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateCollecting:
		return "collecting"
	default:
		return "finalized"
	}
}

// Collector measures a single inference session. It moves from idle to
// collecting on StartCollection and to finalized on FinishCollection; any
// other transition or a recording call outside collecting panics.
//
// Recording methods may be called from any goroutine.
type Collector struct {
	now      func() time.Time
	probe    Probe
	interval time.Duration

	mu         sync.Mutex
	state      collectorState
	start      time.Time
	firstToken time.Time
	hasFirst   bool
	tokens     []time.Time
	errors     int
	sampler    *Sampler
}

// CollectorOption customizes a Collector.
type CollectorOption func(*Collector)

// WithClock replaces time.Now as the collector's time source.
func WithClock(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSampleInterval sets the resource sampler cadence.
func WithSampleInterval(d time.Duration) CollectorOption {
	return func(c *Collector) {
		c.interval = d
	}
}

// NewCollector returns an idle collector sampling probe while collecting.
// A nil probe produces zero CPU and memory figures.
func NewCollector(probe Probe, opts ...CollectorOption) *Collector {
	c := &Collector{
		now:      time.Now,
		probe:    probe,
		interval: DefaultSampleInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// StartCollection records the start time, resets counters and launches the
// resource sampler. The sampler also stops if ctx is cancelled.
func (c *Collector) StartCollection(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustBe("StartCollection", stateIdle)

	c.state = stateCollecting
	c.start = c.now()
	c.firstToken = time.Time{}
	c.hasFirst = false
	c.tokens = nil
	c.errors = 0
	c.sampler = NewSampler(c.probe, c.interval)
	c.sampler.Start(ctx)
}

// RecordFirstToken records the first-token time. Only the first call counts.
func (c *Collector) RecordFirstToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustBe("RecordFirstToken", stateCollecting)
	if c.hasFirst {
		return
	}
	c.firstToken = c.now()
	c.hasFirst = true
}

// RecordToken appends one token event.
func (c *Collector) RecordToken() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustBe("RecordToken", stateCollecting)
	c.tokens = append(c.tokens, c.now())
}

// RecordError counts one failure.
func (c *Collector) RecordError() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustBe("RecordError", stateCollecting)
	c.errors++
}

// FinishCollection stops and joins the sampler, then computes the snapshot.
func (c *Collector) FinishCollection(tokenCount int, mode ExecutionMode, modelName string) PerformanceMetrics {
	sampler := c.finalize()
	samples := sampler.Stop()

	c.mu.Lock()
	defer c.mu.Unlock()

	end := c.now()
	m := Measurements{
		Timestamp:         end,
		TotalResponseTime: nonNegative(end.Sub(c.start)),
		Samples:           samples,
		TokenCount:        tokenCount,
		ErrorCount:        c.errors,
		Mode:              mode,
		ModelName:         modelName,
	}
	if c.hasFirst {
		ftl := nonNegative(c.firstToken.Sub(c.start))
		m.FirstTokenLatency = &ftl
	}
	if len(c.tokens) > 0 {
		m.TokenOffsets = make([]time.Duration, len(c.tokens))
		for i, ts := range c.tokens {
			m.TokenOffsets[i] = nonNegative(ts.Sub(c.start))
		}
	}

	snapshot := NewPerformanceMetrics(m)
	logging.LogDebug("collector finished: model=%s mode=%s tokens=%d errors=%d samples=%d skipped=%d elapsed=%s",
		modelName, mode, snapshot.TokenCount(), snapshot.ErrorCount(), len(samples), sampler.Failures(), snapshot.TotalResponseTime())
	return snapshot
}

func (c *Collector) finalize() *Sampler {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mustBe("FinishCollection", stateCollecting)
	c.state = stateFinalized
	return c.sampler
}

func (c *Collector) mustBe(op string, want collectorState) {
	if c.state != want {
		panic(fmt.Sprintf("metrics: %s called while collector is %s", op, c.state))
	}
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
