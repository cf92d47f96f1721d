// internal/metrics/sampler.go
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/mwiater/parachat/internal/logging"
)

// DefaultSampleInterval is the sampler cadence when none is configured.
const DefaultSampleInterval = 100 * time.Millisecond

// Sampler polls a Probe on a fixed interval in a background goroutine.
// Stop joins the goroutine, so no sample is appended after it returns.
type Sampler struct {
	probe    Probe
	interval time.Duration

	mu       sync.Mutex
	samples  []ResourceSample
	failures int

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSampler returns an idle sampler. A nil probe yields no samples.
func NewSampler(probe Probe, interval time.Duration) *Sampler {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	return &Sampler{probe: probe, interval: interval}
}

// Start takes an immediate sample and then one per interval until Stop is
// called or ctx is done. A sampler runs once; later calls are no-ops.
func (s *Sampler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.samples = nil
	s.failures = 0
	done := s.done
	s.mu.Unlock()

	go s.run(ctx, done)
}

func (s *Sampler) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	if s.probe == nil {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.sampleOnce()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sampleOnce()
		}
	}
}

func (s *Sampler) sampleOnce() {
	sample, err := s.probe.Sample()
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.failures++
		return
	}
	s.samples = append(s.samples, sample)
}

// Stop cancels the background goroutine, waits for it to exit and returns
// the successful samples. Stop on a sampler that never started returns nil.
func (s *Sampler) Stop() []ResourceSample {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if done == nil {
		return nil
	}

	cancel()
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		logging.LogDebug("sampler: skipped %d failed samples", s.failures)
	}
	return s.snapshotLocked()
}

// Failures is the number of probe reads that were skipped.
func (s *Sampler) Failures() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures
}

func (s *Sampler) snapshotLocked() []ResourceSample {
	if len(s.samples) == 0 {
		return nil
	}
	out := make([]ResourceSample, len(s.samples))
	copy(out, s.samples)
	return out
}
