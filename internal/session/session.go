// internal/session/session.go
// Package session runs a prompt against a backend in sequential or parallel
// mode and measures it end to end.
package session

import (
	"context"
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mwiater/parachat/internal/logging"
	"github.com/mwiater/parachat/internal/metrics"
	"github.com/mwiater/parachat/internal/textproc"
)

// Backend performs one non-streaming inference round trip.
type Backend interface {
	Infer(ctx context.Context, prompt, model string) (string, error)
}

// Session drives one backend through measured inference runs. A Session may
// run any number of prompts concurrently; each run owns its own collector.
type Session struct {
	backend        Backend
	orchestrator   *textproc.Orchestrator
	probe          metrics.Probe
	probeSet       bool
	sampleInterval time.Duration
	now            func() time.Time

	mu        sync.RWMutex
	observers []func(ChatMessage)
}

// Option customizes a Session.
type Option func(*Session)

// WithOrchestrator sets the parallel text pass.
func WithOrchestrator(o *textproc.Orchestrator) Option {
	return func(s *Session) { s.orchestrator = o }
}

// WithProbe sets the resource probe. A nil probe disables resource sampling.
func WithProbe(p metrics.Probe) Option {
	return func(s *Session) {
		s.probe = p
		s.probeSet = true
	}
}

// WithSampleInterval sets the resource sampling cadence.
func WithSampleInterval(d time.Duration) Option {
	return func(s *Session) { s.sampleInterval = d }
}

// WithClock replaces time.Now for metrics timing.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New returns a Session over backend. Without WithProbe the current process
// is sampled through gopsutil.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		backend:        backend,
		sampleInterval: metrics.DefaultSampleInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.orchestrator == nil {
		s.orchestrator = textproc.NewOrchestrator(0, textproc.DefaultChunkDelay)
	}
	if !s.probeSet {
		probe, err := metrics.NewProcessProbe()
		if err != nil {
			logging.LogEvent("[SESSION] resource probe unavailable: %v", err)
		} else {
			s.probe = probe
		}
	}
	return s
}

// OnResult registers fn to receive every completed ChatMessage, success or failure.
func (s *Session) OnResult(fn func(ChatMessage)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// RunSequential returns the backend response unchanged with its metrics.
// On failure the metrics are returned alongside an *InferenceError.
func (s *Session) RunSequential(ctx context.Context, prompt, model string) (string, metrics.PerformanceMetrics, error) {
	msg, err := s.Run(ctx, metrics.Sequential, prompt, model)
	return msg.Response, *msg.Metrics, err
}

// RunParallel returns the analyzed backend response with its metrics.
func (s *Session) RunParallel(ctx context.Context, prompt, model string) (string, metrics.PerformanceMetrics, error) {
	msg, err := s.Run(ctx, metrics.Parallel, prompt, model)
	return msg.Response, *msg.Metrics, err
}

// Run executes one measured session in mode and notifies observers. The
// returned message always carries metrics; err is an *InferenceError.
func (s *Session) Run(ctx context.Context, mode metrics.ExecutionMode, prompt, model string) (ChatMessage, error) {
	id := uuid.NewString()
	collector := metrics.NewCollector(s.probe,
		metrics.WithClock(s.now),
		metrics.WithSampleInterval(s.sampleInterval),
	)

	text, snapshot, err := s.execute(ctx, collector, id, mode, prompt, model)

	msg := ChatMessage{
		SessionID: id,
		CreatedAt: snapshot.Timestamp(),
		Model:     model,
		Prompt:    prompt,
		Response:  text,
		Mode:      &mode,
		Metrics:   &snapshot,
	}
	if err != nil {
		msg.Error = err.Error()
		logging.LogEvent("[SESSION] %s failed: %v", id, err)
	} else {
		logging.LogEvent("[SESSION] %s %s model=%s tokens=%d elapsed=%s", id, mode, model, snapshot.TokenCount(), snapshot.TotalResponseTime())
	}

	s.notify(msg)
	return msg, err
}

func (s *Session) execute(ctx context.Context, c *metrics.Collector, id string, mode metrics.ExecutionMode, prompt, model string) (string, metrics.PerformanceMetrics, error) {
	c.StartCollection(ctx)

	fail := func(kind ErrorKind, err error) (string, metrics.PerformanceMetrics, error) {
		c.RecordError()
		snapshot := c.FinishCollection(0, mode, model)
		if ctx.Err() != nil {
			kind = KindCancelled
		}
		return "", snapshot, &InferenceError{
			Kind:      kind,
			SessionID: id,
			Mode:      mode,
			Model:     model,
			Message:   err.Error(),
			Err:       err,
			Metrics:   snapshot,
		}
	}

	response, err := s.backend.Infer(ctx, prompt, model)
	if err != nil {
		return fail(KindBackend, err)
	}
	c.RecordFirstToken()

	text := response
	if mode == metrics.Parallel {
		report, err := s.orchestrator.Run(ctx, response)
		if err != nil {
			return fail(KindWorker, err)
		}
		text = report.Text
	}

	tokens := EstimateTokens(text)
	for i := 0; i < tokens; i++ {
		c.RecordToken()
	}
	return text, c.FinishCollection(tokens, mode, model), nil
}

func (s *Session) notify(msg ChatMessage) {
	s.mu.RLock()
	observers := append([]func(ChatMessage){}, s.observers...)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(msg)
	}
}

// EstimateTokens approximates a token count as a quarter of the rune count,
// never less than one.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

// AsInferenceError extracts the *InferenceError from err, if any.
func AsInferenceError(err error) (*InferenceError, bool) {
	var ie *InferenceError
	if errors.As(err, &ie) {
		return ie, true
	}
	return nil, false
}
