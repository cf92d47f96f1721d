// internal/metrics/history.go
package metrics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/mwiater/parachat/internal/logging"
)

type historyKey struct {
	model string
	mode  ExecutionMode
}

// History aggregates snapshots per (model, mode) across sessions.
// It is safe for concurrent use.
type History struct {
	mutex   sync.Mutex
	entries map[historyKey]*HistoryEntry
	now     func() time.Time
}

// NewHistory returns an empty history.
func NewHistory() *History {
	return &History{
		entries: make(map[historyKey]*HistoryEntry),
		now:     time.Now,
	}
}

// LoadHistory reads a history previously written by Save. A missing file
// yields an empty history.
func LoadHistory(path string) (*History, error) {
	h := NewHistory()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return h, nil
		}
		return nil, err
	}

	var entries []HistoryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse history %s: %w", path, err)
	}
	for i := range entries {
		e := entries[i]
		h.entries[historyKey{model: e.ModelName, mode: e.Mode}] = &e
	}
	return h, nil
}

// Record folds one snapshot into its (model, mode) entry. Snapshots with
// recorded errors count as failed sessions and do not move the timing stats.
func (h *History) Record(m PerformanceMetrics) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	key := historyKey{model: m.ModelName(), mode: m.ExecutionMode()}
	entry, ok := h.entries[key]
	if !ok {
		entry = &HistoryEntry{ModelName: key.model, Mode: key.mode}
		h.entries[key] = entry
	}
	entry.LastUpdatedUTC = h.now().UTC()

	stats := &entry.Stats
	stats.TotalSessions++
	if m.ErrorCount() > 0 {
		stats.FailedSessions++
		return
	}

	stats.ResponseTimeMillis.Add(millis(m.TotalResponseTime()))
	if ftl, ok := m.FirstTokenLatency(); ok {
		stats.FirstTokenMillis.Add(millis(ftl))
	}
	stats.TokensPerSecond.Add(m.TokensPerSecond())
	stats.PeakCPUPercent.Add(m.PeakCPUUsage())
	stats.PeakMemoryMB.Add(float64(m.PeakMemoryUsage()) / (1024 * 1024))
}

// Entry returns a copy of the entry for model and mode.
func (h *History) Entry(model string, mode ExecutionMode) (HistoryEntry, bool) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	e, ok := h.entries[historyKey{model: model, mode: mode}]
	if !ok {
		return HistoryEntry{}, false
	}
	return *e, true
}

// Entries returns copies of all entries ordered by model then mode.
func (h *History) Entries() []HistoryEntry {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	out := make([]HistoryEntry, 0, len(h.entries))
	for _, e := range h.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModelName != out[j].ModelName {
			return out[i].ModelName < out[j].ModelName
		}
		return out[i].Mode < out[j].Mode
	})
	return out
}

// Speedup is the sequential mean response time divided by the parallel one
// for model. It reports false until both modes have a successful session.
func (h *History) Speedup(model string) (float64, bool) {
	seq, ok := h.Entry(model, Sequential)
	if !ok || seq.Stats.ResponseTimeMillis.Count == 0 {
		return 0, false
	}
	par, ok := h.Entry(model, Parallel)
	if !ok || par.Stats.ResponseTimeMillis.Count == 0 || par.Stats.ResponseTimeMillis.Mean == 0 {
		return 0, false
	}
	return seq.Stats.ResponseTimeMillis.Mean / par.Stats.ResponseTimeMillis.Mean, true
}

// Save writes the history as indented JSON, creating parent directories.
func (h *History) Save(path string) error {
	logging.LogEvent("[METRICS] Saving history to %s", path)
	data, err := json.MarshalIndent(h.Entries(), "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0o644)
}
