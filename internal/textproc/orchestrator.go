// internal/textproc/orchestrator.go
package textproc

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mwiater/parachat/internal/logging"
)

// DefaultChunkDelay is the simulated per-chunk cost.
const DefaultChunkDelay = 50 * time.Millisecond

// ChunkFunc analyzes one chunk. It must return promptly once ctx is done.
type ChunkFunc func(ctx context.Context, words []string, index int) (ChunkResult, error)

// Orchestrator fans chunks of a text out to concurrent workers and merges
// their results back in chunk order.
type Orchestrator struct {
	// Parallelism bounds both the chunk count basis and the number of
	// concurrent workers. Zero means runtime.NumCPU().
	Parallelism int
	// ChunkDelay is slept by the default ChunkFunc before each chunk.
	ChunkDelay time.Duration
	// Process replaces the default delayed ProcessChunk when set.
	Process ChunkFunc
}

// NewOrchestrator returns an orchestrator with the given width and per-chunk delay.
func NewOrchestrator(parallelism int, chunkDelay time.Duration) *Orchestrator {
	return &Orchestrator{Parallelism: parallelism, ChunkDelay: chunkDelay}
}

// Report is the merged outcome of one orchestrated pass.
type Report struct {
	// Text is ProcessedText followed by the summary block.
	Text             string
	ProcessedText    string
	Chunks           []ChunkResult
	ChunkCount       int
	TotalWords       int
	TotalUniqueWords int
	AvgWordsPerChunk float64
	Parallelism      int
	Elapsed          time.Duration
}

// Summary renders the human-readable analysis block.
func (r Report) Summary() string {
	return fmt.Sprintf("--- Parallel Analysis ---\nChunks processed: %d\nTotal words: %d\nUnique words: %d\nAverage words per chunk: %.2f",
		r.ChunkCount, r.TotalWords, r.TotalUniqueWords, r.AvgWordsPerChunk)
}

func (o *Orchestrator) parallelism() int {
	if o == nil || o.Parallelism <= 0 {
		return runtime.NumCPU()
	}
	return o.Parallelism
}

// Run analyzes text. Either every chunk succeeds and a full report is
// returned, or the first worker error (or ctx's error) is returned with an
// empty report.
func (o *Orchestrator) Run(ctx context.Context, text string) (Report, error) {
	started := time.Now()
	p := o.parallelism()
	chunks := Split(Tokenize(text), p)

	process := o.defaultProcess
	if o.Process != nil {
		process = o.Process
	}

	results := make([]ChunkResult, 0, len(chunks))
	if len(chunks) > 0 {
		logging.LogDebug("textproc: dispatching %d chunks across %d workers", len(chunks), p)

		var mu sync.Mutex
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p)
		for i, chunk := range chunks {
			i, chunk := i, chunk
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				res, err := process(gctx, chunk, i)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i, err)
				}
				mu.Lock()
				results = append(results, res)
				mu.Unlock()
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return Report{}, err
		}
		if err := ctx.Err(); err != nil {
			return Report{}, err
		}
	}

	// Completion order is arbitrary.
	sort.Slice(results, func(a, b int) bool { return results[a].Index < results[b].Index })

	report := merge(results)
	report.Parallelism = p
	report.Elapsed = time.Since(started)
	return report, nil
}

func (o *Orchestrator) defaultProcess(ctx context.Context, words []string, index int) (ChunkResult, error) {
	if o.ChunkDelay > 0 {
		timer := time.NewTimer(o.ChunkDelay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ChunkResult{}, ctx.Err()
		case <-timer.C:
		}
	}
	return ProcessChunk(words, index), nil
}

// merge combines index-ordered chunk results into a report.
func merge(results []ChunkResult) Report {
	report := Report{Chunks: results, ChunkCount: len(results)}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.ProcessedText
		report.TotalWords += r.WordCount
		report.TotalUniqueWords += r.UniqueWords
	}
	report.ProcessedText = strings.Join(texts, " ")
	chunks := report.ChunkCount
	if chunks < 1 {
		chunks = 1
	}
	report.AvgWordsPerChunk = float64(report.TotalWords) / float64(chunks)

	if report.ProcessedText == "" {
		report.Text = report.Summary()
	} else {
		report.Text = report.ProcessedText + "\n\n" + report.Summary()
	}
	return report
}
