package textproc

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestRunSingleProcessor(t *testing.T) {
	o := NewOrchestrator(1, 0)
	report, err := o.Run(context.Background(), "the cat sat on the mat the cat ran")
	require.NoError(t, err)

	assert.Equal(t, 1, report.ChunkCount)
	assert.Equal(t, 9, report.TotalWords)
	assert.Equal(t, 6, report.TotalUniqueWords)
	assert.Equal(t, "the cat sat on **the** mat **the** **cat** ran", report.ProcessedText)
	assert.Equal(t, report.ProcessedText+"\n\n"+report.Summary(), report.Text)
	assert.Contains(t, report.Text, "Average words per chunk: 9.00")
}

func TestRunEmptyInput(t *testing.T) {
	o := NewOrchestrator(4, time.Hour)
	report, err := o.Run(context.Background(), "  \n\t ")
	require.NoError(t, err)

	assert.Empty(t, report.ProcessedText)
	assert.Zero(t, report.ChunkCount)
	assert.Zero(t, report.TotalWords)
	assert.Zero(t, report.TotalUniqueWords)
	assert.Zero(t, report.AvgWordsPerChunk)
	assert.Equal(t, "--- Parallel Analysis ---\nChunks processed: 0\nTotal words: 0\nUnique words: 0\nAverage words per chunk: 0.00", report.Text)
}

func TestRunRestoresChunkOrder(t *testing.T) {
	text := "one two three four five six seven eight"
	o := &Orchestrator{
		Parallelism: 4,
		Process: func(ctx context.Context, words []string, index int) (ChunkResult, error) {
			// Later chunks finish first.
			time.Sleep(time.Duration(4-index) * 5 * time.Millisecond)
			return ProcessChunk(words, index), nil
		},
	}

	report, err := o.Run(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, text, report.ProcessedText)
	require.Len(t, report.Chunks, 4)
	for i, c := range report.Chunks {
		assert.Equal(t, i, c.Index)
	}
	assert.InDelta(t, 2.0, report.AvgWordsPerChunk, 1e-9)
}

func TestRunWorkerFailureDiscardsResults(t *testing.T) {
	boom := errors.New("boom")
	o := &Orchestrator{
		Parallelism: 4,
		Process: func(ctx context.Context, words []string, index int) (ChunkResult, error) {
			if index == 2 {
				return ChunkResult{}, boom
			}
			return ProcessChunk(words, index), nil
		},
	}

	report, err := o.Run(context.Background(), "a b c d e f g h")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "chunk 2")
	assert.Equal(t, Report{}, report)
}

func TestRunCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var started atomic.Int32
	o := &Orchestrator{
		Parallelism: 2,
		ChunkDelay:  time.Hour,
	}
	o.Process = func(ctx context.Context, words []string, index int) (ChunkResult, error) {
		if started.Add(1) == 2 {
			cancel()
		}
		return o.defaultProcess(ctx, words, index)
	}

	done := make(chan struct{})
	var report Report
	var err error
	go func() {
		report, err = o.Run(ctx, "a b c d e f")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Report{}, report)
}

func TestRunDelayedChunksOverlap(t *testing.T) {
	o := NewOrchestrator(4, 40*time.Millisecond)
	report, err := o.Run(context.Background(), "a b c d e f g h")
	require.NoError(t, err)
	assert.Equal(t, 4, report.ChunkCount)
	assert.Less(t, report.Elapsed, 4*40*time.Millisecond)
}

func TestRunProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOf(wordGen()).Draw(t, "words")
		p := rapid.IntRange(1, 8).Draw(t, "parallelism")
		jitter := rapid.SliceOfN(rapid.IntRange(0, 3), 16, 16).Draw(t, "jitter")
		text := strings.Join(words, " ")

		o := &Orchestrator{
			Parallelism: p,
			Process: func(ctx context.Context, w []string, index int) (ChunkResult, error) {
				time.Sleep(time.Duration(jitter[index%len(jitter)]) * time.Millisecond)
				return ProcessChunk(w, index), nil
			},
		}
		report, err := o.Run(context.Background(), text)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}

		chunks := Split(Tokenize(text), p)
		var want []string
		sum := 0
		for i, c := range chunks {
			r := ProcessChunk(c, i)
			want = append(want, r.ProcessedText)
			sum += r.WordCount
		}
		if report.ProcessedText != strings.Join(want, " ") {
			t.Fatalf("merged %q, want %q", report.ProcessedText, strings.Join(want, " "))
		}
		if report.TotalWords != len(Tokenize(text)) || report.TotalWords != sum {
			t.Fatalf("total words %d, chunk sum %d, tokens %d", report.TotalWords, sum, len(Tokenize(text)))
		}
		if report.ChunkCount != len(chunks) {
			t.Fatalf("chunk count %d, want %d", report.ChunkCount, len(chunks))
		}
	})
}
