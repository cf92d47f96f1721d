// internal/textproc/chunk.go
// Package textproc splits text into word chunks and analyzes them concurrently.
package textproc

import (
	"strings"
	"unicode"
)

// ChunkResult is the analysis of one contiguous chunk of words.
type ChunkResult struct {
	// ProcessedText is the chunk's words joined by single spaces, with
	// repeated words wrapped in Markdown bold.
	ProcessedText string `json:"processed_text"`
	WordCount     int    `json:"word_count"`
	UniqueWords   int    `json:"unique_words"`
	Index         int    `json:"index"`
}

// Tokenize splits text on whitespace and drops empty tokens.
func Tokenize(text string) []string {
	return strings.Fields(text)
}

// ProcessChunk counts words by normalized form and emphasizes every
// occurrence after the first. index only tags the result.
func ProcessChunk(words []string, index int) ChunkResult {
	seen := make(map[string]int, len(words))
	var sb strings.Builder
	for i, word := range words {
		if i > 0 {
			sb.WriteByte(' ')
		}
		key := normalize(word)
		seen[key]++
		if seen[key] > 1 {
			sb.WriteString("**")
			sb.WriteString(word)
			sb.WriteString("**")
		} else {
			sb.WriteString(word)
		}
	}
	return ChunkResult{
		ProcessedText: sb.String(),
		WordCount:     len(words),
		UniqueWords:   len(seen),
		Index:         index,
	}
}

// normalize lower-cases word and trims surrounding punctuation. Words made
// only of punctuation keep their lower-cased form so they still count.
func normalize(word string) string {
	lower := strings.ToLower(word)
	trimmed := strings.TrimFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if trimmed == "" {
		return lower
	}
	return trimmed
}

// Split partitions words into contiguous chunks of max(len/parallelism, 1)
// words; the last chunk may be shorter. No words yields no chunks.
func Split(words []string, parallelism int) [][]string {
	if len(words) == 0 {
		return nil
	}
	if parallelism < 1 {
		parallelism = 1
	}
	size := len(words) / parallelism
	if size < 1 {
		size = 1
	}
	chunks := make([][]string, 0, (len(words)+size-1)/size)
	for start := 0; start < len(words); start += size {
		end := start + size
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, words[start:end:end])
	}
	return chunks
}
