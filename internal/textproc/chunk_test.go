package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestProcessChunkEmphasizesRepeats(t *testing.T) {
	words := Tokenize("the cat sat on the mat the cat ran")
	res := ProcessChunk(words, 0)

	assert.Equal(t, 9, res.WordCount)
	assert.Equal(t, 6, res.UniqueWords)
	assert.Equal(t, "the cat sat on **the** mat **the** **cat** ran", res.ProcessedText)
}

func TestProcessChunkNormalizesCaseAndPunctuation(t *testing.T) {
	res := ProcessChunk([]string{"Hello,", "hello", "(HELLO)", "--", "--"}, 3)

	assert.Equal(t, 3, res.Index)
	assert.Equal(t, 2, res.UniqueWords)
	assert.Equal(t, "Hello, **hello** **(HELLO)** -- **--**", res.ProcessedText)
}

func TestProcessChunkEmpty(t *testing.T) {
	res := ProcessChunk(nil, 7)
	assert.Equal(t, ChunkResult{Index: 7}, res)
}

func TestSplit(t *testing.T) {
	words := strings.Fields("a b c d e f g h i j")

	chunks := Split(words, 4)
	require.Len(t, chunks, 5)
	assert.Equal(t, []string{"a", "b"}, chunks[0])
	assert.Equal(t, []string{"i", "j"}, chunks[4])

	chunks = Split(words, 3)
	require.Len(t, chunks, 4)
	assert.Equal(t, []string{"j"}, chunks[3])

	assert.Len(t, Split(words, 64), 10)
	assert.Len(t, Split(words, 0), 1)
	assert.Nil(t, Split(nil, 4))
}

func TestSplitProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOfN(wordGen(), 1, 200).Draw(t, "words")
		p := rapid.IntRange(1, 16).Draw(t, "parallelism")

		size := len(words) / p
		if size < 1 {
			size = 1
		}
		chunks := Split(words, p)

		if want := (len(words) + size - 1) / size; len(chunks) != want {
			t.Fatalf("%d chunks for %d words at size %d, want %d", len(chunks), len(words), size, want)
		}
		if len(words) >= p && len(chunks) > 2*p-1 {
			t.Fatalf("%d chunks exceeds 2P-1 for P=%d", len(chunks), p)
		}
		var joined []string
		for i, c := range chunks {
			if i < len(chunks)-1 && len(c) != size {
				t.Fatalf("chunk %d has %d words, want %d", i, len(c), size)
			}
			if len(c) == 0 || len(c) > size {
				t.Fatalf("chunk %d has %d words, size %d", i, len(c), size)
			}
			joined = append(joined, c...)
		}
		if strings.Join(joined, " ") != strings.Join(words, " ") {
			t.Fatal("chunks do not reassemble the input in order")
		}
	})
}

func wordGen() *rapid.Generator[string] {
	return rapid.SampledFrom([]string{"the", "The", "cat,", "sat", "on", "mat.", "ran", "--", "über", "42"})
}

func TestProcessChunkProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		words := rapid.SliceOf(wordGen()).Draw(t, "words")
		index := rapid.IntRange(0, 1000).Draw(t, "index")

		first := ProcessChunk(words, index)
		second := ProcessChunk(words, index)

		if first != second {
			t.Fatalf("non-deterministic result: %+v vs %+v", first, second)
		}
		if first.WordCount != len(words) {
			t.Fatalf("word count %d, want %d", first.WordCount, len(words))
		}
		if first.UniqueWords > first.WordCount {
			t.Fatalf("unique %d exceeds word count %d", first.UniqueWords, first.WordCount)
		}
		if len(words) > 0 && first.UniqueWords == 0 {
			t.Fatal("non-empty chunk must have at least one unique word")
		}
		stripped := strings.ReplaceAll(first.ProcessedText, "**", "")
		if stripped != strings.Join(words, " ") {
			t.Fatalf("processed text %q does not preserve words", first.ProcessedText)
		}
	})
}
