package segment

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplit_EmptyInput(t *testing.T) {
	assert.Empty(t, Split("", 50, 2000))
	assert.Empty(t, Split("   \n\n\t  \n", 50, 2000))
}

func TestSplit_GroupsConsecutiveVerses(t *testing.T) {
	got := Split("1. Alpha\n\n2. Beta\n\n3. Gamma", 5, 2000)

	require.Len(t, got, 1)
	assert.Equal(t, "1. Alpha 2. Beta 3. Gamma", got[0])
}

func TestSplit_ArabicIndicVerseMarkers(t *testing.T) {
	got := Split("١. النص الأول\n\n٢. النص الثاني", 5, 2000)

	require.Len(t, got, 1)
}

func TestSplit_KeepsDistinctParagraphs(t *testing.T) {
	first := strings.Repeat("First paragraph sentence. ", 12)
	second := strings.Repeat("Second paragraph sentence. ", 12)
	got := Split(first+"\n\n"+second, 50, 2000)

	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[0], "First"))
	assert.True(t, strings.HasPrefix(got[1], "Second"))
}

func TestSplit_MergesShortFragments(t *testing.T) {
	long := strings.Repeat("A reasonably long opening paragraph. ", 10)
	got := Split(long+"\n\nShort tail fragment here.\n\n"+long, 10, 2000)

	// The short middle fragment folds into its predecessor instead of
	// occupying its own slot.
	for _, p := range got {
		assert.GreaterOrEqual(t, len(p), 30)
	}
}

func TestSplit_SubMinimumDocumentKeptWhole(t *testing.T) {
	got := Split("tiny text", 50, 2000)

	require.Len(t, got, 1)
	assert.Equal(t, "tiny text", got[0])
}

func TestSplit_LargeSingleBlockResplitsOnLineSignals(t *testing.T) {
	// One block with no blank lines: line-based resplitting has to find
	// boundaries where sentence end and paragraph opener agree.
	var sb strings.Builder
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&sb, "This is line number %d of the document and it keeps going for a while until it ends.\n", i)
	}
	got := Split(sb.String(), 50, 2000)

	require.Greater(t, len(got), 1)
	for _, p := range got {
		assert.LessOrEqual(t, len(p), 3000, "paragraph exceeds 1.5x max size")
		assert.GreaterOrEqual(t, len(p), 50)
	}
}

func TestSplit_SentenceRegroupFallback(t *testing.T) {
	// Single line, sentence punctuation only: line signals never fire, so
	// sentence regrouping must take over.
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "sentence number %d keeps the narrative moving along nicely. ", i)
	}
	got := Split(sb.String(), 50, 1000)

	require.Greater(t, len(got), 1)
	for _, p := range got {
		assert.LessOrEqual(t, len(p), 1500)
	}
}

func TestSplit_WordChunkingLastResort(t *testing.T) {
	// No blank lines, no line breaks, no sentence punctuation.
	words := strings.Repeat("lorem ipsum dolor sit amet consectetur ", 200)
	got := Split(words, 50, 1000)

	require.Greater(t, len(got), 1)
	for _, p := range got {
		assert.LessOrEqual(t, len(p), 1500)
		assert.GreaterOrEqual(t, len(p), 50)
	}
}

func TestSplit_SizeBounds(t *testing.T) {
	inputs := []string{
		strings.Repeat("Sentence with some words in it. ", 500),
		strings.Repeat("word ", 4000),
		"1. Alpha\n\n2. Beta\n\n3. Gamma\n\nA regular closing paragraph that has enough length to stand on its own two feet.",
	}
	for _, input := range inputs {
		got := Split(input, 50, 2000)
		require.NotEmpty(t, got)
		for _, p := range got {
			assert.NotEmpty(t, p)
			assert.LessOrEqual(t, len(p), 3000, "paragraph exceeds 1.5x max size")
		}
	}
}

func TestSplit_CoveragePreservesWords(t *testing.T) {
	input := strings.Repeat("Coverage check sentence with plenty of words to retain. ", 100)
	got := Split(input, 50, 1500)

	joined := strings.Join(got, " ")
	assert.Equal(t,
		strings.Join(strings.Fields(input), " "),
		strings.Join(strings.Fields(joined), " "),
		"split must not drop or reorder content")
}

func TestMeasure(t *testing.T) {
	m := Measure(nil)
	assert.Equal(t, 0, m.Count)

	m = Measure([]string{
		strings.Repeat("a", 50),   // tiny
		strings.Repeat("b", 700),  // medium
		strings.Repeat("c", 2500), // huge
	})
	assert.Equal(t, 3, m.Count)
	assert.Equal(t, 50, m.MinSize)
	assert.Equal(t, 2500, m.MaxSize)
	assert.Equal(t, 1, m.OverSegmented)
	assert.Equal(t, 1, m.UnderSegmented)
	assert.InDelta(t, 33.3, m.OverSegmentedRate, 0.1)
	assert.InDelta(t, 33.3, m.MediumRangeShare, 0.1)
}
