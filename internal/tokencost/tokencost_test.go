package tokencost

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountTokens(t *testing.T) {
	assert.Zero(t, CountTokens(""))
	assert.Zero(t, CountTokens("   \n\t "))

	// Short words count one token each.
	assert.Equal(t, 3, CountTokens("the red cat"))

	// Long words contribute extra tokens; punctuation counts separately.
	short := CountTokens("cat")
	long := CountTokens("internationalization")
	assert.Greater(t, long, short)
	assert.Greater(t, CountTokens("hello, world!"), CountTokens("hello world"))
}

func TestEstimateOutputTokens(t *testing.T) {
	assert.Equal(t, 1300, EstimateOutputTokens(1000))
	assert.Equal(t, 0, EstimateOutputTokens(0))
}

func TestForProvider(t *testing.T) {
	text := strings.Repeat("some reasonable english prose for counting tokens ", 100)

	est, err := ForProvider(text, "openai_gpt35")
	require.NoError(t, err)
	assert.Equal(t, "OpenAI", est.Provider)
	assert.Positive(t, est.InputTokens)
	assert.Equal(t, EstimateOutputTokens(est.InputTokens), est.OutputTokens)
	assert.InDelta(t, est.InputCost+est.OutputCost, est.TotalCost, 1e-12)

	_, err = ForProvider(text, "nonexistent")
	require.Error(t, err)
}

func TestForProvider_CharBasedPricing(t *testing.T) {
	est, err := ForProvider("abcd efgh", "deepl")
	require.NoError(t, err)
	assert.Equal(t, 9, est.InputTokens, "DeepL counts characters")
	assert.Zero(t, est.OutputTokens, "DeepL charges input only")
	assert.Zero(t, est.OutputCost)
}

func TestAllProviders_SortedByCost(t *testing.T) {
	text := strings.Repeat("a paragraph of text to estimate across every provider ", 50)

	estimates := AllProviders(text)
	require.NotEmpty(t, estimates)
	for i := 1; i < len(estimates); i++ {
		assert.LessOrEqual(t, estimates[i-1].TotalCost, estimates[i].TotalCost)
	}

	assert.Empty(t, AllProviders(""))
}
