// Package tokencost estimates token usage and provider pricing for a
// document before any translation starts.
package tokencost

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// Pricing is the per-1M-token price sheet for one provider model.
type Pricing struct {
	Provider    string
	Model       string
	InputPer1M  float64
	OutputPer1M float64
	Note        string
	// CharBased providers (DeepL) price per character, not per token.
	CharBased bool
}

// Estimate is a cost projection for one provider model.
type Estimate struct {
	ProviderKey  string  `json:"provider_key"`
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputCost   float64 `json:"output_cost"`
	TotalCost    float64 `json:"total_cost"`
	Exact        bool    `json:"exact"`
	Note         string  `json:"note,omitempty"`
}

// OutputRatio is the assumed output/input token ratio for translation work;
// translated text typically runs 1.2x to 1.5x the source.
const OutputRatio = 1.3

// pricing per 1M tokens.
var pricing = map[string]Pricing{
	"openai_gpt4": {
		Provider:   "OpenAI",
		Model:      "GPT-4 Turbo",
		InputPer1M: 10.0, OutputPer1M: 30.0,
	},
	"openai_gpt35": {
		Provider:   "OpenAI",
		Model:      "GPT-3.5 Turbo",
		InputPer1M: 0.50, OutputPer1M: 1.50,
	},
	"anthropic_opus": {
		Provider:   "Anthropic",
		Model:      "Claude 3 Opus",
		InputPer1M: 15.0, OutputPer1M: 75.0,
	},
	"anthropic_sonnet": {
		Provider:   "Anthropic",
		Model:      "Claude 3 Sonnet",
		InputPer1M: 3.0, OutputPer1M: 15.0,
	},
	"google_gemini": {
		Provider:   "Google",
		Model:      "Gemini Pro",
		InputPer1M: 0.50, OutputPer1M: 1.50,
	},
	"google_gemini_25_flash": {
		Provider:   "Google",
		Model:      "Gemini 2.5 Flash",
		InputPer1M: 0.30, OutputPer1M: 2.50,
	},
	"deepl": {
		Provider:   "DeepL",
		Model:      "DeepL API",
		InputPer1M: 20.0, OutputPer1M: 0,
		Note:      "Character-based pricing, input only",
		CharBased: true,
	},
}

// CountTokens approximates a BPE token count without shipping a tokenizer:
// roughly one token per word plus one per punctuation rune, with long words
// contributing extra tokens per 4 characters. Within a few percent of
// cl100k_base on prose, which is enough for an estimate.
func CountTokens(text string) int {
	if strings.TrimSpace(text) == "" {
		return 0
	}

	tokens := 0
	for _, word := range strings.Fields(text) {
		runes := []rune(word)
		wordLen := 0
		for _, r := range runes {
			if unicode.IsPunct(r) || unicode.IsSymbol(r) {
				tokens++
				continue
			}
			wordLen++
		}
		if wordLen == 0 {
			continue
		}
		tokens++
		if wordLen > 4 {
			tokens += (wordLen - 1) / 4
		}
	}
	return tokens
}

// EstimateOutputTokens projects output volume from input volume.
func EstimateOutputTokens(inputTokens int) int {
	return int(float64(inputTokens) * OutputRatio)
}

// ForProvider calculates a cost estimate for one provider key.
func ForProvider(text, providerKey string) (Estimate, error) {
	p, ok := pricing[providerKey]
	if !ok {
		return Estimate{}, fmt.Errorf("unknown provider key: %s", providerKey)
	}

	inputTokens := CountTokens(text)
	if p.CharBased {
		inputTokens = len([]rune(text))
	}
	outputTokens := EstimateOutputTokens(inputTokens)
	if p.CharBased {
		outputTokens = 0
	}

	inputCost := float64(inputTokens) / 1_000_000 * p.InputPer1M
	outputCost := float64(outputTokens) / 1_000_000 * p.OutputPer1M
	return Estimate{
		ProviderKey:  providerKey,
		Provider:     p.Provider,
		Model:        p.Model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		InputCost:    inputCost,
		OutputCost:   outputCost,
		TotalCost:    inputCost + outputCost,
		Exact:        p.CharBased,
		Note:         p.Note,
	}, nil
}

// AllProviders calculates estimates for every known provider, cheapest first.
func AllProviders(text string) []Estimate {
	estimates := make([]Estimate, 0, len(pricing))
	for key := range pricing {
		est, err := ForProvider(text, key)
		if err != nil {
			continue
		}
		if est.InputTokens == 0 {
			continue
		}
		estimates = append(estimates, est)
	}
	sort.Slice(estimates, func(i, j int) bool {
		return estimates[i].TotalCost < estimates[j].TotalCost
	})
	return estimates
}
