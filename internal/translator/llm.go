package translator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/dkurilov/paratrans/internal/llm"
)

const systemPrompt = "You are a professional translator. Translate accurately, " +
	"preserving the meaning, tone and formatting of the source text. " +
	"Return only the translation, without commentary."

// llmTranslator translates paragraphs through an OpenAI-compatible client.
type llmTranslator struct {
	client *llm.Client
}

// NewLLMTranslator wraps an LLM client as a Translator.
func NewLLMTranslator(client *llm.Client) Translator {
	return &llmTranslator{client: client}
}

func (t *llmTranslator) TranslateParagraph(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" {
		return "", nil
	}

	prompt := buildPrompt(req)
	opts := llm.NewChatCompletionOptions().WithSystemPrompt(systemPrompt)
	if req.Model != "" {
		opts = opts.WithModel(req.Model)
	}

	var (
		raw string
		err error
	)
	if req.Stream && req.OnChunk != nil {
		var accumulated strings.Builder
		raw, err = t.client.StreamComplete(ctx, prompt, opts, func(chunk string) {
			accumulated.WriteString(chunk)
			req.OnChunk(chunk, accumulated.String())
		})
	} else {
		raw, err = t.client.Complete(ctx, prompt, opts)
	}
	if err != nil {
		return "", classify(err)
	}

	translated := cleanResponse(raw, req.TargetLang)
	if translated == "" {
		return "", NewError(KindProvider, "provider returned an empty translation")
	}
	return translated, nil
}

func buildPrompt(req Request) string {
	source := req.SourceLang
	if source == "" {
		source = "the source language"
	}
	return fmt.Sprintf(
		"Translate the following text from %s to %s. Keep paragraph breaks and punctuation intact.\n\nText:\n%s",
		source, req.TargetLang, req.Text,
	)
}

// cleanResponse strips boilerplate prefixes some models prepend despite the
// system prompt, e.g. "Translation:" or "Russian translation:".
func cleanResponse(raw, targetLang string) string {
	out := strings.TrimSpace(raw)

	prefixes := []string{
		"Translation:",
		"Translated text:",
	}
	if targetLang != "" {
		prefixes = append(prefixes,
			targetLang+" translation:",
			strings.ToLower(targetLang)+" translation:",
		)
	}
	for _, prefix := range prefixes {
		if len(out) >= len(prefix) && strings.EqualFold(out[:len(prefix)], prefix) {
			out = strings.TrimSpace(out[len(prefix):])
			break
		}
	}

	// Models sometimes wrap the whole answer in quotes.
	if len(out) >= 2 && out[0] == '"' && out[len(out)-1] == '"' {
		out = strings.TrimSpace(out[1 : len(out)-1])
	}
	return out
}

// classify maps a client failure onto the error taxonomy. HTTP status is the
// only signal used for API errors; messages are never parsed.
func classify(err error) *Error {
	var apiErr *llm.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
			return WrapError(KindAuth, "provider rejected credentials", err)
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return WrapError(KindRateLimited, "provider throttled the request", err)
		default:
			return WrapError(KindProvider, "provider request failed", err)
		}
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return WrapError(KindNetwork, "request timed out", err)
	case errors.As(err, &netErr):
		return WrapError(KindNetwork, "network failure", err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return WrapError(KindNetwork, "network failure", err)
	}

	return WrapError(KindProvider, "translation failed", err)
}
