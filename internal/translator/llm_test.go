package translator

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkurilov/paratrans/internal/llm"
)

func newTestTranslator(t *testing.T, handler http.HandlerFunc) Translator {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := llm.NewClient(&llm.Config{
		APIKey:      "test-key",
		APIURL:      server.URL,
		Model:       "test/model",
		MaxTokens:   256,
		Temperature: 0.3,
		Timeout:     5,
	})
	require.NoError(t, err)
	return NewLLMTranslator(client)
}

func TestLLMTranslator_TranslateParagraph(t *testing.T) {
	tr := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":"Translation: Привет"}}]}`)
	})

	got, err := tr.TranslateParagraph(context.Background(), Request{
		Text:       "Hello",
		SourceLang: "English",
		TargetLang: "Russian",
	})
	require.NoError(t, err)
	assert.Equal(t, "Привет", got, "boilerplate prefix is stripped")
}

func TestLLMTranslator_BlankInputSkipsProvider(t *testing.T) {
	called := false
	tr := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	got, err := tr.TranslateParagraph(context.Background(), Request{Text: "   ", TargetLang: "Russian"})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.False(t, called)
}

func TestLLMTranslator_AuthErrorKind(t *testing.T) {
	tr := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key"}}`)
	})

	_, err := tr.TranslateParagraph(context.Background(), Request{Text: "Hello", TargetLang: "Russian"})
	require.Error(t, err)
	assert.Equal(t, KindAuth, KindOf(err))
	assert.True(t, IsAuth(err))

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.False(t, te.Retryable())
}

func TestLLMTranslator_RateLimitErrorKind(t *testing.T) {
	tr := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down"}}`)
	})

	_, err := tr.TranslateParagraph(context.Background(), Request{Text: "Hello", TargetLang: "Russian"})
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
}

func TestLLMTranslator_ServerErrorIsProviderKind(t *testing.T) {
	tr := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, `upstream exploded`)
	})

	_, err := tr.TranslateParagraph(context.Background(), Request{Text: "Hello", TargetLang: "Russian"})
	require.Error(t, err)
	assert.Equal(t, KindProvider, KindOf(err))

	var te *Error
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Retryable())
}

func TestLLMTranslator_StreamDeliversChunks(t *testing.T) {
	tr := newTestTranslator(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"При\"}}]}\n\n")
		fmt.Fprint(w, "data: {\"choices\":[{\"delta\":{\"content\":\"вет\"}}]}\n\n")
		fmt.Fprint(w, "data: [DONE]\n\n")
	})

	var lastAccumulated string
	got, err := tr.TranslateParagraph(context.Background(), Request{
		Text:       "Hello",
		TargetLang: "Russian",
		Stream:     true,
		OnChunk: func(chunk, accumulated string) {
			lastAccumulated = accumulated
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Привет", got)
	assert.Equal(t, "Привет", lastAccumulated)
}

func TestKindOf_UntypedErrorIsProvider(t *testing.T) {
	assert.Equal(t, KindProvider, KindOf(assert.AnError))
}
