package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a generic OpenAI-compatible chat completion client.
// Thread-safe for concurrent use.
type Client struct {
	config     *Config
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a new LLM client with the given configuration
//
// Returns a new Client instance or an error if configuration is invalid
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client := &Client{
		config:  config,
		baseURL: strings.TrimRight(config.APIURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Duration(config.Timeout) * time.Second,
		},
	}

	return client, nil
}

// ChatCompletion creates a chat completion request to the configured LLM API
//
// ctx: Context for the request
// messages: Array of messages in the conversation
// opts: Optional configuration for the request
//
// Returns the chat completion response or an error. API failures come back
// as *Error with the HTTP status attached.
func (c *Client) ChatCompletion(ctx context.Context, messages []Message, opts *ChatCompletionOptions) (*ChatResponse, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	if opts.SystemPrompt != "" {
		systemMessage := Message{
			Role:    "system",
			Content: opts.SystemPrompt,
		}
		messages = append([]Message{systemMessage}, messages...)
	}

	request := ChatRequest{
		Model:       c.getModel(opts),
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: c.getTemperature(opts),
	}

	resp, err := c.postJSON(ctx, "/chat/completions", request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if apiErr := parseAPIError(resp.StatusCode, responseBody); apiErr != nil {
		return nil, apiErr
	}

	var chatResponse ChatResponse
	if err := json.Unmarshal(responseBody, &chatResponse); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResponse.Error != nil && chatResponse.Error.Message != "" {
		chatResponse.Error.StatusCode = resp.StatusCode
		return &chatResponse, chatResponse.Error
	}

	return &chatResponse, nil
}

// Complete provides a simple single-prompt interface for chat completion
//
// Returns the assistant's response content or an error
func (c *Client) Complete(ctx context.Context, prompt string, opts *ChatCompletionOptions) (string, error) {
	messages := []Message{
		{Role: "user", Content: prompt},
	}

	response, err := c.ChatCompletion(ctx, messages, opts)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	return response.Choices[0].Message.Content, nil
}

// StreamComplete runs a streaming chat completion for a single prompt,
// invoking onChunk for every content delta as it arrives. It returns the
// full accumulated text once the stream ends.
//
// onChunk may be nil; the call then degrades to buffering the whole stream.
func (c *Client) StreamComplete(ctx context.Context, prompt string, opts *ChatCompletionOptions, onChunk func(chunk string)) (string, error) {
	if opts == nil {
		opts = NewChatCompletionOptions()
	}

	messages := []Message{}
	if opts.SystemPrompt != "" {
		messages = append(messages, Message{Role: "system", Content: opts.SystemPrompt})
	}
	messages = append(messages, Message{Role: "user", Content: prompt})

	request := ChatRequest{
		Model:       c.getModel(opts),
		Messages:    messages,
		MaxTokens:   c.getMaxTokens(opts),
		Temperature: c.getTemperature(opts),
		Stream:      true,
	}

	resp, err := c.postJSON(ctx, "/chat/completions", request)
	if err != nil {
		return "", fmt.Errorf("stream completion failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(resp.Body)
		if apiErr := parseAPIError(resp.StatusCode, responseBody); apiErr != nil {
			return "", apiErr
		}
		return "", &Error{StatusCode: resp.StatusCode, Message: string(responseBody)}
	}

	var builder strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			if payload == "[DONE]" {
				break
			}
			continue
		}

		var chunk ChatResponse
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			// Providers occasionally interleave comments or keep-alives.
			continue
		}
		if chunk.Error != nil && chunk.Error.Message != "" {
			chunk.Error.StatusCode = resp.StatusCode
			return builder.String(), chunk.Error
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta == nil {
			continue
		}
		content := chunk.Choices[0].Delta.Content
		if content == "" {
			continue
		}
		builder.WriteString(content)
		if onChunk != nil {
			onChunk(content)
		}
	}
	if err := scanner.Err(); err != nil {
		return builder.String(), fmt.Errorf("stream read failed: %w", err)
	}

	return builder.String(), nil
}

// postJSON makes a raw HTTP POST to the configured LLM API
func (c *Client) postJSON(ctx context.Context, path string, payload interface{}) (*http.Response, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range c.config.GetHeaders() {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

// parseAPIError turns a non-2xx response body into a typed *Error.
// Returns nil for 2xx statuses.
func parseAPIError(statusCode int, body []byte) *Error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	var wrapped struct {
		Error *Error `json:"error"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		wrapped.Error.StatusCode = statusCode
		return wrapped.Error
	}

	return &Error{
		StatusCode: statusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

// getModel returns the model to use for the request
func (c *Client) getModel(opts *ChatCompletionOptions) string {
	if opts.Model != "" {
		return opts.Model
	}
	return c.config.Model
}

// getMaxTokens returns the max tokens to use for the request
func (c *Client) getMaxTokens(opts *ChatCompletionOptions) int {
	if opts.MaxTokens > 0 {
		return opts.MaxTokens
	}
	return c.config.MaxTokens
}

// getTemperature returns the temperature to use for the request
func (c *Client) getTemperature(opts *ChatCompletionOptions) float64 {
	if opts.Temperature >= 0 && opts.Temperature <= 2 {
		return opts.Temperature
	}
	return c.config.Temperature
}
