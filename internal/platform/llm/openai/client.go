// Package openai implements llm.Client against the OpenAI HTTP API.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/lumenmind/memoryengine/internal/platform/httpx"
	"github.com/lumenmind/memoryengine/internal/platform/llm"
	"github.com/lumenmind/memoryengine/internal/platform/logger"
)

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	embedModel string
	httpClient *http.Client
	maxRetries int
}

func NewClient(log *logger.Logger) (llm.Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if model == "" {
		model = "gpt-5.2"
	}
	embed := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if embed == "" {
		embed = "text-embedding-3-small"
	}

	timeoutSec := 60
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 4
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &client{
		log:        log.With("service", "OpenAIClient"),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		embedModel: embed,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string       { return fmt.Sprintf("openai http %d: %s", e.StatusCode, e.Body) }
func (e *httpError) HTTPStatusCode() int { return e.StatusCode }

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, op, method, path string, body, out any) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return &llm.CallError{Op: op, Retryable: false, Err: fmt.Errorf("decode error: %w; raw=%s", uErr, string(raw))}
			}
			return nil
		}
		if !httpx.IsRetryableError(err) {
			return toCallError(op, err)
		}
		if attempt == c.maxRetries {
			return toCallError(op, err)
		}
		sleepFor := httpx.JitterSleep(httpx.RetryAfterDuration(resp, backoff, 10*time.Second))
		c.log.Warn("openai request retrying", "op", op, "attempt", attempt+1, "max_retries", c.maxRetries, "sleep", sleepFor.String(), "error", err.Error())
		time.Sleep(sleepFor)
		backoff *= 2
	}
	return &llm.CallError{Op: op, Retryable: false, Err: fmt.Errorf("unreachable retry loop")}
}

func toCallError(op string, err error) error {
	statusCode := 0
	if he, ok := err.(*httpError); ok {
		statusCode = he.StatusCode
	}
	return &llm.CallError{Op: op, StatusCode: statusCode, Retryable: httpx.IsRetryableError(err), Err: err}
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	clean := make([]string, len(inputs))
	for i := range inputs {
		s := strings.TrimSpace(inputs[i])
		if s == "" {
			s = " "
		}
		clean[i] = s
	}

	var resp embeddingsResponse
	if err := c.do(ctx, "embed", "POST", "/v1/embeddings", embeddingsRequest{Model: c.embedModel, Input: clean}, &resp); err != nil {
		return nil, err
	}

	out := make([][]float32, len(clean))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make([]float32, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, &llm.CallError{Op: "embed", Retryable: false, Err: fmt.Errorf("missing embedding at index %d", i)}
		}
	}
	return out, nil
}

type chatCompletionRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type responseFormat struct {
	Type       string         `json:"type"`
	JSONSchema jsonSchemaSpec `json:"json_schema,omitempty"`
}

type jsonSchemaSpec struct {
	Name   string         `json:"name"`
	Schema map[string]any `json:"schema"`
	Strict bool           `json:"strict"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *client) GenerateJSON(ctx context.Context, system, user, schemaName string, schema map[string]any) (map[string]any, error) {
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		ResponseFormat: &responseFormat{
			Type:       "json_schema",
			JSONSchema: jsonSchemaSpec{Name: schemaName, Schema: schema, Strict: true},
		},
	}
	var resp chatCompletionResponse
	if err := c.do(ctx, "generate_json", "POST", "/v1/chat/completions", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, &llm.CallError{Op: "generate_json", Retryable: true, Err: fmt.Errorf("empty choices")}
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &out); err != nil {
		return nil, &llm.CallError{Op: "generate_json", Retryable: false, Err: fmt.Errorf("decode model output: %w", err)}
	}
	return out, nil
}

func (c *client) GenerateText(ctx context.Context, system, user string) (string, error) {
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	var resp chatCompletionResponse
	if err := c.do(ctx, "generate_text", "POST", "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &llm.CallError{Op: "generate_text", Retryable: true, Err: fmt.Errorf("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *client) GenerateTextWithImages(ctx context.Context, system, user string, images []llm.ImageInput) (string, error) {
	content := []map[string]any{{"type": "text", "text": user}}
	for _, img := range images {
		part := map[string]any{"type": "image_url", "image_url": map[string]any{"url": img.ImageURL}}
		if img.Detail != "" {
			part["image_url"].(map[string]any)["detail"] = img.Detail
		}
		content = append(content, part)
	}
	req := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: content},
		},
	}
	var resp chatCompletionResponse
	if err := c.do(ctx, "generate_text_with_images", "POST", "/v1/chat/completions", req, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", &llm.CallError{Op: "generate_text_with_images", Retryable: true, Err: fmt.Errorf("empty choices")}
	}
	return resp.Choices[0].Message.Content, nil
}
