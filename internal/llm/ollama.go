package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.1"
)

// OllamaOptions configures the local Ollama chat adapter.
type OllamaOptions struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type ollamaClient struct {
	hc    *http.Client
	url   string
	model string
}

// NewOllama builds a client for Ollama's /api/chat endpoint.
func NewOllama(opts OllamaOptions) Client {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultOllamaURL
	}
	if opts.Model == "" {
		opts.Model = defaultOllamaModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 120 * time.Second
	}
	return &ollamaClient{
		hc:    &http.Client{Timeout: opts.Timeout},
		url:   strings.TrimRight(opts.BaseURL, "/") + "/api/chat",
		model: opts.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
	Format   string        `json:"format,omitempty"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaResponse struct {
	Message struct {
		Content string `json:"content"`
	} `json:"message"`
	Response string `json:"response"`
	Error    string `json:"error"`
}

func (c *ollamaClient) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}

	body := ollamaRequest{
		Model:    model,
		Messages: buildMessages(req),
		Stream:   false,
		Options:  ollamaOptions{Temperature: req.Temperature, NumPredict: req.MaxTokens},
	}
	if req.JSON {
		body.Format = "json"
	}

	raw, status, err := postJSON(ctx, c.hc, c.url, nil, body)
	if err != nil {
		return "", transportErr("ollama", status, err)
	}

	var out ollamaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", transportErr("ollama", status, fmt.Errorf("decode response: %w", err))
	}
	if out.Error != "" {
		return "", transportErr("ollama", status, fmt.Errorf("%s", out.Error))
	}

	text := out.Message.Content
	if text == "" {
		text = out.Response
	}
	if strings.TrimSpace(text) == "" {
		return "", transportErr("ollama", status, errEmptyReply)
	}
	return text, nil
}

func buildMessages(req Request) []chatMessage {
	msgs := make([]chatMessage, 0, 2)
	if req.System != "" {
		msgs = append(msgs, chatMessage{Role: "system", Content: req.System})
	}
	return append(msgs, chatMessage{Role: "user", Content: req.User})
}

// postJSON sends body as JSON and returns the raw response. Any non-2xx
// status is returned as an error alongside the status code.
func postJSON(ctx context.Context, hc *http.Client, url string, headers map[string]string, body any) ([]byte, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := hc.Do(httpReq)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode/100 != 2 {
		return nil, resp.StatusCode, fmt.Errorf("%s", strings.TrimSpace(string(raw)))
	}
	return raw, resp.StatusCode, nil
}
